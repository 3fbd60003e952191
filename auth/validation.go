package auth

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/jrsteele09/go-social-login/oauth2"
	"github.com/jrsteele09/go-social-login/oauthmodel"
	"github.com/jrsteele09/go-social-login/pkce"
)

// ValidateLoginOptions checks the per-call login options before anything is persisted.
func ValidateLoginOptions(opts oauthmodel.LoginOptions) error {
	switch opts.Flow {
	case "", oauth2.PopupFlow, oauth2.RedirectFlow:
	default:
		return fmt.Errorf("unsupported flow %q", opts.Flow)
	}
	if opts.RedirectURI != "" {
		if err := ValidateRedirectURI(opts.RedirectURI); err != nil {
			return err
		}
	}
	if err := ValidateState(opts.State); err != nil {
		return err
	}
	for _, s := range opts.Scope {
		if err := ValidateScope(s); err != nil {
			return err
		}
	}
	return nil
}

// ValidatePKCE validates a code challenge produced for the authorization URL
func ValidatePKCE(codeChallenge, codeChallengeMethod string) error {
	if codeChallenge == "" || codeChallengeMethod == "" {
		return fmt.Errorf("both code_challenge and code_challenge_method must be provided together")
	}

	// base64url of a SHA-256 digest is always 43 characters
	if len(codeChallenge) != 43 {
		return fmt.Errorf("code_challenge must be 43 characters for S256")
	}

	if codeChallengeMethod != pkce.MethodS256 {
		return fmt.Errorf("code_challenge_method must be '%s'", pkce.MethodS256)
	}
	return nil
}

// ValidateScope validates an individual scope token
func ValidateScope(scope string) error {
	if strings.TrimSpace(scope) == "" {
		return fmt.Errorf("scope tokens must not be empty")
	}

	// Check for invalid characters
	if strings.ContainsAny(scope, " \n\r\t") {
		return fmt.Errorf("scope %q contains whitespace", scope)
	}
	return nil
}

// ValidateRedirectURI validates redirect URI format
func ValidateRedirectURI(uri string) error {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return fmt.Errorf("redirect_uri is required")
	}

	u, err := url.Parse(uri)
	if err != nil {
		return fmt.Errorf("redirect_uri is not a valid URL: %w", err)
	}

	// Must be http or https
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("redirect_uri must use http or https scheme")
	}
	if u.Host == "" {
		return fmt.Errorf("redirect_uri must be absolute")
	}

	// Should not contain fragments
	if u.Fragment != "" || strings.Contains(uri, "#") {
		return fmt.Errorf("redirect_uri must not contain fragments")
	}
	return nil
}

// ValidateState validates a caller supplied state parameter
func ValidateState(state string) error {
	// State is optional, generated when absent
	if state == "" {
		return nil
	}

	// Should be reasonably long for CSRF protection
	if len(state) < 8 {
		return fmt.Errorf("state parameter should be at least 8 characters for security")
	}

	// Should not contain whitespace
	if strings.TrimSpace(state) != state {
		return fmt.Errorf("state parameter must not contain leading/trailing whitespace")
	}
	return nil
}

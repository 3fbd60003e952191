package oauthmodel

import (
	"context"
	"errors"
	"fmt"
)

// Error kinds. Structured errors below unwrap to one of these so callers can use errors.Is.
var (
	ErrConfig              = errors.New("invalid provider configuration")
	ErrUnknownProvider     = errors.New("unknown provider")
	ErrDiscovery           = errors.New("discovery document fetch failed")
	ErrPopupBlocked        = errors.New("popup blocked")
	ErrPopupClosed         = errors.New("popup closed by user")
	ErrTimeout             = errors.New("login timed out")
	ErrStateMismatch       = errors.New("login session expired or state mismatch")
	ErrAuthorizationDenied = errors.New("authorization denied")
	ErrTokenExchange       = errors.New("token exchange failed")
	ErrRefresh             = errors.New("token refresh failed")
	ErrResourceFetch       = errors.New("resource fetch failed")
	ErrNoCodeOrToken       = errors.New("no authorization code or access token in redirect")
	ErrNoRefreshToken      = errors.New("no refresh token available, request an offline_access scope to receive one")
	ErrNotLoggedIn         = errors.New("not logged in")
)

// ConfigError reports a provider configuration that is missing a required field.
type ConfigError struct {
	ProviderID string
	Field      string
	Reason     string
}

func (e *ConfigError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("provider %q: %s: %s", e.ProviderID, e.Field, e.Reason)
	}
	return fmt.Sprintf("provider %q: %s is required", e.ProviderID, e.Field)
}

func (e *ConfigError) Unwrap() error { return ErrConfig }

// HTTPError reports a non-2xx answer from a discovery, token or resource endpoint.
type HTTPError struct {
	Kind       error
	URL        string
	StatusCode int
	Body       string
	Err        error // transport or decoding failure, when there was no usable response
}

func (e *HTTPError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Body != "":
		return fmt.Sprintf("%v: %s returned %d: %s", e.Kind, e.URL, e.StatusCode, e.Body)
	case e.StatusCode != 0:
		return fmt.Sprintf("%v: %s returned %d", e.Kind, e.URL, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%v: %s: %v", e.Kind, e.URL, e.Err)
	}
	return fmt.Sprintf("%v: %s", e.Kind, e.URL)
}

func (e *HTTPError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

// AuthorizationDeniedError carries the error returned by the provider in the redirect.
type AuthorizationDeniedError struct {
	Code        string
	Description string
}

func (e *AuthorizationDeniedError) Error() string {
	if e.Description != "" {
		return e.Description
	}
	return e.Code
}

func (e *AuthorizationDeniedError) Unwrap() error { return ErrAuthorizationDenied }

// PopupMessageError is a failure reported by the callback context over a completion channel.
// Kind is the sentinel named by the message, so errors.Is works across the channel.
type PopupMessageError struct {
	Message string
	Kind    error
	Code    string // provider error code, for authorization denials
}

func (e *PopupMessageError) Error() string { return e.Message }

func (e *PopupMessageError) Unwrap() error {
	if errors.Is(e.Kind, ErrAuthorizationDenied) {
		return &AuthorizationDeniedError{Code: e.Code, Description: e.Message}
	}
	return e.Kind
}

type errorKind struct {
	code string
	err  error
}

// errorKinds names every sentinel on the wire between the callback context and the opener.
var errorKinds = []errorKind{
	{"config", ErrConfig},
	{"unknown_provider", ErrUnknownProvider},
	{"discovery", ErrDiscovery},
	{"popup_blocked", ErrPopupBlocked},
	{"popup_closed", ErrPopupClosed},
	{"timeout", ErrTimeout},
	{"state_mismatch", ErrStateMismatch},
	{"authorization_denied", ErrAuthorizationDenied},
	{"token_exchange", ErrTokenExchange},
	{"refresh", ErrRefresh},
	{"resource_fetch", ErrResourceFetch},
	{"no_code_or_token", ErrNoCodeOrToken},
	{"no_refresh_token", ErrNoRefreshToken},
	{"not_logged_in", ErrNotLoggedIn},
}

// KindCode returns the wire code of the sentinel err matches, or "" when it matches none.
func KindCode(err error) string {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.code
		}
	}
	return ""
}

// KindFromCode is the inverse of KindCode. Unknown codes return nil.
func KindFromCode(code string) error {
	for _, k := range errorKinds {
		if k.code == code {
			return k.err
		}
	}
	return nil
}

// AccessDenied is the provider error code for a user declining at the consent screen.
const AccessDenied = "access_denied"

// IsCancellation reports whether err represents a deliberate user or caller action rather than a fault,
// so integrators can skip alarming UI for it.
func IsCancellation(err error) bool {
	var denied *AuthorizationDeniedError
	if errors.As(err, &denied) && denied.Code == AccessDenied {
		return true
	}
	return errors.Is(err, ErrPopupClosed) || errors.Is(err, context.Canceled)
}

// Package providers normalizes heterogeneous provider configuration into one canonical shape per
// provider id and resolves missing endpoints from OIDC discovery documents.
package providers

import (
	"encoding/json"
	"maps"
	"slices"
	"strings"

	"github.com/jrsteele09/go-social-login/internal/utils"
	"github.com/jrsteele09/go-social-login/oauth2"
	"github.com/jrsteele09/go-social-login/oauthmodel"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Config is the canonical configuration of one provider. It is immutable once registered except
// for the one-time fill-in of endpoints from discovery.
type Config struct {
	// ID is the provider id the configuration was registered under.
	ID string

	// AppID is the OAuth client_id.
	// Required: Yes
	AppID string

	// ClientSecret is only set for confidential clients; public clients rely on PKCE.
	ClientSecret string

	// Preset names built-in provider quirks ("google", "twitter"). Empty for generic providers.
	Preset string

	// IssuerURL is the OIDC issuer used for discovery.
	// Required: Yes, unless AuthorizationBaseURL is configured
	IssuerURL string

	// AuthorizationBaseURL is the authorization endpoint.
	// Example: "https://idp.example.com/authorize"
	AuthorizationBaseURL string

	// AccessTokenEndpoint is the token endpoint. Not needed for the implicit flow.
	AccessTokenEndpoint string

	// RedirectURL is the default redirect_uri.
	// Required: Yes
	// Security: Must exactly match a URI registered with the provider
	RedirectURL string

	// ResourceURL, when set, is fetched with the access token to enrich the login result.
	// Example: "https://openidconnect.googleapis.com/v1/userinfo"
	ResourceURL string

	// ResponseType is "code" (default) or "token" (implicit).
	ResponseType oauth2.ResponseType

	// PKCEEnabled adds an S256 code challenge to code flow requests. Defaults to true.
	PKCEEnabled bool

	// Scope is the default scope list.
	Scope []string

	// AdditionalParameters are appended to the authorization URL.
	AdditionalParameters map[string]string

	// Authorization URL extras, promoted only when AdditionalParameters does not already carry them.
	LoginHint    string
	Prompt       string
	Audience     string
	HostedDomain string
	Nonce        string

	// AdditionalTokenParameters are sent with the authorization_code token request.
	AdditionalTokenParameters map[string]string

	// AdditionalResourceHeaders are sent with the resource request.
	AdditionalResourceHeaders map[string]string

	// LogoutURL is the end-session endpoint opened on logout.
	LogoutURL string

	// PostLogoutRedirectURL is sent as post_logout_redirect_uri.
	PostLogoutRedirectURL string

	// AdditionalLogoutParameters are appended to the logout URL.
	AdditionalLogoutParameters map[string]string

	// UseUserInfo lets discovery fill ResourceURL from userinfo_endpoint.
	UseUserInfo bool

	// LogsEnabled turns on logging for this provider.
	LogsEnabled bool
}

// Clone returns a deep copy of c.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Scope = slices.Clone(c.Scope)
	cp.AdditionalParameters = maps.Clone(c.AdditionalParameters)
	cp.AdditionalTokenParameters = maps.Clone(c.AdditionalTokenParameters)
	cp.AdditionalResourceHeaders = maps.Clone(c.AdditionalResourceHeaders)
	cp.AdditionalLogoutParameters = maps.Clone(c.AdditionalLogoutParameters)
	return &cp
}

// UsesPKCE reports whether code flow requests for this provider carry a code challenge.
func (c *Config) UsesPKCE() bool {
	return c.ResponseType == oauth2.CodeResponseType && c.PKCEEnabled
}

// HasEndpoints reports whether no discovery is needed for this provider.
func (c *Config) HasEndpoints() bool {
	return c.AuthorizationBaseURL != "" && c.AccessTokenEndpoint != ""
}

// Logger returns the provider's logger, or a disabled one when LogsEnabled is false.
func (c *Config) Logger() zerolog.Logger {
	if c == nil || !c.LogsEnabled {
		return zerolog.Nop()
	}
	return log.With().Str("provider", c.ID).Logger()
}

// Scopes accepts either a single space/comma separated string or a list.
type Scopes []string

func (s *Scopes) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*s = splitScope(value.Value)
		return nil
	default:
		var list []string
		if err := value.Decode(&list); err != nil {
			return err
		}
		*s = list
		return nil
	}
}

func (s *Scopes) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		*s = splitScope(str)
		return nil
	}
	var list []string
	if err := json.Unmarshal(b, &list); err != nil {
		return err
	}
	*s = list
	return nil
}

func splitScope(v string) []string {
	return strings.FieldsFunc(v, func(r rune) bool { return r == ' ' || r == ',' })
}

// RawConfig is the configuration as supplied by integrators. Several fields have aliases;
// Normalize folds them into Config.
type RawConfig struct {
	AppID        string `yaml:"appId" json:"appId"`
	ClientID     string `yaml:"clientId" json:"clientId"`
	ClientSecret string `yaml:"clientSecret" json:"clientSecret"`
	Preset       string `yaml:"preset" json:"preset"`

	IssuerURL string `yaml:"issuerUrl" json:"issuerUrl"`
	Issuer    string `yaml:"issuer" json:"issuer"`

	AuthorizationBaseURL  string `yaml:"authorizationBaseUrl" json:"authorizationBaseUrl"`
	AuthorizationEndpoint string `yaml:"authorizationEndpoint" json:"authorizationEndpoint"`
	AuthorizationURL      string `yaml:"authorizationUrl" json:"authorizationUrl"`

	AccessTokenEndpoint string `yaml:"accessTokenEndpoint" json:"accessTokenEndpoint"`
	TokenEndpoint       string `yaml:"tokenEndpoint" json:"tokenEndpoint"`
	TokenURL            string `yaml:"tokenUrl" json:"tokenUrl"`

	RedirectURL string `yaml:"redirectUrl" json:"redirectUrl"`
	RedirectURI string `yaml:"redirectUri" json:"redirectUri"`

	ResourceURL string `yaml:"resourceUrl" json:"resourceUrl"`
	UserInfoURL string `yaml:"userInfoUrl" json:"userInfoUrl"`
	UseUserInfo bool   `yaml:"useUserInfo" json:"useUserInfo"`

	ResponseType string `yaml:"responseType" json:"responseType"`
	PKCEEnabled  *bool  `yaml:"pkceEnabled" json:"pkceEnabled"`

	Scope  Scopes `yaml:"scope" json:"scope"`
	Scopes Scopes `yaml:"scopes" json:"scopes"`

	AdditionalParameters map[string]string `yaml:"additionalParameters" json:"additionalParameters"`
	LoginHint            string            `yaml:"loginHint" json:"loginHint"`
	Prompt               string            `yaml:"prompt" json:"prompt"`
	Audience             string            `yaml:"audience" json:"audience"`
	HostedDomain         string            `yaml:"hostedDomain" json:"hostedDomain"`
	Nonce                string            `yaml:"nonce" json:"nonce"`

	AdditionalTokenParameters map[string]string `yaml:"additionalTokenParameters" json:"additionalTokenParameters"`
	AdditionalResourceHeaders map[string]string `yaml:"additionalResourceHeaders" json:"additionalResourceHeaders"`

	LogoutURL                  string            `yaml:"logoutUrl" json:"logoutUrl"`
	EndSessionEndpoint         string            `yaml:"endSessionEndpoint" json:"endSessionEndpoint"`
	PostLogoutRedirectURL      string            `yaml:"postLogoutRedirectUrl" json:"postLogoutRedirectUrl"`
	AdditionalLogoutParameters map[string]string `yaml:"additionalLogoutParameters" json:"additionalLogoutParameters"`

	LogsEnabled bool `yaml:"logsEnabled" json:"logsEnabled"`
}

// Normalize folds aliases, applies presets and defaults, and validates the required fields.
// It never performs network calls.
func Normalize(id string, raw RawConfig) (*Config, error) {
	if strings.TrimSpace(id) == "" {
		return nil, &oauthmodel.ConfigError{ProviderID: id, Field: "providerId"}
	}

	cfg := &Config{
		ID:                         id,
		AppID:                      firstNonEmpty(raw.AppID, raw.ClientID),
		ClientSecret:               raw.ClientSecret,
		Preset:                     strings.ToLower(strings.TrimSpace(raw.Preset)),
		IssuerURL:                  firstNonEmpty(raw.IssuerURL, raw.Issuer),
		AuthorizationBaseURL:       firstNonEmpty(raw.AuthorizationBaseURL, raw.AuthorizationEndpoint, raw.AuthorizationURL),
		AccessTokenEndpoint:        firstNonEmpty(raw.AccessTokenEndpoint, raw.TokenEndpoint, raw.TokenURL),
		RedirectURL:                firstNonEmpty(raw.RedirectURL, raw.RedirectURI),
		ResourceURL:                firstNonEmpty(raw.ResourceURL, raw.UserInfoURL),
		UseUserInfo:                raw.UseUserInfo,
		ResponseType:               oauth2.ResponseType(strings.ToLower(strings.TrimSpace(raw.ResponseType))),
		PKCEEnabled:                raw.PKCEEnabled == nil || utils.Value(raw.PKCEEnabled),
		AdditionalParameters:       maps.Clone(raw.AdditionalParameters),
		LoginHint:                  raw.LoginHint,
		Prompt:                     raw.Prompt,
		Audience:                   raw.Audience,
		HostedDomain:               raw.HostedDomain,
		Nonce:                      raw.Nonce,
		AdditionalTokenParameters:  maps.Clone(raw.AdditionalTokenParameters),
		AdditionalResourceHeaders:  maps.Clone(raw.AdditionalResourceHeaders),
		LogoutURL:                  firstNonEmpty(raw.LogoutURL, raw.EndSessionEndpoint),
		PostLogoutRedirectURL:      raw.PostLogoutRedirectURL,
		AdditionalLogoutParameters: maps.Clone(raw.AdditionalLogoutParameters),
		LogsEnabled:                raw.LogsEnabled,
	}
	switch {
	case len(raw.Scope) > 0:
		cfg.Scope = slices.Clone([]string(raw.Scope))
	case len(raw.Scopes) > 0:
		cfg.Scope = slices.Clone([]string(raw.Scopes))
	}
	if cfg.ResponseType == "" {
		cfg.ResponseType = oauth2.CodeResponseType
	}

	if cfg.Preset == "" {
		if _, ok := presets[strings.ToLower(id)]; ok {
			cfg.Preset = strings.ToLower(id)
		}
	}
	if err := applyPreset(cfg); err != nil {
		return nil, err
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	if strings.TrimSpace(cfg.AppID) == "" {
		return &oauthmodel.ConfigError{ProviderID: cfg.ID, Field: "appId"}
	}
	if strings.TrimSpace(cfg.RedirectURL) == "" {
		return &oauthmodel.ConfigError{ProviderID: cfg.ID, Field: "redirectUrl"}
	}
	if cfg.AuthorizationBaseURL == "" && cfg.IssuerURL == "" {
		return &oauthmodel.ConfigError{ProviderID: cfg.ID, Field: "authorizationBaseUrl", Reason: "either authorizationBaseUrl or issuerUrl is required"}
	}
	if !cfg.ResponseType.Valid() {
		return &oauthmodel.ConfigError{ProviderID: cfg.ID, Field: "responseType", Reason: "unsupported response type " + string(cfg.ResponseType)}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

package providers

import (
	"slices"

	"github.com/jrsteele09/go-social-login/oauthmodel"
)

const (
	PresetGoogle  = "google"
	PresetTwitter = "twitter"
	PresetX       = "x"

	offlineAccessScope = "offline_access"
)

type preset struct {
	issuerURL   string
	authURL     string
	tokenURL    string
	resourceURL string
	logoutURL   string
	scope       []string
	useUserInfo bool
	forcePKCE   bool
}

var twitterPreset = preset{
	authURL:     "https://x.com/i/oauth2/authorize",
	tokenURL:    "https://api.x.com/2/oauth2/token",
	resourceURL: "https://api.x.com/2/users/me",
	scope:       []string{"tweet.read", "users.read"},
	forcePKCE:   true,
}

var presets = map[string]preset{
	PresetGoogle: {
		issuerURL:   "https://accounts.google.com",
		scope:       []string{"openid", "email", "profile"},
		useUserInfo: true,
	},
	PresetTwitter: twitterPreset,
	PresetX:       twitterPreset,
}

// applyPreset fills whatever the caller left empty from the named preset.
func applyPreset(cfg *Config) error {
	if cfg.Preset == "" {
		return nil
	}
	p, ok := presets[cfg.Preset]
	if !ok {
		return &oauthmodel.ConfigError{ProviderID: cfg.ID, Field: "preset", Reason: "unknown preset " + cfg.Preset}
	}
	if cfg.IssuerURL == "" {
		cfg.IssuerURL = p.issuerURL
	}
	if cfg.AuthorizationBaseURL == "" {
		cfg.AuthorizationBaseURL = p.authURL
	}
	if cfg.AccessTokenEndpoint == "" {
		cfg.AccessTokenEndpoint = p.tokenURL
	}
	if cfg.ResourceURL == "" {
		cfg.ResourceURL = p.resourceURL
		cfg.UseUserInfo = cfg.UseUserInfo || p.useUserInfo
	}
	if cfg.LogoutURL == "" {
		cfg.LogoutURL = p.logoutURL
	}
	if len(cfg.Scope) == 0 {
		cfg.Scope = slices.Clone(p.scope)
	}
	if p.forcePKCE {
		cfg.PKCEEnabled = true
	}
	return nil
}

// AdjustAuthorization rewrites the requested scope and authorization parameters for provider
// quirks. params is modified in place; entries already present are left alone.
func (c *Config) AdjustAuthorization(scope []string, params map[string]string) []string {
	switch c.Preset {
	case PresetGoogle:
		// Google signals refresh token issuance with access_type rather than a scope.
		if i := slices.Index(scope, offlineAccessScope); i >= 0 {
			scope = slices.Delete(slices.Clone(scope), i, i+1)
			setIfAbsent(params, "access_type", "offline")
			setIfAbsent(params, "prompt", "consent")
		}
	case PresetTwitter, PresetX:
		if i := slices.Index(scope, offlineAccessScope); i >= 0 {
			scope = slices.Clone(scope)
			scope[i] = "offline.access"
		}
	}
	return scope
}

// NeedsNonce reports whether an OIDC nonce is generated when none is configured.
func (c *Config) NeedsNonce(scope []string) bool {
	return c.Preset == PresetGoogle && slices.Contains(scope, "openid")
}

func setIfAbsent(params map[string]string, key, value string) {
	if _, ok := params[key]; !ok {
		params[key] = value
	}
}

// Kind names the provider family carried in completion messages: the preset, or "oauth2".
func (c *Config) Kind() string {
	if c.Preset != "" {
		return c.Preset
	}
	return "oauth2"
}

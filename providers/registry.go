package providers

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/go-social-login/oauthmodel"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const wellKnownPath = "/.well-known/openid-configuration"

// Registry holds the canonical configuration of every initialized provider.
type Registry struct {
	mu         sync.RWMutex
	providers  map[string]*Config
	group      singleflight.Group
	httpClient *http.Client
	eager      bool
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithHTTPClient sets the client used for discovery requests.
func WithHTTPClient(c *http.Client) RegistryOption {
	return func(r *Registry) {
		if c != nil {
			r.httpClient = c
		}
	}
}

// WithEagerDiscovery resolves discovery for every provider during InitializeProviders.
func WithEagerDiscovery() RegistryOption {
	return func(r *Registry) {
		r.eager = true
	}
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		providers:  make(map[string]*Config),
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// InitializeProviders normalizes and registers the given providers. Either every entry is
// registered or, on the first invalid entry, none is.
func (r *Registry) InitializeProviders(ctx context.Context, raws map[string]RawConfig) error {
	normalized := make(map[string]*Config, len(raws))
	for _, id := range sortedIDs(raws) {
		cfg, err := Normalize(id, raws[id])
		if err != nil {
			return err
		}
		normalized[id] = cfg
	}

	r.mu.Lock()
	for id, cfg := range normalized {
		r.providers[id] = cfg
		logger := cfg.Logger()
		logger.Debug().Str("responseType", string(cfg.ResponseType)).Bool("pkce", cfg.UsesPKCE()).Msg("provider initialized")
	}
	r.mu.Unlock()

	if !r.eager {
		return nil
	}
	var errs []error
	for _, id := range sortedIDs(raws) {
		if err := r.EnsureDiscovered(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Get returns a snapshot of the provider's configuration.
func (r *Registry) Get(id string) (*Config, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.providers[id]
	if !ok {
		return nil, errUnknown(id)
	}
	return cfg.Clone(), nil
}

// IDs lists the registered provider ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.providers))
	for id := range r.providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// EnsureDiscovered fills missing endpoints from the issuer's discovery document. It does nothing
// once both the authorization and token endpoints are known.
func (r *Registry) EnsureDiscovered(ctx context.Context, id string) error {
	cfg, err := r.Get(id)
	if err != nil {
		return err
	}
	if cfg.HasEndpoints() || cfg.IssuerURL == "" {
		return nil
	}

	_, err, _ = r.group.Do(cfg.IssuerURL, func() (any, error) {
		doc, err := r.discover(ctx, cfg.IssuerURL)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		for _, p := range r.providers {
			if p.IssuerURL == cfg.IssuerURL {
				doc.fill(p)
			}
		}
		return nil, nil
	})
	logger := cfg.Logger()
	if err != nil {
		logger.Error().Err(err).Str("issuer", cfg.IssuerURL).Msg("discovery failed")
		return err
	}
	logger.Debug().Str("issuer", cfg.IssuerURL).Msg("discovery resolved")
	return nil
}

type discoveryDocument struct {
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	EndSessionEndpoint    string `json:"end_session_endpoint"`
	UserInfoEndpoint      string `json:"userinfo_endpoint"`
}

// fill sets only the fields cfg does not already carry.
func (d *discoveryDocument) fill(cfg *Config) {
	if cfg.AuthorizationBaseURL == "" {
		cfg.AuthorizationBaseURL = d.AuthorizationEndpoint
	}
	if cfg.AccessTokenEndpoint == "" {
		cfg.AccessTokenEndpoint = d.TokenEndpoint
	}
	if cfg.LogoutURL == "" {
		cfg.LogoutURL = d.EndSessionEndpoint
	}
	if cfg.ResourceURL == "" && cfg.UseUserInfo {
		cfg.ResourceURL = d.UserInfoEndpoint
	}
}

func (r *Registry) discover(ctx context.Context, issuer string) (*discoveryDocument, error) {
	base := r.httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	recorder := &statusRecorder{base: base}
	client := &http.Client{Transport: recorder, Timeout: r.httpClient.Timeout}

	ctx = oidc.ClientContext(ctx, client)
	ctx = oidc.InsecureIssuerURLContext(ctx, issuer)

	wellKnown := strings.TrimSuffix(issuer, "/") + wellKnownPath
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		status := int(recorder.status.Load())
		if status >= 200 && status < 300 {
			status = 0
		}
		return nil, &oauthmodel.HTTPError{Kind: oauthmodel.ErrDiscovery, URL: wellKnown, StatusCode: status, Err: err}
	}

	var doc discoveryDocument
	if err := provider.Claims(&doc); err != nil {
		return nil, &oauthmodel.HTTPError{Kind: oauthmodel.ErrDiscovery, URL: wellKnown, Err: err}
	}
	endpoint := provider.Endpoint()
	if doc.AuthorizationEndpoint == "" {
		doc.AuthorizationEndpoint = endpoint.AuthURL
	}
	if doc.TokenEndpoint == "" {
		doc.TokenEndpoint = endpoint.TokenURL
	}
	log.Debug().Str("issuer", issuer).Str("authorization_endpoint", doc.AuthorizationEndpoint).Msg("discovery document fetched")
	return &doc, nil
}

// statusRecorder remembers the status of the last response so discovery failures can carry it.
type statusRecorder struct {
	base   http.RoundTripper
	status atomic.Int32
}

func (s *statusRecorder) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := s.base.RoundTrip(req)
	if resp != nil {
		s.status.Store(int32(resp.StatusCode))
	}
	return resp, err
}

func errUnknown(id string) error {
	return &unknownProviderError{id: id}
}

type unknownProviderError struct {
	id string
}

func (e *unknownProviderError) Error() string {
	return oauthmodel.ErrUnknownProvider.Error() + ": " + e.id
}

func (e *unknownProviderError) Unwrap() error { return oauthmodel.ErrUnknownProvider }

func sortedIDs(raws map[string]RawConfig) []string {
	ids := make([]string, 0, len(raws))
	for id := range raws {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

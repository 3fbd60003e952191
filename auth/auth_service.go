// Package auth exposes the provider independent login contract: login, logout, refresh,
// isLoggedIn and getAuthorizationCode.
package auth

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/jrsteele09/go-social-login/authflowrepo"
	"github.com/jrsteele09/go-social-login/callback"
	"github.com/jrsteele09/go-social-login/internal/metrics"
	"github.com/jrsteele09/go-social-login/loginsession"
	"github.com/jrsteele09/go-social-login/oauth2"
	"github.com/jrsteele09/go-social-login/oauthmodel"
	"github.com/jrsteele09/go-social-login/popup"
	"github.com/jrsteele09/go-social-login/providers"
	"github.com/jrsteele09/go-social-login/token"
	"github.com/rs/zerolog/log"
)

// Repos holds the repositories shared by the starting context and the redirect context.
type Repos struct {
	Flows    authflowrepo.Repo // pending logins keyed by state
	Sessions loginsession.Repo // tokens of logged in providers
}

// LoginService drives logins for every registered provider.
type LoginService struct {
	registry  *providers.Registry
	repos     Repos
	tokens    *token.Client
	popups    *popup.Controller
	callbacks *callback.Handler
	metrics   *metrics.Metrics
	features  popup.Features
	nowTime   func() time.Time // injectable for testing
}

// LoginServiceOption defines a function type to modify the LoginService instance.
type LoginServiceOption func(*LoginService)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) LoginServiceOption {
	return func(s *LoginService) {
		s.nowTime = nowFunc
	}
}

func WithMetrics(m *metrics.Metrics) LoginServiceOption {
	return func(s *LoginService) {
		s.metrics = m
	}
}

// WithPopupFeatures sets the popup geometry
func WithPopupFeatures(f popup.Features) LoginServiceOption {
	return func(s *LoginService) {
		s.features = f
	}
}

// NewLoginService wires the login contract on top of its collaborators.
func NewLoginService(
	registry *providers.Registry,
	repos Repos,
	tokens *token.Client,
	popups *popup.Controller,
	callbacks *callback.Handler,
	options ...LoginServiceOption,
) (*LoginService, error) {
	if registry == nil {
		return nil, errors.New("[NewLoginService] registry is required")
	}
	if repos.Flows == nil {
		return nil, errors.New("[NewLoginService] Flows repo is required")
	}
	if repos.Sessions == nil {
		return nil, errors.New("[NewLoginService] Sessions repo is required")
	}
	if tokens == nil {
		return nil, errors.New("[NewLoginService] token client is required")
	}
	if popups == nil {
		return nil, errors.New("[NewLoginService] popup controller is required")
	}
	if callbacks == nil {
		return nil, errors.New("[NewLoginService] callback handler is required")
	}

	s := &LoginService{
		registry:  registry,
		repos:     repos,
		tokens:    tokens,
		popups:    popups,
		callbacks: callbacks,
		features:  popup.CenteredFeatures(1440, 900),
		nowTime:   time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// Login starts an authorization attempt. The popup flow blocks until the attempt settles; the
// redirect flow blocks until ctx is done because its result is delivered to HandleRedirect.
func (s *LoginService) Login(ctx context.Context, providerID string, opts oauthmodel.LoginOptions) (*oauth2.LoginResponse, error) {
	if opts.Flow == "" {
		opts.Flow = oauth2.PopupFlow
	}
	s.metrics.LoginAttempt(providerID, string(opts.Flow))

	resp, err := s.login(ctx, providerID, opts)
	switch {
	case err == nil:
		s.metrics.LoginResult(providerID, metrics.OutcomeSuccess)
	case oauthmodel.IsCancellation(err):
		s.metrics.LoginResult(providerID, metrics.OutcomeCancelled)
	default:
		s.metrics.LoginResult(providerID, metrics.OutcomeError)
	}
	return resp, err
}

func (s *LoginService) login(ctx context.Context, providerID string, opts oauthmodel.LoginOptions) (*oauth2.LoginResponse, error) {
	if err := ValidateLoginOptions(opts); err != nil {
		return nil, err
	}
	if err := s.registry.EnsureDiscovered(ctx, providerID); err != nil {
		return nil, err
	}
	cfg, err := s.registry.Get(providerID)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger()

	req, err := BuildAuthorizationRequest(cfg, opts)
	if err != nil {
		return nil, err
	}

	// The pending login must be readable before the provider can redirect back.
	err = s.repos.Flows.Upsert(ctx, req.State, &authflowrepo.PendingLogin{
		ProviderID:   cfg.ID,
		CodeVerifier: req.CodeVerifier,
		RedirectURI:  req.RedirectURI,
		Scope:        req.Scope,
		Nonce:        req.Nonce,
		CreatedAt:    s.nowTime(),
	})
	if err != nil {
		return nil, err
	}
	if err := s.repos.Flows.SetMarker(ctx); err != nil {
		return nil, err
	}

	logger.Info().Str("flow", string(opts.Flow)).Strs("scope", req.Scope).Msg("login started")
	if opts.Flow == oauth2.RedirectFlow {
		return nil, s.popups.Redirect(ctx, req.URL)
	}

	resp, err := s.popups.Await(ctx, popup.Request{
		URL:        req.URL,
		State:      req.State,
		ProviderID: cfg.ID,
		Provider:   cfg.Kind(),
		Features:   s.features,
	})
	if errors.Is(err, oauthmodel.ErrPopupBlocked) {
		_, _ = s.repos.Flows.Consume(ctx, req.State)
		_ = s.repos.Flows.ClearMarker(ctx)
	}
	if err != nil {
		logger.Info().Err(err).Msg("login did not complete")
		return nil, err
	}
	return resp, nil
}

// HandleRedirect completes the login a redirect URL belongs to and reports the outcome to the
// waiting opener. The state in the URL selects the pending login, so concurrent logins complete
// independently. A URL without a state is not an authorization response and returns (nil, nil).
func (s *LoginService) HandleRedirect(ctx context.Context, redirectURL string) (*oauth2.LoginResponse, error) {
	if callback.StateOf(redirectURL) == "" {
		if pending, err := s.repos.Flows.HasMarker(ctx); err == nil && pending {
			log.Debug().Msg("login in flight, but the redirect carries no authorization response")
		}
		return nil, nil
	}

	res, err := s.callbacks.Handle(ctx, redirectURL, "")
	s.callbacks.Deliver(ctx, res, err)
	if err != nil || res == nil {
		return nil, err
	}
	return res.Response, nil
}

// IsLoggedIn reports whether unexpired tokens are stored for the provider. Expired tokens are
// evicted. No network call is made.
func (s *LoginService) IsLoggedIn(ctx context.Context, providerID string) (bool, error) {
	stored, ok, err := s.repos.Sessions.Get(ctx, providerID)
	if err != nil || !ok {
		return false, err
	}
	if stored.Expired(s.nowTime()) {
		if err := s.repos.Sessions.Delete(ctx, providerID); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

// GetAuthorizationCode returns the stored access and ID tokens of the provider.
func (s *LoginService) GetAuthorizationCode(ctx context.Context, providerID string) (*oauth2.AuthorizationCode, error) {
	stored, ok, err := s.repos.Sessions.Get(ctx, providerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, oauthmodel.ErrNotLoggedIn
	}
	return &oauth2.AuthorizationCode{AccessToken: stored.AccessToken, IDToken: stored.IDToken}, nil
}

// Refresh exchanges the stored (or supplied) refresh token for new tokens.
func (s *LoginService) Refresh(ctx context.Context, providerID string, opts oauthmodel.RefreshOptions) (*oauth2.LoginResponse, error) {
	cfg, err := s.registry.Get(providerID)
	if err != nil {
		return nil, err
	}
	stored, _, err := s.repos.Sessions.Get(ctx, providerID)
	if err != nil {
		return nil, err
	}
	refreshToken := opts.RefreshToken
	if refreshToken == "" {
		refreshToken = stored.RefreshToken
	}
	if refreshToken == "" {
		return nil, oauthmodel.ErrNoRefreshToken
	}

	if err := s.registry.EnsureDiscovered(ctx, providerID); err != nil {
		return nil, err
	}
	if cfg, err = s.registry.Get(providerID); err != nil {
		return nil, err
	}
	logger := cfg.Logger()

	tr, err := s.tokens.Refresh(ctx, cfg, refreshToken)
	if err != nil {
		logger.Error().Err(err).Msg("refresh failed")
		return nil, err
	}
	if tr.RefreshToken == "" {
		tr.RefreshToken = refreshToken
	}

	now := s.nowTime()
	next := token.Stored(tr, stored.Scope, now)
	if err := s.repos.Sessions.Upsert(ctx, providerID, next); err != nil {
		return nil, err
	}

	resource, err := s.tokens.FetchResource(ctx, cfg, next.AccessToken)
	if err != nil {
		return nil, err
	}
	logger.Info().Msg("tokens refreshed")
	return token.NewLoginResponse(providerID, next, now, resource), nil
}

// Logout deletes the stored tokens, then opens the provider's logout page when one is known.
// Failures after the tokens are deleted are logged, not returned.
func (s *LoginService) Logout(ctx context.Context, providerID string, opts oauthmodel.LogoutOptions) error {
	cfg, err := s.registry.Get(providerID)
	if err != nil {
		return err
	}
	logger := cfg.Logger()

	// Unreadable tokens are still deleted; only the id_token_hint is lost.
	stored, _, err := s.repos.Sessions.Get(ctx, providerID)
	if err != nil {
		logger.Warn().Err(err).Msg("stored tokens unreadable, deleting them")
	}
	if err := s.repos.Sessions.Delete(ctx, providerID); err != nil {
		return err
	}
	logger.Info().Msg("logged out")

	if cfg.LogoutURL == "" && cfg.IssuerURL != "" {
		if err := s.registry.EnsureDiscovered(ctx, providerID); err != nil {
			logger.Warn().Err(err).Msg("logout discovery failed")
		} else if refreshed, err := s.registry.Get(providerID); err == nil {
			cfg = refreshed
		}
	}
	if cfg.LogoutURL == "" {
		return nil
	}

	idTokenHint := opts.IDTokenHint
	if idTokenHint == "" {
		idTokenHint = stored.IDToken
	}
	if err := s.popups.Navigate(LogoutURL(cfg, idTokenHint, opts.PostLogoutRedirectURL)); err != nil {
		logger.Warn().Err(err).Msg("failed to open logout page")
	}
	return nil
}

// LogoutURL builds the end-session URL. A logout URL that does not parse is returned as is.
func LogoutURL(cfg *providers.Config, idTokenHint, postLogoutRedirectURL string) string {
	u, err := url.Parse(cfg.LogoutURL)
	if err != nil {
		log.Debug().Err(err).Str("provider", cfg.ID).Msg("logout URL is malformed, opening it unchanged")
		return cfg.LogoutURL
	}
	q := u.Query()
	for k, v := range cfg.AdditionalLogoutParameters {
		q.Set(k, v)
	}
	if idTokenHint != "" {
		q.Set("id_token_hint", idTokenHint)
	}
	q.Set("client_id", cfg.AppID)
	if redirect := firstNonEmpty(postLogoutRedirectURL, cfg.PostLogoutRedirectURL); redirect != "" {
		q.Set("post_logout_redirect_uri", redirect)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

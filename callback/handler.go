// Package callback completes a login from the provider's redirect: it validates the state,
// obtains tokens, persists them and reports the outcome to the waiting opener.
package callback

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strconv"
	"time"

	"github.com/jrsteele09/go-social-login/authflowrepo"
	autherrors "github.com/jrsteele09/go-social-login/internal/errors"
	"github.com/jrsteele09/go-social-login/loginsession"
	"github.com/jrsteele09/go-social-login/oauth2"
	"github.com/jrsteele09/go-social-login/oauthmodel"
	"github.com/jrsteele09/go-social-login/popup"
	"github.com/jrsteele09/go-social-login/providers"
	"github.com/jrsteele09/go-social-login/storage"
	"github.com/jrsteele09/go-social-login/token"
	"github.com/jrsteele09/go-social-login/token/jwt"
	"github.com/rs/zerolog/log"
)

// Result identifies the attempt a redirect belonged to. It is returned alongside errors too,
// so the outcome can still be delivered to the opener.
type Result struct {
	State      string
	ProviderID string
	Provider   string
	Origin     string
	Response   *oauth2.LoginResponse
}

type Handler struct {
	registry    *providers.Registry
	flows       authflowrepo.Repo
	sessions    loginsession.Repo
	tokens      *token.Client
	broadcaster storage.Broadcaster
	bus         *popup.MessageBus
	now         func() time.Time
}

type Option func(*Handler)

func WithBroadcaster(b storage.Broadcaster) Option {
	return func(h *Handler) { h.broadcaster = b }
}

func WithMessageBus(b *popup.MessageBus) Option {
	return func(h *Handler) { h.bus = b }
}

func WithNowTime(now func() time.Time) Option {
	return func(h *Handler) { h.now = now }
}

func NewHandler(registry *providers.Registry, flows authflowrepo.Repo, sessions loginsession.Repo, tokens *token.Client, opts ...Option) *Handler {
	h := &Handler{
		registry: registry,
		flows:    flows,
		sessions: sessions,
		tokens:   tokens,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle processes a redirect URL. It returns (nil, nil) when the URL carries no state and
// expectedState is empty: the URL is not an authorization response.
func (h *Handler) Handle(ctx context.Context, redirectURL string, expectedState string) (*Result, error) {
	params, err := redirectParams(redirectURL)
	if err != nil {
		return nil, autherrors.Wrapf(err, "[callback Handle] parse redirect")
	}

	state := params.Get("state")
	if state == "" {
		state = expectedState
	}
	if state == "" {
		return nil, nil
	}
	res := &Result{State: state}

	pending, err := h.flows.Consume(ctx, state)
	if err != nil {
		if autherrors.Is(err, autherrors.ErrNotFound) {
			log.Warn().Msg("redirect with unknown or expired state")
			return res, oauthmodel.ErrStateMismatch
		}
		return res, autherrors.Wrapf(err, "[callback Handle] consume pending login")
	}
	res.ProviderID = pending.ProviderID
	res.Origin = originOf(pending.RedirectURI)
	if err := h.flows.ClearMarker(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to clear pending marker")
	}

	cfg, err := h.registry.Get(pending.ProviderID)
	if err != nil {
		return res, err
	}
	res.Provider = cfg.Kind()
	logger := cfg.Logger()

	if code := params.Get("error"); code != "" {
		logger.Info().Str("error", code).Msg("authorization denied by provider")
		return res, &oauthmodel.AuthorizationDeniedError{Code: code, Description: params.Get("error_description")}
	}

	var tr *oauth2.TokenResponse
	switch {
	case params.Get("code") != "":
		tr, err = h.tokens.Exchange(ctx, cfg, oauthmodel.TokenRequest{
			Code:         params.Get("code"),
			CodeVerifier: pending.CodeVerifier,
			RedirectURI:  pending.RedirectURI,
			Scope:        pending.Scope,
		})
		if err != nil {
			logger.Error().Err(err).Msg("token exchange failed")
			return res, err
		}
	case params.Get("access_token") != "":
		tr = implicitTokenResponse(params)
	default:
		return res, oauthmodel.ErrNoCodeOrToken
	}

	now := h.now()
	stored := token.Stored(tr, pending.Scope, now)
	if err := h.sessions.Upsert(ctx, cfg.ID, stored); err != nil {
		return res, autherrors.Wrapf(err, "[callback Handle] persist tokens")
	}
	checkNonce(cfg, pending.Nonce, stored.IDToken)

	resource, err := h.tokens.FetchResource(ctx, cfg, stored.AccessToken)
	if err != nil {
		logger.Error().Err(err).Msg("resource fetch failed, tokens kept")
		return res, err
	}

	res.Response = token.NewLoginResponse(cfg.ID, stored, now, resource)
	logger.Info().Strs("scope", stored.Scope).Msg("login completed")
	return res, nil
}

// Deliver reports the outcome of Handle on the broadcast channel and the message bus.
func (h *Handler) Deliver(ctx context.Context, res *Result, handleErr error) {
	if res == nil {
		return
	}
	msg := popup.Message{
		Type:       oauth2.ResponseMessage,
		Provider:   res.Provider,
		ProviderID: res.ProviderID,
		State:      res.State,
		Response:   res.Response,
	}
	if handleErr != nil {
		msg.Type = oauth2.ErrorMessage
		msg.Response = nil
		msg.Error = handleErr.Error()
		msg.Kind = oauthmodel.KindCode(handleErr)
		var denied *oauthmodel.AuthorizationDeniedError
		if errors.As(handleErr, &denied) {
			msg.Code = denied.Code
		}
	}

	if h.broadcaster != nil {
		payload, err := json.Marshal(msg)
		if err == nil {
			err = h.broadcaster.Publish(ctx, popup.ChannelName(res.State), payload)
		}
		if err != nil {
			log.Debug().Err(err).Msg("broadcast of login result failed")
		}
	}
	if h.bus != nil {
		h.bus.Post(res.Origin, msg)
	}
}

// StateOf returns the state carried by a redirect URL, in its query or fragment, or "".
func StateOf(redirectURL string) string {
	params, err := redirectParams(redirectURL)
	if err != nil {
		return ""
	}
	return params.Get("state")
}

// redirectParams merges the query and the fragment; fragment values win.
func redirectParams(raw string) (url.Values, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	params := u.Query()
	if u.Fragment != "" {
		fragment, err := url.ParseQuery(u.Fragment)
		if err != nil {
			return nil, err
		}
		for k, v := range fragment {
			params[k] = v
		}
	}
	return params, nil
}

func implicitTokenResponse(params url.Values) *oauth2.TokenResponse {
	expiresIn, _ := strconv.ParseInt(params.Get("expires_in"), 10, 64)
	return &oauth2.TokenResponse{
		AccessToken:  params.Get("access_token"),
		IdToken:      params.Get("id_token"),
		TokenType:    params.Get("token_type"),
		ExpiresIn:    expiresIn,
		RefreshToken: params.Get("refresh_token"),
		Scope:        params.Get("scope"),
	}
}

func originOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// checkNonce logs a mismatch between the sent nonce and the one in the ID token.
// The claims are unverified, so the result is never used for a decision.
func checkNonce(cfg *providers.Config, nonce, idToken string) {
	if nonce == "" || idToken == "" {
		return
	}
	claims, err := jwt.DecodePayload(idToken)
	if err != nil {
		return
	}
	if got, _ := claims["nonce"].(string); got != nonce {
		logger := cfg.Logger()
		logger.Warn().Msg("id token nonce does not match the login request")
	}
}

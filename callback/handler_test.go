package callback_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-social-login/authflowrepo"
	"github.com/jrsteele09/go-social-login/callback"
	"github.com/jrsteele09/go-social-login/loginsession"
	"github.com/jrsteele09/go-social-login/oauth2"
	"github.com/jrsteele09/go-social-login/oauthmodel"
	"github.com/jrsteele09/go-social-login/popup"
	"github.com/jrsteele09/go-social-login/providers"
	memorystore "github.com/jrsteele09/go-social-login/storage/memory"
	"github.com/jrsteele09/go-social-login/token"
	"github.com/stretchr/testify/require"
)

const redirectURI = "http://127.0.0.1:8765/callback"

type fixture struct {
	idp         *httptest.Server
	tokenCalls  atomic.Int32
	lastForm    atomic.Value
	resourceErr bool

	flows       *authflowrepo.KVRepo
	sessions    *loginsession.KVRepo
	bus         *popup.MessageBus
	broadcaster *memorystore.Broadcaster
	handler     *callback.Handler
	now         time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{now: time.UnixMilli(1_700_000_000_000)}
	f.idp = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token":
			f.tokenCalls.Add(1)
			_ = r.ParseForm()
			f.lastForm.Store(r.PostForm)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"access_token":"at-1","token_type":"Bearer","expires_in":120,"refresh_token":"rt-1"}`))
		case "/me":
			if f.resourceErr {
				http.Error(w, "boom", http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"sub":"42"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(f.idp.Close)

	reg := providers.NewRegistry()
	require.NoError(t, reg.InitializeProviders(context.Background(), map[string]providers.RawConfig{
		"acme": {
			AppID:                "client-1",
			AuthorizationBaseURL: f.idp.URL + "/authorize",
			AccessTokenEndpoint:  f.idp.URL + "/token",
			ResourceURL:          f.idp.URL + "/me",
			RedirectURL:          redirectURI,
			Scope:                providers.Scopes{"openid", "email"},
		},
	}))

	kv := memorystore.NewKV()
	f.flows = authflowrepo.NewKVRepo(kv, "test_", time.Minute)
	f.sessions = loginsession.NewKVRepo(kv, "test_")
	f.bus = popup.NewMessageBus()
	f.broadcaster = memorystore.NewBroadcaster()
	f.handler = callback.NewHandler(reg, f.flows, f.sessions, token.NewClient(token.WithHTTPClient(f.idp.Client())),
		callback.WithMessageBus(f.bus),
		callback.WithBroadcaster(f.broadcaster),
		callback.WithNowTime(func() time.Time { return f.now }),
	)
	return f
}

func (f *fixture) pending(t *testing.T, state string) {
	t.Helper()
	require.NoError(t, f.flows.Upsert(context.Background(), state, &authflowrepo.PendingLogin{
		ProviderID:   "acme",
		CodeVerifier: "verifier-1",
		RedirectURI:  redirectURI,
		Scope:        []string{"openid", "email"},
		CreatedAt:    f.now,
	}))
	require.NoError(t, f.flows.SetMarker(context.Background()))
}

// TestHandleCodeFlow tests a complete authorization code redirect
func TestHandleCodeFlow(t *testing.T) {
	f := newFixture(t)
	f.pending(t, "s1")

	res, err := f.handler.Handle(context.Background(), redirectURI+"?code=c1&state=s1", "")
	require.NoError(t, err)
	require.Equal(t, "acme", res.ProviderID)
	require.Equal(t, "oauth2", res.Provider)
	require.Equal(t, "http://127.0.0.1:8765", res.Origin)

	form := f.lastForm.Load().(url.Values)
	require.Equal(t, "c1", form.Get("code"))
	require.Equal(t, "verifier-1", form.Get("code_verifier"))
	require.Equal(t, redirectURI, form.Get("redirect_uri"))

	resp := res.Response
	require.Equal(t, "at-1", resp.AccessToken.Token)
	require.Equal(t, f.now.UnixMilli()+120_000, resp.AccessToken.Expires)
	require.Equal(t, "rt-1", resp.RefreshToken)
	require.Equal(t, []string{"openid", "email"}, resp.Scope)
	require.Equal(t, "42", resp.ResourceData["sub"])

	stored, ok, err := f.sessions.Get(context.Background(), "acme")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "at-1", stored.AccessToken)

	marker, err := f.flows.HasMarker(context.Background())
	require.NoError(t, err)
	require.False(t, marker)

	_, err = f.handler.Handle(context.Background(), redirectURI+"?code=c1&state=s1", "")
	require.ErrorIs(t, err, oauthmodel.ErrStateMismatch)
	require.Equal(t, int32(1), f.tokenCalls.Load())
}

// TestHandleWithoutState tests that URLs without a state are not treated as responses
func TestHandleWithoutState(t *testing.T) {
	f := newFixture(t)
	res, err := f.handler.Handle(context.Background(), redirectURI+"?code=c1", "")
	require.NoError(t, err)
	require.Nil(t, res)
}

// TestHandleExpectedState tests that the caller supplied state is used when the URL has none
func TestHandleExpectedState(t *testing.T) {
	f := newFixture(t)
	f.pending(t, "s1")
	res, err := f.handler.Handle(context.Background(), redirectURI+"?code=c1", "s1")
	require.NoError(t, err)
	require.Equal(t, "s1", res.State)
}

// TestHandleUnknownState tests that an unknown state fails without any network call
func TestHandleUnknownState(t *testing.T) {
	f := newFixture(t)
	res, err := f.handler.Handle(context.Background(), redirectURI+"?code=c1&state=nope", "")
	require.ErrorIs(t, err, oauthmodel.ErrStateMismatch)
	require.Equal(t, "nope", res.State)
	require.Equal(t, int32(0), f.tokenCalls.Load())
}

// TestHandleDenied tests that a provider error is surfaced with its description
func TestHandleDenied(t *testing.T) {
	f := newFixture(t)
	f.pending(t, "s1")

	_, err := f.handler.Handle(context.Background(), redirectURI+"?error=access_denied&error_description=User+said+no&state=s1", "")
	require.ErrorIs(t, err, oauthmodel.ErrAuthorizationDenied)
	require.Equal(t, "User said no", err.Error())
	require.Equal(t, int32(0), f.tokenCalls.Load())

	f.pending(t, "s2")
	_, err = f.handler.Handle(context.Background(), redirectURI+"?error=access_denied&state=s2", "")
	require.Equal(t, "access_denied", err.Error())
}

// TestHandleImplicit tests tokens taken from the fragment, which wins over the query
func TestHandleImplicit(t *testing.T) {
	f := newFixture(t)
	f.pending(t, "s1")

	res, err := f.handler.Handle(context.Background(), redirectURI+"?state=stale#access_token=at-frag&token_type=Bearer&expires_in=60&state=s1", "")
	require.NoError(t, err)
	require.Equal(t, "at-frag", res.Response.AccessToken.Token)
	require.Equal(t, int64(60), res.Response.ExpiresIn)
	require.Equal(t, int32(0), f.tokenCalls.Load())
}

// TestHandleNoCodeOrToken tests a redirect carrying neither a code nor a token
func TestHandleNoCodeOrToken(t *testing.T) {
	f := newFixture(t)
	f.pending(t, "s1")
	_, err := f.handler.Handle(context.Background(), redirectURI+"?state=s1", "")
	require.ErrorIs(t, err, oauthmodel.ErrNoCodeOrToken)
}

// TestHandleResourceFailureKeepsTokens tests that tokens stay persisted when the resource fetch fails
func TestHandleResourceFailureKeepsTokens(t *testing.T) {
	f := newFixture(t)
	f.resourceErr = true
	f.pending(t, "s1")

	_, err := f.handler.Handle(context.Background(), redirectURI+"?code=c1&state=s1", "")
	require.ErrorIs(t, err, oauthmodel.ErrResourceFetch)

	_, ok, err := f.sessions.Get(context.Background(), "acme")
	require.NoError(t, err)
	require.True(t, ok)
}

// TestDeliver tests that results reach both the message bus and the broadcast channel
func TestDeliver(t *testing.T) {
	f := newFixture(t)
	busCh, unsubscribe := f.bus.Subscribe()
	defer unsubscribe()
	sub, err := f.broadcaster.Subscribe(context.Background(), popup.ChannelName("s1"))
	require.NoError(t, err)
	defer sub.Close()

	res := &callback.Result{State: "s1", ProviderID: "acme", Provider: "oauth2", Origin: "http://127.0.0.1:8765",
		Response: &oauth2.LoginResponse{ProviderID: "acme"}}
	f.handler.Deliver(context.Background(), res, nil)

	env := <-busCh
	require.Equal(t, "http://127.0.0.1:8765", env.Origin)
	require.Equal(t, oauth2.ResponseMessage, env.Message.Type)
	require.Equal(t, "acme", env.Message.Response.ProviderID)

	var msg popup.Message
	require.NoError(t, json.Unmarshal(<-sub.C(), &msg))
	require.Equal(t, "s1", msg.State)

	f.handler.Deliver(context.Background(), res, oauthmodel.ErrStateMismatch)
	env = <-busCh
	require.Equal(t, oauth2.ErrorMessage, env.Message.Type)
	require.Nil(t, env.Message.Response)
	require.Equal(t, oauthmodel.ErrStateMismatch.Error(), env.Message.Error)
	require.Equal(t, "state_mismatch", env.Message.Kind)

	f.handler.Deliver(context.Background(), res, &oauthmodel.AuthorizationDeniedError{Code: "access_denied", Description: "User cancelled"})
	env = <-busCh
	require.Equal(t, "authorization_denied", env.Message.Kind)
	require.Equal(t, "access_denied", env.Message.Code)
	require.Equal(t, "User cancelled", env.Message.Error)

	f.handler.Deliver(context.Background(), res, &oauthmodel.HTTPError{Kind: oauthmodel.ErrTokenExchange, URL: "https://idp/token", StatusCode: 400})
	env = <-busCh
	require.Equal(t, "token_exchange", env.Message.Kind)

	f.handler.Deliver(context.Background(), nil, nil)
	select {
	case <-busCh:
		t.Fatal("nothing should be delivered without a result")
	default:
	}
}

package popup

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jrsteele09/go-social-login/internal/config"
	"github.com/jrsteele09/go-social-login/oauth2"
	"github.com/jrsteele09/go-social-login/oauthmodel"
	"github.com/jrsteele09/go-social-login/storage"
	"github.com/rs/zerolog/log"
)

const (
	DefaultTimeout      = 300 * time.Second
	DefaultPollInterval = time.Second
)

// Phase is the lifecycle position of one attempt.
type Phase int32

const (
	PhaseOpening Phase = iota
	PhaseAwaitingCompletion
	PhaseResolved
	PhaseRejected
)

func (p Phase) String() string {
	switch p {
	case PhaseOpening:
		return "opening"
	case PhaseAwaitingCompletion:
		return "awaiting-completion"
	case PhaseResolved:
		return "resolved"
	case PhaseRejected:
		return "rejected"
	}
	return "unknown"
}

// ClosedState is what is known about the popup window's closure.
type ClosedState int32

const (
	ClosedNo ClosedState = iota
	ClosedYes
	ClosedUnknown
)

// Request describes one attempt.
type Request struct {
	URL        string
	State      string
	ProviderID string
	Provider   string
	Features   Features
}

// Controller opens authorization URLs and waits for their completion messages.
type Controller struct {
	opener       Opener
	navigator    Navigator
	bus          *MessageBus
	broadcaster  storage.Broadcaster
	origins      config.AllowedOrigins
	timeout      time.Duration
	pollInterval time.Duration
}

type Option func(*Controller)

func WithOpener(o Opener) Option {
	return func(c *Controller) { c.opener = o }
}

func WithNavigator(n Navigator) Option {
	return func(c *Controller) { c.navigator = n }
}

func WithMessageBus(b *MessageBus) Option {
	return func(c *Controller) { c.bus = b }
}

func WithBroadcaster(b storage.Broadcaster) Option {
	return func(c *Controller) { c.broadcaster = b }
}

// WithAllowedOrigins sets the origins whose bus messages are trusted.
func WithAllowedOrigins(origins config.AllowedOrigins) Option {
	return func(c *Controller) { c.origins = origins }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

func NewController(opts ...Option) *Controller {
	c := &Controller{
		opener:       BrowserOpener{},
		navigator:    BrowserNavigator{},
		origins:      config.AllowedOrigins{},
		timeout:      DefaultTimeout,
		pollInterval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Await opens the popup and blocks until the attempt settles.
func (c *Controller) Await(ctx context.Context, req Request) (*oauth2.LoginResponse, error) {
	a, err := c.Begin(ctx, req)
	if err != nil {
		return nil, err
	}
	return a.Wait()
}

// Begin arms the completion listeners, then opens the popup. A blocked popup fails immediately:
// the listeners are released and no timer is started.
func (c *Controller) Begin(ctx context.Context, req Request) (*Attempt, error) {
	a := &Attempt{req: req, done: make(chan struct{})}
	a.phase.Store(int32(PhaseOpening))

	var busCh <-chan Envelope
	if c.bus != nil {
		var unsubscribe func()
		busCh, unsubscribe = c.bus.Subscribe()
		a.cleanups = append(a.cleanups, unsubscribe)
	}

	var broadcastCh <-chan []byte
	if c.broadcaster != nil {
		sub, err := c.broadcaster.Subscribe(ctx, ChannelName(req.State))
		if err != nil {
			log.Debug().Err(err).Str("provider", req.ProviderID).Msg("broadcast channel unavailable, relying on messages")
		} else {
			broadcastCh = sub.C()
			a.cleanups = append(a.cleanups, func() { _ = sub.Close() })
		}
	}

	win, err := c.opener.Open(req.URL, req.Features)
	if err != nil || win == nil {
		a.cleanup()
		a.phase.Store(int32(PhaseRejected))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", oauthmodel.ErrPopupBlocked, err)
		}
		return nil, oauthmodel.ErrPopupBlocked
	}
	a.win = win

	timer := time.NewTimer(c.timeout)
	ticker := time.NewTicker(c.pollInterval)
	a.cleanups = append(a.cleanups, func() { timer.Stop() }, ticker.Stop)

	a.phase.Store(int32(PhaseAwaitingCompletion))
	go a.run(ctx, c.origins, timer, ticker, busCh, broadcastCh)
	return a, nil
}

// Redirect navigates to url and blocks until ctx is done. It never settles on its own: the
// result is delivered to whatever handles the redirect.
func (c *Controller) Redirect(ctx context.Context, url string) error {
	if err := c.navigator.Navigate(url); err != nil {
		return fmt.Errorf("[popup Redirect] navigate: %w", err)
	}
	<-ctx.Done()
	return ctx.Err()
}

// Navigate opens url without waiting for anything, as used for logout pages.
func (c *Controller) Navigate(url string) error {
	return c.navigator.Navigate(url)
}

// Attempt is one in-flight popup login.
type Attempt struct {
	req    Request
	win    Window
	phase  atomic.Int32
	closed atomic.Int32

	settled     atomic.Bool
	done        chan struct{}
	resp        *oauth2.LoginResponse
	err         error
	cleanupOnce sync.Once
	cleanups    []func()
}

func (a *Attempt) Phase() Phase { return Phase(a.phase.Load()) }

func (a *Attempt) ClosedState() ClosedState { return ClosedState(a.closed.Load()) }

// Done is closed once the attempt has settled.
func (a *Attempt) Done() <-chan struct{} { return a.done }

// Wait blocks until the attempt settles.
func (a *Attempt) Wait() (*oauth2.LoginResponse, error) {
	<-a.done
	return a.resp, a.err
}

func (a *Attempt) run(ctx context.Context, origins config.AllowedOrigins, timer *time.Timer, ticker *time.Ticker, busCh <-chan Envelope, broadcastCh <-chan []byte) {
	tickC := ticker.C
	for {
		select {
		case <-ctx.Done():
			_ = a.win.Close()
			a.settle(nil, ctx.Err())
			return

		case <-timer.C:
			_ = a.win.Close()
			a.settle(nil, oauthmodel.ErrTimeout)
			return

		case <-tickC:
			closed, err := a.win.Closed()
			if err != nil {
				a.closed.Store(int32(ClosedUnknown))
				ticker.Stop()
				tickC = nil
				log.Debug().Err(err).Str("provider", a.req.ProviderID).Msg("popup closure unobservable, waiting for messages")
				continue
			}
			if closed {
				a.closed.Store(int32(ClosedYes))
				a.settle(nil, oauthmodel.ErrPopupClosed)
				return
			}

		case env, ok := <-busCh:
			if !ok {
				busCh = nil
				continue
			}
			if !origins.IsAllowedOrigin(env.Origin) {
				log.Warn().Str("origin", env.Origin).Msg("ignoring message from untrusted origin")
				continue
			}
			if a.handle(env.Message) {
				return
			}

		case payload, ok := <-broadcastCh:
			if !ok {
				broadcastCh = nil
				continue
			}
			var msg Message
			if err := json.Unmarshal(payload, &msg); err != nil {
				log.Debug().Err(err).Msg("ignoring malformed broadcast payload")
				continue
			}
			if a.handle(msg) {
				return
			}
		}
	}
}

// handle settles the attempt if msg is addressed to it, and reports whether it did.
func (a *Attempt) handle(msg Message) bool {
	if msg.ProviderID != "" && msg.ProviderID != a.req.ProviderID {
		return false
	}
	if msg.Provider != "" && a.req.Provider != "" && msg.Provider != a.req.Provider {
		return false
	}
	if msg.State != "" && a.req.State != "" && msg.State != a.req.State {
		return false
	}

	switch msg.Type {
	case oauth2.ResponseMessage:
		if msg.Response == nil {
			return false
		}
		_ = a.win.Close()
		return a.settle(msg.Response, nil)
	case oauth2.ErrorMessage:
		_ = a.win.Close()
		return a.settle(nil, &oauthmodel.PopupMessageError{
			Message: msg.Error,
			Kind:    oauthmodel.KindFromCode(msg.Kind),
			Code:    msg.Code,
		})
	}
	return false
}

// settle records the outcome exactly once, after running cleanup.
func (a *Attempt) settle(resp *oauth2.LoginResponse, err error) bool {
	if !a.settled.CompareAndSwap(false, true) {
		return false
	}
	a.cleanup()
	a.resp, a.err = resp, err
	if err != nil {
		a.phase.Store(int32(PhaseRejected))
	} else {
		a.phase.Store(int32(PhaseResolved))
	}
	close(a.done)
	return true
}

func (a *Attempt) cleanup() {
	a.cleanupOnce.Do(func() {
		for _, fn := range a.cleanups {
			fn()
		}
	})
}

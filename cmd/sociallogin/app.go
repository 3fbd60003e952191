package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jrsteele09/go-social-login/auth"
	"github.com/jrsteele09/go-social-login/authflowrepo"
	"github.com/jrsteele09/go-social-login/callback"
	"github.com/jrsteele09/go-social-login/internal/config"
	"github.com/jrsteele09/go-social-login/internal/metrics"
	"github.com/jrsteele09/go-social-login/loginsession"
	"github.com/jrsteele09/go-social-login/popup"
	"github.com/jrsteele09/go-social-login/providers"
	"github.com/jrsteele09/go-social-login/server"
	"github.com/jrsteele09/go-social-login/storage"
	filestore "github.com/jrsteele09/go-social-login/storage/file"
	memorystore "github.com/jrsteele09/go-social-login/storage/memory"
	redisstore "github.com/jrsteele09/go-social-login/storage/redis"
	"github.com/jrsteele09/go-social-login/token"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// app holds the wired login stack for one CLI invocation.
type app struct {
	config   config.Config
	registry *providers.Registry
	logins   *auth.LoginService
	metrics  *metrics.Metrics
	closers  []func() error
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	a := &app{config: cfg, metrics: metrics.New()}

	kv, broadcaster, err := a.buildStore()
	if err != nil {
		return nil, err
	}

	raws, err := providers.LoadFile(cfg.GetProvidersFile())
	if err != nil {
		return nil, err
	}
	var registryOpts []providers.RegistryOption
	if cfg.GetEagerDiscovery() {
		registryOpts = append(registryOpts, providers.WithEagerDiscovery())
	}
	a.registry = providers.NewRegistry(registryOpts...)
	if err := a.registry.InitializeProviders(ctx, raws); err != nil {
		return nil, err
	}

	namespace := cfg.GetNamespace()
	flows := authflowrepo.NewKVRepo(kv, namespace, cfg.GetPendingTTL())
	sessions := loginsession.NewKVRepo(kv, namespace)
	tokens := token.NewClient(token.WithMetrics(a.metrics))
	bus := popup.NewMessageBus()

	callbacks := callback.NewHandler(a.registry, flows, sessions, tokens,
		callback.WithBroadcaster(broadcaster),
		callback.WithMessageBus(bus),
	)
	popups := popup.NewController(
		popup.WithMessageBus(bus),
		popup.WithBroadcaster(broadcaster),
		popup.WithAllowedOrigins(cfg.GetAllowedOrigins()),
		popup.WithTimeout(cfg.GetPopupTimeout()),
		popup.WithPollInterval(cfg.GetPollInterval()),
	)

	width, height := cfg.GetScreenSize()
	features := popup.CenteredFeatures(width, height)
	a.logins, err = auth.NewLoginService(a.registry, auth.Repos{Flows: flows, Sessions: sessions}, tokens, popups, callbacks,
		auth.WithMetrics(a.metrics),
		auth.WithPopupFeatures(features),
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (a *app) buildStore() (storage.KV, storage.Broadcaster, error) {
	switch kind := a.config.GetStoreKind(); kind {
	case config.StoreMemory:
		return memorystore.NewKV(), memorystore.NewBroadcaster(), nil
	case config.StoreRedis:
		rdb := redis.NewClient(&redis.Options{Addr: a.config.GetRedisAddr()})
		a.closers = append(a.closers, rdb.Close)
		return redisstore.NewKV(rdb), redisstore.NewBroadcaster(rdb), nil
	case config.StoreFile:
		var opts []filestore.Option
		key, err := a.config.GetStoreKey()
		if err != nil {
			return nil, nil, err
		}
		if key != nil {
			opts = append(opts, filestore.WithEncryptionKey(key))
		} else {
			log.Warn().Str("file", a.config.GetStoreFile()).Msg("LOGIN_STORE_KEY not set, tokens are stored unencrypted")
		}
		kv, err := filestore.NewKV(a.config.GetStoreFile(), opts...)
		if err != nil {
			return nil, nil, err
		}
		return kv, memorystore.NewBroadcaster(), nil
	default:
		return nil, nil, fmt.Errorf("[app buildStore] unknown store kind %q", kind)
	}
}

// startCallbackServer serves the redirect URI until the returned stop function is called.
func (a *app) startCallbackServer() (func() error, error) {
	handler, err := server.New(a.config, a.logins, a.metrics)
	if err != nil {
		return nil, err
	}
	srv := &http.Server{Addr: a.config.GetCallbackAddr(), Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	errs := make(chan error, 1)
	go func() { errs <- listenAndServe(srv) }()

	// Surface bind failures before the browser is sent to the provider.
	select {
	case err := <-errs:
		return nil, err
	case <-time.After(100 * time.Millisecond):
	}
	return func() error { return shutdown(srv) }, nil
}

func (a *app) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

func listenAndServe(server *http.Server) error {
	log.Info().Msgf("Callback server listening on %s", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

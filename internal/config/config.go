package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

type Config interface {
	EnvConfig
	CorsConfig
	LoginConfig
	StoreConfig
}

type EnvConfig interface {
	GetCallbackAddr() string
	GetCallbackOrigin() string
	GetAppName() string
	GetProvidersFile() string
	GetEnv() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
}

type mainConfig struct {
	EnvVars
	Cors
	Login
	Store
}

// New reads the configuration from the process environment.
func New() (Config, error) {
	return parse(env.Options{})
}

// NewFromMap reads the configuration from vars instead of the process environment.
func NewFromMap(vars map[string]string) (Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (Config, error) {
	var cfg mainConfig
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("[config New] parse env: %w", err)
	}
	cfg.Cors.callbackOrigin = cfg.GetCallbackOrigin()
	if _, err := cfg.GetStoreKey(); err != nil {
		return nil, err
	}
	return cfg, nil
}

package config

import "strings"

type EnvVars struct {
	CallbackAddr  string `env:"LOGIN_CALLBACK_ADDR" envDefault:"127.0.0.1:8765"`
	AppName       string `env:"LOGIN_APP_NAME" envDefault:"Social Login"`
	ProvidersFile string `env:"LOGIN_PROVIDERS_FILE" envDefault:"./providers.yaml"`
	Env           string `env:"LOGIN_ENV" envDefault:"DEV"`
}

var _ EnvConfig = EnvVars{}

// GetCallbackAddr returns the loopback address the redirect callback server listens on.
func (e EnvVars) GetCallbackAddr() string {
	return e.CallbackAddr
}

// GetCallbackOrigin returns the origin of the callback server, e.g. "http://127.0.0.1:8765".
func (e EnvVars) GetCallbackOrigin() string {
	addr := e.CallbackAddr
	if strings.HasPrefix(addr, ":") {
		addr = "127.0.0.1" + addr
	}
	return "http://" + addr
}

func (e EnvVars) GetAppName() string {
	return e.AppName
}

func (e EnvVars) GetProvidersFile() string {
	return e.ProvidersFile
}

func (e EnvVars) GetEnv() string {
	return e.Env
}

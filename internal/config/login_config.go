package config

import "time"

type LoginConfig interface {
	GetPopupTimeout() time.Duration
	GetPollInterval() time.Duration
	GetPendingTTL() time.Duration
	GetScreenSize() (width, height int)
	GetEagerDiscovery() bool
}

type Login struct {
	PopupTimeout   time.Duration `env:"LOGIN_POPUP_TIMEOUT" envDefault:"300s"`
	PollInterval   time.Duration `env:"LOGIN_POLL_INTERVAL" envDefault:"1s"`
	PendingTTL     time.Duration `env:"LOGIN_PENDING_TTL" envDefault:"10m"`
	ScreenWidth    int           `env:"LOGIN_SCREEN_WIDTH" envDefault:"1440"`
	ScreenHeight   int           `env:"LOGIN_SCREEN_HEIGHT" envDefault:"900"`
	EagerDiscovery bool          `env:"LOGIN_EAGER_DISCOVERY" envDefault:"false"`
}

var _ LoginConfig = Login{}

func (l Login) GetPopupTimeout() time.Duration {
	return l.PopupTimeout
}

func (l Login) GetPollInterval() time.Duration {
	return l.PollInterval
}

// GetPendingTTL bounds how long an unfinished login can still be completed.
func (l Login) GetPendingTTL() time.Duration {
	return l.PendingTTL
}

func (l Login) GetScreenSize() (int, int) {
	return l.ScreenWidth, l.ScreenHeight
}

func (l Login) GetEagerDiscovery() bool {
	return l.EagerDiscovery
}

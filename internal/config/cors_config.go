package config

import (
	"sort"
	"strings"
)

type Cors struct {
	Origins []string `env:"LOGIN_ALLOWED_ORIGINS" envSeparator:","`

	callbackOrigin string
}

var _ CorsConfig = Cors{}

// AllowedOrigins is the set of origins whose completion messages are accepted.
type AllowedOrigins map[string]struct{}
type nullValue = struct{}

func NewAllowedOrigins(origins ...string) AllowedOrigins {
	a := AllowedOrigins{}
	for _, o := range origins {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			a[o] = nullValue{}
		}
	}
	return a
}

func (a AllowedOrigins) IsAllowedOrigin(origin string) bool {
	_, ok := a[strings.TrimRight(origin, "/")]
	return ok
}

func (a AllowedOrigins) String() string {
	var origins []string
	for k := range a {
		origins = append(origins, k)
	}
	sort.Strings(origins)
	return strings.Join(origins, ", ")
}

// GetAllowedOrigins always includes the callback server's own origin.
func (c Cors) GetAllowedOrigins() AllowedOrigins {
	return NewAllowedOrigins(append([]string{c.callbackOrigin}, c.Origins...)...)
}

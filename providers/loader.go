package providers

import (
	"os"

	autherrors "github.com/jrsteele09/go-social-login/internal/errors"
	"gopkg.in/yaml.v3"
)

// catalog is the on-disk shape of a provider file:
//
//	providers:
//	  google:
//	    preset: google
//	    clientId: ...
//	    redirectUri: http://127.0.0.1:8765/callback
type catalog struct {
	Providers map[string]RawConfig `yaml:"providers"`
}

// LoadFile reads a YAML provider catalog.
func LoadFile(path string) (map[string]RawConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, autherrors.Wrapf(err, "[providers LoadFile] read %s", path)
	}
	return Parse(data)
}

// Parse decodes a YAML provider catalog.
func Parse(data []byte) (map[string]RawConfig, error) {
	var c catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, autherrors.Wrapf(err, "[providers Parse] decode")
	}
	if c.Providers == nil {
		c.Providers = map[string]RawConfig{}
	}
	return c.Providers, nil
}

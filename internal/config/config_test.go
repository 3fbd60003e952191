package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/jrsteele09/go-social-login/internal/config"
	"github.com/stretchr/testify/require"
)

// TestDefaults tests the configuration with an empty environment
func TestDefaults(t *testing.T) {
	cfg, err := config.NewFromMap(map[string]string{})
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:8765", cfg.GetCallbackAddr())
	require.Equal(t, "http://127.0.0.1:8765", cfg.GetCallbackOrigin())
	require.Equal(t, "./providers.yaml", cfg.GetProvidersFile())
	require.Equal(t, "DEV", cfg.GetEnv())
	require.Equal(t, config.StoreMemory, cfg.GetStoreKind())
	require.Equal(t, 300*time.Second, cfg.GetPopupTimeout())
	require.Equal(t, time.Second, cfg.GetPollInterval())
	require.Equal(t, 10*time.Minute, cfg.GetPendingTTL())
	require.True(t, cfg.GetAllowedOrigins().IsAllowedOrigin("http://127.0.0.1:8765"))
	require.False(t, cfg.GetAllowedOrigins().IsAllowedOrigin("https://evil.test"))

	key, err := cfg.GetStoreKey()
	require.NoError(t, err)
	require.Nil(t, key)
}

// TestOverrides tests values read from the environment
func TestOverrides(t *testing.T) {
	cfg, err := config.NewFromMap(map[string]string{
		"LOGIN_CALLBACK_ADDR":   ":9000",
		"LOGIN_ALLOWED_ORIGINS": "https://app.example.com/,https://other.example.com",
		"LOGIN_POPUP_TIMEOUT":   "45s",
		"LOGIN_STORE":           "file",
		"LOGIN_STORE_KEY":       strings.Repeat("ab", 32),
	})
	require.NoError(t, err)
	require.Equal(t, "http://127.0.0.1:9000", cfg.GetCallbackOrigin())
	require.Equal(t, 45*time.Second, cfg.GetPopupTimeout())
	require.Equal(t, config.StoreFile, cfg.GetStoreKind())

	origins := cfg.GetAllowedOrigins()
	require.True(t, origins.IsAllowedOrigin("https://app.example.com"))
	require.True(t, origins.IsAllowedOrigin("https://other.example.com"))
	require.True(t, origins.IsAllowedOrigin("http://127.0.0.1:9000"))

	key, err := cfg.GetStoreKey()
	require.NoError(t, err)
	require.Len(t, key, 32)
}

// TestInvalidValues tests that malformed values are rejected
func TestInvalidValues(t *testing.T) {
	_, err := config.NewFromMap(map[string]string{"LOGIN_POPUP_TIMEOUT": "soon"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "parse env")

	_, err = config.NewFromMap(map[string]string{"LOGIN_STORE_KEY": "abcd"})
	require.Error(t, err)
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0:8000", cfg.Address())
	assert.Equal(t, VariantDirect, cfg.Analytics.Variant)
	assert.Equal(t, 5*time.Minute, cfg.Analytics.CacheDuration)
	assert.Equal(t, 100, cfg.Analytics.MemoSize)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Security.AllowedOrigins)
	assert.True(t, cfg.Security.AllowCredentials)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "json", cfg.Logger.Format)
}

func TestLoad_NilViper(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, VariantDirect, cfg.Analytics.Variant)
}

func TestLoad_StubVariantOrigins(t *testing.T) {
	t.Setenv("ANALYTICS_VARIANT", "Stub")

	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, VariantStub, cfg.Analytics.Variant)
	assert.Equal(t, []string{
		"http://localhost:3000",
		"https://lazycashier-e720f.web.app",
	}, cfg.Security.AllowedOrigins)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("ANALYTICS_CACHE_DURATION", "90s")
	t.Setenv("SECURITY_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 90*time.Second, cfg.Analytics.CacheDuration)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Security.AllowedOrigins)
	assert.Equal(t, "debug", cfg.Logger.Level)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lazycashier.yaml")
	content := []byte("server:\n  port: 8123\nanalytics:\n  variant: stub\n  memo_size: 7\n")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	v := viper.New()
	v.SetConfigFile(path)

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, 8123, cfg.Server.Port)
	assert.Equal(t, VariantStub, cfg.Analytics.Variant)
	assert.Equal(t, 7, cfg.Analytics.MemoSize)
}

func TestLoad_MissingConfigFile(t *testing.T) {
	v := viper.New()
	v.SetConfigFile(filepath.Join(t.TempDir(), "absent.yaml"))

	_, err := Load(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config file")
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"port", map[string]string{"SERVER_PORT": "70000"}, "server port"},
		{"variant", map[string]string{"ANALYTICS_VARIANT": "redis"}, "invalid analytics variant"},
		{"cache duration", map[string]string{"ANALYTICS_CACHE_DURATION": "0s"}, "cache duration"},
		{"memo size", map[string]string{"ANALYTICS_MEMO_SIZE": "0"}, "memo size"},
		{"log level", map[string]string{"LOG_LEVEL": "verbose"}, "invalid log level"},
		{"log format", map[string]string{"LOG_FORMAT": "xml"}, "invalid log format"},
		{"rps", map[string]string{"SECURITY_RATE_LIMIT_RPS": "0"}, "rate limit RPS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load(viper.New())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestNormalizeList(t *testing.T) {
	got := normalizeList([]string{"a, b", "", " c "})
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

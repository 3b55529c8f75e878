package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	VariantDirect = "direct"
	VariantStub   = "stub"
)

const (
	localFrontendOrigin    = "http://localhost:3000"
	deployedFrontendOrigin = "https://lazycashier-e720f.web.app"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Analytics AnalyticsConfig `mapstructure:"analytics"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Security  SecurityConfig  `mapstructure:"security"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// AnalyticsConfig selects the provider variant and tunes it.
type AnalyticsConfig struct {
	Variant        string        `mapstructure:"variant"`
	CacheDuration  time.Duration `mapstructure:"cache_duration"`
	MemoSize       int           `mapstructure:"memo_size"`
	SeedFile       string        `mapstructure:"seed_file"`
	StreamInterval time.Duration `mapstructure:"stream_interval"`
}

type LoggerConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type SecurityConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	EnableRateLimit  bool     `mapstructure:"rate_limit_enabled"`
	RateLimitRPS     int      `mapstructure:"rate_limit_rps"`
	RateLimitBurst   int      `mapstructure:"rate_limit_burst"`
	TrustedProxies   []string `mapstructure:"trusted_proxies"`
}

type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("analytics.variant", VariantDirect)
	v.SetDefault("analytics.cache_duration", 5*time.Minute)
	v.SetDefault("analytics.memo_size", 100)
	v.SetDefault("analytics.seed_file", "")
	v.SetDefault("analytics.stream_interval", 2*time.Second)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")

	v.SetDefault("security.allowed_origins", []string{})
	v.SetDefault("security.allow_credentials", true)
	v.SetDefault("security.rate_limit_enabled", true)
	v.SetDefault("security.rate_limit_rps", 100)
	v.SetDefault("security.rate_limit_burst", 10)
	v.SetDefault("security.trusted_proxies", []string{"127.0.0.1"})

	v.SetDefault("tracing.enabled", true)
	v.SetDefault("tracing.service_name", "lazycashier-backend")
}

// Load resolves configuration from v. Flags bound to v by the caller win over
// environment variables (SERVER_PORT, ANALYTICS_VARIANT, ...), which win over
// an optional config file set with v.SetConfigFile, which wins over defaults.
// A nil v loads from environment and defaults only.
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.New()
	}

	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("logger.level", "LOGGER_LEVEL", "LOG_LEVEL")
	_ = v.BindEnv("logger.format", "LOGGER_FORMAT", "LOG_FORMAT")

	if v.ConfigFileUsed() != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode configuration: %w", err)
	}

	cfg.Analytics.Variant = strings.ToLower(strings.TrimSpace(cfg.Analytics.Variant))
	cfg.Security.AllowedOrigins = normalizeList(cfg.Security.AllowedOrigins)
	cfg.Security.TrustedProxies = normalizeList(cfg.Security.TrustedProxies)
	if len(cfg.Security.AllowedOrigins) == 0 {
		cfg.Security.AllowedOrigins = DefaultOrigins(cfg.Analytics.Variant)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// DefaultOrigins returns the cross-origin allow list used when none is configured.
func DefaultOrigins(variant string) []string {
	if variant == VariantStub {
		return []string{localFrontendOrigin, deployedFrontendOrigin}
	}
	return []string{localFrontendOrigin}
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server shutdown timeout must be positive")
	}

	validVariants := []string{VariantDirect, VariantStub}
	if !slices.Contains(validVariants, c.Analytics.Variant) {
		return fmt.Errorf("invalid analytics variant %q, must be one of: %s", c.Analytics.Variant, strings.Join(validVariants, ", "))
	}

	if c.Analytics.CacheDuration <= 0 {
		return fmt.Errorf("analytics cache duration must be positive")
	}

	if c.Analytics.MemoSize <= 0 {
		return fmt.Errorf("analytics memo size must be positive")
	}

	if c.Analytics.StreamInterval <= 0 {
		return fmt.Errorf("analytics stream interval must be positive")
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.Logger.Level) {
		return fmt.Errorf("invalid log level %q, must be one of: %s", c.Logger.Level, strings.Join(validLogLevels, ", "))
	}

	validLogFormats := []string{"json", "text"}
	if !slices.Contains(validLogFormats, c.Logger.Format) {
		return fmt.Errorf("invalid log format %q, must be one of: %s", c.Logger.Format, strings.Join(validLogFormats, ", "))
	}

	if c.Security.RateLimitRPS <= 0 {
		return fmt.Errorf("rate limit RPS must be positive")
	}

	if c.Security.RateLimitBurst <= 0 {
		return fmt.Errorf("rate limit burst must be positive")
	}

	return nil
}

// normalizeList splits comma-joined entries (as they arrive from the
// environment) and drops blanks.
func normalizeList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Package config decodes the portal's typed configuration sections from Viper.
package config

import (
	"fmt"
	"time"

	"github.com/neuralliquid/portal/internal/theme"
	"github.com/spf13/viper"
)

// Preference store backends.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Config is the decoded application configuration.
type Config struct {
	Theme       Theme       `mapstructure:"theme"`
	Preferences Preferences `mapstructure:"preferences"`
}

// Theme configures resolution defaults and the cookie surface.
type Theme struct {
	DefaultExperience string        `mapstructure:"default_experience"`
	DefaultVariant    string        `mapstructure:"default_variant"`
	DefaultColorMode  string        `mapstructure:"default_color_mode"`
	QueryParam        string        `mapstructure:"query_param"`
	PreferenceCookie  string        `mapstructure:"preference_cookie"`
	ExperienceCookie  string        `mapstructure:"experience_cookie"`
	SessionCookie     string        `mapstructure:"session_cookie"`
	MaxAge            time.Duration `mapstructure:"max_age"`
	SecureCookies     bool          `mapstructure:"secure_cookies"`
}

// Preferences configures the server-side preference store.
type Preferences struct {
	Backend            string        `mapstructure:"backend"`
	RedisAddr          string        `mapstructure:"redis_addr"`
	RedisPassword      string        `mapstructure:"redis_password"`
	RedisDB            int           `mapstructure:"redis_db"`
	KeyPrefix          string        `mapstructure:"key_prefix"`
	PurgeInterval      time.Duration `mapstructure:"purge_interval"`
	BreakerMaxFailures uint32        `mapstructure:"breaker_max_failures"`
	BreakerTimeout     time.Duration `mapstructure:"breaker_timeout"`
}

// Load decodes and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if _, err := cfg.Theme.Defaults(); err != nil {
		return nil, err
	}
	switch cfg.Preferences.Backend {
	case BackendSQLite, BackendMemory:
	case BackendRedis:
		if cfg.Preferences.RedisAddr == "" {
			return nil, fmt.Errorf("preferences.redis_addr is required for the redis backend")
		}
	default:
		return nil, fmt.Errorf("invalid preferences.backend %q: must be %q, %q or %q",
			cfg.Preferences.Backend, BackendSQLite, BackendRedis, BackendMemory)
	}
	if cfg.Theme.QueryParam == "" {
		return nil, fmt.Errorf("theme.query_param must not be empty")
	}
	return &cfg, nil
}

// Defaults returns the configured fallback selection. An empty variant means
// the experience default.
func (t Theme) Defaults() (theme.Selection, error) {
	e, err := theme.ParseExperience(t.DefaultExperience)
	if err != nil {
		return theme.Selection{}, fmt.Errorf("theme.default_experience: %w", err)
	}
	m, err := theme.ParseColorMode(t.DefaultColorMode)
	if err != nil {
		return theme.Selection{}, fmt.Errorf("theme.default_color_mode: %w", err)
	}
	v := theme.DefaultVariant(e)
	if t.DefaultVariant != "" {
		if v, err = theme.ParseVariant(t.DefaultVariant); err != nil {
			return theme.Selection{}, fmt.Errorf("theme.default_variant: %w", err)
		}
		if !e.Allows(v) {
			return theme.Selection{}, fmt.Errorf("theme.default_variant: %w: %s is not a %s variant",
				theme.ErrVariantNotInExperience, v, e)
		}
	}
	return theme.Selection{Experience: e, Variant: v, ColorMode: m}, nil
}

// Keys returns the persistence key names, which double as cookie names.
func (t Theme) Keys() theme.Keys {
	return theme.Keys{Preference: t.PreferenceCookie, Experience: t.ExperienceCookie}
}

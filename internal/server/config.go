package server

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the server configuration.
type Config struct {
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	DataDir string `mapstructure:"data_dir"`
}

// Addr returns the listen address as host:port.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LoadConfig reads configuration from file and environment variables.
func LoadConfig(configPath string) (*viper.Viper, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.data_dir", "./data")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("database.dsn", "./data/portal.db")

	v.SetDefault("theme.default_experience", "standard")
	v.SetDefault("theme.default_variant", "")
	v.SetDefault("theme.default_color_mode", "light")
	v.SetDefault("theme.query_param", "theme")
	v.SetDefault("theme.preference_cookie", "theme")
	v.SetDefault("theme.experience_cookie", "experience")
	v.SetDefault("theme.session_cookie", "nl-session")
	v.SetDefault("theme.max_age", "720h")
	v.SetDefault("theme.secure_cookies", false)

	v.SetDefault("preferences.backend", "sqlite")
	v.SetDefault("preferences.redis_addr", "")
	v.SetDefault("preferences.redis_password", "")
	v.SetDefault("preferences.redis_db", 0)
	v.SetDefault("preferences.key_prefix", "portal:theme:")
	v.SetDefault("preferences.purge_interval", "1h")
	v.SetDefault("preferences.breaker_max_failures", 5)
	v.SetDefault("preferences.breaker_timeout", "30s")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("portal")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/portal")
	}

	// Environment variable support: PORTAL_SERVER_PORT=9090,
	// PORTAL_PREFERENCES_BACKEND=redis
	v.SetEnvPrefix("PORTAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// Config file not found is fine -- use defaults
	}

	return v, nil
}

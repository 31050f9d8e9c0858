package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig
	DB      DBConfig
	Logging LoggingConfig
	Admin   AdminConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type DBConfig struct {
	Path string
}

type LoggingConfig struct {
	Level  string
	Format string
}

type AdminConfig struct {
	// Token fixes the dashboard token across restarts. Empty means a fresh
	// token is generated on every boot.
	Token string
}

// Load reads config.yaml from the working directory (optional) and
// IMPERIUS_* environment variables, env taking precedence.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("IMPERIUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("db.path", "./imperius.db")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("admin.token", "")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Package config loads server configuration from environment variables and an
// optional YAML config file.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Seed     SeedConfig     `mapstructure:"seed"`
	Fraud    FraudConfig    `mapstructure:"fraud"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

type SeedConfig struct {
	OnStart bool `mapstructure:"on_start"`
}

type FraudConfig struct {
	// RulesFile overrides the built-in alert rules when set.
	RulesFile string `mapstructure:"rules_file"`
}

// Load reads configuration, lowest priority first: defaults, config file,
// environment. DATABASE_URL and JWT_SECRET are honored directly for parity
// with earlier deployments.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetDefault("server.addr", ":5000")
	v.SetDefault("database.url", "file:infrabondx.db")
	v.SetDefault("auth.jwt_secret", "supersecret")
	v.SetDefault("seed.on_start", true)

	v.SetEnvPrefix("INFRABONDX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("database.url", "DATABASE_URL", "INFRABONDX_DATABASE_URL")
	_ = v.BindEnv("auth.jwt_secret", "JWT_SECRET", "INFRABONDX_AUTH_JWT_SECRET")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

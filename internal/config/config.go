package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type ServerConfig struct {
	Host    string
	Port    int
	Mode    string
	Timeout time.Duration
}

type StorageConfig struct {
	DataDir string
}

type AuthConfig struct {
	JWTSecret    string
	TokenExpiry  time.Duration
	RefreshLimit time.Duration
}

type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

type Config struct {
	Server         ServerConfig
	Storage        StorageConfig
	Auth           AuthConfig
	RateLimit      RateLimitConfig
	AllowedOrigins []string
}

// Load reads configs/config.yaml via viper, with HOSPITAL_ prefixed
// environment variables taking precedence.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../configs")
	v.SetEnvPrefix("HOSPITAL")
	v.AutomaticEnv()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.timeout", "30s")
	v.SetDefault("storage.data_dir", "./data")
	v.SetDefault("auth.token_expiry", "15m")
	v.SetDefault("auth.refresh_limit", "24h")
	v.SetDefault("rate_limit.requests_per_second", 10.0)
	v.SetDefault("rate_limit.burst", 20)
	v.SetDefault("allowed_origins", []string{"*"})

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:    v.GetString("server.host"),
			Port:    v.GetInt("server.port"),
			Mode:    v.GetString("server.mode"),
			Timeout: v.GetDuration("server.timeout"),
		},
		Storage: StorageConfig{
			DataDir: v.GetString("storage.data_dir"),
		},
		Auth: AuthConfig{
			JWTSecret:    v.GetString("auth.jwt_secret"),
			TokenExpiry:  v.GetDuration("auth.token_expiry"),
			RefreshLimit: v.GetDuration("auth.refresh_limit"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: v.GetFloat64("rate_limit.requests_per_second"),
			Burst:             v.GetInt("rate_limit.burst"),
		},
		AllowedOrigins: v.GetStringSlice("allowed_origins"),
	}

	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("auth.jwt_secret is required")
	}
	return cfg, nil
}

package auth

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	JWTSecret string        `mapstructure:"JWTSecret"`
	Issuer    string        `mapstructure:"Issuer"`
	TokenTTL  time.Duration `mapstructure:"TokenTTL"`
}

func NewConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	v.BindEnv("JWTSecret", "AUTH_JWT_SECRET")
	v.BindEnv("Issuer", "AUTH_ISSUER")

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("Warning: using only environment variables: %v\n", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal auth config: %w", err)
	}

	if cfg.JWTSecret == "" {
		cfg.JWTSecret = v.GetString("AUTH_JWT_SECRET")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("auth configuration is incomplete: JWT secret is required")
	}

	if cfg.Issuer == "" {
		cfg.Issuer = "notevault"
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}

	return &cfg, nil
}

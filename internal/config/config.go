package config

import (
	"errors"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all runtime settings, loaded from environment variables with
// an optional .env file for local development.
type Config struct {
	ServerPort  string `mapstructure:"PORT"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	RabbitMQURL string `mapstructure:"RABBITMQ_URL"`
	JWTSecret   string `mapstructure:"JWT_SECRET"`
	PayoutURL   string `mapstructure:"PAYOUT_URL"`
	CORSOrigin  string `mapstructure:"CORS_ORIGIN"`
	SweepSpec   string `mapstructure:"CLAIM_SWEEP_CRON"`
	SeedData    bool   `mapstructure:"SEED_DATA"`
}

// Load reads configuration from the environment. A missing .env file is not
// an error; a missing DATABASE_URL, JWT_SECRET or PAYOUT_URL is.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("PORT", "8080")
	v.SetDefault("CORS_ORIGIN", "http://localhost:3000")
	v.SetDefault("CLAIM_SWEEP_CRON", "*/5 * * * *")
	v.SetDefault("SEED_DATA", true)
	for _, key := range []string{"PORT", "DATABASE_URL", "RABBITMQ_URL", "JWT_SECRET", "PAYOUT_URL", "CORS_ORIGIN", "CLAIM_SWEEP_CRON", "SEED_DATA"} {
		_ = v.BindEnv(key)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return Config{}, errors.New("JWT_SECRET is required")
	}
	// Without an executor endpoint every payout job would fail and retry
	// forever, so refuse to start instead.
	if cfg.PayoutURL == "" {
		return Config{}, errors.New("PAYOUT_URL is required")
	}
	return cfg, nil
}

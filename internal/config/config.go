// Package config loads runtime settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Environment selects how loudly failures are reported.
type Environment string

const (
	Development Environment = "development"
	Production  Environment = "production"
)

type Config struct {
	Env      Environment
	LogLevel string

	DatabaseURL string
	RedisURL    string
	// ChannelPrefix namespaces the Redis pub/sub channels and binding keys.
	ChannelPrefix string

	AnonymizerURL     string
	AnonymizerRPS     float64
	AnonymizerTimeout time.Duration

	StoreMaxRetries int
	BindingTTL      time.Duration
}

// Load reads the given .env files (missing files are ignored; with no
// arguments ".env" is tried) and then the process environment.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := Config{
		Env:           Environment(getenv("MISTERY_ENV", string(Development))),
		LogLevel:      getenv("MISTERY_LOG_LEVEL", "info"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RedisURL:      os.Getenv("REDIS_URL"),
		ChannelPrefix: getenv("MISTERY_CHANNEL_PREFIX", "mistery:"),
		AnonymizerURL: os.Getenv("ANONYMIZER_URL"),
	}

	var err error
	if cfg.AnonymizerRPS, err = parseFloat("ANONYMIZER_RPS", 2); err != nil {
		return Config{}, err
	}
	if cfg.AnonymizerTimeout, err = parseDuration("ANONYMIZER_TIMEOUT", 10*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.StoreMaxRetries, err = parseInt("STORE_MAX_RETRIES", 5); err != nil {
		return Config{}, err
	}
	if cfg.BindingTTL, err = parseDuration("BINDING_TTL", 24*time.Hour); err != nil {
		return Config{}, err
	}

	return cfg, cfg.Validate()
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.Env != Development && c.Env != Production {
		return fmt.Errorf("MISTERY_ENV must be %q or %q, got %q", Development, Production, c.Env)
	}
	if c.AnonymizerRPS <= 0 {
		return fmt.Errorf("ANONYMIZER_RPS must be positive, got %v", c.AnonymizerRPS)
	}
	if c.StoreMaxRetries < 1 {
		return fmt.Errorf("STORE_MAX_RETRIES must be at least 1, got %d", c.StoreMaxRetries)
	}
	if c.AnonymizerTimeout <= 0 {
		return fmt.Errorf("ANONYMIZER_TIMEOUT must be positive, got %s", c.AnonymizerTimeout)
	}
	return nil
}

// IsDevelopment reports whether failures should be loud.
func (c Config) IsDevelopment() bool { return c.Env == Development }

func getenv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func parseInt(key string, def int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func parseFloat(key string, def float64) (float64, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

func parseDuration(key string, def time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

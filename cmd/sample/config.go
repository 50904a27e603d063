package main

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var errParseConfig = errors.New("parse config")

type config struct {
	Addr            string        `env:"SAMPLE_ADDR" envDefault:":8080"`
	LogLevel        slog.Level    `env:"SAMPLE_LOG_LEVEL" envDefault:"info"`
	LogFormat       string        `env:"SAMPLE_LOG_FORMAT" envDefault:"text"`
	RateLimit       float64       `env:"SAMPLE_RATE_LIMIT" envDefault:"10"`
	RateBurst       int           `env:"SAMPLE_RATE_BURST" envDefault:"20"`
	MaxBodyBytes    int64         `env:"SAMPLE_MAX_BODY_BYTES" envDefault:"1048576"`
	MaxValueLength  int           `env:"SAMPLE_MAX_VALUE_LENGTH" envDefault:"64"`
	ShutdownTimeout time.Duration `env:"SAMPLE_SHUTDOWN_TIMEOUT" envDefault:"5s"`
}

// loadConfig reads the environment, after loading .env if one exists.
func loadConfig() (config, error) {
	// The .env file is optional.
	_ = godotenv.Load()

	cfg, err := env.ParseAs[config]()
	if err != nil {
		return config{}, errors.Join(errParseConfig, err)
	}
	if cfg.RateLimit <= 0 || cfg.RateBurst <= 0 {
		return config{}, fmt.Errorf("%w: rate limit and burst must be positive", errParseConfig)
	}
	return cfg, nil
}

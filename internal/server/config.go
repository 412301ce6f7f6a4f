// Package server provides configuration helpers that define runtime defaults
// and validation for the NightOwl relay.
package server

import (
	"fmt"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
)

// Config holds the server configuration settings. Fields are bound from the
// environment by LoadConfig; zero values fall back to the defaults below.
type Config struct {
	Port            string        `env:"SERVER_PORT,default=:8080"`
	AllowedOrigins  string        `env:"ALLOWED_ORIGINS,default=http://localhost:8080"`
	MaxMessageSize  int64         `env:"MAX_MESSAGE_SIZE,default=512" validate:"gt=0"`
	SendBufferSize  int           `env:"SEND_BUFFER_SIZE,default=256" validate:"gt=0"`
	HistoryLimit    int           `env:"HISTORY_LIMIT,default=50" validate:"gt=0"`
	BadgerFilepath  string        `env:"BADGER_FILEPATH,default=data/messages" validate:"required"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s" validate:"gt=0"`
}

// NewConfig creates a Config populated with default values for all settings.
func NewConfig() *Config {
	return &Config{
		Port:            ":8080",
		AllowedOrigins:  "http://localhost:8080",
		MaxMessageSize:  512,
		SendBufferSize:  256,
		HistoryLimit:    50,
		BadgerFilepath:  "data/messages",
		ShutdownTimeout: 10 * time.Second,
	}
}

// LoadConfig binds the configuration from environment variables and validates
// it. Unset variables fall back to the tag defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints and reports the first violation.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	return nil
}

// Origins returns the configured origin allowlist as individual entries.
func (c *Config) Origins() []string {
	parts := strings.Split(c.AllowedOrigins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

package config

import (
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

// Config параметры сервиса из окружения. Пустой DSN переключает сервис на
// in-memory хранилище.
type Config struct {
	HTTPPort    string `envconfig:"HTTP_PORT" default:"9091"`
	DatabaseDSN string `envconfig:"DATABASE_DSN"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
}

func Parse(prefix string) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(prefix, &cfg); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	return &cfg, nil
}

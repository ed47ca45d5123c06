// Package config loads runtime settings from the environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port      string `env:"CHOREBOARD_PORT" envDefault:"8080"`
	DBPath    string `env:"CHOREBOARD_DB_PATH" envDefault:"choreboard.db"`
	LogLevel  string `env:"CHOREBOARD_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"CHOREBOARD_LOG_FORMAT" envDefault:"text"`

	// TickSchedule is the cron spec for recurrence evaluation. The default
	// matches the original coordinator's one-minute update interval.
	TickSchedule string `env:"CHOREBOARD_TICK_SCHEDULE" envDefault:"@every 1m"`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// PresenceConfig holds the housekeeping intervals for sessions and rooms.
type PresenceConfig struct {
	SweepInterval     time.Duration `env:"PRESENCE_SWEEP_INTERVAL" envDefault:"30s"`
	AwayAfter         time.Duration `env:"PRESENCE_AWAY_AFTER" envDefault:"5m"`
	IdleTimeout       time.Duration `env:"PRESENCE_IDLE_TIMEOUT" envDefault:"30m"`
	RoomSweepInterval time.Duration `env:"ROOM_SWEEP_INTERVAL" envDefault:"1m"`
}

func LoadPresence() (PresenceConfig, error) {
	var cfg PresenceConfig
	err := env.Parse(&cfg)
	return cfg, err
}

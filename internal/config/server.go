package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type ServerConfig struct {
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`
	JWTSecret   string `env:"JWT_SECRET,required,notEmpty"`
	PostgresDSN string `env:"POSTGRES_DSN,required,notEmpty"`

	RedisURL     string        `env:"REDIS_URL"`
	RedisUserTTL time.Duration `env:"REDIS_USER_TTL" envDefault:"5m"`

	AuthTimeout    time.Duration `env:"AUTH_TIMEOUT" envDefault:"3s"`
	AllowedOrigins []string      `env:"ALLOWED_ORIGINS" envSeparator:","`

	WSSendBuffer      int     `env:"WS_SEND_BUFFER" envDefault:"64"`
	WSEventsPerSecond float64 `env:"WS_EVENTS_PER_SECOND" envDefault:"20"`
	WSEventBurst      int     `env:"WS_EVENT_BURST" envDefault:"40"`
}

func LoadServer() (ServerConfig, error) {
	var cfg ServerConfig
	err := env.Parse(&cfg)
	return cfg, err
}

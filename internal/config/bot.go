package config

import "github.com/caarlos0/env/v11"

type BotConfig struct {
	WSURL  string `env:"WS_URL" envDefault:"ws://localhost:8080/ws"`
	Token  string `env:"BOT_TOKEN" envDefault:""`
	Mode   string `env:"BOT_MODE" envDefault:"create"`
	RoomID string `env:"BOT_ROOM_ID"`
}

func LoadBot() (BotConfig, error) {
	var cfg BotConfig
	err := env.Parse(&cfg)
	return cfg, err
}

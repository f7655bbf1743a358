package config

import "github.com/caarlos0/env/v11"

type CLIConfig struct {
	ServerURL string `env:"LOBBY_SERVER" envDefault:"http://localhost:8080"`
	Token     string `env:"LOBBY_TOKEN"`
	JWTSecret string `env:"JWT_SECRET"`
}

func LoadCLI() (CLIConfig, error) {
	var cfg CLIConfig
	err := env.Parse(&cfg)
	return cfg, err
}

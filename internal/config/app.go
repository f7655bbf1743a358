package config

type AppConfig struct {
	Server   ServerConfig
	Presence PresenceConfig
	Log      LogConfig
}

func LoadApp() (AppConfig, error) {
	logCfg, err := LoadLog()
	if err != nil {
		return AppConfig{}, err
	}
	serverCfg, err := LoadServer()
	if err != nil {
		return AppConfig{}, err
	}
	presenceCfg, err := LoadPresence()
	if err != nil {
		return AppConfig{}, err
	}
	return AppConfig{
		Server:   serverCfg,
		Presence: presenceCfg,
		Log:      logCfg,
	}, nil
}

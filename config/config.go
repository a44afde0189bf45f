package config

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Server    Server
	Database  Database
	JWTSecret string
	Session   Session
}

type Server struct {
	Port string
}

type Database struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

// Session holds the tunables of the attempt session engine. Intervals are flat
// integers so they can be set from a .env file.
type Session struct {
	TimerSyncIntervalSeconds int
	ReclaimIntervalSeconds   int
	AutosaveDebounceMillis   int
}

func NewConfig() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()

	viper.SetDefault("TIMER_SYNC_INTERVAL_SECONDS", 10)
	viper.SetDefault("RECLAIM_INTERVAL_SECONDS", 3600)
	viper.SetDefault("AUTOSAVE_DEBOUNCE_MILLIS", 1000)

	if err := viper.ReadInConfig(); err != nil {
		log.Warn().Err(err).Msg("Error reading config file")
	}

	var config Config

	config.Server.Port = viper.GetString("SERVER_PORT")
	config.Database.Host = viper.GetString("DATABASE_HOST")
	config.Database.Port = viper.GetString("DATABASE_PORT")
	config.Database.User = viper.GetString("DATABASE_USER")
	config.Database.Password = viper.GetString("DATABASE_PASSWORD")
	config.Database.Name = viper.GetString("DATABASE_NAME")

	config.JWTSecret = viper.GetString("JWT_SECRET")

	config.Session.TimerSyncIntervalSeconds = viper.GetInt("TIMER_SYNC_INTERVAL_SECONDS")
	config.Session.ReclaimIntervalSeconds = viper.GetInt("RECLAIM_INTERVAL_SECONDS")
	config.Session.AutosaveDebounceMillis = viper.GetInt("AUTOSAVE_DEBOUNCE_MILLIS")

	log.Info().Str("port", config.Server.Port).Msg("Config loaded")
	return &config, nil
}

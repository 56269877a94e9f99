package config

import (
	"log/slog"
	"sync"
)

type AppConfig struct {
	Name     string
	Env      string
	Port     string
	LogLevel string
}

var (
	appConfig *AppConfig
	appOnce   sync.Once
)

func LoadAppConfig() *AppConfig {
	appOnce.Do(func() {
		appConfig = newAppConfig()
	})
	return appConfig
}

func newAppConfig() *AppConfig {
	env := getenv("APP_ENV", "")
	if env == "" {
		env = "development"
		slog.Warn("APP_ENV not set, using default", "env", env)
	}
	return &AppConfig{
		Name:     getenv("APP_NAME", "ticket-router"),
		Env:      env,
		Port:     getenv("APP_PORT", ":8080"),
		LogLevel: getenv("LOG_LEVEL", "info"),
	}
}

func (c *AppConfig) IsProduction() bool {
	return c.Env == "production"
}

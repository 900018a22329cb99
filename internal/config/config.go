package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	envPrefix          = "NOTES"
	defaultHTTPAddress = "0.0.0.0:8080"
	defaultBackend     = "couchdb"
	defaultBackendURL  = "http://localhost:5984"
	defaultDatabase    = "notes"
	defaultLogLevel    = "info"
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress string
	Backend     string
	BackendURL  string
	Database    string
	LogLevel    string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper
// instance. Every key is overridable through NOTES_-prefixed variables.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("storage.backend", defaultBackend)
	configViper.SetDefault("storage.url", defaultBackendURL)
	configViper.SetDefault("storage.database", defaultDatabase)
	configViper.SetDefault("log.level", defaultLogLevel)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress: configViper.GetString("http.address"),
		Backend:     configViper.GetString("storage.backend"),
		BackendURL:  configViper.GetString("storage.url"),
		Database:    configViper.GetString("storage.database"),
		LogLevel:    configViper.GetString("log.level"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.HTTPAddress) == "" {
		return fmt.Errorf("http.address is required")
	}
	if strings.TrimSpace(c.BackendURL) == "" {
		return fmt.Errorf("storage.url is required")
	}
	if strings.TrimSpace(c.Database) == "" {
		return fmt.Errorf("storage.database is required")
	}
	return nil
}

// Package config loads application settings from an optional YAML file
// with environment variable overrides. Environment wins over file values,
// file values win over defaults.
package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config is the resolved application configuration.
type Config struct {
	// Account credentials. SSID short-circuits the credential login.
	Email    string
	Password string
	SSID     string

	// Transport overrides, empty means venue defaults.
	WSURL     string
	UserAgent string

	LogLevel string
	LogFile  string
}

// configFile is the YAML shape.
type configFile struct {
	Account struct {
		Email    string `yaml:"email"`
		Password string `yaml:"password"`
		SSID     string `yaml:"ssid"`
	} `yaml:"account"`
	Transport struct {
		WSURL     string `yaml:"ws_url"`
		UserAgent string `yaml:"user_agent"`
	} `yaml:"transport"`
	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
}

// Load reads the file at path (skipped when empty or missing) and applies
// environment overrides.
func Load(path string) (*Config, error) {
	var file configFile
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &file); err != nil {
				return nil, errors.Wrapf(err, "parse config %s", path)
			}
		}
	}

	cfg := &Config{
		Email:     override("IQ_EMAIL", file.Account.Email),
		Password:  override("IQ_PASSWORD", file.Account.Password),
		SSID:      override("IQ_SSID", file.Account.SSID),
		WSURL:     override("IQ_WS_URL", file.Transport.WSURL),
		UserAgent: override("IQ_USER_AGENT", file.Transport.UserAgent),
		LogLevel:  override("LOG_LEVEL", file.LogLevel),
		LogFile:   override("LOG_FILE", file.LogFile),
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	return cfg, nil
}

func override(env, fileValue string) string {
	if v := os.Getenv(env); v != "" {
		return v
	}
	return fileValue
}

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog/log"
)

var ErrConfigNotFound = errors.New("config not found")

func GetConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("get user config directory: %w", err)
	}

	parloDir := filepath.Join(configDir, "parlo")
	if err := os.MkdirAll(parloDir, 0755); err != nil {
		return "", fmt.Errorf("create config directory: %w", err)
	}

	return filepath.Join(parloDir, "config.toml"), nil
}

// Load reads the config file, writing the commented default file first if
// none exists yet.
func Load() (*Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Info().Str("path", configPath).Msg("config: writing default configuration")
		if werr := os.WriteFile(configPath, []byte(defaultConfigFile), 0600); werr != nil {
			return nil, fmt.Errorf("write default config: %w", werr)
		}
	} else if err != nil {
		return nil, fmt.Errorf("stat config file %s: %w", configPath, err)
	}

	config := DefaultConfig()
	if _, err := toml.DecodeFile(configPath, config); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", configPath, err)
	}

	log.Debug().Str("path", configPath).Msg("config: loaded")
	return config, nil
}

// Save writes the config back to disk, used by the configure wizard.
func Save(c *Config) error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	f, err := os.OpenFile(configPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return nil
}

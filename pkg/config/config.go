package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const (
	xdgAppName = "kanba"
	configName = "config"
)

// Config holds the board's settings. Every field can be overridden from
// ~/.config/kanba/config.json or a KANBA_* environment variable.
type Config struct {
	TasksFile string `mapstructure:"tasks_file"`
	KeysFile  string `mapstructure:"keys_file"`
	BoardURL  string `mapstructure:"board_url"`
	Template  string `mapstructure:"template"`
	Output    string `mapstructure:"output"`
}

// Load reads the configuration, applying defaults when no config file
// exists.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName(configName)
	v.SetConfigType("json")

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	configDir := filepath.Join(home, ".config", xdgAppName)
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	v.SetDefault("tasks_file", "tasks.json")
	v.SetDefault("keys_file", filepath.Join(configDir, "keys.env"))
	v.SetDefault("board_url", "")
	v.SetDefault("template", "template.html")
	v.SetDefault("output", "index.html")

	v.SetEnvPrefix("KANBA")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

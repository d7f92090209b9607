package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/tasklens/tasklens/errors"
)

// Load reads the tasklens configuration using Viper.
// Precedence (lowest to highest): defaults < user config < project
// config < environment variables.
func Load() (*Config, error) {
	v := initViper()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	applyFallbacks(&config)
	return &config, nil
}

// LoadFromFile loads configuration from a specific file path,
// bypassing the user/project config search.
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", configPath)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal config from %s", configPath)
	}

	applyFallbacks(&config)
	return &config, nil
}

// applyFallbacks fills settings viper defaults cannot express
// (structured slices have no usable SetDefault form).
func applyFallbacks(config *Config) {
	if len(config.Query.StatusCategories) == 0 {
		config.Query.StatusCategories = DefaultStatusCategories()
	}
	if config.Purposes == nil {
		config.Purposes = make(map[string]PurposeConfig)
	}
}

func initViper() *viper.Viper {
	v := viper.New()

	v.SetEnvPrefix("TASKLENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	BindSensitiveEnvVars(v)
	SetDefaults(v)

	mergeConfigFiles(v)

	return v
}

// mergeConfigFiles merges config files in precedence order:
// ~/.tasklens/config.toml first, then the nearest project
// tasklens.toml found walking up from the working directory.
func mergeConfigFiles(v *viper.Viper) {
	homeDir, _ := os.UserHomeDir()
	if homeDir != "" {
		userPath := filepath.Join(homeDir, ".tasklens", "config.toml")
		if _, err := os.Stat(userPath); err == nil {
			v.SetConfigFile(userPath)
			v.SetConfigType("toml")
			_ = v.MergeInConfig()
		}
	}

	if projectPath := findProjectConfig(); projectPath != "" {
		v.SetConfigFile(projectPath)
		v.SetConfigType("toml")
		_ = v.MergeInConfig()
	}
}

// findProjectConfig searches for tasklens.toml by walking up the
// directory tree. Returns empty string if none found.
func findProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		path := filepath.Join(dir, "tasklens.toml")
		if _, err := os.Stat(path); err == nil {
			return path
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

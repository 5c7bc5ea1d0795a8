package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/viper"

	"modsync/mcversion"
)

// ConfigurationError is fatal: it aborts a run before any mod task
// starts, during config loading or the engine's pre-flight check.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return e.Reason
}

// Config holds all resolved configuration for the application.
// Values are loaded by Viper from a .env file and/or environment
// variables, validated once at startup and passed by reference from
// then on.
type Config struct {
	MinecraftVersion string           `mapstructure:"MINECRAFT_VERSION"`
	MinecraftLoader  string           `mapstructure:"MINECRAFT_LOADER"`
	ModsDir          string           `mapstructure:"MODS_DIR"`
	CurseforgeAPIKey string           `mapstructure:"CURSEFORGE_API_KEY"`
	ModsListFile     string           `mapstructure:"MODS_LIST_FILE"`
	UserAgent        string           `mapstructure:"USERAGENT"`
	DryRun           bool             `mapstructure:"DRY_RUN"`
	DatabasePath     string           `mapstructure:"-"` // Not from env, derived
	Loader           mcversion.Loader `mapstructure:"-"` // Parsed from MinecraftLoader
}

// LoadConfig reads configuration from file and environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	vipErr := viper.ReadInConfig()
	if _, ok := vipErr.(viper.ConfigFileNotFoundError); ok {
		slog.Info("Config file (.env) not found, relying on environment variables.")
	} else if vipErr != nil {
		return Config{}, fmt.Errorf("fatal error config file: %w", vipErr)
	}

	viper.AutomaticEnv()

	for _, key := range []string{
		"MINECRAFT_VERSION",
		"MINECRAFT_LOADER",
		"MODS_DIR",
		"CURSEFORGE_API_KEY",
		"MODS_LIST_FILE",
		"USERAGENT",
		"DRY_RUN",
	} {
		if bindErr := viper.BindEnv(key); bindErr != nil {
			slog.Warn("Unable to bind env var", "key", key, "error", bindErr)
		}
	}

	if vipErr = viper.Unmarshal(&config); vipErr != nil {
		return Config{}, fmt.Errorf("unable to decode into struct, %w", vipErr)
	}

	// Viper does not coerce bool defaults from env reliably; parse the
	// raw string ourselves.
	if dryRunStr := viper.GetString("DRY_RUN"); dryRunStr != "" {
		dryRun, parseErr := strconv.ParseBool(dryRunStr)
		if parseErr != nil {
			slog.Warn("Invalid value for DRY_RUN, defaulting to false", "value", dryRunStr)
			dryRun = false
		}
		config.DryRun = dryRun
	}

	processConfigDefaults(&config)

	if err := validateSelection(&config); err != nil {
		return Config{}, err
	}

	if err := validateAndEnsureDirectories(&config); err != nil {
		return Config{}, err
	}

	// Keep the database next to the mods for portability.
	config.DatabasePath = filepath.Join(config.ModsDir, "catalog.db")

	return config, nil
}

// processConfigDefaults fills the defaults that do not need disk or
// network access.
func processConfigDefaults(config *Config) {
	if config.MinecraftLoader == "" {
		config.MinecraftLoader = "fabric"
	}
	if config.UserAgent == "" {
		config.UserAgent = "modsync/dev (unknown-user)"
		slog.Warn("USERAGENT not set in config or environment, using default.")
	}
}

// validateSelection canonicalises the selected game version and parses
// the loader name. Both are required for every run.
func validateSelection(config *Config) error {
	if config.MinecraftVersion == "" {
		return &ConfigurationError{Reason: "MINECRAFT_VERSION is required"}
	}
	version, err := mcversion.Canonicalize(config.MinecraftVersion)
	if err != nil {
		return &ConfigurationError{Reason: fmt.Sprintf("MINECRAFT_VERSION: %v", err)}
	}
	config.MinecraftVersion = version

	loader, err := mcversion.ParseLoader(config.MinecraftLoader)
	if err != nil {
		return &ConfigurationError{Reason: fmt.Sprintf("MINECRAFT_LOADER: %v", err)}
	}
	config.Loader = loader
	return nil
}

// validateAndEnsureDirectories checks MODS_DIR and creates it when
// missing.
func validateAndEnsureDirectories(config *Config) error {
	if config.ModsDir == "" {
		slog.Error("MODS_DIR is not set")
		return &ConfigurationError{Reason: "MODS_DIR is required"}
	}

	if _, err := os.Stat(config.ModsDir); os.IsNotExist(err) {
		slog.Info("Mods directory does not exist, creating it", "path", config.ModsDir)
		if err := os.MkdirAll(config.ModsDir, 0755); err != nil {
			return fmt.Errorf("failed to create mods directory %q: %w", config.ModsDir, err)
		}
	} else if err != nil {
		return fmt.Errorf("failed to check mods directory %q: %w", config.ModsDir, err)
	}

	return nil
}

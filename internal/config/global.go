package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	// GlobalConfigDir is the directory name under XDG_CONFIG_HOME.
	GlobalConfigDir = "pubsync"
	// GlobalConfigFile is the config file name.
	GlobalConfigFile = "config.yml"
)

// GlobalConfigPath returns the path to the global config file.
// Respects XDG_CONFIG_HOME, defaults to ~/.config/pubsync/config.yml.
func GlobalConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, GlobalConfigDir, GlobalConfigFile)
}

// Resolve returns the effective configuration. The first source found wins:
// the explicit path, pubsync.yml in cwd or a parent, then the global config.
// Without any file the defaults are used relative to cwd. Environment
// overrides are applied last.
func Resolve(explicit, cwd string) (*Config, error) {
	cfg, err := loadFirst(explicit, cwd)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(cwd, os.LookupEnv)
	return cfg, nil
}

func loadFirst(explicit, cwd string) (*Config, error) {
	if explicit != "" {
		return Load(explicit)
	}

	path, err := Find(cwd)
	if err == nil {
		return Load(path)
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	if global := GlobalConfigPath(); global != "" {
		if _, err := os.Stat(global); err == nil {
			return Load(global)
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("checking global config: %w", err)
		}
	}

	cfg := Default()
	abs, err := filepath.Abs(cwd)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	cfg.ResolvePaths(abs)
	return cfg, nil
}

// HelpfulConfigMessage explains how to create a config file.
func HelpfulConfigMessage() string {
	return fmt.Sprintf(`No profile configured.

Tip: create %s in your website repository:
  profile_id: YOUR_PROFILE_ID
  target_file: src/data/portfolio.ts

or set %s. A global default can live in %s.`,
		ConfigFile, EnvProfileID, GlobalConfigPath())
}

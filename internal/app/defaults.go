package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - CT_CONFIG_PATH: config file location (default: ~/.config/ct.toml)
//   - CT_HOME: base directory for ct data (default: ~/.local/share/ct)
func GetDefaults() (map[string]string, error) {
	home, err := os.UserHomeDir()
	if err != nil && (os.Getenv("CT_CONFIG_PATH") == "" || os.Getenv("CT_HOME") == "") {
		return nil, fmt.Errorf("cannot determine home directory: %w", err)
	}

	configPath := envOr("CT_CONFIG_PATH", filepath.Join(home, ".config", "ct.toml"))
	baseDir := envOr("CT_HOME", filepath.Join(home, ".local", "share", "ct"))

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
		"state_path":  filepath.Join(baseDir, "data", "data.db"),
	}, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

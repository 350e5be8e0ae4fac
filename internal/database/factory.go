package database

import (
	"fmt"

	"ct-go/internal/config"
	"ct-go/internal/ct"
)

// NewStateStoreFromConfig creates a StateStore based on the state config type.
func NewStateStoreFromConfig(cfg config.StateConfig, logger ct.Logger) (ct.StateStore, error) {
	switch cfg.Type {
	case "sqlite", "":
		if cfg.Path == "" {
			return nil, fmt.Errorf("path required for sqlite state")
		}
		return NewSQLiteStateStore(cfg.Path, logger), nil
	case "memory":
		return NewMemoryStateStore(), nil
	default:
		return nil, fmt.Errorf("unknown state type: %s", cfg.Type)
	}
}

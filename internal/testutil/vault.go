package testutil

import (
	"ct-go/internal/ct"
	"ct-go/internal/vault"
)

// NewTestVault creates a new in-memory vault for testing.
func NewTestVault() ct.Vault {
	return vault.NewMemoryVault("test-vault")
}

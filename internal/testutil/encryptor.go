package testutil

import (
	"ct-go/internal/ct"
	"ct-go/internal/encryption"
)

// NewTestEncryptor creates a new test encryptor for testing.
func NewTestEncryptor() ct.Encryptor {
	return encryption.NewTestEncryptor()
}

package app

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"ct-go/internal/config"
	"ct-go/internal/ct"
	"ct-go/internal/database"
	"ct-go/internal/encryption"
	"ct-go/internal/vault"
)

// distribute uploads the saved snapshot to every vault. Failures of one
// vault do not stop the others.
func (a *CTApp) distribute() (int, error) {
	if len(a.vaults) == 0 {
		return 0, nil
	}
	path := a.store.Path()
	if path == "" {
		a.logger.Debug("state store has no snapshot file, skipping vaults")
		return 0, nil
	}

	data, err := a.snapshotBytes(path)
	if err != nil {
		return 0, err
	}

	generation := a.service.State().Generation
	var errs []error
	written := 0
	for _, nv := range a.vaults {
		if err := nv.vault.ValidateSetup(); err != nil {
			errs = append(errs, fmt.Errorf("vault %s: %w", nv.name, err))
			continue
		}
		if err := nv.vault.PutSnapshot(a.cfg.HostID, bytes.NewReader(data), int64(len(data)), generation); err != nil {
			errs = append(errs, fmt.Errorf("uploading to vault %s: %w", nv.name, err))
			continue
		}
		a.logger.Info("snapshot uploaded", "vault", nv.name, "generation", generation, "size", len(data))
		written++
	}
	return written, errors.Join(errs...)
}

// snapshotBytes reads the snapshot file, encrypted when configured.
func (a *CTApp) snapshotBytes(path string) ([]byte, error) {
	plain, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	if !a.cfg.Encryption.Enabled {
		return plain, nil
	}
	if !a.encryptor.IsConfigured() {
		return nil, fmt.Errorf("encryption is enabled but no keys exist: run ct keys init")
	}
	var buf bytes.Buffer
	if err := a.encryptor.Encrypt(bytes.NewReader(plain), &buf); err != nil {
		return nil, fmt.Errorf("encrypting snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// RestoreResult describes a snapshot restored from a vault.
type RestoreResult struct {
	Vault      string
	Generation int64
	Records    int
	Tags       int
	Backup     string // previous snapshot, kept next to the new one; "" if there was none
}

// Restore replaces the local snapshot with the one stored in a vault. An
// empty vaultName picks the first configured vault. passphrase is only
// called when encryption is enabled.
//
// The downloaded snapshot is loaded once before it replaces the local file,
// so a corrupt upload never overwrites working state.
func Restore(cfg *config.Config, vaultName string, passphrase func() (string, error)) (*RestoreResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.State.Type != "" && cfg.State.Type != "sqlite" {
		return nil, fmt.Errorf("restore needs a sqlite state store, not %q", cfg.State.Type)
	}

	vc, err := findVault(cfg.Vaults, vaultName)
	if err != nil {
		return nil, err
	}
	v, err := vault.NewVaultFromConfig(vc)
	if err != nil {
		return nil, fmt.Errorf("creating vault %s: %w", vc.Name, err)
	}

	var raw bytes.Buffer
	if err := v.GetSnapshot(cfg.HostID, &raw); err != nil {
		return nil, fmt.Errorf("downloading snapshot: %w", err)
	}

	data := raw.Bytes()
	if cfg.Encryption.Enabled {
		data, err = decryptSnapshot(cfg.Encryption, raw.Bytes(), passphrase)
		if err != nil {
			return nil, err
		}
	}

	target := cfg.State.Path
	staged := target + ".restore"
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	if err := os.WriteFile(staged, data, 0o644); err != nil {
		return nil, fmt.Errorf("writing snapshot: %w", err)
	}
	defer os.Remove(staged)

	st, err := database.NewSQLiteStateStore(staged, ct.NewNopLogger()).Load()
	if err != nil {
		return nil, fmt.Errorf("restored snapshot is unusable: %w", err)
	}

	res := &RestoreResult{
		Vault:      vc.Name,
		Generation: st.Generation,
		Records:    st.Records.Len(),
		Tags:       st.Tags.Len(),
	}
	if _, err := os.Stat(target); err == nil {
		res.Backup = target + ".bak"
		if err := os.Rename(target, res.Backup); err != nil {
			return nil, fmt.Errorf("keeping previous snapshot: %w", err)
		}
	}
	if err := os.Rename(staged, target); err != nil {
		return nil, fmt.Errorf("installing snapshot: %w", err)
	}
	return res, nil
}

func findVault(vaults []config.VaultConfig, name string) (config.VaultConfig, error) {
	if len(vaults) == 0 {
		return config.VaultConfig{}, fmt.Errorf("no vaults configured")
	}
	if name == "" {
		return vaults[0], nil
	}
	for _, vc := range vaults {
		if vc.Name == name {
			return vc, nil
		}
	}
	return config.VaultConfig{}, fmt.Errorf("unknown vault: %s", name)
}

func decryptSnapshot(cfg config.EncryptionConfig, data []byte, passphrase func() (string, error)) ([]byte, error) {
	enc, err := encryption.NewEncryptorFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}
	pass, err := passphrase()
	if err != nil {
		return nil, err
	}
	dec, err := enc.Unlock(pass)
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := dec.Decrypt(bytes.NewReader(data), &out); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// SetupKeys creates the snapshot encryption key pair and returns the public
// key when the encryptor exposes one.
func SetupKeys(cfg config.EncryptionConfig, passphrase string) (string, error) {
	enc, err := encryption.NewEncryptorFromConfig(cfg)
	if err != nil {
		return "", fmt.Errorf("creating encryptor: %w", err)
	}
	if err := enc.Setup(passphrase); err != nil {
		return "", err
	}
	if age, ok := enc.(*encryption.AgeEncryptor); ok {
		return age.PublicKey()
	}
	return "", nil
}

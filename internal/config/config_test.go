package config

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestManager_ReadWrite_RoundTrip(t *testing.T) {
	original := &Config{
		HostID:  "test-host-abc",
		BaseDir: "/home/user/.local/share/ct",
		LogDir:  "/home/user/.local/share/ct/log",
		State:   StateConfig{Type: "sqlite", Path: "/home/user/.local/share/ct/data/data.db"},
		Scan:    ScanConfig{Extensions: []string{".jpg", ".png"}, ReadExif: true},
		Filesystem: FilesystemConfig{
			Ignore: []string{"*.xmp", "thumbs/"},
		},
		Vaults: []VaultConfig{
			{Type: "filesystem", Name: "usb", FSVaultRoot: "/media/usb/ct"},
			{Type: "s3", Name: "cloud", S3Bucket: "photos", S3Region: "eu-west-1", S3Endpoint: "http://localhost:9000"},
		},
		Encryption: EncryptionConfig{
			Type:           "age",
			Enabled:        true,
			PublicKeyPath:  "/home/user/.local/share/ct/keys/ct.pub",
			PrivateKeyPath: "/home/user/.local/share/ct/keys/ct.key",
		},
	}

	var buf bytes.Buffer
	m := &Manager{}

	if err := m.Write(&buf, original); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if !reflect.DeepEqual(got, original) {
		t.Errorf("round trip mismatch:\n got  %+v\n want %+v", got, original)
	}
}

func TestManager_Read_Partial(t *testing.T) {
	input := `
host_id = "h1"
base_dir = "/data/ct"

[scan]
extensions = [".jpg"]

[[vaults]]
type = "memory"
name = "mem"
`
	got, err := (&Manager{}).Read(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got.HostID != "h1" || len(got.Vaults) != 1 || got.Vaults[0].Type != "memory" {
		t.Errorf("Read() = %+v", got)
	}
	if got.Scan.ReadExif {
		t.Error("Scan.ReadExif defaulted to true for a partial config")
	}

	if _, err := (&Manager{}).Read(strings.NewReader("host_id = ")); err == nil {
		t.Error("Read() expected error for malformed TOML")
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("host-1", "/data/ct")

	if cfg.HostID != "host-1" {
		t.Errorf("HostID = %q, want %q", cfg.HostID, "host-1")
	}
	if cfg.LogDir != "/data/ct/log" {
		t.Errorf("LogDir = %q, want %q", cfg.LogDir, "/data/ct/log")
	}
	if cfg.State.Path != "/data/ct/data/data.db" || cfg.State.Type != "sqlite" {
		t.Errorf("State = %+v", cfg.State)
	}
	if !reflect.DeepEqual(cfg.Scan.Extensions, []string{".jpg", ".jpeg", ".png", ".bmp", ".tif"}) {
		t.Errorf("Scan.Extensions = %v", cfg.Scan.Extensions)
	}
	if cfg.Encryption.PublicKeyPath != "/data/ct/keys/ct.pub" {
		t.Errorf("Encryption.PublicKeyPath = %q, want %q", cfg.Encryption.PublicKeyPath, "/data/ct/keys/ct.pub")
	}
	if cfg.Encryption.Enabled {
		t.Error("Encryption.Enabled = true, want off until keys exist")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"missing host id", func(c *Config) { c.HostID = "" }, "host_id"},
		{"missing base dir", func(c *Config) { c.BaseDir = "" }, "base_dir"},
		{"unnamed vault", func(c *Config) { c.Vaults = []VaultConfig{{Type: "memory"}} }, "no name"},
		{"duplicate vault", func(c *Config) {
			c.Vaults = []VaultConfig{{Type: "memory", Name: "a"}, {Type: "memory", Name: "a"}}
		}, "duplicate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig("h", "/data/ct")
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestInit(t *testing.T) {
	t.Run("creates config file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "nested", "ct.toml")

		if err := Init(path, NewConfig("h1", dir)); err != nil {
			t.Fatalf("Init() error = %v", err)
		}
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("config file not created: %v", err)
		}
		if info.Mode().Perm() != 0o600 {
			t.Errorf("config mode = %v, want 0600", info.Mode().Perm())
		}
	})

	t.Run("fails if file already exists", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "ct.toml")
		cfg := NewConfig("h1", dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("first Init() error = %v", err)
		}
		if err := Init(path, cfg); err == nil {
			t.Fatal("second Init() expected error")
		}
	})
}

func TestReadFromFile(t *testing.T) {
	t.Run("reads valid config", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "ct.toml")
		cfg := NewConfig("read-test", dir)
		cfg.State = StateConfig{Type: "memory"}

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		got, err := ReadFromFile(path)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if got.HostID != "read-test" || got.State.Type != "memory" {
			t.Errorf("ReadFromFile() = %+v", got)
		}
	})

	t.Run("returns error for missing file", func(t *testing.T) {
		if _, err := ReadFromFile(filepath.Join(t.TempDir(), "ct.toml")); err == nil {
			t.Fatal("ReadFromFile() expected error for missing file")
		}
	})
}

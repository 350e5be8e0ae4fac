package app

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ct-go/internal/config"
	"ct-go/internal/ct"
	"ct-go/internal/testutil"
	"ct-go/internal/vault"
)

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	base := t.TempDir()
	cfg := config.NewConfig("test-host", base)
	cfg.Scan.ReadExif = false
	cfg.Encryption.Type = "test"
	cfg.Vaults = []config.VaultConfig{
		{Type: "filesystem", Name: "usb", FSVaultRoot: filepath.Join(base, "vault")},
	}
	return cfg
}

func newPhotoDir(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(dir, n), []byte("img"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func newTestApp(t *testing.T, cfg *config.Config, p ct.Prompter) *CTApp {
	t.Helper()
	if p == nil {
		p = testutil.NewScriptedPrompter()
	}
	a, err := NewCTApp(cfg, NewOperation("test", nil, time.Now()), Options{Prompter: p, Stderr: &bytes.Buffer{}})
	if err != nil {
		t.Fatalf("NewCTApp() error = %v", err)
	}
	return a
}

func TestCTApp_ChangesSurviveRestart(t *testing.T) {
	cfg := newTestConfig(t)
	photos := newPhotoDir(t, "a.jpg", "b.png", "notes.txt")

	a := newTestApp(t, cfg, nil)
	n, err := a.Open(photos)
	if err != nil || n != 2 {
		t.Fatalf("Open() = %d, %v; want 2 images", n, err)
	}
	rec, err := a.Service().FindImage("a.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Service().CommitRename(rec, []string{"sea"}); err != nil {
		t.Fatalf("CommitRename() error = %v", err)
	}
	if err := a.Close(nil); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if _, err := os.Stat(filepath.Join(photos, "@sea a.jpg")); err != nil {
		t.Errorf("renamed file missing: %v", err)
	}
	if _, err := os.Stat(cfg.State.Path); err != nil {
		t.Fatalf("snapshot not saved: %v", err)
	}

	b := newTestApp(t, cfg, nil)
	defer b.Close(nil)

	got, err := b.Service().FindImage("@sea a.jpg")
	if err != nil {
		t.Fatalf("FindImage() after restart error = %v", err)
	}
	if len(got.Tags) != 1 || got.Tags[0] != "sea" {
		t.Errorf("Tags = %v, want [sea]", got.Tags)
	}
	if dir, ok := b.Service().LastDirectory(); !ok || dir != photos {
		t.Errorf("LastDirectory() = %q, %v; want %q", dir, ok, photos)
	}
	if len(got.Revisions) != 1 || got.Revisions[0].OldName != "a.jpg" {
		t.Errorf("Revisions = %+v", got.Revisions)
	}
}

func TestCTApp_CloseUploadsSnapshot(t *testing.T) {
	cfg := newTestConfig(t)
	photos := newPhotoDir(t, "a.jpg")

	a := newTestApp(t, cfg, nil)
	if _, err := a.Open(photos); err != nil {
		t.Fatal(err)
	}
	if err := a.Close(nil); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	v, err := vault.NewFileSystemVault("usb", cfg.Vaults[0].FSVaultRoot)
	if err != nil {
		t.Fatal(err)
	}
	if gen, err := v.SnapshotGeneration("test-host"); err != nil || gen != 1 {
		t.Errorf("vault generation = %d, %v; want 1", gen, err)
	}

	var local bytes.Buffer
	if err := v.GetSnapshot("test-host", &local); err != nil {
		t.Fatal(err)
	}
	disk, _ := os.ReadFile(cfg.State.Path)
	if !bytes.Equal(local.Bytes(), disk) {
		t.Error("vault snapshot differs from the local snapshot")
	}
}

func TestCTApp_CloseWithoutChanges(t *testing.T) {
	cfg := newTestConfig(t)

	a := newTestApp(t, cfg, nil)
	if err := a.Close(nil); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := os.Stat(cfg.State.Path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("snapshot written for a read-only run: %v", err)
	}
	if a.op.Status != "success" {
		t.Errorf("op.Status = %q, want success", a.op.Status)
	}
}

func TestCTApp_CloseRecordsCommandError(t *testing.T) {
	a := newTestApp(t, newTestConfig(t), nil)
	if err := a.Close(errors.New("tag not found")); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if a.op.Status != "error" {
		t.Errorf("op.Status = %q, want error", a.op.Status)
	}
}

func TestNewCTApp_CorruptSnapshot(t *testing.T) {
	cfg := newTestConfig(t)
	if err := os.MkdirAll(filepath.Dir(cfg.State.Path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(cfg.State.Path, []byte("not a database"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := NewCTApp(cfg, NewOperation("open", nil, time.Now()), Options{Prompter: testutil.NewScriptedPrompter(), Stderr: &bytes.Buffer{}})
	if !errors.Is(err, ct.ErrCorruptState) {
		t.Fatalf("NewCTApp() error = %v, want ErrCorruptState", err)
	}
	if _, err := os.Stat(cfg.State.Path); !errors.Is(err, os.ErrNotExist) {
		t.Error("corrupt snapshot was not removed")
	}

	// The next run starts empty.
	a := newTestApp(t, cfg, nil)
	defer a.Close(nil)
	if n := a.Service().State().Records.Len(); n != 0 {
		t.Errorf("records after reset = %d, want 0", n)
	}
}

func TestNewCTApp_BehindVault(t *testing.T) {
	cfg := newTestConfig(t)
	v, err := vault.NewFileSystemVault("usb", cfg.Vaults[0].FSVaultRoot)
	if err != nil {
		t.Fatal(err)
	}
	if err := v.PutSnapshot("test-host", strings.NewReader("x"), 1, 5); err != nil {
		t.Fatal(err)
	}

	_, err = NewCTApp(cfg, NewOperation("open", nil, time.Now()), Options{Prompter: testutil.NewScriptedPrompter(), Stderr: &bytes.Buffer{}})
	if !errors.Is(err, ErrBehindVault) {
		t.Errorf("NewCTApp() error = %v, want ErrBehindVault", err)
	}
}

func TestNewCTApp_InvalidConfig(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.HostID = ""
	if _, err := NewCTApp(cfg, NewOperation("open", nil, time.Now()), Options{}); err == nil {
		t.Error("NewCTApp() expected error for missing host_id")
	}
}

func TestCTApp_Open(t *testing.T) {
	photos := newPhotoDir(t, "a.jpg")

	t.Run("asks for a directory", func(t *testing.T) {
		p := testutil.NewScriptedPrompter()
		p.Directory = photos
		a := newTestApp(t, newTestConfig(t), p)
		defer a.Close(nil)

		if n, err := a.Open(""); err != nil || n != 1 {
			t.Errorf("Open(\"\") = %d, %v; want 1", n, err)
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		a := newTestApp(t, newTestConfig(t), nil)
		defer a.Close(nil)

		if _, err := a.Open(""); !errors.Is(err, ct.ErrCancelled) {
			t.Errorf("Open(\"\") error = %v, want ErrCancelled", err)
		}
	})
}

func TestCTApp_Resume(t *testing.T) {
	cfg := newTestConfig(t)
	photos := newPhotoDir(t, "a.jpg", "b.jpg")

	a := newTestApp(t, cfg, nil)
	if _, _, err := a.Resume(); !errors.Is(err, ErrNoDirectory) {
		t.Errorf("Resume() error = %v, want ErrNoDirectory", err)
	}
	if _, err := a.Open(photos); err != nil {
		t.Fatal(err)
	}
	if err := a.Close(nil); err != nil {
		t.Fatal(err)
	}

	b := newTestApp(t, cfg, nil)
	defer b.Close(nil)
	dir, n, err := b.Resume()
	if err != nil || dir != photos || n != 2 {
		t.Errorf("Resume() = %q, %d, %v; want %q, 2", dir, n, err, photos)
	}
	if got := len(b.Service().SessionRecords()); got != 2 {
		t.Errorf("SessionRecords() = %d, want 2", got)
	}
}

func TestCTApp_Image(t *testing.T) {
	cfg := newTestConfig(t)
	photos := newPhotoDir(t, "@sea a.jpg")

	a := newTestApp(t, cfg, nil)
	if _, err := a.Open(photos); err != nil {
		t.Fatal(err)
	}
	a.Close(nil)

	b := newTestApp(t, cfg, nil)
	defer b.Close(nil)
	rec, err := b.Image("@sea a.jpg")
	if err != nil {
		t.Fatalf("Image() error = %v", err)
	}
	if !b.Service().Session().Contains(rec.ID) {
		t.Error("Image() did not resume the session")
	}
	if _, err := b.Image("missing.jpg"); !errors.Is(err, ct.ErrImageNotFound) {
		t.Errorf("Image(missing) error = %v, want ErrImageNotFound", err)
	}
}

func TestCTApp_Backup(t *testing.T) {
	t.Run("uploads even without changes", func(t *testing.T) {
		cfg := newTestConfig(t)
		a := newTestApp(t, cfg, nil)
		defer a.Close(nil)

		n, err := a.Backup()
		if err != nil || n != 1 {
			t.Fatalf("Backup() = %d, %v; want 1", n, err)
		}
		v, _ := vault.NewFileSystemVault("usb", cfg.Vaults[0].FSVaultRoot)
		if gen, _ := v.SnapshotGeneration("test-host"); gen != 1 {
			t.Errorf("vault generation = %d, want 1", gen)
		}
	})

	t.Run("no vaults", func(t *testing.T) {
		cfg := newTestConfig(t)
		cfg.Vaults = nil
		a := newTestApp(t, cfg, nil)
		defer a.Close(nil)

		if _, err := a.Backup(); err == nil {
			t.Error("Backup() expected error without vaults")
		}
	})

	t.Run("encryption enabled", func(t *testing.T) {
		cfg := newTestConfig(t)
		cfg.Encryption.Enabled = true
		a := newTestApp(t, cfg, nil)
		defer a.Close(nil)

		if _, err := a.Backup(); err != nil {
			t.Fatalf("Backup() error = %v", err)
		}
		v, _ := vault.NewFileSystemVault("usb", cfg.Vaults[0].FSVaultRoot)
		var stored bytes.Buffer
		if err := v.GetSnapshot("test-host", &stored); err != nil {
			t.Fatal(err)
		}
		if !bytes.HasPrefix(stored.Bytes(), []byte("CTSNAP-T")) {
			t.Error("uploaded snapshot is not encrypted")
		}
	})
}

func TestRestore(t *testing.T) {
	for _, encrypted := range []bool{false, true} {
		name := "plain"
		if encrypted {
			name = "encrypted"
		}
		t.Run(name, func(t *testing.T) {
			cfg := newTestConfig(t)
			cfg.Encryption.Enabled = encrypted
			photos := newPhotoDir(t, "a.jpg", "@sea b.jpg")

			a := newTestApp(t, cfg, nil)
			if _, err := a.Open(photos); err != nil {
				t.Fatal(err)
			}
			if err := a.Close(nil); err != nil {
				t.Fatal(err)
			}
			if err := os.Remove(cfg.State.Path); err != nil {
				t.Fatal(err)
			}

			asked := false
			res, err := Restore(cfg, "usb", func() (string, error) {
				asked = true
				return "", nil
			})
			if err != nil {
				t.Fatalf("Restore() error = %v", err)
			}
			if asked != encrypted {
				t.Errorf("passphrase asked = %v, want %v", asked, encrypted)
			}
			if res.Records != 2 || res.Tags != 1 || res.Generation != 1 || res.Backup != "" {
				t.Errorf("Restore() = %+v", res)
			}

			b := newTestApp(t, cfg, nil)
			defer b.Close(nil)
			if _, err := b.Service().FindImage("@sea b.jpg"); err != nil {
				t.Errorf("FindImage() after restore error = %v", err)
			}
		})
	}
}

func TestRestore_KeepsPreviousSnapshot(t *testing.T) {
	cfg := newTestConfig(t)
	a := newTestApp(t, cfg, nil)
	if _, err := a.Backup(); err != nil {
		t.Fatal(err)
	}
	a.Close(nil)

	res, err := Restore(cfg, "", nil)
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if res.Backup != cfg.State.Path+".bak" {
		t.Errorf("Backup = %q", res.Backup)
	}
	for _, p := range []string{cfg.State.Path, res.Backup} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("%s missing: %v", p, err)
		}
	}
}

func TestRestore_Failures(t *testing.T) {
	t.Run("unknown vault", func(t *testing.T) {
		if _, err := Restore(newTestConfig(t), "cloud", nil); err == nil {
			t.Error("Restore() expected error for unknown vault")
		}
	})

	t.Run("nothing stored", func(t *testing.T) {
		if _, err := Restore(newTestConfig(t), "", nil); !errors.Is(err, vault.ErrSnapshotNotFound) {
			t.Errorf("Restore() error = %v, want ErrSnapshotNotFound", err)
		}
	})

	t.Run("garbage in vault leaves local state alone", func(t *testing.T) {
		cfg := newTestConfig(t)
		v, _ := vault.NewFileSystemVault("usb", cfg.Vaults[0].FSVaultRoot)
		if err := v.PutSnapshot("test-host", strings.NewReader("junk"), 4, 3); err != nil {
			t.Fatal(err)
		}
		if _, err := Restore(cfg, "", nil); err == nil {
			t.Fatal("Restore() expected error for garbage snapshot")
		}
		if _, err := os.Stat(cfg.State.Path + ".restore"); !errors.Is(err, os.ErrNotExist) {
			t.Error("staged snapshot left behind")
		}
	})
}

func TestSetupKeys(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Encryption.Type = "age"

	pub, err := SetupKeys(cfg.Encryption, "passphrase")
	if err != nil {
		t.Fatalf("SetupKeys() error = %v", err)
	}
	if !strings.HasPrefix(pub, "age1") {
		t.Errorf("public key = %q", pub)
	}
	if _, err := SetupKeys(cfg.Encryption, "again"); err == nil {
		t.Error("second SetupKeys() expected error")
	}
}

func TestCTApp_Move(t *testing.T) {
	photos := newPhotoDir(t, "a.jpg")
	dest := t.TempDir()

	t.Run("to the chosen directory", func(t *testing.T) {
		p := testutil.NewScriptedPrompter()
		p.Directory = dest
		a := newTestApp(t, newTestConfig(t), p)
		defer a.Close(nil)

		if _, err := a.Open(photos); err != nil {
			t.Fatal(err)
		}
		rec, err := a.Image("a.jpg")
		if err != nil {
			t.Fatal(err)
		}
		if err := a.Move(rec, ""); err != nil {
			t.Fatalf("Move() error = %v", err)
		}
		if rec.Dir != dest {
			t.Errorf("Dir = %q, want %q", rec.Dir, dest)
		}
		if _, err := os.Stat(filepath.Join(dest, "a.jpg")); err != nil {
			t.Errorf("moved file missing: %v", err)
		}
	})

	t.Run("no directory chosen", func(t *testing.T) {
		a := newTestApp(t, newTestConfig(t), nil)
		defer a.Close(nil)

		if err := a.Move(&ct.ImageRecord{}, ""); !errors.Is(err, ct.ErrCancelled) {
			t.Errorf("Move() error = %v, want ErrCancelled", err)
		}
	})
}

func TestCTApp_DistributeContinuesPastFailingVault(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Encryption.Enabled = true
	a := newTestApp(t, cfg, nil)
	defer a.Close(nil)

	mem := testutil.NewTestVault()
	a.vaults = []namedVault{
		{name: "broken", vault: brokenVault{vault.NewMemoryVault("broken")}},
		{name: "mem", vault: mem},
	}
	a.encryptor = testutil.NewTestEncryptor()

	n, err := a.Backup()
	if err == nil || !strings.Contains(err.Error(), "vault broken") {
		t.Errorf("Backup() error = %v, want failure naming the broken vault", err)
	}
	if n != 1 {
		t.Errorf("Backup() wrote %d vaults, want 1", n)
	}
	if gen, _ := mem.SnapshotGeneration("test-host"); gen != 1 {
		t.Errorf("memory vault generation = %d, want 1", gen)
	}
}

// brokenVault fails its setup check.
type brokenVault struct{ ct.Vault }

func (brokenVault) ValidateSetup() error { return errors.New("unreachable") }

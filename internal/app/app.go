package app

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"ct-go/internal/config"
	"ct-go/internal/ct"
	"ct-go/internal/database"
	"ct-go/internal/encryption"
	"ct-go/internal/fs"
	"ct-go/internal/vault"
)

// ErrBehindVault is returned when a vault holds a newer snapshot than the
// local one. The user should restore before making further changes.
var ErrBehindVault = errors.New("local state is behind vault")

// ErrNoDirectory is returned by Resume when no directory was ever opened.
var ErrNoDirectory = errors.New("no directory opened yet")

// Options carries the collaborator and console settings for NewCTApp.
type Options struct {
	Prompter ct.Prompter
	Stderr   io.Writer // defaults to os.Stderr
	Verbose  bool
}

// CTApp is the application layer between the CLI and CTService. It builds
// every dependency from config, loads the state snapshot, and saves and
// distributes it again on Close.
type CTApp struct {
	cfg       *config.Config
	store     ct.StateStore
	fsmgr     ct.FilesystemManager
	vaults    []namedVault
	encryptor ct.Encryptor
	service   *ct.CTService
	prompter  ct.Prompter
	op        *Operation
	logger    ct.Logger
	logFile   *os.File
}

type namedVault struct {
	name  string
	vault ct.Vault
}

// NewCTApp creates a fully wired CTApp. The caller must call Close when done.
//
// A snapshot that cannot be restored is deleted and ErrCorruptState returned;
// the next run starts from an empty state.
func NewCTApp(cfg *config.Config, op *Operation, opts Options) (*CTApp, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	l, logFile, err := newLogger(cfg.LogDir, op.ID, opts.Stderr, opts.Verbose)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: l}
	fail := func(err error) (*CTApp, error) {
		logger.Error("startup failed", "operation", op.String(), "error", err)
		logFile.Close()
		return nil, err
	}

	store, err := database.NewStateStoreFromConfig(cfg.State, logger)
	if err != nil {
		return fail(fmt.Errorf("creating state store: %w", err))
	}
	st, err := store.Load()
	if errors.Is(err, ct.ErrCorruptState) {
		if p := store.Path(); p != "" {
			if rmErr := os.Remove(p); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				logger.Error("removing corrupt snapshot", "path", p, "error", rmErr)
			} else {
				logger.Warn("removed corrupt snapshot", "path", p)
			}
		}
		return fail(err)
	}
	if err != nil {
		return fail(fmt.Errorf("loading state: %w", err))
	}

	vaults, err := openVaults(cfg.Vaults)
	if err != nil {
		return fail(err)
	}
	for _, nv := range vaults {
		remote, err := nv.vault.SnapshotGeneration(cfg.HostID)
		if err != nil {
			logger.Warn("cannot read vault generation", "vault", nv.name, "error", err)
			continue
		}
		if remote > st.Generation {
			return fail(fmt.Errorf("%w %s (local=%d, remote=%d): run ct restore", ErrBehindVault, nv.name, st.Generation, remote))
		}
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return fail(fmt.Errorf("creating encryptor: %w", err))
	}

	fsmgr := fs.NewOSFilesystemManager(cfg.Filesystem.Ignore, cfg.Scan.ReadExif, logger)
	svc := ct.NewCTService(st, fsmgr, opts.Prompter, logger, ct.RealClock{}, ct.UUIDGenerator{})
	if len(cfg.Scan.Extensions) > 0 {
		svc.SetExtensions(cfg.Scan.Extensions)
	}

	logger.Info("operation started", "operation", op.String(), "generation", st.Generation)
	return &CTApp{
		cfg:       cfg,
		store:     store,
		fsmgr:     fsmgr,
		vaults:    vaults,
		encryptor: enc,
		service:   svc,
		prompter:  opts.Prompter,
		op:        op,
		logger:    logger,
		logFile:   logFile,
	}, nil
}

func openVaults(cfgs []config.VaultConfig) ([]namedVault, error) {
	vaults := make([]namedVault, 0, len(cfgs))
	for _, vc := range cfgs {
		v, err := vault.NewVaultFromConfig(vc)
		if err != nil {
			return nil, fmt.Errorf("creating vault %s: %w", vc.Name, err)
		}
		vaults = append(vaults, namedVault{name: vc.Name, vault: v})
	}
	return vaults, nil
}

// Service exposes the core service to the CLI.
func (a *CTApp) Service() *ct.CTService { return a.service }

// Open scans dir into a fresh session. With an empty dir the prompter is
// asked to choose one.
func (a *CTApp) Open(dir string) (int, error) {
	if dir == "" {
		chosen, ok := a.prompter.ChooseDirectory()
		if !ok {
			return 0, ct.ErrCancelled
		}
		dir = chosen
	}
	return a.service.ScanAndIndex(dir)
}

// Resume rescans the most recently opened directory. Session indices live
// only for one process, so commands that work on "the current images" call
// this first.
func (a *CTApp) Resume() (string, int, error) {
	dir, ok := a.service.LastDirectory()
	if !ok {
		return "", 0, fmt.Errorf("%w: run ct open DIR", ErrNoDirectory)
	}
	n, err := a.service.ScanAndIndex(dir)
	return dir, n, err
}

// Move moves rec into dest. With an empty dest the prompter is asked to
// choose one.
func (a *CTApp) Move(rec *ct.ImageRecord, dest string) error {
	if dest == "" {
		chosen, ok := a.prompter.ChooseDirectory()
		if !ok {
			return ct.ErrCancelled
		}
		dest = chosen
	}
	abs, err := filepath.Abs(dest)
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}
	return a.service.MoveRecord(rec, abs)
}

// Image resumes the session and finds an image by name or path.
func (a *CTApp) Image(nameOrPath string) (*ct.ImageRecord, error) {
	if _, ok := a.service.LastDirectory(); ok {
		if _, _, err := a.Resume(); err != nil {
			a.logger.Warn("resuming session", "error", err)
		}
	}
	return a.service.FindImage(nameOrPath)
}

// Backup saves the state and uploads it to every vault, whether or not
// anything changed. Returns the number of vaults written.
func (a *CTApp) Backup() (int, error) {
	if len(a.vaults) == 0 {
		return 0, fmt.Errorf("no vaults configured")
	}
	if err := a.store.Save(a.service.State()); err != nil {
		return 0, fmt.Errorf("saving state: %w", err)
	}
	return a.distribute()
}

// Close saves the state when the operation changed it, uploads the new
// snapshot to the vaults and closes the log. cmdErr is the command's own
// result, recorded in the log.
func (a *CTApp) Close(cmdErr error) error {
	var errs []error

	if a.service.Modified() {
		if err := a.store.Save(a.service.State()); err != nil {
			errs = append(errs, fmt.Errorf("saving state: %w", err))
		} else if _, err := a.distribute(); err != nil {
			errs = append(errs, err)
		}
	}

	a.op.Finish(errors.Join(append(errs, cmdErr)...))
	a.logger.Info("operation finished", "operation", a.op.String(), "status", a.op.Status,
		"generation", a.service.State().Generation)

	if a.logFile != nil {
		a.logFile.Close()
	}
	return errors.Join(errs...)
}

package ct

import (
	"fmt"
	"path/filepath"
)

// CTService is the orchestration layer. It owns the durable state and the
// session index, and is the only thing that mutates them. All operations are
// synchronous and expect a single caller.
type CTService struct {
	state       *State
	session     *ImageIndex
	sessionRoot string
	fsmgr       FilesystemManager
	prompter    Prompter
	logger      Logger
	clock       Clock
	idgen       IDGenerator
	extensions  []string
	modified    bool
}

// NewCTService creates a CTService over a loaded state with the provided dependencies.
func NewCTService(state *State, fsmgr FilesystemManager, prompter Prompter, logger Logger, clock Clock, idgen IDGenerator) *CTService {
	return &CTService{
		state:      state,
		session:    NewImageIndex(state.Records),
		fsmgr:      fsmgr,
		prompter:   prompter,
		logger:     logger,
		clock:      clock,
		idgen:      idgen,
		extensions: AcceptedExtensions,
	}
}

// SetExtensions overrides the extensions picked up by ScanAndIndex.
func (s *CTService) SetExtensions(exts []string) {
	if len(exts) > 0 {
		s.extensions = exts
	}
}

// State returns the durable state.
func (s *CTService) State() *State { return s.state }

// Session returns the index of the currently opened directory.
func (s *CTService) Session() *ImageIndex { return s.session }

// SessionRoot returns the directory last opened with ScanAndIndex.
func (s *CTService) SessionRoot() string { return s.sessionRoot }

// Modified reports whether durable state changed since the service was created.
func (s *CTService) Modified() bool { return s.modified }

// SessionRecords returns the records of the opened directory, ordered by key.
func (s *CTService) SessionRecords() []*ImageRecord { return s.session.Records() }

// FindImage resolves an image by session name, durable name, or file path.
func (s *CTService) FindImage(nameOrPath string) (*ImageRecord, error) {
	if rec := s.session.LookupByName(nameOrPath); rec != nil {
		return rec, nil
	}
	if rec := s.state.Durable.LookupByName(nameOrPath); rec != nil {
		return rec, nil
	}
	if abs, err := filepath.Abs(nameOrPath); err == nil {
		if rec := s.state.Durable.LookupByFile(abs); rec != nil {
			return rec, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrImageNotFound, nameOrPath)
}

// PreviousDirectories returns opened directories, oldest first.
func (s *CTService) PreviousDirectories() []string {
	return s.state.Durable.Visited()
}

// LastDirectory returns the most recently opened directory.
func (s *CTService) LastDirectory() (string, bool) {
	return s.state.Durable.LastVisited()
}

// newRecord creates and registers a record for a newly discovered file,
// linking the tags its name carries.
func (s *CTService) newRecord(path string) *ImageRecord {
	rec := NewImageRecord(s.idgen.New(), path)
	if t, ok := s.fsmgr.CaptureTime(path); ok {
		rec.TakenAt = t
	}
	s.state.Records.Put(rec)

	tags, _ := Decode(rec.CurrentName)
	s.setRecordTags(rec, tags)

	s.state.Durable.AddOrRekey(rec)
	s.modified = true
	s.logger.Debug("image discovered", "path", path, "tags", len(rec.Tags))
	return rec
}

package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"ct-go/internal/ct"
	"ct-go/internal/database/migrations"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStateStore keeps the durable state as a single SQLite file.
// Every Save writes a complete new database next to the target and renames
// it into place, so a crash never leaves a half-written snapshot behind.
type SQLiteStateStore struct {
	path   string
	logger ct.Logger
}

// NewSQLiteStateStore creates a store for the snapshot at path.
// A nil logger is replaced with a NopLogger.
func NewSQLiteStateStore(path string, logger ct.Logger) *SQLiteStateStore {
	if logger == nil {
		logger = ct.NewNopLogger()
	}
	return &SQLiteStateStore{path: path, logger: logger}
}

// OpenConnection opens and configures a SQLite database connection with appropriate PRAGMAs.
// path can be a file path or ":memory:" for in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Enable foreign key constraints (SQLite default is OFF for backward compatibility)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	return db, nil
}

func (s *SQLiteStateStore) Path() string { return s.path }

// Load restores the snapshot. A missing file yields an empty state; a file
// that cannot be read back completely yields ct.ErrCorruptState.
func (s *SQLiteStateStore) Load() (*ct.State, error) {
	if _, err := os.Stat(s.path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.logger.Debug("no snapshot found, starting empty", "path", s.path)
			return ct.NewState(), nil
		}
		return nil, fmt.Errorf("checking snapshot: %w", err)
	}

	db, err := OpenConnection(s.path)
	if err != nil {
		return nil, corrupt(err)
	}
	defer db.Close()

	if err := migrations.CheckSchema(db); err != nil {
		return nil, corrupt(err)
	}

	st, err := readState(context.Background(), db)
	if err != nil {
		return nil, corrupt(err)
	}
	s.logger.Debug("snapshot loaded", "path", s.path, "records", st.Records.Len(), "tags", st.Tags.Len(), "generation", st.Generation)
	return st, nil
}

// Save writes a full snapshot of st and advances st.Generation.
func (s *SQLiteStateStore) Save(st *ct.State) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.Remove(tmp); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing stale temp snapshot: %w", err)
	}

	generation := st.Generation + 1
	if err := writeSnapshot(tmp, st, generation); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing snapshot: %w", err)
	}

	st.Generation = generation
	s.logger.Debug("snapshot saved", "path", s.path, "generation", generation)
	return nil
}

func corrupt(err error) error {
	return fmt.Errorf("%w: %v", ct.ErrCorruptState, err)
}

func writeSnapshot(path string, st *ct.State, generation int64) error {
	db, err := OpenConnection(path)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := migrations.MigrateUp(db); err != nil {
		return fmt.Errorf("creating snapshot schema: %w", err)
	}

	ctx := context.Background()
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := writeState(ctx, tx, st, generation); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing snapshot: %w", err)
	}
	return nil
}

func writeState(ctx context.Context, tx *sql.Tx, st *ct.State, generation int64) error {
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO state_meta (key, value) VALUES ('generation', ?)",
		strconv.FormatInt(generation, 10)); err != nil {
		return fmt.Errorf("writing generation: %w", err)
	}

	for i, tag := range st.Tags.List() {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO tags (name, position) VALUES (?, ?)", tag.Name, i); err != nil {
			return fmt.Errorf("writing tag %s: %w", tag.Name, err)
		}
	}

	for _, rec := range st.Records.All() {
		if err := writeRecord(ctx, tx, st, rec); err != nil {
			return fmt.Errorf("writing record %s: %w", rec.ID, err)
		}
	}

	for i, dir := range st.Durable.Visited() {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO visited_dirs (position, path) VALUES (?, ?)", i, dir); err != nil {
			return fmt.Errorf("writing visited directory %s: %w", dir, err)
		}
	}
	return nil
}

func writeRecord(ctx context.Context, tx *sql.Tx, st *ct.State, rec *ct.ImageRecord) error {
	var indexKey sql.NullString
	if key, ok := st.Durable.KeyOf(rec.ID); ok {
		indexKey = sql.NullString{String: key, Valid: true}
	}
	var takenAt sql.NullString
	if !rec.TakenAt.IsZero() {
		takenAt = sql.NullString{String: rec.TakenAt.UTC().Format(time.RFC3339Nano), Valid: true}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO records (id, original_name, current_name, dir, index_key, taken_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.OriginalName, rec.CurrentName, rec.Dir, indexKey, takenAt); err != nil {
		return err
	}

	for i, tag := range rec.Tags {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO record_tags (record_id, tag_name, position) VALUES (?, ?, ?)",
			rec.ID, tag, i); err != nil {
			return fmt.Errorf("tag %s: %w", tag, err)
		}
	}

	for i, tags := range rec.TagHistory {
		if tags == nil {
			tags = []string{}
		}
		encoded, err := json.Marshal(tags)
		if err != nil {
			return fmt.Errorf("encoding tag history: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO tag_history (record_id, seq, tags) VALUES (?, ?, ?)",
			rec.ID, i, string(encoded)); err != nil {
			return fmt.Errorf("tag history: %w", err)
		}
	}

	for i, e := range rec.Revisions {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO revisions (record_id, seq, current_name, old_name, timestamp)
			 VALUES (?, ?, ?, ?, ?)`,
			rec.ID, i, e.CurrentName, e.OldName, e.Timestamp); err != nil {
			return fmt.Errorf("revision: %w", err)
		}
	}
	return nil
}

func readState(ctx context.Context, db *sql.DB) (*ct.State, error) {
	st := ct.NewState()

	var gen string
	err := db.QueryRowContext(ctx, "SELECT value FROM state_meta WHERE key = 'generation'").Scan(&gen)
	if err != nil {
		return nil, fmt.Errorf("reading generation: %w", err)
	}
	if st.Generation, err = strconv.ParseInt(gen, 10, 64); err != nil {
		return nil, fmt.Errorf("parsing generation: %w", err)
	}

	if err := readTags(ctx, db, st); err != nil {
		return nil, err
	}
	keys, err := readRecords(ctx, db, st)
	if err != nil {
		return nil, err
	}
	if err := readRecordTags(ctx, db, st); err != nil {
		return nil, err
	}
	if err := readTagHistory(ctx, db, st); err != nil {
		return nil, err
	}
	if err := readRevisions(ctx, db, st); err != nil {
		return nil, err
	}
	if err := st.Relink(); err != nil {
		return nil, err
	}

	for id, key := range keys {
		if err := st.Durable.Put(key, st.Records.Get(id)); err != nil {
			return nil, err
		}
	}

	rows, err := db.QueryContext(ctx, "SELECT path FROM visited_dirs ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("reading visited directories: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var dir string
		if err := rows.Scan(&dir); err != nil {
			return nil, fmt.Errorf("scanning visited directory: %w", err)
		}
		st.Durable.AddVisited(dir)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return st, nil
}

func readTags(ctx context.Context, db *sql.DB, st *ct.State) error {
	rows, err := db.QueryContext(ctx, "SELECT name FROM tags ORDER BY position")
	if err != nil {
		return fmt.Errorf("reading tags: %w", err)
	}
	defer rows.Close()

	var tags []*ct.Tag
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("scanning tag: %w", err)
		}
		tags = append(tags, ct.NewTag(name))
	}
	if err := rows.Err(); err != nil {
		return err
	}
	return st.Tags.Replace(tags)
}

// readRecords fills the record store and returns the durable index key of
// every indexed record.
func readRecords(ctx context.Context, db *sql.DB, st *ct.State) (map[string]string, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT id, original_name, current_name, dir, index_key, taken_at FROM records ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("reading records: %w", err)
	}
	defer rows.Close()

	keys := make(map[string]string)
	for rows.Next() {
		var (
			rec      ct.ImageRecord
			indexKey sql.NullString
			takenAt  sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.OriginalName, &rec.CurrentName, &rec.Dir, &indexKey, &takenAt); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		if takenAt.Valid {
			t, err := time.Parse(time.RFC3339Nano, takenAt.String)
			if err != nil {
				return nil, fmt.Errorf("record %s: parsing capture time: %w", rec.ID, err)
			}
			rec.TakenAt = t
		}
		st.Records.Put(&rec)
		if indexKey.Valid {
			keys[rec.ID] = indexKey.String
		}
	}
	return keys, rows.Err()
}

func readRecordTags(ctx context.Context, db *sql.DB, st *ct.State) error {
	rows, err := db.QueryContext(ctx,
		"SELECT record_id, tag_name FROM record_tags ORDER BY record_id, position")
	if err != nil {
		return fmt.Errorf("reading record tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, tag string
		if err := rows.Scan(&id, &tag); err != nil {
			return fmt.Errorf("scanning record tag: %w", err)
		}
		rec := st.Records.Get(id)
		if rec == nil {
			return fmt.Errorf("tag %s refers to unknown record %s", tag, id)
		}
		rec.Tags = append(rec.Tags, tag)
	}
	return rows.Err()
}

func readTagHistory(ctx context.Context, db *sql.DB, st *ct.State) error {
	rows, err := db.QueryContext(ctx,
		"SELECT record_id, tags FROM tag_history ORDER BY record_id, seq")
	if err != nil {
		return fmt.Errorf("reading tag history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, encoded string
		if err := rows.Scan(&id, &encoded); err != nil {
			return fmt.Errorf("scanning tag history: %w", err)
		}
		rec := st.Records.Get(id)
		if rec == nil {
			return fmt.Errorf("tag history refers to unknown record %s", id)
		}
		var tags []string
		if err := json.Unmarshal([]byte(encoded), &tags); err != nil {
			return fmt.Errorf("record %s: decoding tag history: %w", id, err)
		}
		rec.TagHistory = append(rec.TagHistory, tags)
	}
	return rows.Err()
}

func readRevisions(ctx context.Context, db *sql.DB, st *ct.State) error {
	rows, err := db.QueryContext(ctx,
		"SELECT record_id, current_name, old_name, timestamp FROM revisions ORDER BY record_id, seq")
	if err != nil {
		return fmt.Errorf("reading revisions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var e ct.LogEntry
		if err := rows.Scan(&id, &e.CurrentName, &e.OldName, &e.Timestamp); err != nil {
			return fmt.Errorf("scanning revision: %w", err)
		}
		rec := st.Records.Get(id)
		if rec == nil {
			return fmt.Errorf("revision refers to unknown record %s", id)
		}
		rec.Revisions = append(rec.Revisions, e)
	}
	return rows.Err()
}

package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"pkgforge/internal/build"
	perrors "pkgforge/internal/errors"
)

// Store keeps a ledger of build outcomes in a SQLite database.
type Store struct {
	db   *sql.DB
	path string
}

// schemaVersion is bumped when the schema changes; a mismatching database
// must be removed.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database was written by a different
// pkgforge version.
var ErrSchemaMismatch = errors.New("history schema version mismatch")

const schemaSQL = `
CREATE TABLE schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE builds (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	build_id TEXT NOT NULL,
	name TEXT NOT NULL,
	version TEXT NOT NULL,
	"release" TEXT NOT NULL,
	arch TEXT NOT NULL,
	status TEXT NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	archive TEXT NOT NULL DEFAULT '',
	sha256 TEXT NOT NULL DEFAULT '',
	files INTEGER NOT NULL DEFAULT 0,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL
);

CREATE INDEX idx_builds_name ON builds(name);
CREATE INDEX idx_builds_created_at ON builds(created_at);
`

// DefaultPath returns the per-user history database location.
func DefaultPath() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("resolving cache directory: %w", err)
	}
	return filepath.Join(cacheDir, "pkgforge", "history.db"), nil
}

// Open initializes or connects to the history database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, perrors.Newf(perrors.ErrHistory, "", "creating history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, perrors.Newf(perrors.ErrHistory, "", "opening history database: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, execErr := db.Exec(pragma); execErr != nil {
			db.Close()
			return nil, perrors.Newf(perrors.ErrHistory, "", "applying pragma %q: %w", pragma, execErr)
		}
	}

	s := &Store{db: db, path: path}
	if err := s.initSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return perrors.Newf(perrors.ErrHistory, "", "checking schema: %w", err)
	}

	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return perrors.Newf(perrors.ErrHistory, "", "reading schema version: %w", err)
	}
	if version != schemaVersion {
		return perrors.Newf(perrors.ErrHistory, "",
			"%w: database has version %d, expected %d (delete %s)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return perrors.Newf(perrors.ErrHistory, "", "beginning schema tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return perrors.Newf(perrors.ErrHistory, "", "creating schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return perrors.Newf(perrors.ErrHistory, "", "recording schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return perrors.Newf(perrors.ErrHistory, "", "committing schema: %w", err)
	}
	return nil
}

// Entry is one recorded build.
type Entry struct {
	ID        int64
	BuildID   string
	Name      string
	Version   string
	Release   string
	Arch      string
	Status    string
	Error     string
	Archive   string
	SHA256    string
	Files     int
	Duration  time.Duration
	CreatedAt time.Time
}

// Record stores the outcome of one build run, success or failure.
func (s *Store) Record(ctx context.Context, result *build.Result) error {
	status := string(build.StatusOK)
	errMsg := ""
	if !result.OK() {
		status = string(build.StatusFailed)
		errMsg = result.Err.Error()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO builds (build_id, name, version, "release", arch, status, error, archive, sha256, files, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.BuildID, result.Name, result.Version, result.Release, result.Arch,
		status, errMsg, result.ArchivePath, result.SHA256, result.FileCount,
		result.Duration().Milliseconds(), result.Finished.UTC().Format(time.RFC3339))
	if err != nil {
		return perrors.Newf(perrors.ErrHistory, "", "recording build: %w", err)
	}
	return nil
}

// Recent returns the latest builds, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, build_id, name, version, "release", arch, status, error, archive, sha256, files, duration_ms, created_at
		FROM builds ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, perrors.Newf(perrors.ErrHistory, "", "querying history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var durationMs int64
		var createdAt string
		if err := rows.Scan(&e.ID, &e.BuildID, &e.Name, &e.Version, &e.Release, &e.Arch,
			&e.Status, &e.Error, &e.Archive, &e.SHA256, &e.Files, &durationMs, &createdAt); err != nil {
			return nil, perrors.Newf(perrors.ErrHistory, "", "scanning history row: %w", err)
		}
		e.Duration = time.Duration(durationMs) * time.Millisecond
		if ts, parseErr := time.Parse(time.RFC3339, createdAt); parseErr == nil {
			e.CreatedAt = ts
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, perrors.Newf(perrors.ErrHistory, "", "reading history rows: %w", err)
	}
	return entries, nil
}

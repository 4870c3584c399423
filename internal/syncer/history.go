package syncer

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mersel/xslt-service/internal/assets"
	"github.com/mersel/xslt-service/internal/model"
)

const historySchema = `
CREATE TABLE IF NOT EXISTS versions (
	id           TEXT PRIMARY KEY,
	package_id   TEXT NOT NULL,
	display_name TEXT NOT NULL,
	created_at   TEXT NOT NULL,
	status       TEXT NOT NULL,
	added        INTEGER NOT NULL,
	removed      INTEGER NOT NULL,
	modified     INTEGER NOT NULL,
	unchanged    INTEGER NOT NULL,
	applied_at   TEXT,
	rejected_at  TEXT,
	duration_ms  INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS versions_package ON versions(package_id, created_at);
CREATE INDEX IF NOT EXISTS versions_status ON versions(status);
`

// History is the append-only record of sync attempts, one row per staged
// version. Rows are only ever inserted or have their status advanced.
type History struct {
	db *sql.DB
}

// OpenHistory opens the version database under the history directory.
func OpenHistory(store *assets.Store) (*History, error) {
	dir, err := store.Resolve(assets.HistoryDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("history: create directory: %w", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, "versions.db"))
	if err != nil {
		return nil, fmt.Errorf("history: open: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("history: %s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(historySchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: schema: %w", err)
	}
	return &History{db: db}, nil
}

// Close releases the underlying database.
func (h *History) Close() error { return h.db.Close() }

// Insert records a freshly staged version.
func (h *History) Insert(v model.AssetVersion) error {
	_, err := h.db.Exec(`
		INSERT INTO versions (id, package_id, display_name, created_at, status,
			added, removed, modified, unchanged, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.PackageID, v.DisplayName, v.CreatedAt.UTC().Format(time.RFC3339Nano),
		string(v.Status), v.Files.Added, v.Files.Removed, v.Files.Modified,
		v.Files.Unchanged, v.DurationMs)
	if err != nil {
		return fmt.Errorf("history: insert %s: %w", v.ID, err)
	}
	return nil
}

// MarkApplied advances a version to APPLIED.
func (h *History) MarkApplied(id string, at time.Time) error {
	return h.setStatus(id, model.VersionApplied, "applied_at", at)
}

// MarkRejected advances a version to REJECTED.
func (h *History) MarkRejected(id string, at time.Time) error {
	return h.setStatus(id, model.VersionRejected, "rejected_at", at)
}

func (h *History) setStatus(id string, status model.VersionStatus, column string, at time.Time) error {
	res, err := h.db.Exec(
		fmt.Sprintf("UPDATE versions SET status = ?, %s = ? WHERE id = ?", column),
		string(status), at.UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("history: update %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}

// Get returns one version by id.
func (h *History) Get(id string) (*model.AssetVersion, error) {
	row := h.db.QueryRow(`
		SELECT id, package_id, display_name, created_at, status,
			added, removed, modified, unchanged, applied_at, rejected_at, duration_ms
		FROM versions WHERE id = ?`, id)
	v, err := scanVersion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	return v, err
}

// List returns versions newest-first, optionally filtered by status.
func (h *History) List(status model.VersionStatus, limit int) ([]model.AssetVersion, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, package_id, display_name, created_at, status,
			added, removed, modified, unchanged, applied_at, rejected_at, duration_ms
		FROM versions`
	args := []any{}
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := h.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	defer rows.Close()

	var out []model.AssetVersion
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanVersion(row scanner) (*model.AssetVersion, error) {
	var v model.AssetVersion
	var created string
	var status string
	var appliedAt, rejectedAt sql.NullString
	err := row.Scan(&v.ID, &v.PackageID, &v.DisplayName, &created, &status,
		&v.Files.Added, &v.Files.Removed, &v.Files.Modified, &v.Files.Unchanged,
		&appliedAt, &rejectedAt, &v.DurationMs)
	if err != nil {
		return nil, err
	}
	v.Status = model.VersionStatus(status)
	if v.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return nil, fmt.Errorf("history: bad created_at for %s: %w", v.ID, err)
	}
	if t, ok := parseNullTime(appliedAt); ok {
		v.AppliedAt = &t
	}
	if t, ok := parseNullTime(rejectedAt); ok {
		v.RejectedAt = &t
	}
	return &v, nil
}

func parseNullTime(s sql.NullString) (time.Time, bool) {
	if !s.Valid || s.String == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/poiesic/corpus/core"
	"github.com/poiesic/corpus/storage"
	"github.com/poiesic/corpus/storage/sqlite/migrations"
)

// Store is a SQLite-backed record store.
type Store struct {
	db     *sql.DB
	path   string
	closed atomic.Bool
	logger *slog.Logger
}

var _ storage.RecordStore = (*Store)(nil)

// newStore is the internal constructor returning the concrete type.
func newStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "records.db")

	// WAL mode for concurrent readers during long fetch runs
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:     db,
		path:   dbPath,
		logger: slog.Default().With("component", "sqlite-store"),
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// NewStore creates a record store backed by a SQLite database under
// dataDir, creating the directory and applying schema migrations as
// needed.
//
// Returns storage.RecordStore interface to enforce abstraction.
func NewStore(dataDir string) (storage.RecordStore, error) {
	return newStore(dataDir)
}

// Close closes the database connection. Further calls are no-ops, and
// any later store operation returns storage.ErrStorageClosed.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

// checkOpen guards every store operation against use after Close.
func (s *Store) checkOpen() error {
	if s.closed.Load() {
		return storage.ErrStorageClosed
	}
	return nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate applies all pending migrations from the embedded filesystem.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("%w: creating schema_migrations: %w", storage.ErrMigrationFailed, err)
	}

	var current int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("%w: reading version: %w", storage.ErrMigrationFailed, err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("%w: reading migrations: %w", storage.ErrMigrationFailed, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		version, err := migrationVersion(name)
		if err != nil {
			return err
		}
		if version <= current {
			continue
		}

		body, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("%w: reading %s: %w", storage.ErrMigrationFailed, name, err)
		}

		if _, err := s.db.Exec(string(body)); err != nil {
			return fmt.Errorf("%w: applying %s: %w", storage.ErrMigrationFailed, name, err)
		}
		if _, err := s.db.Exec(
			"INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)",
			version, time.Now().UnixMicro(),
		); err != nil {
			return fmt.Errorf("%w: recording %s: %w", storage.ErrMigrationFailed, name, err)
		}

		s.logger.Debug("applied migration", "file", name, "version", version)
	}

	return nil
}

// migrationVersion extracts the numeric prefix of a migration filename.
func migrationVersion(name string) (int, error) {
	prefix, _, ok := strings.Cut(name, "_")
	if !ok {
		return 0, fmt.Errorf("%w: %s has no version prefix", storage.ErrMigrationFailed, name)
	}
	version, err := strconv.Atoi(prefix)
	if err != nil {
		return 0, fmt.Errorf("%w: %s has non-numeric version: %w", storage.ErrMigrationFailed, name, err)
	}
	return version, nil
}

// UpsertRecord inserts or overwrites a record by ID. IndexedHash and
// InsertedAt are preserved when the record already exists.
func (s *Store) UpsertRecord(ctx context.Context, record *core.Record) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	now := time.Now().UTC()
	insertedAt := record.InsertedAt
	if insertedAt.IsZero() {
		insertedAt = now
	}

	authors, err := json.Marshal(record.Authors)
	if err != nil {
		return fmt.Errorf("encoding authors: %w", err)
	}

	var datePublished sql.NullInt64
	if !record.DatePublished.IsZero() {
		datePublished = sql.NullInt64{Int64: record.DatePublished.UnixMicro(), Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO records (
			id, source, natural_key, title, url, authors, date_published,
			text, content_hash, status, reject_reason, indexed_hash,
			inserted_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			source = excluded.source,
			natural_key = excluded.natural_key,
			title = excluded.title,
			url = excluded.url,
			authors = excluded.authors,
			date_published = excluded.date_published,
			text = excluded.text,
			content_hash = excluded.content_hash,
			status = excluded.status,
			reject_reason = excluded.reject_reason,
			updated_at = excluded.updated_at`,
		int64(record.Id), record.Source, record.NaturalKey, record.Title,
		record.URL, string(authors), datePublished,
		record.Text, record.ContentHash, int(record.Status), record.RejectReason,
		record.IndexedHash, insertedAt.UnixMicro(), now.UnixMicro(),
	)
	if err != nil {
		return fmt.Errorf("upserting record %d: %w", record.Id, err)
	}
	return nil
}

const recordColumns = `id, source, natural_key, title, url, authors, date_published,
	text, content_hash, status, reject_reason, indexed_hash, inserted_at, updated_at`

// GetRecord retrieves a single record by ID.
func (s *Store) GetRecord(ctx context.Context, id core.ID) (*core.Record, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		"SELECT "+recordColumns+" FROM records WHERE id = ?", int64(id))

	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", storage.ErrNotFound, id)
	}
	return record, err
}

// GetContentHash retrieves the stored content hash for an ID.
func (s *Store) GetContentHash(ctx context.Context, id core.ID) (string, error) {
	if err := s.checkOpen(); err != nil {
		return "", err
	}

	var hash string
	err := s.db.QueryRowContext(ctx,
		"SELECT content_hash FROM records WHERE id = ?", int64(id)).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: id %d", storage.ErrNotFound, id)
	}
	if err != nil {
		return "", err
	}
	return hash, nil
}

// ListNaturalKeys returns the set of natural keys persisted for a source.
func (s *Store) ListNaturalKeys(ctx context.Context, source string) (map[string]struct{}, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT natural_key FROM records WHERE source = ?", source)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := make(map[string]struct{})
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys[key] = struct{}{}
	}
	return keys, rows.Err()
}

// ListIDs returns every record ID persisted for a source.
func (s *Store) ListIDs(ctx context.Context, source string) ([]core.ID, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id FROM records WHERE source = ?", source)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []core.ID
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, core.ID(id))
	}
	return ids, rows.Err()
}

// ListAcceptedIDs returns the set of IDs with StatusOK, optionally
// scoped to one source.
func (s *Store) ListAcceptedIDs(ctx context.Context, source string) (map[core.ID]struct{}, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	query := "SELECT id FROM records WHERE status = ?"
	args := []any{int(core.StatusOK)}
	if source != "" {
		query += " AND source = ?"
		args = append(args, source)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make(map[core.ID]struct{})
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[core.ID(id)] = struct{}{}
	}
	return ids, rows.Err()
}

// DeleteRecord removes a record by ID.
func (s *Store) DeleteRecord(ctx context.Context, id core.ID) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, "DELETE FROM records WHERE id = ?", int64(id))
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: id %d", storage.ErrNotFound, id)
	}
	return nil
}

// DeleteSource removes every record for a source.
func (s *Store) DeleteSource(ctx context.Context, source string) (int64, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx, "DELETE FROM records WHERE source = ?", source)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListIndexCandidates returns the accepted records whose index
// representation is stale or missing, or every accepted record in
// scope when force is set.
func (s *Store) ListIndexCandidates(ctx context.Context, source string, force bool) ([]*core.Record, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	query := "SELECT " + recordColumns + " FROM records WHERE status = ?"
	args := []any{int(core.StatusOK)}

	if !force {
		query += " AND indexed_hash <> content_hash"
	}
	if source != "" {
		query += " AND source = ?"
		args = append(args, source)
	}
	query += " ORDER BY source, natural_key"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*core.Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// MarkIndexed records the content hash that was successfully embedded.
func (s *Store) MarkIndexed(ctx context.Context, id core.ID, contentHash string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		"UPDATE records SET indexed_hash = ?, updated_at = ? WHERE id = ?",
		contentHash, time.Now().UnixMicro(), int64(id))
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: id %d", storage.ErrNotFound, id)
	}
	return nil
}

// scanner abstracts sql.Row and sql.Rows for scanRecord.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*core.Record, error) {
	var (
		id, insertedAt, updatedAt int64
		datePublished             sql.NullInt64
		authors                   string
		status                    int
		record                    core.Record
	)

	err := row.Scan(
		&id, &record.Source, &record.NaturalKey, &record.Title, &record.URL,
		&authors, &datePublished, &record.Text, &record.ContentHash,
		&status, &record.RejectReason, &record.IndexedHash,
		&insertedAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	record.Id = core.ID(id)
	record.Status = core.Status(status)
	record.InsertedAt = time.UnixMicro(insertedAt).UTC()
	record.UpdatedAt = time.UnixMicro(updatedAt).UTC()
	if datePublished.Valid {
		record.DatePublished = time.UnixMicro(datePublished.Int64).UTC()
	}
	if err := json.Unmarshal([]byte(authors), &record.Authors); err != nil {
		return nil, fmt.Errorf("decoding authors: %w", err)
	}

	return &record, nil
}

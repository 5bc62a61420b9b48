package store

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "modernc.org/sqlite" // SQLite driver
)

// DefaultBatchSize is the number of tiles buffered before they are flushed.
const DefaultBatchSize = 100

type sqliteEntry struct {
	key  Key
	data []byte
}

// SQLiteStore keeps all tiles of a run in a single SQLite file. Writes are
// buffered and committed in batches.
type SQLiteStore struct {
	db        *sql.DB
	path      string
	batch     []sqliteEntry
	batchSize int
	mu        sync.Mutex
}

// NewSQLiteStore opens or creates the archive at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	if err := createSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		db:        db,
		path:      path,
		batch:     make([]sqliteEntry, 0, DefaultBatchSize),
		batchSize: DefaultBatchSize,
	}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS metadata (
			name TEXT NOT NULL,
			value TEXT
		);

		CREATE TABLE IF NOT EXISTS tiles (
			layer INTEGER NOT NULL,
			tile_column INTEGER NOT NULL,
			tile_row INTEGER NOT NULL,
			tile_data BLOB NOT NULL
		);

		CREATE UNIQUE INDEX IF NOT EXISTS tile_index ON tiles (layer, tile_column, tile_row);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	return nil
}

// Path returns the archive file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// WriteMetadata replaces the archive metadata.
func (s *SQLiteStore) WriteMetadata(meta Metadata) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // nolint:errcheck

	if _, err := tx.Exec("DELETE FROM metadata"); err != nil {
		return fmt.Errorf("failed to clear metadata: %w", err)
	}

	stmt, err := tx.Prepare("INSERT INTO metadata (name, value) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare metadata insert: %w", err)
	}
	defer stmt.Close()

	for name, value := range meta.ToMap() {
		if _, err := stmt.Exec(name, value); err != nil {
			return fmt.Errorf("failed to insert metadata %q: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit metadata: %w", err)
	}
	return nil
}

// Metadata reads the archive metadata.
func (s *SQLiteStore) Metadata() (Metadata, error) {
	rows, err := s.db.Query("SELECT name, value FROM metadata")
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to query metadata: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var name string
		var value sql.NullString
		if err := rows.Scan(&name, &value); err != nil {
			return Metadata{}, fmt.Errorf("failed to scan metadata row: %w", err)
		}
		values[name] = value.String
	}
	if err := rows.Err(); err != nil {
		return Metadata{}, fmt.Errorf("error iterating metadata: %w", err)
	}

	return metadataFromMap(values), nil
}

func (s *SQLiteStore) Has(key Key) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pendingLocked(key) != nil {
		return true, nil
	}

	var n int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM tiles WHERE layer=? AND tile_column=? AND tile_row=?",
		int(key.Layer), key.X, key.Y,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to query tile %s: %w", key, err)
	}
	return n > 0, nil
}

// Put adds the tile to the pending batch and flushes when the batch is full.
func (s *SQLiteStore) Put(key Key, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry := s.pendingLocked(key); entry != nil {
		entry.data = data
		return nil
	}

	s.batch = append(s.batch, sqliteEntry{key: key, data: data})
	if len(s.batch) >= s.batchSize {
		return s.flushLocked()
	}
	return nil
}

func (s *SQLiteStore) Get(key Key) ([]byte, error) {
	s.mu.Lock()
	if entry := s.pendingLocked(key); entry != nil {
		data := entry.data
		s.mu.Unlock()
		return data, nil
	}
	s.mu.Unlock()

	var data []byte
	err := s.db.QueryRow(
		"SELECT tile_data FROM tiles WHERE layer=? AND tile_column=? AND tile_row=?",
		int(key.Layer), key.X, key.Y,
	).Scan(&data)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrTileNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query tile %s: %w", key, err)
	}
	return data, nil
}

// Flush writes any buffered tiles to the database.
func (s *SQLiteStore) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

// pendingLocked returns the buffered entry for key, if any. Must be called
// with lock held.
func (s *SQLiteStore) pendingLocked(key Key) *sqliteEntry {
	for i := range s.batch {
		if s.batch[i].key == key {
			return &s.batch[i]
		}
	}
	return nil
}

// flushLocked writes buffered tiles to the database. Must be called with lock held.
func (s *SQLiteStore) flushLocked() error {
	if len(s.batch) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // nolint:errcheck

	stmt, err := tx.Prepare("INSERT OR REPLACE INTO tiles (layer, tile_column, tile_row, tile_data) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, entry := range s.batch {
		if _, err := stmt.Exec(int(entry.key.Layer), entry.key.X, entry.key.Y, entry.data); err != nil {
			return fmt.Errorf("failed to insert tile %s: %w", entry.key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.batch = s.batch[:0]
	return nil
}

// Close flushes any remaining tiles and closes the database.
func (s *SQLiteStore) Close() error {
	if err := s.Flush(); err != nil {
		_ = s.db.Close()
		return err
	}

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

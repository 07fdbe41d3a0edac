package mbtiles

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync"

	_ "modernc.org/sqlite" // SQLite driver
)

// Writer writes tiles to an MBTiles database.
type Writer struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Create creates a fresh MBTiles database at path, replacing any existing
// file, and writes the metadata table.
func Create(path string, metadata Metadata) (*Writer, error) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to replace %s: %w", path, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = DELETE",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	if err := insertMetadata(db, metadata); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to insert metadata: %w", err)
	}

	return &Writer{db: db, path: path}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS metadata (
			name TEXT NOT NULL,
			value TEXT
		);

		CREATE TABLE IF NOT EXISTS tiles (
			zoom_level INTEGER NOT NULL,
			tile_column INTEGER NOT NULL,
			tile_row INTEGER NOT NULL,
			tile_data BLOB NOT NULL
		);

		CREATE UNIQUE INDEX IF NOT EXISTS tile_index ON tiles (zoom_level, tile_column, tile_row);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	return nil
}

func insertMetadata(db *sql.DB, meta Metadata) error {
	tx, err := db.Begin()
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

	for key, value := range meta.ToMap() {
		if _, err := stmt.Exec(key, value); err != nil {
			return fmt.Errorf("failed to insert metadata %q: %w", key, err)
		}
	}

	return tx.Commit()
}

// WriteTile stores PNG data at XYZ coordinates. Rows are flipped to TMS.
func (w *Writer) WriteTile(z, x, y int, pngData []byte) error {
	if len(pngData) == 0 {
		return fmt.Errorf("tile %d/%d/%d has no data", z, x, y)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	tmsY := (1 << z) - 1 - y
	_, err := w.db.Exec(
		"INSERT OR REPLACE INTO tiles (zoom_level, tile_column, tile_row, tile_data) VALUES (?, ?, ?, ?)",
		z, x, tmsY, pngData,
	)
	if err != nil {
		return fmt.Errorf("failed to insert tile %d/%d/%d: %w", z, x, y, err)
	}
	return nil
}

// Close closes the database.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// WriteTexture writes a complete container holding pngData as the single
// zoom-0 tile.
func WriteTexture(path string, pngData []byte, metadata Metadata) error {
	metadata.Format = "png"
	metadata.MinZoom, metadata.MaxZoom = 0, 0

	w, err := Create(path, metadata)
	if err != nil {
		return err
	}
	if err := w.WriteTile(0, 0, 0, pngData); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// Package sqlite persists the capture-sample index.
//
// Images and pose sidecars live as plain files in the session directory; this
// index tracks their sizes and creation order so the storage-budget pass and
// the export manifest never have to walk the directory tree.
package sqlite

import (
	"database/sql"
	_ "embed"
	"fmt"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// SampleRow is one indexed capture sample.
type SampleRow struct {
	Idx              int64
	ImagePath        string
	MetaPath         string
	ByteSize         int64
	Confidence       float64
	CreatedUnixNanos int64
}

// SampleDB wraps the sqlite sample index.
type SampleDB struct {
	*sql.DB
}

// Open opens (or creates) the sample index at path and applies the schema.
// Use ":memory:" for tests.
func Open(path string) (*SampleDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sample index: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply sample index schema: %w", err)
	}
	return &SampleDB{db}, nil
}

// Insert records a sample.
func (db *SampleDB) Insert(row SampleRow) error {
	_, err := db.Exec(`
		INSERT INTO samples (sample_idx, image_path, meta_path, byte_size, confidence, created_unix_ns)
		VALUES (?, ?, ?, ?, ?, ?)`,
		row.Idx, row.ImagePath, row.MetaPath, row.ByteSize, row.Confidence, row.CreatedUnixNanos)
	if err != nil {
		return fmt.Errorf("insert sample %d: %w", row.Idx, err)
	}
	return nil
}

// TotalBytes returns the accumulated byte size of all indexed samples.
func (db *SampleDB) TotalBytes() (int64, error) {
	var total sql.NullInt64
	if err := db.QueryRow(`SELECT SUM(byte_size) FROM samples`).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum sample sizes: %w", err)
	}
	return total.Int64, nil
}

// Count returns the number of indexed samples.
func (db *SampleDB) Count() (int64, error) {
	var n int64
	if err := db.QueryRow(`SELECT COUNT(*) FROM samples`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count samples: %w", err)
	}
	return n, nil
}

// OldestFirst returns up to limit samples ordered by creation time then
// index, oldest first. The eviction pass consumes these.
func (db *SampleDB) OldestFirst(limit int) ([]SampleRow, error) {
	rows, err := db.Query(`
		SELECT sample_idx, image_path, meta_path, byte_size, confidence, created_unix_ns
		FROM samples ORDER BY created_unix_ns ASC, sample_idx ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query oldest samples: %w", err)
	}
	defer rows.Close()
	return scanRows(rows)
}

// List returns all samples ordered by sample index. The export manifest
// consumes these, so the order must be deterministic.
func (db *SampleDB) List() ([]SampleRow, error) {
	rows, err := db.Query(`
		SELECT sample_idx, image_path, meta_path, byte_size, confidence, created_unix_ns
		FROM samples ORDER BY sample_idx ASC`)
	if err != nil {
		return nil, fmt.Errorf("list samples: %w", err)
	}
	defer rows.Close()
	return scanRows(rows)
}

// Delete removes one sample row.
func (db *SampleDB) Delete(idx int64) error {
	if _, err := db.Exec(`DELETE FROM samples WHERE sample_idx = ?`, idx); err != nil {
		return fmt.Errorf("delete sample %d: %w", idx, err)
	}
	return nil
}

// Clear removes every sample row. Called on session restart.
func (db *SampleDB) Clear() error {
	if _, err := db.Exec(`DELETE FROM samples`); err != nil {
		return fmt.Errorf("clear samples: %w", err)
	}
	return nil
}

func scanRows(rows *sql.Rows) ([]SampleRow, error) {
	var out []SampleRow
	for rows.Next() {
		var r SampleRow
		if err := rows.Scan(&r.Idx, &r.ImagePath, &r.MetaPath, &r.ByteSize, &r.Confidence, &r.CreatedUnixNanos); err != nil {
			return nil, fmt.Errorf("scan sample row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sample rows: %w", err)
	}
	return out, nil
}

package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/pauljones0/harvester/internal/models"
)

// SQLiteStore keeps the serialized collection in a single-row key/value table.
type SQLiteStore struct {
	db  *sql.DB
	key string
}

// NewSQLiteStore opens (creating if needed) the database at path and ensures the table exists.
func NewSQLiteStore(ctx context.Context, path, key string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, &models.PersistenceError{Op: "open", Err: err}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &models.PersistenceError{Op: "open", Err: fmt.Errorf("open database: %w", err)}
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS kv (
			key   TEXT PRIMARY KEY,
			value BLOB NOT NULL
		)`); err != nil {
		db.Close()
		return nil, &models.PersistenceError{Op: "open", Err: fmt.Errorf("create table: %w", err)}
	}
	return &SQLiteStore{db: db, key: key}, nil
}

func (s *SQLiteStore) Save(ctx context.Context, posts []models.Post) error {
	data, err := encode(posts)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		s.key, data)
	if err != nil {
		return &models.PersistenceError{Op: "save", Err: err}
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context) ([]models.Post, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, s.key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return []models.Post{}, nil
	}
	if err != nil {
		return nil, &models.PersistenceError{Op: "load", Err: err}
	}
	return decode("sqlite:"+s.key, data)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

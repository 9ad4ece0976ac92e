package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/doctext/internal/extract"
	"github.com/hyperjump/doctext/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS extractions (
		id TEXT PRIMARY KEY,
		content_id TEXT NOT NULL,
		filename TEXT,
		mimetype TEXT NOT NULL,
		size INTEGER NOT NULL,
		success INTEGER NOT NULL,
		text TEXT NOT NULL,
		error_kind TEXT,
		error TEXT,
		method TEXT,
		methods_used TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_extractions_content_id ON extractions(content_id, success);
	CREATE INDEX IF NOT EXISTS idx_extractions_created_at ON extractions(created_at);
	`
	_, err := db.Exec(schema)
	return err
}

const extractionColumns = `id, content_id, filename, mimetype, size, success, text, error_kind, error, method, methods_used, created_at`

// CreateExtraction inserts an extraction record. CreatedAt is set when zero.
func (s *SQLiteStorage) CreateExtraction(ctx context.Context, e *models.Extraction) error {
	methodsJSON, err := json.Marshal(e.MethodsUsed)
	if err != nil {
		return fmt.Errorf("failed to marshal methods: %w", err)
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO extractions (`+extractionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.ContentID, e.Filename, e.Mimetype, e.Size, e.Success, e.Text,
		string(e.ErrorKind), e.Error, e.Method, string(methodsJSON), e.CreatedAt,
	)
	return err
}

// GetExtraction returns an extraction by ID.
func (s *SQLiteStorage) GetExtraction(ctx context.Context, id string) (*models.Extraction, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+extractionColumns+` FROM extractions WHERE id = ?`, id)
	e, err := scanExtraction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e, err
}

// FindByContentID returns the newest successful extraction with the given content ID.
func (s *SQLiteStorage) FindByContentID(ctx context.Context, contentID string) (*models.Extraction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+extractionColumns+` FROM extractions
		 WHERE content_id = ? AND success = 1 ORDER BY created_at DESC LIMIT 1`, contentID)
	e, err := scanExtraction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, contentID)
	}
	return e, err
}

// ListExtractions returns extractions, newest first, with offset and limit.
func (s *SQLiteStorage) ListExtractions(ctx context.Context, offset, limit int) ([]*models.Extraction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+extractionColumns+` FROM extractions ORDER BY created_at DESC, id LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Extraction
	for rows.Next() {
		e, err := scanExtraction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteExtraction removes an extraction by ID.
func (s *SQLiteStorage) DeleteExtraction(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM extractions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// CountExtractions returns the total number of extraction records.
func (s *SQLiteStorage) CountExtractions(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM extractions`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExtraction(row scanner) (*models.Extraction, error) {
	var e models.Extraction
	var filename, kind, msg, method, methods sql.NullString
	err := row.Scan(&e.ID, &e.ContentID, &filename, &e.Mimetype, &e.Size, &e.Success, &e.Text,
		&kind, &msg, &method, &methods, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	e.Filename = filename.String
	e.ErrorKind = extract.ErrorKind(kind.String)
	e.Error = msg.String
	e.Method = method.String
	if methods.String != "" && methods.String != "null" {
		if err := json.Unmarshal([]byte(methods.String), &e.MethodsUsed); err != nil {
			return nil, fmt.Errorf("failed to unmarshal methods: %w", err)
		}
	}
	return &e, nil
}

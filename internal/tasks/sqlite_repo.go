package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

type SQLiteRepo struct {
	db *sql.DB
}

func NewSQLiteRepo(dsn string) (*SQLiteRepo, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// Reasonable pragmas for an app server
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA synchronous=NORMAL;
		PRAGMA foreign_keys=ON;
	`); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteRepo{db: db}, nil
}

func (r *SQLiteRepo) Close() error { return r.db.Close() }

func (r *SQLiteRepo) Ping(ctx context.Context) error { return r.db.PingContext(ctx) }

// Create implements Repository.Create
func (r *SQLiteRepo) Create(ctx context.Context, t Task) (Task, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO tasks (title, description, is_completed, date_created, date_updated)
		VALUES (?, ?, ?, ?, ?)
	`, t.Title, t.Description, t.IsCompleted,
		t.DateCreated.UTC().Format(time.RFC3339Nano),
		t.DateUpdated.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return Task{}, fmt.Errorf("insert task: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Task{}, fmt.Errorf("insert task: %w", err)
	}
	t.ID = id
	return t, nil
}

// List implements Repository.List
func (r *SQLiteRepo) List(ctx context.Context) ([]Task, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, title, description, is_completed, date_created, date_updated
		FROM tasks
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	out := []Task{}
	for rows.Next() {
		t, err := scanSQLiteTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Get implements Repository.Get
func (r *SQLiteRepo) Get(ctx context.Context, id int64) (Task, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, title, description, is_completed, date_created, date_updated
		FROM tasks
		WHERE id = ?
	`, id)
	t, err := scanSQLiteTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Task{}, ErrNotFound
	}
	return t, err
}

// Update implements Repository.Update. id and date_created are never written.
func (r *SQLiteRepo) Update(ctx context.Context, t Task) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE tasks
		SET title = ?, description = ?, is_completed = ?, date_updated = ?
		WHERE id = ?
	`, t.Title, t.Description, t.IsCompleted, t.DateUpdated.UTC().Format(time.RFC3339Nano), t.ID)
	if err != nil {
		return fmt.Errorf("update task %d: %w", t.ID, err)
	}
	return requireAffected(res)
}

// Delete implements Repository.Delete
func (r *SQLiteRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task %d: %w", id, err)
	}
	return requireAffected(res)
}

// ApplyMigrations ensures schema exists
func (r *SQLiteRepo) ApplyMigrations(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS tasks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	description TEXT NOT NULL,
	is_completed INTEGER NOT NULL DEFAULT 0,
	date_created TEXT NOT NULL,
	date_updated TEXT NOT NULL
);
	`)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteTask(s rowScanner) (Task, error) {
	var t Task
	var created, updated string
	if err := s.Scan(&t.ID, &t.Title, &t.Description, &t.IsCompleted, &created, &updated); err != nil {
		return Task{}, err
	}
	var err error
	if t.DateCreated, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return Task{}, fmt.Errorf("task %d: parse date_created: %w", t.ID, err)
	}
	if t.DateUpdated, err = time.Parse(time.RFC3339Nano, updated); err != nil {
		return Task{}, fmt.Errorf("task %d: parse date_updated: %w", t.ID, err)
	}
	return t, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Helper to build DSN like: file:/absolute/path?_pragma=busy_timeout(5000)
func SQLiteFileDSN(path string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return "file:" + filepath.ToSlash(abs) + "?_pragma=busy_timeout(5000)", nil
}

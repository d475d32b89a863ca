package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/hyperjump/notesearch/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	logger *zap.Logger

	mu        sync.RWMutex
	listeners []Listener
}

// Option configures a SQLiteStorage.
type Option func(*SQLiteStorage)

// WithLogger sets a logger for listener failures and debug output.
func WithLogger(l *zap.Logger) Option {
	return func(s *SQLiteStorage) { s.logger = l }
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string, opts ...Option) (*SQLiteStorage, error) {
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

	s := &SQLiteStorage{db: db, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS notes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		body TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		modified_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS texts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		author TEXT NOT NULL DEFAULT '',
		year INTEGER NOT NULL DEFAULT 0,
		abstract TEXT NOT NULL DEFAULT '',
		body TEXT NOT NULL DEFAULT '',
		source TEXT NOT NULL DEFAULT '',
		source_stamp TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		modified_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS persons (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		biography TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		modified_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_notes_modified_at ON notes(modified_at);
	CREATE INDEX IF NOT EXISTS idx_texts_modified_at ON texts(modified_at);
	CREATE INDEX IF NOT EXISTS idx_persons_modified_at ON persons(modified_at);
	CREATE INDEX IF NOT EXISTS idx_texts_source ON texts(source);
	`
	_, err := db.Exec(schema)
	return err
}

// table describes how one record kind maps to its table. values returns the
// column values in columns order; dest returns scan destinations for id,
// columns, created_at and modified_at.
type table struct {
	name    string
	columns []string // without id, created_at, modified_at
	newRec  func() models.Record
	values  func(models.Record) []any
	dest    func(models.Record) []any
}

var tables = map[models.Kind]table{
	models.KindNote: {
		name:    "notes",
		columns: []string{"title", "body"},
		newRec:  func() models.Record { return &models.Note{} },
		values: func(r models.Record) []any {
			n := r.(*models.Note)
			return []any{n.Title, n.Body}
		},
		dest: func(r models.Record) []any {
			n := r.(*models.Note)
			return []any{&n.ID, &n.Title, &n.Body, &n.Created, &n.Modified}
		},
	},
	models.KindText: {
		name:    "texts",
		columns: []string{"title", "author", "year", "abstract", "body", "source", "source_stamp"},
		newRec:  func() models.Record { return &models.Text{} },
		values: func(r models.Record) []any {
			t := r.(*models.Text)
			return []any{t.Title, t.Author, t.Year, t.Abstract, t.Body, t.Source, t.SourceStamp}
		},
		dest: func(r models.Record) []any {
			t := r.(*models.Text)
			return []any{&t.ID, &t.Title, &t.Author, &t.Year, &t.Abstract, &t.Body, &t.Source, &t.SourceStamp, &t.Created, &t.Modified}
		},
	},
	models.KindPerson: {
		name:    "persons",
		columns: []string{"name", "biography"},
		newRec:  func() models.Record { return &models.Person{} },
		values: func(r models.Record) []any {
			p := r.(*models.Person)
			return []any{p.Name, p.Biography}
		},
		dest: func(r models.Record) []any {
			p := r.(*models.Person)
			return []any{&p.ID, &p.Name, &p.Biography, &p.Created, &p.Modified}
		},
	},
}

func tableFor(kind models.Kind) (table, error) {
	t, ok := tables[kind]
	if !ok {
		return table{}, fmt.Errorf("unknown record kind %s", kind)
	}
	return t, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func setTimes(r models.Record, created, modified time.Time) {
	switch v := r.(type) {
	case *models.Note:
		v.Created, v.Modified = created, modified
	case *models.Text:
		v.Created, v.Modified = created, modified
	case *models.Person:
		v.Created, v.Modified = created, modified
	}
}

func setID(r models.Record, id int64) {
	switch v := r.(type) {
	case *models.Note:
		v.ID = id
	case *models.Text:
		v.ID = id
	case *models.Person:
		v.ID = id
	}
}

// Save inserts or updates r, then notifies listeners. A listener error is
// returned after the record has been committed.
func (s *SQLiteStorage) Save(ctx context.Context, r models.Record) error {
	key := r.Key()
	t, err := tableFor(key.Kind)
	if err != nil {
		return err
	}
	values := t.values(r)
	now := time.Now().UTC()

	if key.ID == 0 {
		cols := strings.Join(t.columns, ", ") + ", created_at, modified_at"
		args := append(values, now, now)
		res, err := s.db.ExecContext(ctx,
			fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`, t.name, cols, placeholders(len(args))),
			args...,
		)
		if err != nil {
			return fmt.Errorf("failed to insert %s: %w", key.Kind, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read %s id: %w", key.Kind, err)
		}
		setID(r, id)
		setTimes(r, now, now)
	} else {
		var created time.Time
		err := s.db.QueryRowContext(ctx,
			fmt.Sprintf(`SELECT created_at FROM %s WHERE id = ?`, t.name), key.ID,
		).Scan(&created)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		if err != nil {
			return err
		}
		set := strings.Join(t.columns, " = ?, ") + " = ?"
		args := append(values, now, key.ID)
		if _, err := s.db.ExecContext(ctx,
			fmt.Sprintf(`UPDATE %s SET %s, modified_at = ? WHERE id = ?`, t.name, set),
			args...,
		); err != nil {
			return fmt.Errorf("failed to update %s: %w", key, err)
		}
		setTimes(r, created, now)
	}
	s.logger.Debug("record saved", zap.Stringer("id", r.Key()))
	return s.notify(func(l Listener) error { return l.RecordSaved(ctx, r) })
}

// Get returns the record with the given id.
func (s *SQLiteStorage) Get(ctx context.Context, id models.UniqueID) (models.Record, error) {
	t, err := tableFor(id.Kind)
	if err != nil {
		return nil, err
	}
	r := t.newRec()
	err = s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT id, %s, created_at, modified_at FROM %s WHERE id = ?`, strings.Join(t.columns, ", "), t.name), id.ID,
	).Scan(t.dest(r)...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Delete removes a record by id, then notifies listeners.
func (s *SQLiteStorage) Delete(ctx context.Context, id models.UniqueID) error {
	t, err := tableFor(id.Kind)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, t.name), id.ID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	s.logger.Debug("record deleted", zap.Stringer("id", id))
	return s.notify(func(l Listener) error { return l.RecordDeleted(ctx, id) })
}

// List returns records of kind, most recently modified first.
func (s *SQLiteStorage) List(ctx context.Context, kind models.Kind, offset, limit int) ([]models.Record, error) {
	return s.query(ctx, kind, `ORDER BY modified_at DESC, id DESC LIMIT ? OFFSET ?`, limit, offset)
}

// Notes returns every note.
func (s *SQLiteStorage) Notes(ctx context.Context) ([]models.Record, error) {
	return s.query(ctx, models.KindNote, `ORDER BY id`)
}

// Texts returns every text.
func (s *SQLiteStorage) Texts(ctx context.Context) ([]models.Record, error) {
	return s.query(ctx, models.KindText, `ORDER BY id`)
}

// Persons returns every person.
func (s *SQLiteStorage) Persons(ctx context.Context) ([]models.Record, error) {
	return s.query(ctx, models.KindPerson, `ORDER BY id`)
}

func (s *SQLiteStorage) query(ctx context.Context, kind models.Kind, tail string, args ...any) ([]models.Record, error) {
	t, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT id, %s, created_at, modified_at FROM %s %s`, strings.Join(t.columns, ", "), t.name, tail),
		args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]models.Record, 0)
	for rows.Next() {
		r := t.newRec()
		if err := rows.Scan(t.dest(r)...); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// TextBySource returns the text imported from the file at path.
func (s *SQLiteStorage) TextBySource(ctx context.Context, path string) (*models.Text, error) {
	records, err := s.query(ctx, models.KindText, `WHERE source = ? ORDER BY id LIMIT 1`, path)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("text from %s: %w", path, ErrNotFound)
	}
	return records[0].(*models.Text), nil
}

// Count returns the number of records of kind.
func (s *SQLiteStorage) Count(ctx context.Context, kind models.Kind) (int64, error) {
	t, err := tableFor(kind)
	if err != nil {
		return 0, err
	}
	var count int64
	err = s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, t.name)).Scan(&count)
	return count, err
}

// AddListener registers l for change notifications.
func (s *SQLiteStorage) AddListener(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

func (s *SQLiteStorage) notify(call func(Listener) error) error {
	s.mu.RLock()
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.RUnlock()

	var result *multierror.Error
	for _, l := range listeners {
		if err := call(l); err != nil {
			s.logger.Warn("change listener failed", zap.Error(err))
			result = multierror.Append(result, err)
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("record committed but listener failed: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

var _ Storage = (*SQLiteStorage)(nil)

// Package sqlitestore implements store.Store on a single SQLite file.
// Documents are kept as JSON in one table keyed by collection and id.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/eringen/bandsite/store"
)

// timeLayout is fixed width so that string comparison orders timestamps.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store is a document store backed by SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the SQLite database at path, ensures the data
// directory exists, and creates the documents table.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	// busy_timeout is per connection, so it goes in the DSN for the whole pool.
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}
	// WAL lets the public pages read while the dashboard writes.
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA synchronous=NORMAL;
		PRAGMA cache_size=-8000;
		PRAGMA mmap_size=268435456;
	`); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	s := &Store{db: db, now: time.Now}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS documents (
    collection TEXT NOT NULL,
    id TEXT NOT NULL,
    data TEXT NOT NULL,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    PRIMARY KEY (collection, id)
);
`)
	return err
}

// Create inserts rec under a fresh UUID and returns the id.
func (s *Store) Create(ctx context.Context, collection string, rec store.Record) (string, error) {
	if err := checkWrite(collection, rec); err != nil {
		return "", err
	}
	now := s.now()
	data, err := encode(rec, now)
	if err != nil {
		return "", err
	}
	id := uuid.New().String()
	ts := formatTime(now)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		collection, id, data, ts, ts)
	if err != nil {
		return "", fmt.Errorf("sqlitestore: create %s: %w", collection, err)
	}
	return id, nil
}

// Set creates or replaces the document at id. The creation time of an
// existing document is kept.
func (s *Store) Set(ctx context.Context, collection, id string, rec store.Record) error {
	if err := checkWrite(collection, rec); err != nil {
		return err
	}
	if id == "" {
		return fmt.Errorf("%w: empty id", store.ErrInvalidRecord)
	}
	now := s.now()
	data, err := encode(rec, now)
	if err != nil {
		return err
	}
	ts := formatTime(now)
	_, err = s.db.ExecContext(ctx, `
INSERT INTO documents (collection, id, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
ON CONFLICT (collection, id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		collection, id, data, ts, ts)
	if err != nil {
		return fmt.Errorf("sqlitestore: set %s/%s: %w", collection, id, err)
	}
	return nil
}

// Get returns one document or store.ErrNotFound.
func (s *Store) Get(ctx context.Context, collection, id string) (store.Document, error) {
	return getDoc(ctx, s.db, collection, id)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getDoc(ctx context.Context, q queryer, collection, id string) (store.Document, error) {
	var data, created, updated string
	err := q.QueryRowContext(ctx,
		`SELECT data, created_at, updated_at FROM documents WHERE collection = ? AND id = ?`,
		collection, id).Scan(&data, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Document{}, store.ErrNotFound
	}
	if err != nil {
		return store.Document{}, fmt.Errorf("sqlitestore: get %s/%s: %w", collection, id, err)
	}
	return toDocument(id, data, created, updated)
}

// List runs q against collection. Without an ordering, documents come back
// in insertion order.
func (s *Store) List(ctx context.Context, collection string, q *store.Query) ([]store.Document, error) {
	if !store.ValidCollection(collection) {
		return nil, fmt.Errorf("%w: collection %q", store.ErrInvalidQuery, collection)
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	var b strings.Builder
	args := []any{collection}
	b.WriteString(`SELECT id, data, created_at, updated_at FROM documents WHERE collection = ?`)
	if q != nil && q.Where != nil {
		b.WriteString(` AND json_extract(data, ?) ` + sqlOp(q.Where.Op) + ` ?`)
		args = append(args, jsonPath(q.Where.Field), encodeValue(q.Where.Value, s.now()))
	}
	if q != nil && q.OrderBy != "" {
		dir := "ASC"
		if q.Desc {
			dir = "DESC"
		}
		b.WriteString(` ORDER BY json_extract(data, ?) ` + dir + `, rowid ` + dir)
		args = append(args, jsonPath(q.OrderBy))
	} else {
		b.WriteString(` ORDER BY rowid`)
	}
	if q != nil && q.Limit > 0 {
		b.WriteString(` LIMIT ?`)
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: list %s: %w", collection, err)
	}
	defer rows.Close()

	var docs []store.Document
	for rows.Next() {
		var id, data, created, updated string
		if err := rows.Scan(&id, &data, &created, &updated); err != nil {
			return nil, err
		}
		doc, err := toDocument(id, data, created, updated)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Update merges partial into the top level of an existing document.
func (s *Store) Update(ctx context.Context, collection, id string, partial store.Record) error {
	if err := checkWrite(collection, partial); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	doc, err := getDoc(ctx, tx, collection, id)
	if err != nil {
		return err
	}
	now := s.now()
	data, err := encode(store.Merge(doc.Data, partial), now)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE documents SET data = ?, updated_at = ? WHERE collection = ? AND id = ?`,
		data, formatTime(now), collection, id); err != nil {
		return fmt.Errorf("sqlitestore: update %s/%s: %w", collection, id, err)
	}
	return tx.Commit()
}

// Delete removes a document. Deleting a missing document is not an error.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id)
	if err != nil {
		return fmt.Errorf("sqlitestore: delete %s/%s: %w", collection, id, err)
	}
	return nil
}

func checkWrite(collection string, rec store.Record) error {
	if !store.ValidCollection(collection) {
		return fmt.Errorf("%w: collection %q", store.ErrInvalidRecord, collection)
	}
	return store.ValidateRecord(rec)
}

func sqlOp(op store.Op) string {
	if op == store.Eq {
		return "="
	}
	return string(op)
}

func jsonPath(field string) string {
	return "$." + field
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func encode(rec store.Record, now time.Time) (string, error) {
	b, err := json.Marshal(encodeValue(rec, now))
	if err != nil {
		return "", fmt.Errorf("%w: %v", store.ErrInvalidRecord, err)
	}
	return string(b), nil
}

// encodeValue rewrites times and the server timestamp sentinel into their
// stored string form.
func encodeValue(v any, now time.Time) any {
	switch x := v.(type) {
	case time.Time:
		return formatTime(x)
	case store.Record:
		return encodeMap(x, now)
	case map[string]any:
		return encodeMap(x, now)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = encodeValue(e, now)
		}
		return out
	case []map[string]any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = encodeMap(e, now)
		}
		return out
	default:
		if v == store.ServerTimestamp {
			return formatTime(now)
		}
		return v
	}
}

func encodeMap(m map[string]any, now time.Time) map[string]any {
	out := make(map[string]any, len(m))
	for k, e := range m {
		out[k] = encodeValue(e, now)
	}
	return out
}

func toDocument(id, data, created, updated string) (store.Document, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(data), &raw); err != nil {
		return store.Document{}, fmt.Errorf("sqlitestore: decode %s: %w", id, err)
	}
	doc := store.Document{ID: id, Data: store.Record(decodeMap(raw))}
	doc.CreateTime, _ = time.Parse(timeLayout, created)
	doc.UpdateTime, _ = time.Parse(timeLayout, updated)
	return doc, nil
}

func decodeMap(m map[string]any) map[string]any {
	for k, v := range m {
		m[k] = decodeValue(v)
	}
	return m
}

func decodeValue(v any) any {
	switch x := v.(type) {
	case string:
		if len(x) == len(timeLayout) {
			if t, err := time.Parse(timeLayout, x); err == nil {
				return t
			}
		}
		return x
	case map[string]any:
		return decodeMap(x)
	case []any:
		for i, e := range x {
			x[i] = decodeValue(e)
		}
		return x
	default:
		return v
	}
}

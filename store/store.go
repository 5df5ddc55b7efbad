// Package store defines the document and blob storage contract used by the
// content layer. Backends live in sub-packages: sqlitestore for a single-node
// deployment and hosted for Firestore plus Firebase Storage.
//
// Every operation may fail with a connectivity or permission error. Backends
// never retry; retry policy belongs to the caller.
package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned by Get and Update when the document does not exist.
	ErrNotFound = errors.New("store: document not found")
	// ErrInvalidQuery is returned for malformed filters or field names.
	ErrInvalidQuery = errors.New("store: invalid query")
	// ErrInvalidRecord is returned when a record carries a value that cannot be persisted.
	ErrInvalidRecord = errors.New("store: invalid record")
	// ErrInvalidPath is returned for blob paths that escape their namespace.
	ErrInvalidPath = errors.New("store: invalid blob path")
)

// Record is a schemaless document body.
type Record map[string]any

// Document is a record together with its store-assigned identity and write times.
type Document struct {
	ID         string
	Data       Record
	CreateTime time.Time
	UpdateTime time.Time
}

type sentinel int

// ServerTimestamp can be stored as a field value; the backend replaces it
// with its own clock at write time.
const ServerTimestamp sentinel = 1

// Op is a comparison operator usable in a Filter.
type Op string

const (
	Eq Op = "=="
	Lt Op = "<"
	Le Op = "<="
	Gt Op = ">"
	Ge Op = ">="
)

// Filter restricts a query to documents whose Field compares to Value.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Query describes a single-field filter, a single-field ordering and a limit.
// A nil query lists the whole collection in creation order.
type Query struct {
	Where   *Filter
	OrderBy string
	Desc    bool
	Limit   int
}

// Store is the document half of the content store.
type Store interface {
	Create(ctx context.Context, collection string, rec Record) (string, error)
	Set(ctx context.Context, collection, id string, rec Record) error
	Get(ctx context.Context, collection, id string) (Document, error)
	List(ctx context.Context, collection string, q *Query) ([]Document, error)
	Update(ctx context.Context, collection, id string, partial Record) error
	Delete(ctx context.Context, collection, id string) error
}

// BlobStore is the file half of the content store. UploadBlob returns a
// durable URL; DeleteBlob accepts that same URL and succeeds when the blob
// is already gone.
type BlobStore interface {
	UploadBlob(ctx context.Context, path string, r io.Reader, contentType string) (string, error)
	DeleteBlob(ctx context.Context, url string) error
}

var fieldName = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// ValidField reports whether name can be used as a field name.
func ValidField(name string) bool {
	return fieldName.MatchString(name)
}

// ValidCollection reports whether name can be used as a collection name.
func ValidCollection(name string) bool {
	return fieldName.MatchString(name)
}

// Validate checks field names and operators. A nil query is valid.
func (q *Query) Validate() error {
	if q == nil {
		return nil
	}
	if q.Where != nil {
		if !ValidField(q.Where.Field) {
			return fmt.Errorf("%w: field %q", ErrInvalidQuery, q.Where.Field)
		}
		switch q.Where.Op {
		case Eq, Lt, Le, Gt, Ge:
		default:
			return fmt.Errorf("%w: operator %q", ErrInvalidQuery, q.Where.Op)
		}
		if err := validateValue(q.Where.Value); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidQuery, err)
		}
	}
	if q.OrderBy != "" && !ValidField(q.OrderBy) {
		return fmt.Errorf("%w: order field %q", ErrInvalidQuery, q.OrderBy)
	}
	if q.Limit < 0 {
		return fmt.Errorf("%w: negative limit", ErrInvalidQuery)
	}
	return nil
}

// ValidateRecord checks that every key is a valid field name and every value
// is a plain data value. Readers, file handles and other opaque types are
// rejected so they can never end up in a document.
func ValidateRecord(rec Record) error {
	for k, v := range rec {
		if !ValidField(k) {
			return fmt.Errorf("%w: field %q", ErrInvalidRecord, k)
		}
		if err := validateValue(v); err != nil {
			return fmt.Errorf("%w: field %q: %v", ErrInvalidRecord, k, err)
		}
	}
	return nil
}

func validateValue(v any) error {
	switch x := v.(type) {
	case nil, string, bool, int, int32, int64, float32, float64, time.Time, sentinel:
		return nil
	case []string:
		return nil
	case []any:
		for _, e := range x {
			if err := validateValue(e); err != nil {
				return err
			}
		}
		return nil
	case []map[string]any:
		for _, e := range x {
			if err := ValidateRecord(e); err != nil {
				return err
			}
		}
		return nil
	case Record:
		return ValidateRecord(x)
	case map[string]any:
		return ValidateRecord(x)
	default:
		return fmt.Errorf("unsupported value type %T", v)
	}
}

// ValidatePath rejects empty, absolute and parent-relative blob paths.
func ValidatePath(p string) error {
	if p == "" || strings.HasPrefix(p, "/") || strings.Contains(p, "\\") {
		return fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return fmt.Errorf("%w: %q", ErrInvalidPath, p)
		}
	}
	return nil
}

// Merge returns a copy of base with the top-level keys of patch applied.
func Merge(base, patch Record) Record {
	out := make(Record, len(base)+len(patch))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}

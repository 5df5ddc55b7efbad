package content

import (
	"time"

	"github.com/eringen/bandsite/store"
)

// Field readers tolerate the value types produced by both backends: JSON
// numbers arrive as float64 from SQLite and as int64 from Firestore.

func str(r store.Record, key string) string {
	s, _ := r[key].(string)
	return s
}

func num(r store.Record, key string) float64 {
	switch v := r[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case int32:
		return float64(v)
	}
	return 0
}

func integer(r store.Record, key string) int {
	return int(num(r, key))
}

func timestamp(r store.Record, key string) time.Time {
	switch v := r[key].(type) {
	case time.Time:
		return v
	case string:
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04", "2006-01-02"} {
			if t, err := time.Parse(layout, v); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}

func strs(r store.Record, key string) []string {
	switch v := r[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func sub(r store.Record, key string) store.Record {
	switch v := r[key].(type) {
	case store.Record:
		return v
	case map[string]any:
		return store.Record(v)
	}
	return nil
}

func records(r store.Record, key string) []store.Record {
	switch v := r[key].(type) {
	case []map[string]any:
		out := make([]store.Record, len(v))
		for i, m := range v {
			out[i] = m
		}
		return out
	case []any:
		out := make([]store.Record, 0, len(v))
		for _, e := range v {
			switch m := e.(type) {
			case map[string]any:
				out = append(out, m)
			case store.Record:
				out = append(out, m)
			}
		}
		return out
	}
	return nil
}

// putTime stores t unless it is zero.
func putTime(r store.Record, key string, t time.Time) {
	if !t.IsZero() {
		r[key] = t
	}
}

// putStr stores s unless it is empty.
func putStr(r store.Record, key, s string) {
	if s != "" {
		r[key] = s
	}
}

package sqlitestore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/eringen/bandsite/store"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test_site.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen(t *testing.T) {
	s := setupTestStore(t)
	if s.db == nil {
		t.Fatal("db should not be nil")
	}
}

func TestCreateAndGet(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	id, err := s.Create(ctx, "songs", store.Record{
		"title":     "Grace",
		"genre":     "gospel",
		"tags":      []string{"live", "acoustic"},
		"createdAt": store.ServerTimestamp,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if id == "" {
		t.Fatal("expected a generated id")
	}

	doc, err := s.Get(ctx, "songs", id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if doc.ID != id {
		t.Errorf("ID = %q, want %q", doc.ID, id)
	}
	if doc.Data["title"] != "Grace" {
		t.Errorf("title = %v, want Grace", doc.Data["title"])
	}
	if _, ok := doc.Data["createdAt"].(time.Time); !ok {
		t.Errorf("createdAt = %T, want time.Time", doc.Data["createdAt"])
	}
	if doc.CreateTime.IsZero() {
		t.Error("CreateTime should be set")
	}
}

func TestGetMissing(t *testing.T) {
	s := setupTestStore(t)
	_, err := s.Get(context.Background(), "songs", "nope")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSetKeepsCreateTime(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return first }
	if err := s.Set(ctx, "settings", "main", store.Record{"heroTitle": "A"}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	s.now = func() time.Time { return first.Add(time.Hour) }
	if err := s.Set(ctx, "settings", "main", store.Record{"heroTitle": "B"}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	doc, err := s.Get(ctx, "settings", "main")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if doc.Data["heroTitle"] != "B" {
		t.Errorf("heroTitle = %v, want B", doc.Data["heroTitle"])
	}
	if !doc.CreateTime.Equal(first) {
		t.Errorf("CreateTime = %v, want %v", doc.CreateTime, first)
	}
	if !doc.UpdateTime.Equal(first.Add(time.Hour)) {
		t.Errorf("UpdateTime = %v, want %v", doc.UpdateTime, first.Add(time.Hour))
	}
}

func TestUpdateMergesTopLevel(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	id, err := s.Create(ctx, "auditions", store.Record{"name": "Ana", "status": "pending"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := s.Update(ctx, "auditions", id, store.Record{"status": "approved"}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	doc, _ := s.Get(ctx, "auditions", id)
	if doc.Data["status"] != "approved" || doc.Data["name"] != "Ana" {
		t.Errorf("data = %v", doc.Data)
	}
}

func TestUpdateMissing(t *testing.T) {
	s := setupTestStore(t)
	err := s.Update(context.Background(), "auditions", "missing", store.Record{"status": "approved"})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	id, _ := s.Create(ctx, "members", store.Record{"name": "Jo"})
	if err := s.Delete(ctx, "members", id); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := s.Delete(ctx, "members", id); err != nil {
		t.Fatalf("second Delete failed: %v", err)
	}
	if _, err := s.Get(ctx, "members", id); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestListFilterOrderLimit(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC)
	for i, title := range []string{"past", "soon", "later", "latest"} {
		_, err := s.Create(ctx, "events", store.Record{
			"title": title,
			"date":  base.Add(time.Duration(i-1) * 24 * time.Hour),
		})
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	docs, err := s.List(ctx, "events", &store.Query{
		Where:   &store.Filter{Field: "date", Op: store.Ge, Value: base},
		OrderBy: "date",
		Limit:   2,
	})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("got %d docs, want 2", len(docs))
	}
	if docs[0].Data["title"] != "soon" || docs[1].Data["title"] != "later" {
		t.Errorf("order = %v, %v", docs[0].Data["title"], docs[1].Data["title"])
	}

	docs, err = s.List(ctx, "events", &store.Query{OrderBy: "date", Desc: true})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(docs) != 4 || docs[0].Data["title"] != "latest" {
		t.Errorf("desc order wrong: %v", docs)
	}
}

func TestListDefaultsToInsertionOrder(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	for _, name := range []string{"c", "a", "b"} {
		s.Create(ctx, "members", store.Record{"name": name})
	}
	docs, err := s.List(ctx, "members", nil)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	var got []string
	for _, d := range docs {
		got = append(got, d.Data["name"].(string))
	}
	if strings.Join(got, "") != "cab" {
		t.Errorf("order = %v, want [c a b]", got)
	}
}

func TestListEqualityOnString(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	s.Create(ctx, "auditions", store.Record{"name": "A", "status": "pending"})
	s.Create(ctx, "auditions", store.Record{"name": "B", "status": "approved"})
	s.Create(ctx, "auditions", store.Record{"name": "C", "status": "pending"})
	docs, err := s.List(ctx, "auditions", &store.Query{
		Where: &store.Filter{Field: "status", Op: store.Eq, Value: "pending"},
	})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(docs) != 2 {
		t.Errorf("got %d pending, want 2", len(docs))
	}
}

func TestRejectsInvalidInput(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	f, err := os.CreateTemp(t.TempDir(), "blob")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, err := s.Create(ctx, "songs", store.Record{"audioFile": f}); !errors.Is(err, store.ErrInvalidRecord) {
		t.Errorf("file handle: err = %v, want ErrInvalidRecord", err)
	}
	if _, err := s.Create(ctx, "songs", store.Record{"bad-key": 1}); !errors.Is(err, store.ErrInvalidRecord) {
		t.Errorf("bad key: err = %v, want ErrInvalidRecord", err)
	}
	_, err = s.List(ctx, "songs", &store.Query{OrderBy: "x') DESC; --"})
	if !errors.Is(err, store.ErrInvalidQuery) {
		t.Errorf("bad order: err = %v, want ErrInvalidQuery", err)
	}
}

func TestFileBlobs(t *testing.T) {
	dir := t.TempDir()
	b := NewFileBlobs(dir, "/uploads/")
	ctx := context.Background()

	url, err := b.UploadBlob(ctx, "songs/1_grace.mp3", strings.NewReader("audio"), "audio/mpeg")
	if err != nil {
		t.Fatalf("UploadBlob failed: %v", err)
	}
	if url != "/uploads/songs/1_grace.mp3" {
		t.Errorf("url = %q", url)
	}
	data, err := os.ReadFile(filepath.Join(dir, "songs", "1_grace.mp3"))
	if err != nil || string(data) != "audio" {
		t.Fatalf("blob content = %q, %v", data, err)
	}

	if err := b.DeleteBlob(ctx, url); err != nil {
		t.Fatalf("DeleteBlob failed: %v", err)
	}
	if err := b.DeleteBlob(ctx, url); err != nil {
		t.Fatalf("second DeleteBlob failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "songs", "1_grace.mp3")); !os.IsNotExist(err) {
		t.Errorf("blob should be gone, stat err = %v", err)
	}
}

func TestFileBlobsRejectsTraversal(t *testing.T) {
	b := NewFileBlobs(t.TempDir(), "/uploads")
	ctx := context.Background()
	if _, err := b.UploadBlob(ctx, "../escape.txt", strings.NewReader("x"), "text/plain"); !errors.Is(err, store.ErrInvalidPath) {
		t.Errorf("upload err = %v, want ErrInvalidPath", err)
	}
	if err := b.DeleteBlob(ctx, "/uploads/../../etc/passwd"); !errors.Is(err, store.ErrInvalidPath) {
		t.Errorf("delete err = %v, want ErrInvalidPath", err)
	}
}

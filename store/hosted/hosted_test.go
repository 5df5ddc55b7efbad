package hosted

import (
	"context"
	"testing"

	"cloud.google.com/go/firestore"
	"github.com/stretchr/testify/assert"

	"github.com/eringen/bandsite/store"
)

func TestToFirestoreReplacesServerTimestamp(t *testing.T) {
	out := toFirestore(store.Record{
		"title":     "Grace",
		"createdAt": store.ServerTimestamp,
		"heroVideo": store.Record{"mp4Url": "a", "at": store.ServerTimestamp},
	})
	assert.Equal(t, "Grace", out["title"])
	assert.Equal(t, firestore.ServerTimestamp, out["createdAt"])
	nested := out["heroVideo"].(map[string]any)
	assert.Equal(t, firestore.ServerTimestamp, nested["at"])
}

func TestBlobURL(t *testing.T) {
	b := NewBlobs(nil, "u4c-band.appspot.com")
	assert.Equal(t, "https://storage.googleapis.com/u4c-band.appspot.com/songs/1_a.mp3", b.url("songs/1_a.mp3"))
}

func TestDeleteForeignBlobIsNoop(t *testing.T) {
	b := NewBlobs(nil, "u4c-band.appspot.com")
	assert.NoError(t, b.DeleteBlob(context.Background(), "https://example.com/cover.jpg"))
}

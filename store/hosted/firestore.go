package hosted

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/eringen/bandsite/store"
)

// Store is a store.Store over a Firestore client.
type Store struct {
	client *firestore.Client
}

// NewStore wraps an existing Firestore client.
func NewStore(client *firestore.Client) *Store {
	return &Store{client: client}
}

func (s *Store) Create(ctx context.Context, collection string, rec store.Record) (string, error) {
	if err := store.ValidateRecord(rec); err != nil {
		return "", err
	}
	ref, _, err := s.client.Collection(collection).Add(ctx, toFirestore(rec))
	if err != nil {
		return "", fmt.Errorf("firestore: create %s: %w", collection, mapErr(err))
	}
	return ref.ID, nil
}

func (s *Store) Set(ctx context.Context, collection, id string, rec store.Record) error {
	if err := store.ValidateRecord(rec); err != nil {
		return err
	}
	if _, err := s.client.Collection(collection).Doc(id).Set(ctx, toFirestore(rec)); err != nil {
		return fmt.Errorf("firestore: set %s/%s: %w", collection, id, mapErr(err))
	}
	return nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (store.Document, error) {
	snap, err := s.client.Collection(collection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return store.Document{}, store.ErrNotFound
		}
		return store.Document{}, fmt.Errorf("firestore: get %s/%s: %w", collection, id, err)
	}
	return toDocument(snap), nil
}

func (s *Store) List(ctx context.Context, collection string, q *store.Query) ([]store.Document, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	query := s.client.Collection(collection).Query
	if q != nil {
		if q.Where != nil {
			query = query.Where(q.Where.Field, string(q.Where.Op), q.Where.Value)
		}
		if q.OrderBy != "" {
			dir := firestore.Asc
			if q.Desc {
				dir = firestore.Desc
			}
			query = query.OrderBy(q.OrderBy, dir)
		}
		if q.Limit > 0 {
			query = query.Limit(q.Limit)
		}
	}
	snaps, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("firestore: list %s: %w", collection, mapErr(err))
	}
	docs := make([]store.Document, 0, len(snaps))
	for _, snap := range snaps {
		docs = append(docs, toDocument(snap))
	}
	return docs, nil
}

func (s *Store) Update(ctx context.Context, collection, id string, partial store.Record) error {
	if err := store.ValidateRecord(partial); err != nil {
		return err
	}
	updates := make([]firestore.Update, 0, len(partial))
	for k, v := range partial {
		updates = append(updates, firestore.Update{Path: k, Value: fromSentinel(v)})
	}
	if _, err := s.client.Collection(collection).Doc(id).Update(ctx, updates); err != nil {
		return fmt.Errorf("firestore: update %s/%s: %w", collection, id, mapErr(err))
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if _, err := s.client.Collection(collection).Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("firestore: delete %s/%s: %w", collection, id, err)
	}
	return nil
}

func mapErr(err error) error {
	if status.Code(err) == codes.NotFound {
		return store.ErrNotFound
	}
	return err
}

func toDocument(snap *firestore.DocumentSnapshot) store.Document {
	return store.Document{
		ID:         snap.Ref.ID,
		Data:       store.Record(snap.Data()),
		CreateTime: snap.CreateTime,
		UpdateTime: snap.UpdateTime,
	}
}

func toFirestore(rec store.Record) map[string]any {
	out := make(map[string]any, len(rec))
	for k, v := range rec {
		out[k] = fromSentinel(v)
	}
	return out
}

func fromSentinel(v any) any {
	switch x := v.(type) {
	case store.Record:
		return toFirestore(x)
	case map[string]any:
		return toFirestore(x)
	default:
		if v == store.ServerTimestamp {
			return firestore.ServerTimestamp
		}
		return v
	}
}

package content

import (
	"context"
	"errors"
	"time"

	"github.com/eringen/bandsite/store"
)

// Retry calls fn up to attempts times, doubling backoff between tries.
// Missing documents and validation errors are returned at once. Use it on
// read paths only; writes are never retried implicitly.
func Retry[T any](ctx context.Context, attempts int, backoff time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var (
		v   T
		err error
	)
	for i := 0; i < attempts; i++ {
		v, err = fn(ctx)
		if err == nil || errors.Is(err, store.ErrNotFound) || IsValidation(err) {
			return v, err
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return v, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return v, err
}

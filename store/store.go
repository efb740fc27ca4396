// Package store defines the durable record store that sits behind the cache.
package store

import (
	"context"
	"errors"

	"github.com/aldehir/cache-service/types"
)

// ErrRecordNotFound is returned by FindByID when no record has the id.
var ErrRecordNotFound = errors.New("record not found")

// Store is a keyed, durable record store. Every call is synchronous and
// atomic with respect to other calls on the same store.
type Store interface {
	FindByID(ctx context.Context, id int64) (types.Record, error)
	// Save inserts the record or overwrites the one with the same id.
	Save(ctx context.Context, rec types.Record) error
	// Delete is a no-op when the record is absent.
	Delete(ctx context.Context, rec types.Record) error
	DeleteAll(ctx context.Context) error
}

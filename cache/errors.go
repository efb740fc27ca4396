package cache

import (
	"errors"
	"fmt"
)

// ErrNotFound matches any *NotFoundError via errors.Is.
var ErrNotFound = errors.New("entry not found")

// NotFoundError reports an id that is in neither the cache nor the store.
type NotFoundError struct {
	ID int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("Entry not found for the id - %d", e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// StoreError wraps a failure returned by the durable store.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

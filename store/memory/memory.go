// Package memory is an in-process Store, used for local runs and tests.
package memory

import (
	"context"
	"sync"

	"github.com/aldehir/cache-service/store"
	"github.com/aldehir/cache-service/types"
)

type Store struct {
	mu      sync.RWMutex
	records map[int64]types.Record
}

var _ store.Store = (*Store)(nil)

func New(records ...types.Record) *Store {
	s := &Store{records: make(map[int64]types.Record, len(records))}
	for _, rec := range records {
		s.records[rec.ID] = rec
	}
	return s
}

func (s *Store) FindByID(_ context.Context, id int64) (types.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return types.Record{}, store.ErrRecordNotFound
	}
	return rec, nil
}

func (s *Store) Save(_ context.Context, rec types.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = rec
	return nil
}

func (s *Store) Delete(_ context.Context, rec types.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, rec.ID)
	return nil
}

func (s *Store) DeleteAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[int64]types.Record)
	return nil
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}


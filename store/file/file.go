// Package file is a Store persisted as a single YAML document. Every
// mutation rewrites the document through a temp file and a rename, so a
// crash leaves either the old or the new contents on disk.
package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/aldehir/cache-service/store"
	"github.com/aldehir/cache-service/types"
)

type document struct {
	Records []types.Record `yaml:"records"`
}

type Store struct {
	path    string
	mu      sync.Mutex
	records map[int64]types.Record
}

var _ store.Store = (*Store)(nil)

// Open loads path, treating a missing or empty file as an empty store.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	s := &Store{
		path:    path,
		records: make(map[int64]types.Record),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read store file: %w", err)
	}
	if len(data) == 0 {
		return s, nil
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse store file %s: %w", path, err)
	}
	for _, rec := range doc.Records {
		s.records[rec.ID] = rec
	}

	return s, nil
}

func (s *Store) FindByID(_ context.Context, id int64) (types.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return types.Record{}, store.ErrRecordNotFound
	}
	return rec, nil
}

func (s *Store) Save(_ context.Context, rec types.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed := s.records[rec.ID]
	s.records[rec.ID] = rec
	if err := s.flush(); err != nil {
		if existed {
			s.records[rec.ID] = prev
		} else {
			delete(s.records, rec.ID)
		}
		return err
	}
	return nil
}

func (s *Store) Delete(_ context.Context, rec types.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed := s.records[rec.ID]
	if !existed {
		return nil
	}
	delete(s.records, rec.ID)
	if err := s.flush(); err != nil {
		s.records[rec.ID] = prev
		return err
	}
	return nil
}

func (s *Store) DeleteAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.records
	s.records = make(map[int64]types.Record)
	if err := s.flush(); err != nil {
		s.records = prev
		return err
	}
	return nil
}

// Close is a no-op; every mutation is already on disk when it returns.
func (s *Store) Close() error {
	return nil
}

// flush must be called with s.mu held.
func (s *Store) flush() error {
	doc := document{Records: make([]types.Record, 0, len(s.records))}
	for _, rec := range s.records {
		doc.Records = append(doc.Records, rec)
	}
	sort.Slice(doc.Records, func(i, j int) bool { return doc.Records[i].ID < doc.Records[j].ID })

	data, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("failed to encode records: %w", err)
	}

	tmpPath := s.path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create store file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write store file: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync store file: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close store file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename store file: %w", err)
	}

	return nil
}

package store

import (
	"context"
	"sort"
	"sync"
)

// Memory keeps records in process. It backs tests and single-node runs.
type Memory struct {
	mu     sync.RWMutex
	docs   map[string]Record
	byHash map[string]string
}

func NewMemory() *Memory {
	return &Memory{
		docs:   make(map[string]Record),
		byHash: make(map[string]string),
	}
}

func (m *Memory) Save(_ context.Context, rec Record) error {
	if err := rec.normalize(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.docs[rec.DocID]; ok && old.ContentHash != rec.ContentHash {
		delete(m.byHash, old.ContentHash)
	}
	m.docs[rec.DocID] = rec
	if rec.ContentHash != "" {
		m.byHash[rec.ContentHash] = rec.DocID
	}
	return nil
}

func (m *Memory) Get(_ context.Context, docID string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.docs[docID]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (m *Memory) List(_ context.Context) ([]Record, error) {
	m.mu.RLock()
	out := make([]Record, 0, len(m.docs))
	for _, rec := range m.docs {
		out = append(out, rec.Summary())
	}
	m.mu.RUnlock()

	sortNewestFirst(out)
	return out, nil
}

func (m *Memory) Delete(_ context.Context, docID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.docs[docID]
	if !ok {
		return ErrNotFound
	}
	delete(m.docs, docID)
	if m.byHash[rec.ContentHash] == docID {
		delete(m.byHash, rec.ContentHash)
	}
	return nil
}

func (m *Memory) FindByHash(_ context.Context, hash string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byHash[hash]
	if !ok {
		return "", ErrNotFound
	}
	return id, nil
}

func (m *Memory) Close(context.Context) error { return nil }

func sortNewestFirst(recs []Record) {
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].CreatedAt.After(recs[j].CreatedAt)
		}
		return recs[i].DocID < recs[j].DocID
	})
}

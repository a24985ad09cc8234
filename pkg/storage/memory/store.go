// Package memory provides in-process implementations of the storage
// collaborators, used for tests and single-binary setups.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/MiteyIronPaw/selfoss/pkg/sources"
	"github.com/MiteyIronPaw/selfoss/pkg/spouts"
)

// SourceStore is a map-backed sources.Store.
type SourceStore struct {
	mu      sync.RWMutex
	records map[string]*sources.Source
}

func NewSourceStore() *SourceStore {
	return &SourceStore{
		records: make(map[string]*sources.Source),
	}
}

func (s *SourceStore) List(_ context.Context) ([]*sources.Source, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*sources.Source, 0, len(s.records))
	for _, src := range s.records {
		out = append(out, src.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out, nil
}

func (s *SourceStore) Upsert(_ context.Context, src *sources.Source) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[src.ID] = src.Clone()
	return nil
}

func (s *SourceStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, id)
	return nil
}

// ItemStore accumulates fetched items, de-duplicated by source and item id.
type ItemStore struct {
	mu    sync.RWMutex
	items map[string]map[string]spouts.Item
}

func NewItemStore() *ItemStore {
	return &ItemStore{
		items: make(map[string]map[string]spouts.Item),
	}
}

func (s *ItemStore) Store(_ context.Context, sourceID string, items []spouts.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bySource, ok := s.items[sourceID]
	if !ok {
		bySource = make(map[string]spouts.Item)
		s.items[sourceID] = bySource
	}

	for _, item := range items {
		bySource[item.ID] = item
	}

	return nil
}

func (s *ItemStore) BySource(sourceID string) []spouts.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]spouts.Item, 0, len(s.items[sourceID]))
	for _, item := range s.items[sourceID] {
		out = append(out, item)
	}

	return out
}

package vectordb

import (
	"context"
	"sort"
	"sync"

	"github.com/0xcro3dile/shotfind/internal/domain/entities"
	"github.com/0xcro3dile/shotfind/internal/domain/ports"
)

type memoryRecord struct {
	rec       entities.DescriptionRecord
	embedding []float32
}

// InMemoryStore is a process-local description store. Nothing survives exit.
type InMemoryStore struct {
	mu       sync.RWMutex
	embedder ports.EmbeddingService
	records  map[string]memoryRecord
	order    []string
}

// NewInMemoryStore creates an empty store that embeds with embedder.
func NewInMemoryStore(embedder ports.EmbeddingService) *InMemoryStore {
	return &InMemoryStore{
		embedder: embedder,
		records:  make(map[string]memoryRecord),
	}
}

// Get returns the stored records among ids.
func (s *InMemoryStore) Get(ctx context.Context, ids []string) ([]entities.DescriptionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []entities.DescriptionRecord
	for _, id := range ids {
		if r, ok := s.records[id]; ok {
			out = append(out, r.rec)
		}
	}
	return out, nil
}

// Add embeds and stores rec.
func (s *InMemoryStore) Add(ctx context.Context, rec entities.DescriptionRecord) error {
	vec, err := s.embedder.Embed(ctx, rec.Document)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[rec.ID]; ok {
		return ports.ErrDuplicateID
	}
	s.records[rec.ID] = memoryRecord{rec: rec, embedding: vec}
	s.order = append(s.order, rec.ID)
	return nil
}

// Query finds the records most similar to text.
func (s *InMemoryStore) Query(ctx context.Context, text string, n int) ([]entities.QueryResult, error) {
	query, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]entities.QueryResult, 0, len(s.order))
	for _, id := range s.order {
		r := s.records[id]
		results = append(results, entities.QueryResult{
			ID:       r.rec.ID,
			Document: r.rec.Document,
			Distance: 1 - cosineSimilarity(query, r.embedding),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})

	if n > 0 && len(results) > n {
		results = results[:n]
	}
	return results, nil
}

// All returns every record in insertion order.
func (s *InMemoryStore) All(ctx context.Context) ([]entities.DescriptionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]entities.DescriptionRecord, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.records[id].rec)
	}
	return out, nil
}

// Delete removes records by id.
func (s *InMemoryStore) Delete(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, ok := s.records[id]; ok {
			delete(s.records, id)
			drop[id] = true
		}
	}
	if len(drop) == 0 {
		return nil
	}

	kept := s.order[:0]
	for _, id := range s.order {
		if !drop[id] {
			kept = append(kept, id)
		}
	}
	s.order = kept
	return nil
}

package vectordb

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
)

// row is one stored embedding.
type row struct {
	id       string
	vector   []float32
	metadata map[string]any
	document string
}

type memCollection struct {
	mu        sync.RWMutex
	dimension int
	rows      map[string]*row
	order     []string
}

// Memory is an in-memory VectorDatabase, the default backend used by
// tests and by any deployment that has not configured a real backend.
// It supports vector and fulltext search (a simple substring match) and
// composes them for hybrid, so every capability in spec.md §4.1 has at
// least one exercised implementation without external dependencies.
type Memory struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
	sanitizer   *NameSanitizer
}

// NewMemory constructs an empty in-memory vector database.
func NewMemory() *Memory {
	return &Memory{
		collections: make(map[string]*memCollection),
		sanitizer:   NewNameSanitizer(),
	}
}

func (m *Memory) GetOrCreateCollection(_ context.Context, name string, dimension int) error {
	key := m.sanitizer.Safe(name)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.collections[key]; ok {
		return nil
	}
	m.collections[key] = &memCollection{dimension: dimension, rows: make(map[string]*row)}
	return nil
}

func (m *Memory) collection(name string) (*memCollection, bool) {
	key := m.sanitizer.Safe(name)
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.collections[key]
	return c, ok
}

func (m *Memory) AddEmbeddings(_ context.Context, name string, ids []string, vectors [][]float32, metadatas []map[string]any, documents []string) error {
	if len(ids) != len(vectors) || len(ids) != len(metadatas) {
		return fmt.Errorf("vectordb: mismatched lengths: ids=%d vectors=%d metadatas=%d", len(ids), len(vectors), len(metadatas))
	}
	for _, md := range metadatas {
		if _, forbidden := md["text"]; forbidden {
			return fmt.Errorf("vectordb: metadata key %q is forbidden, use documents", "text")
		}
		if err := validateMetadata(md); err != nil {
			return err
		}
	}

	c, ok := m.collection(name)
	if !ok {
		if err := m.GetOrCreateCollection(context.Background(), name, len(firstOrNil(vectors))); err != nil {
			return err
		}
		c, _ = m.collection(name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	inserted := make([]string, 0, len(ids))
	for i, id := range ids {
		if c.dimension != 0 && len(vectors[i]) != c.dimension {
			// Roll back the ids inserted earlier in this same call.
			for _, rid := range inserted {
				delete(c.rows, rid)
			}
			c.order = removeAll(c.order, inserted)
			return fmt.Errorf("vectordb: vector dimension %d does not match collection dimension %d (rolled back %d rows)", len(vectors[i]), c.dimension, len(inserted))
		}
		var doc string
		if i < len(documents) {
			doc = documents[i]
		}
		if _, exists := c.rows[id]; !exists {
			c.order = append(c.order, id)
		}
		c.rows[id] = &row{id: id, vector: vectors[i], metadata: metadatas[i], document: doc}
		inserted = append(inserted, id)
	}
	return nil
}

func validateMetadata(md map[string]any) error {
	for k, v := range md {
		for _, r := range k {
			if r == 0 {
				return fmt.Errorf("vectordb: metadata key %q contains NUL", k)
			}
		}
		if s, ok := v.(string); ok {
			for _, r := range s {
				if r == 0 {
					return fmt.Errorf("vectordb: metadata value for key %q contains NUL", k)
				}
				if r < 0x20 && r != '\t' && r != '\n' && r != '\r' {
					return fmt.Errorf("vectordb: metadata value for key %q contains a control character", k)
				}
			}
		}
	}
	return nil
}

func (m *Memory) Search(_ context.Context, name string, queryVector []float32, k int) (SearchResult, error) {
	c, ok := m.collection(name)
	if !ok {
		return SearchResult{}, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	type scored struct {
		row  *row
		dist float64
	}
	scores := make([]scored, 0, len(c.rows))
	for _, id := range c.order {
		r := c.rows[id]
		scores = append(scores, scored{row: r, dist: cosineDistance(queryVector, r.vector)})
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i].dist < scores[j].dist })
	if k > 0 && len(scores) > k {
		scores = scores[:k]
	}
	return toSearchResult(scores), nil
}

func (m *Memory) SearchFulltext(_ context.Context, name string, query string, k int) (SearchResult, error) {
	c, ok := m.collection(name)
	if !ok {
		return SearchResult{}, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	type scored struct {
		row  *row
		dist float64
	}
	q := strings.ToLower(query)
	var scores []scored
	for _, id := range c.order {
		r := c.rows[id]
		if strings.Contains(strings.ToLower(r.document), q) {
			scores = append(scores, scored{row: r, dist: 0})
		}
	}
	if k > 0 && len(scores) > k {
		scores = scores[:k]
	}
	return toSearchResult(scores), nil
}

func (m *Memory) SearchHybrid(ctx context.Context, name string, queryVector []float32, query string, k int) (SearchResult, error) {
	vecResult, err := m.Search(ctx, name, queryVector, k)
	if err != nil {
		return SearchResult{}, err
	}
	textResult, err := m.SearchFulltext(ctx, name, query, k)
	if err != nil {
		return SearchResult{}, err
	}
	return mergeByRank(vecResult, textResult, k), nil
}

func (m *Memory) DeleteByFileID(_ context.Context, name string, fileID string) error {
	c, ok := m.collection(name)
	if !ok {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	var removed []string
	for id, r := range c.rows {
		if fmt.Sprint(r.metadata["file_id"]) == fileID {
			delete(c.rows, id)
			removed = append(removed, id)
		}
	}
	c.order = removeAll(c.order, removed)
	return nil
}

func (m *Memory) DeleteCollection(_ context.Context, name string) error {
	key := m.sanitizer.Safe(name)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.collections, key)
	return nil
}

func (m *Memory) GetCapabilities() map[Capability]bool {
	return map[Capability]bool{CapVector: true, CapFulltext: true, CapHybrid: true}
}

func cosineDistance(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return math.MaxFloat64
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	cos := dot / (math.Sqrt(na) * math.Sqrt(nb))
	return 1 - cos
}

func toSearchResult(scores []struct {
	row  *row
	dist float64
}) SearchResult {
	out := SearchResult{}
	for _, s := range scores {
		out.IDs = append(out.IDs, s.row.id)
		out.Distances = append(out.Distances, s.dist)
		out.Metadatas = append(out.Metadatas, s.row.metadata)
		out.Documents = append(out.Documents, s.row.document)
	}
	return out
}

func mergeByRank(a, b SearchResult, k int) SearchResult {
	seen := make(map[string]bool)
	out := SearchResult{}
	add := func(r SearchResult) {
		for i, id := range r.IDs {
			if seen[id] {
				continue
			}
			seen[id] = true
			out.IDs = append(out.IDs, id)
			out.Distances = append(out.Distances, r.Distances[i])
			out.Metadatas = append(out.Metadatas, r.Metadatas[i])
			out.Documents = append(out.Documents, r.Documents[i])
		}
	}
	add(a)
	add(b)
	if k > 0 && len(out.IDs) > k {
		out.IDs = out.IDs[:k]
		out.Distances = out.Distances[:k]
		out.Metadatas = out.Metadatas[:k]
		out.Documents = out.Documents[:k]
	}
	return out
}

func firstOrNil(vectors [][]float32) []float32 {
	if len(vectors) == 0 {
		return nil
	}
	return vectors[0]
}

func removeAll(order []string, remove []string) []string {
	if len(remove) == 0 {
		return order
	}
	removeSet := make(map[string]bool, len(remove))
	for _, id := range remove {
		removeSet[id] = true
	}
	out := order[:0]
	for _, id := range order {
		if !removeSet[id] {
			out = append(out, id)
		}
	}
	return out
}

package vectordb

import (
	"context"
	"fmt"
)

// BackendConfig is one entry of vdb.databases (array or object form).
type BackendConfig struct {
	Name string
	Type string
	// Extra carries backend-specific config (DSN, index params, ...).
	Extra map[string]any
}

// Config supports the three shapes from spec.md §4.1:
//
//	(a) single default backend via vdb.use = <type>
//	(b) array vdb.databases = [type1, type2]
//	(c) object vdb.databases = {name: {type, ...}}
type Config struct {
	Use       string
	Databases []BackendConfig
	Default   string
}

// Factory builds a VectorDatabase instance for a backend type ("memory",
// "pgvector", ...).
type Factory func(cfg BackendConfig) (VectorDatabase, error)

// Manager constructs and holds one VectorDatabase instance per
// configured backend (instances of the same type are shared), and
// exposes high-level delegating operations that normalize results to a
// flat [{id,score,metadata}] shape.
type Manager struct {
	backends    map[string]VectorDatabase
	defaultName string
	order       []string
}

// NewManager builds a Manager from cfg using factory to instantiate each
// backend type. Instances of the same type are shared, matching
// spec.md §4.1's note for the array config shape.
func NewManager(cfg Config, factory Factory) (*Manager, error) {
	m := &Manager{backends: make(map[string]VectorDatabase)}

	typeInstances := make(map[string]VectorDatabase)

	addBackend := func(name, backendType string, extra map[string]any) error {
		instance, ok := typeInstances[backendType]
		if !ok {
			built, err := factory(BackendConfig{Name: name, Type: backendType, Extra: extra})
			if err != nil {
				return fmt.Errorf("vectordb: construct backend %q: %w", backendType, err)
			}
			instance = built
			typeInstances[backendType] = instance
		}
		m.backends[name] = instance
		m.order = append(m.order, name)
		return nil
	}

	switch {
	case cfg.Use != "":
		if err := addBackend(cfg.Use, cfg.Use, nil); err != nil {
			return nil, err
		}
	case len(cfg.Databases) > 0:
		for _, db := range cfg.Databases {
			name := db.Name
			if name == "" {
				name = db.Type
			}
			if err := addBackend(name, db.Type, db.Extra); err != nil {
				return nil, err
			}
		}
	default:
		return nil, fmt.Errorf("vectordb: no backend configured")
	}

	m.defaultName = cfg.Default
	if m.defaultName == "" && len(m.order) > 0 {
		m.defaultName = m.order[0]
	}
	return m, nil
}

// Default returns the first configured instance when no "default" name
// is given, matching spec.md §4.1.
func (m *Manager) Default() (VectorDatabase, bool) {
	if m.defaultName == "" {
		return nil, false
	}
	db, ok := m.backends[m.defaultName]
	return db, ok
}

// Get returns a named backend instance.
func (m *Manager) Get(name string) (VectorDatabase, bool) {
	db, ok := m.backends[name]
	return db, ok
}

// FlatResult is the normalized [{id,score,metadata}] shape the manager's
// high-level operations return.
type FlatResult struct {
	ID       string
	Score    float64
	Metadata map[string]any
	Document string
}

// Upsert delegates to the named (or default) backend's
// GetOrCreateCollection+AddEmbeddings.
func (m *Manager) Upsert(ctx context.Context, backend, collection string, ids []string, vectors [][]float32, metadatas []map[string]any, documents []string) error {
	db, err := m.resolve(backend)
	if err != nil {
		return err
	}
	dim := 0
	if len(vectors) > 0 {
		dim = len(vectors[0])
	}
	if err := db.GetOrCreateCollection(ctx, collection, dim); err != nil {
		return err
	}
	return db.AddEmbeddings(ctx, collection, ids, vectors, metadatas, documents)
}

// Search delegates to the named (or default) backend and normalizes the
// batch-of-one result.
func (m *Manager) Search(ctx context.Context, backend, collection string, queryVector []float32, k int) ([]FlatResult, error) {
	db, err := m.resolve(backend)
	if err != nil {
		return nil, err
	}
	res, err := db.Search(ctx, collection, queryVector, k)
	if err != nil {
		return nil, err
	}
	return flatten(res), nil
}

// DeleteByFileID delegates to the named (or default) backend.
func (m *Manager) DeleteByFileID(ctx context.Context, backend, collection, fileID string) error {
	db, err := m.resolve(backend)
	if err != nil {
		return err
	}
	return db.DeleteByFileID(ctx, collection, fileID)
}

// DeleteCollection delegates to the named (or default) backend.
func (m *Manager) DeleteCollection(ctx context.Context, backend, collection string) error {
	db, err := m.resolve(backend)
	if err != nil {
		return err
	}
	return db.DeleteCollection(ctx, collection)
}

// DeleteByFilter is explicitly unsupported (spec.md §4.1).
func (m *Manager) DeleteByFilter(context.Context, string, string, map[string]any) error {
	return ErrFilterDeleteUnsupported
}

func (m *Manager) resolve(backend string) (VectorDatabase, error) {
	if backend == "" {
		db, ok := m.Default()
		if !ok {
			return nil, fmt.Errorf("vectordb: no default backend configured")
		}
		return db, nil
	}
	db, ok := m.Get(backend)
	if !ok {
		return nil, fmt.Errorf("vectordb: unknown backend %q", backend)
	}
	return db, nil
}

func flatten(res SearchResult) []FlatResult {
	out := make([]FlatResult, 0, len(res.IDs))
	for i, id := range res.IDs {
		fr := FlatResult{ID: id, Score: res.Distances[i]}
		if i < len(res.Metadatas) {
			fr.Metadata = res.Metadatas[i]
		}
		if i < len(res.Documents) {
			fr.Document = res.Documents[i]
		}
		out = append(out, fr)
	}
	return out
}

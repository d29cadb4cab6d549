// Package vectordb implements the uniform (upsert, search, fulltext,
// hybrid, delete) contract over multiple vector-database backends and
// the manager that wires configured backends together (spec.md §4.1, C1).
package vectordb

import (
	"context"
	"errors"
)

// Capability is one of the operations a backend advertises support for.
type Capability string

const (
	CapVector   Capability = "vector"
	CapFulltext Capability = "fulltext"
	CapHybrid   Capability = "hybrid"
)

// ErrUnsupported is returned by a backend for an operation it does not
// implement (e.g. search_fulltext on a vector-only backend). The
// retriever checks GetCapabilities before calling, so this mainly guards
// callers that skip the capability check.
var ErrUnsupported = errors.New("vectordb: unsupported operation")

// ErrFilterDeleteUnsupported is returned by DeleteByFilter, which
// spec.md §4.1 says is explicitly unsupported everywhere.
var ErrFilterDeleteUnsupported = errors.New("vectordb: filter-based deletion is not supported")

// SearchResult is the batch-of-one shape every search-style method
// returns: parallel slices of ids/distances/metadatas/documents.
type SearchResult struct {
	IDs       []string
	Distances []float64
	Metadatas []map[string]any
	Documents []string // optional; nil if the backend doesn't carry raw text
}

// Empty reports whether the result carries zero hits.
func (r SearchResult) Empty() bool { return len(r.IDs) == 0 }

// VectorDatabase is the contract every backend implements.
type VectorDatabase interface {
	// GetOrCreateCollection is idempotent; a no-op if the collection
	// already exists.
	GetOrCreateCollection(ctx context.Context, name string, dimension int) error

	// AddEmbeddings inserts rows. Preconditions: all vectors share the
	// collection's dimension; len(ids)==len(vectors)==len(metadatas).
	// Metadata keys must be JSON-safe and must not include "text" (text
	// travels via documents). A failure partway through a batch either
	// rolls back the ids inserted by this call, or returns an error
	// reporting how many rows persisted.
	AddEmbeddings(ctx context.Context, name string, ids []string, vectors [][]float32, metadatas []map[string]any, documents []string) error

	// Search returns the k nearest neighbours of queryVector. Empty if
	// the collection is absent.
	Search(ctx context.Context, name string, queryVector []float32, k int) (SearchResult, error)

	// SearchFulltext performs a keyword match. Backends without this
	// capability return ErrUnsupported.
	SearchFulltext(ctx context.Context, name string, query string, k int) (SearchResult, error)

	// SearchHybrid performs a combined vector+keyword search with
	// database-native fusion. Backends without this capability return
	// ErrUnsupported. queryVector is always a single vector, never a
	// batch-of-one (resolves the Open Question in SPEC_FULL.md about
	// HybridSearchProvider's embedding shape).
	SearchHybrid(ctx context.Context, name string, queryVector []float32, query string, k int) (SearchResult, error)

	// DeleteByFileID deletes rows whose metadata.file_id matches fileID.
	DeleteByFileID(ctx context.Context, name string, fileID string) error

	// DeleteCollection drops an entire collection.
	DeleteCollection(ctx context.Context, name string) error

	// GetCapabilities reports which of {vector, fulltext, hybrid} this
	// backend supports. "vector" is always present.
	GetCapabilities() map[Capability]bool
}

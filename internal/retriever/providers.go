package retriever

import (
	"context"
	"fmt"

	"github.com/langbot-app/LangBot/internal/llm"
	"github.com/langbot-app/LangBot/internal/vectordb"
	"github.com/langbot-app/LangBot/pkg/models"
)

// toEntries converts a vectordb batch-of-one SearchResult into
// [RetrievalResultEntry], reading document text from either Documents[i]
// or Metadatas[i]["text"] (spec.md §4.2 "Provider behaviours").
func toEntries(res vectordb.SearchResult) []models.RetrievalResultEntry {
	out := make([]models.RetrievalResultEntry, 0, len(res.IDs))
	for i, id := range res.IDs {
		var text string
		if i < len(res.Documents) && res.Documents[i] != "" {
			text = res.Documents[i]
		} else if i < len(res.Metadatas) {
			if t, ok := res.Metadatas[i]["text"].(string); ok {
				text = t
			}
		}
		var dist float64
		if i < len(res.Distances) {
			dist = res.Distances[i]
		}
		var md map[string]any
		if i < len(res.Metadatas) {
			md = res.Metadatas[i]
		}
		out = append(out, models.RetrievalResultEntry{
			ID:       id,
			Content:  []models.ContentElement{{Type: "text", Text: text}},
			Metadata: md,
			Distance: dist,
		})
	}
	return out
}

// EmbeddingModelResolver resolves the embedding model uuid to use for a
// given KB at call time (spec.md §4.2: "they resolve it at call time").
type EmbeddingModelResolver func() (llm.Model, error)

// VectorProvider embeds the query and runs vectordb.Search.
type VectorProvider struct {
	VDB        vectordb.VectorDatabase
	Collection string
	Embedder   llm.EmbeddingRequester
	ResolveModel EmbeddingModelResolver
}

// Retrieve implements Provider.
func (p *VectorProvider) Retrieve(ctx context.Context, query string, candidateK int) ([]models.RetrievalResultEntry, error) {
	model, err := p.ResolveModel()
	if err != nil {
		return nil, fmt.Errorf("retriever: resolve embedding model: %w", err)
	}
	vec, err := p.Embedder.Embed(ctx, model, query)
	if err != nil {
		return nil, fmt.Errorf("retriever: embed query: %w", err)
	}
	res, err := p.VDB.Search(ctx, p.Collection, vec, candidateK)
	if err != nil {
		return nil, err
	}
	return toEntries(res), nil
}

// FulltextProvider skips embedding entirely and calls SearchFulltext.
type FulltextProvider struct {
	VDB        vectordb.VectorDatabase
	Collection string
}

// Retrieve implements Provider.
func (p *FulltextProvider) Retrieve(ctx context.Context, query string, candidateK int) ([]models.RetrievalResultEntry, error) {
	res, err := p.VDB.SearchFulltext(ctx, p.Collection, query, candidateK)
	if err != nil {
		return nil, err
	}
	return toEntries(res), nil
}

// HybridProvider resolves an embedding model, embeds the query into a
// single vector (never a batch-of-one; see SPEC_FULL.md Open Questions),
// and calls SearchHybrid.
type HybridProvider struct {
	VDB          vectordb.VectorDatabase
	Collection   string
	Embedder     llm.EmbeddingRequester
	ResolveModel EmbeddingModelResolver
}

// Retrieve implements Provider.
func (p *HybridProvider) Retrieve(ctx context.Context, query string, candidateK int) ([]models.RetrievalResultEntry, error) {
	model, err := p.ResolveModel()
	if err != nil {
		return nil, fmt.Errorf("retriever: resolve embedding model: %w", err)
	}
	vec, err := p.Embedder.Embed(ctx, model, query)
	if err != nil {
		return nil, fmt.Errorf("retriever: embed query: %w", err)
	}
	res, err := p.VDB.SearchHybrid(ctx, p.Collection, vec, query, candidateK)
	if err != nil {
		return nil, err
	}
	return toEntries(res), nil
}

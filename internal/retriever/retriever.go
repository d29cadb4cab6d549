// Package retriever implements the Retriever orchestrator: parallel
// multi-provider query, Reciprocal Rank Fusion, and an optional reranker
// hook (spec.md §4.2, C2).
package retriever

import (
	"context"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/langbot-app/LangBot/pkg/models"
)

// kRRF is the Reciprocal Rank Fusion constant from spec.md §4.2/GLOSSARY.
const kRRF = 60

// maxCandidateK caps the oversampled candidate pool per spec.md §4.2 step 1.
const maxCandidateK = 30

// Provider is one retrieval source (vector, fulltext, or hybrid).
type Provider interface {
	// Retrieve returns up to candidateK hits for query, in the
	// provider's own rank order (best first).
	Retrieve(ctx context.Context, query string, candidateK int) ([]models.RetrievalResultEntry, error)
}

// Reranker re-scores an already-fused, ordered result list. It is a
// separate component from the retriever itself: the retriever returns
// the RRF-ordered list truncated to top_k only when no reranker runs
// (spec.md §4.2).
type Reranker interface {
	Rerank(ctx context.Context, query string, entries []models.RetrievalResultEntry) ([]models.RetrievalResultEntry, error)
}

// Retriever fans a query out across its configured providers and fuses
// the results with RRF.
type Retriever struct {
	providers []Provider
	reranker  Reranker
	logger    *slog.Logger
}

// New constructs a Retriever with an explicit provider list.
func New(providers []Provider, reranker Reranker, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{providers: providers, reranker: reranker, logger: logger}
}

// NewAutoConfigured builds a Retriever by inspecting the default vector
// database's capabilities: hybrid if present, else vector (spec.md
// §4.2 Construction). caps is nil when the VDB manager is not yet
// initialized, in which case the retriever is constructed with zero
// providers and Retrieve returns empty (spec.md §8 boundary behaviour).
func NewAutoConfigured(caps map[string]bool, buildHybrid, buildVector func() Provider, reranker Reranker, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	if caps == nil {
		logger.Warn("retriever: vector database manager not initialized, constructing with zero providers")
		return &Retriever{logger: logger}
	}
	var providers []Provider
	switch {
	case caps["hybrid"] && buildHybrid != nil:
		providers = append(providers, buildHybrid())
	case buildVector != nil:
		providers = append(providers, buildVector())
	}
	return &Retriever{providers: providers, reranker: reranker, logger: logger}
}

// Retrieve runs the full algorithm from spec.md §4.2: oversample, fan out
// in parallel, fuse with RRF, optionally rerank, truncate to topK.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) ([]models.RetrievalResultEntry, error) {
	if len(r.providers) == 0 {
		return []models.RetrievalResultEntry{}, nil
	}

	candidateK := topK * 2
	if candidateK > maxCandidateK {
		candidateK = maxCandidateK
	}
	if candidateK <= 0 {
		candidateK = topK
	}

	perProvider := make([][]models.RetrievalResultEntry, len(r.providers))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range r.providers {
		i, p := i, p
		g.Go(func() error {
			entries, err := p.Retrieve(gctx, query, candidateK)
			if err != nil {
				r.logger.Warn("retriever: provider failed", "index", i, "error", err)
				return nil // one failing provider does not fail the whole retrieve
			}
			perProvider[i] = entries
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	fused := fuseRRF(perProvider)

	if r.reranker != nil {
		reranked, err := r.reranker.Rerank(ctx, query, fused)
		if err != nil {
			r.logger.Warn("retriever: rerank failed, falling back to RRF order", "error", err)
		} else {
			return reranked, nil
		}
	}

	if topK > 0 && len(fused) > topK {
		fused = fused[:topK]
	}
	return fused, nil
}

type fusedEntry struct {
	entry models.RetrievalResultEntry
	score float64
}

// fuseRRF implements Reciprocal Rank Fusion: each entry's score is the
// sum of 1/(k+rank+1) over every provider that returned it, entries
// keyed by id, sorted by score descending (spec.md §4.2 step 3-4).
func fuseRRF(perProvider [][]models.RetrievalResultEntry) []models.RetrievalResultEntry {
	scores := make(map[string]*fusedEntry)
	order := make([]string, 0)

	for _, entries := range perProvider {
		for rank, e := range entries {
			fe, ok := scores[e.ID]
			if !ok {
				fe = &fusedEntry{entry: e}
				scores[e.ID] = fe
				order = append(order, e.ID)
			}
			fe.score += 1.0 / float64(kRRF+rank+1)
		}
	}

	out := make([]models.RetrievalResultEntry, 0, len(order))
	for _, id := range order {
		fe := scores[id]
		if fe.entry.Metadata == nil {
			fe.entry.Metadata = map[string]any{}
		}
		fe.entry.Metadata["rrf_score"] = fe.score
		out = append(out, fe.entry)
	}

	sort.SliceStable(out, func(i, j int) bool {
		si := out[i].Metadata["rrf_score"].(float64)
		sj := out[j].Metadata["rrf_score"].(float64)
		return si > sj
	})
	return out
}

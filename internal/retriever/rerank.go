package retriever

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/langbot-app/LangBot/pkg/models"
)

// SimpleReranker is a no-op passthrough reranker, grounded on
// original_source/src/langbot/pkg/rag/rerank/providers/simple.py: it
// returns the input order unchanged and never sorts.
type SimpleReranker struct{}

// Rerank implements Reranker by returning entries unchanged.
func (SimpleReranker) Rerank(_ context.Context, _ string, entries []models.RetrievalResultEntry) ([]models.RetrievalResultEntry, error) {
	return entries, nil
}

// HTTPReranker calls an HTTP rerank endpoint (the shape used by
// original_source/.../providers/qwen.py) and overwrites each entry's
// Distance with the returned relevance score, then sorts descending by
// that score.
type HTTPReranker struct {
	Endpoint string
	APIKey   string
	Model    string
	Client   *http.Client
}

// NewHTTPReranker constructs an HTTPReranker with a sane default client
// timeout.
func NewHTTPReranker(endpoint, apiKey, model string) *HTTPReranker {
	return &HTTPReranker{
		Endpoint: endpoint,
		APIKey:   apiKey,
		Model:    model,
		Client:   &http.Client{Timeout: 30 * time.Second},
	}
}

type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
}

type rerankResponseItem struct {
	Index          int     `json:"index"`
	RelevanceScore float64 `json:"relevance_score"`
}

type rerankResponse struct {
	Results []rerankResponseItem `json:"results"`
}

// Rerank implements Reranker.
func (r *HTTPReranker) Rerank(ctx context.Context, query string, entries []models.RetrievalResultEntry) ([]models.RetrievalResultEntry, error) {
	if len(entries) == 0 {
		return entries, nil
	}

	docs := make([]string, len(entries))
	for i, e := range entries {
		docs[i] = e.Text()
	}

	body, err := json.Marshal(rerankRequest{Model: r.Model, Query: query, Documents: docs})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if r.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.APIKey)
	}

	resp, err := r.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("retriever: rerank request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("retriever: rerank endpoint returned status %d", resp.StatusCode)
	}

	var decoded rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("retriever: decode rerank response: %w", err)
	}

	out := make([]models.RetrievalResultEntry, len(entries))
	copy(out, entries)
	for _, item := range decoded.Results {
		if item.Index < 0 || item.Index >= len(out) {
			continue
		}
		out[item.Index].Distance = item.RelevanceScore
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Distance > out[j].Distance })
	return out, nil
}

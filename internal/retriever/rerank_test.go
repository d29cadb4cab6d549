package retriever

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/langbot-app/LangBot/pkg/models"
)

func TestSimpleRerankerReturnsEntriesUnchanged(t *testing.T) {
	entries := []models.RetrievalResultEntry{{ID: "a"}, {ID: "b"}}
	out, err := SimpleReranker{}.Rerank(context.Background(), "q", entries)
	require.NoError(t, err)
	assert.Equal(t, entries, out)
}

func TestHTTPRerankerReordersByRelevanceScore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"index": 1, "relevance_score": 0.9},
				{"index": 0, "relevance_score": 0.1},
			},
		})
	}))
	defer srv.Close()

	r := NewHTTPReranker(srv.URL, "secret", "rerank-model")
	entries := []models.RetrievalResultEntry{
		{ID: "first", Content: []models.ContentElement{{Type: "text", Text: "alpha"}}},
		{ID: "second", Content: []models.ContentElement{{Type: "text", Text: "beta"}}},
	}

	out, err := r.Rerank(context.Background(), "q", entries)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "second", out[0].ID)
	assert.Equal(t, "first", out[1].ID)
}

func TestHTTPRerankerOnEmptyEntriesIsNoop(t *testing.T) {
	r := NewHTTPReranker("http://unused", "", "m")
	out, err := r.Rerank(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestHTTPRerankerNonOKStatusFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	r := NewHTTPReranker(srv.URL, "", "m")
	_, err := r.Rerank(context.Background(), "q", []models.RetrievalResultEntry{{ID: "a"}})
	assert.Error(t, err)
}

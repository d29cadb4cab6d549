package retriever

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/langbot-app/LangBot/pkg/models"
)

type stubProvider struct {
	ids []string
	err error
}

func (p *stubProvider) Retrieve(_ context.Context, _ string, candidateK int) ([]models.RetrievalResultEntry, error) {
	if p.err != nil {
		return nil, p.err
	}
	ids := p.ids
	if len(ids) > candidateK {
		ids = ids[:candidateK]
	}
	out := make([]models.RetrievalResultEntry, len(ids))
	for i, id := range ids {
		out[i] = models.RetrievalResultEntry{ID: id}
	}
	return out, nil
}

func TestRetrieveFusesByReciprocalRank(t *testing.T) {
	a := &stubProvider{ids: []string{"x", "y", "z"}}
	b := &stubProvider{ids: []string{"y", "z", "w"}}
	r := New([]Provider{a, b}, nil, nil)

	got, err := r.Retrieve(context.Background(), "q", 4)
	require.NoError(t, err)

	ids := make([]string, len(got))
	for i, e := range got {
		ids[i] = e.ID
	}
	assert.Equal(t, []string{"y", "z", "x", "w"}, ids)
}

func TestRetrieveTruncatesToTopK(t *testing.T) {
	a := &stubProvider{ids: []string{"a", "b", "c", "d"}}
	r := New([]Provider{a}, nil, nil)

	got, err := r.Retrieve(context.Background(), "q", 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
}

func TestRetrieveSurvivesOneProviderFailing(t *testing.T) {
	ok := &stubProvider{ids: []string{"a", "b"}}
	bad := &stubProvider{err: errors.New("boom")}
	r := New([]Provider{ok, bad}, nil, nil)

	got, err := r.Retrieve(context.Background(), "q", 5)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestRetrieveWithNoProvidersReturnsEmpty(t *testing.T) {
	r := New(nil, nil, nil)
	got, err := r.Retrieve(context.Background(), "q", 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

type fixedReranker struct{ order []string }

func (f fixedReranker) Rerank(_ context.Context, _ string, entries []models.RetrievalResultEntry) ([]models.RetrievalResultEntry, error) {
	byID := make(map[string]models.RetrievalResultEntry, len(entries))
	for _, e := range entries {
		byID[e.ID] = e
	}
	out := make([]models.RetrievalResultEntry, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, byID[id])
	}
	return out, nil
}

func TestRetrieveUsesRerankerOrderWhenPresent(t *testing.T) {
	a := &stubProvider{ids: []string{"x", "y", "z"}}
	r := New([]Provider{a}, fixedReranker{order: []string{"z", "x", "y"}}, nil)

	got, err := r.Retrieve(context.Background(), "q", 3)
	require.NoError(t, err)

	ids := make([]string, len(got))
	for i, e := range got {
		ids[i] = e.ID
	}
	assert.Equal(t, []string{"z", "x", "y"}, ids)
}

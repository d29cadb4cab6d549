package stages

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/langbot-app/LangBot/internal/query"
	"github.com/langbot-app/LangBot/pkg/models"
)

func longtextQuery(threshold int, useForward bool, msgs ...string) *query.Query {
	var resp []query.LLMMessage
	for _, m := range msgs {
		resp = append(resp, query.LLMMessage{Role: "assistant", Content: m})
	}
	return &query.Query{
		RespMessages: resp,
		PipelineConfig: &models.PipelineConfig{
			LongText: models.LongTextConfig{Threshold: threshold, UseForward: useForward},
		},
	}
}

func TestLongTextStageBelowThresholdIsSinglePlainChain(t *testing.T) {
	s := NewLongTextStage("bot", "Bot")
	result, err := s.Process(context.Background(), longtextQuery(600, false, "short reply"), "")
	require.NoError(t, err)

	require.Len(t, result.NewQuery.RespMessageChain, 1)
	assert.Equal(t, "short reply", result.NewQuery.RespMessageChain[0].PlainText())
}

func TestLongTextStageAboveThresholdChunksWithoutForward(t *testing.T) {
	s := NewLongTextStage("bot", "Bot")
	text := strings.Repeat("x", 25)
	result, err := s.Process(context.Background(), longtextQuery(10, false, text), "")
	require.NoError(t, err)

	require.Len(t, result.NewQuery.RespMessageChain, 3)
	assert.Equal(t, 10, len([]rune(result.NewQuery.RespMessageChain[0].PlainText())))
	assert.Equal(t, 5, len([]rune(result.NewQuery.RespMessageChain[2].PlainText())))
}

func TestLongTextStageAboveThresholdWithForwardWrapsAsSingleForwardNode(t *testing.T) {
	s := NewLongTextStage("bot-1", "Bot One")
	text := strings.Repeat("y", 25)
	result, err := s.Process(context.Background(), longtextQuery(10, true, text), "")
	require.NoError(t, err)

	require.Len(t, result.NewQuery.RespMessageChain, 1)
	chain := result.NewQuery.RespMessageChain[0]
	require.Len(t, chain, 1)
	assert.Equal(t, models.ComponentForward, chain[0].Type)
	require.Len(t, chain[0].ForwardNodes, 1)
	assert.Equal(t, "bot-1", chain[0].ForwardNodes[0].SenderID)
	assert.Equal(t, text, chain[0].ForwardNodes[0].Chain.PlainText())
}

func TestLongTextStageDefaultsThresholdWhenUnset(t *testing.T) {
	s := NewLongTextStage("bot", "Bot")
	text := strings.Repeat("z", 601)
	result, err := s.Process(context.Background(), longtextQuery(0, false, text), "")
	require.NoError(t, err)

	assert.True(t, len(result.NewQuery.RespMessageChain) > 1, "text above the default 600 threshold should split")
}

func TestLongTextStageHandlesMultipleRespMessages(t *testing.T) {
	s := NewLongTextStage("bot", "Bot")
	result, err := s.Process(context.Background(), longtextQuery(600, false, "first", "second"), "")
	require.NoError(t, err)

	require.Len(t, result.NewQuery.RespMessageChain, 2)
	assert.Equal(t, "first", result.NewQuery.RespMessageChain[0].PlainText())
	assert.Equal(t, "second", result.NewQuery.RespMessageChain[1].PlainText())
}

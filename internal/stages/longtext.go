package stages

import (
	"context"

	"github.com/langbot-app/LangBot/internal/pipeline"
	"github.com/langbot-app/LangBot/internal/query"
	"github.com/langbot-app/LangBot/pkg/models"
)

// LongTextStage turns the Process stage's text output into one or more
// reply MessageChains, splitting on output.long-text (spec.md §4.8
// LongTextProcessor). Below threshold, the whole reply is one Plain
// chain; at or above it, use-forward wraps the full text as a single
// Forward node instead of emitting a wall of text, and otherwise the
// text is chunked at threshold boundaries into multiple Plain chains.
type LongTextStage struct {
	// SenderID/SenderName label the Forward node when use-forward is set.
	SenderID   string
	SenderName string
}

// NewLongTextStage constructs the long-text splitting stage.
func NewLongTextStage(senderID, senderName string) *LongTextStage {
	return &LongTextStage{SenderID: senderID, SenderName: senderName}
}

// Process implements pipeline.Stage.
func (s *LongTextStage) Process(_ context.Context, q *query.Query, _ string) (pipeline.StageProcessResult, error) {
	next := q.Clone()

	cfg := next.PipelineConfig.LongText
	threshold := cfg.Threshold
	if threshold <= 0 {
		threshold = 600
	}

	var chains []models.MessageChain
	for _, msg := range next.RespMessages {
		chains = append(chains, splitOne(msg.Content, threshold, cfg.UseForward, s.SenderID, s.SenderName)...)
	}
	next.RespMessageChain = chains

	return pipeline.Continue(next), nil
}

func splitOne(text string, threshold int, useForward bool, senderID, senderName string) []models.MessageChain {
	if len([]rune(text)) < threshold {
		return []models.MessageChain{{models.Plain(text)}}
	}

	if useForward {
		return []models.MessageChain{{
			models.Component{
				Type: models.ComponentForward,
				ForwardNodes: []models.ForwardNode{{
					SenderID:   senderID,
					SenderName: senderName,
					Chain:      models.MessageChain{models.Plain(text)},
				}},
			},
		}}
	}

	var out []models.MessageChain
	runes := []rune(text)
	for i := 0; i < len(runes); i += threshold {
		end := i + threshold
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, models.MessageChain{models.Plain(string(runes[i:end]))})
	}
	return out
}

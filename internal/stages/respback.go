package stages

import (
	"context"
	"math/rand"
	"time"

	"github.com/langbot-app/LangBot/internal/pipeline"
	"github.com/langbot-app/LangBot/internal/query"
	"github.com/langbot-app/LangBot/pkg/models"
)

// ReplyAdapter is the platform-adapter surface SendResponseBackStage
// needs: sending one reply chain back to the originating launcher
// (spec.md §4.5 Adapter.reply_message).
type ReplyAdapter interface {
	ReplyMessage(ctx context.Context, q *query.Query, chain models.MessageChain) error
}

// SendResponseBackStage sends each chain in Query.RespMessageChain back
// through the originating adapter, applying at-sender, quote-origin, and
// force-delay per output.* config (spec.md §4.8 SendResponseBackStage).
// It is terminal: Query.Adapter must itself implement ReplyAdapter for
// this stage's factory to succeed.
type SendResponseBackStage struct {
	resolve func(adapter query.Adapter) (ReplyAdapter, bool)
	sleep   func(time.Duration)
	rand    func() float64
}

// NewSendResponseBackStage constructs the reply-delivery stage. resolve
// adapts a query.Adapter (the minimal interface query holds, to avoid an
// import cycle with platform) down to the ReplyAdapter this stage needs;
// callers typically pass a type assertion against their concrete
// platform adapter type.
func NewSendResponseBackStage(resolve func(query.Adapter) (ReplyAdapter, bool)) *SendResponseBackStage {
	return &SendResponseBackStage{
		resolve: resolve,
		sleep:   time.Sleep,
		rand:    rand.Float64,
	}
}

// Process implements pipeline.Stage.
func (s *SendResponseBackStage) Process(ctx context.Context, q *query.Query, _ string) (pipeline.StageProcessResult, error) {
	adapter, ok := s.resolve(q.Adapter)
	if !ok {
		return pipeline.StageProcessResult{}, &UnresolvableAdapterError{LauncherType: string(q.LauncherType)}
	}

	misc := q.PipelineConfig.Output.Misc
	delay := q.PipelineConfig.Output.ForceDelay

	for _, chain := range q.RespMessageChain {
		out := chain
		if misc.AtSender && q.LauncherType == models.LauncherGroup {
			out = append(models.MessageChain{models.At(q.SenderID)}, out...)
		}
		if misc.QuoteOrigin {
			if src, ok := q.MessageChain.Source(); ok {
				out = append(models.MessageChain{models.QuoteComponent(src.SourceID, q.SenderID, q.MessageChain)}, out...)
			}
		}

		s.applyForceDelay(delay)

		if err := adapter.ReplyMessage(ctx, q, out); err != nil {
			return pipeline.StageProcessResult{}, err
		}
	}

	return pipeline.Continue(q), nil
}

func (s *SendResponseBackStage) applyForceDelay(cfg models.ForceDelayConfig) {
	if cfg.Max <= 0 {
		return
	}
	span := cfg.Max - cfg.Min
	if span < 0 {
		span = 0
	}
	wait := cfg.Min + s.rand()*span
	if wait > 0 {
		s.sleep(time.Duration(wait * float64(time.Second)))
	}
}

// UnresolvableAdapterError is returned when a query's bound adapter does
// not implement ReplyAdapter.
type UnresolvableAdapterError struct {
	LauncherType string
}

func (e *UnresolvableAdapterError) Error() string {
	return "stages: adapter for launcher type " + e.LauncherType + " does not implement ReplyMessage"
}

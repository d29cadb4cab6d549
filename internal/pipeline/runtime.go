package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/langbot-app/LangBot/internal/query"
)

// StageContainer pairs a loaded Stage with the instance name its pipeline
// config gave it.
type StageContainer struct {
	InstName string
	Stage    Stage
}

// PipelineEntity is the (id, config snapshot) half of a RuntimePipeline.
type PipelineEntity struct {
	UUID string
}

// RuntimePipeline is immutable after load; swapping a pipeline's stage
// list is remove-then-reload, never an in-place mutation.
type RuntimePipeline struct {
	Entity          PipelineEntity
	StageContainers []StageContainer

	// ReplyStageName names the terminal stage that still runs after an
	// INTERRUPT with a user notice (e.g. "respback").
	ReplyStageName string
}

// LifecycleHook is invoked between stages. A hook that returns
// preventDefault=true causes the runtime to skip straight to the reply
// stage, matching spec.md §4.7's plugin "prevent-default" semantics.
type LifecycleHook func(ctx context.Context, q *query.Query, justRan string) (preventDefault bool, err error)

// Runtime executes RuntimePipelines against queries, gated by a
// bounded-concurrency semaphore (spec.md §5 "concurrency.pipeline").
type Runtime struct {
	logger      *slog.Logger
	sem         chan struct{}
	lifecycle   LifecycleHook
	queuedDepth int
}

// NewRuntime constructs a Runtime whose pipeline concurrency is capped at
// maxConcurrent. A maxConcurrent of 0 means unbounded.
func NewRuntime(maxConcurrent int, lifecycle LifecycleHook, logger *slog.Logger) *Runtime {
	if logger == nil {
		logger = slog.Default()
	}
	var sem chan struct{}
	if maxConcurrent > 0 {
		sem = make(chan struct{}, maxConcurrent)
	}
	return &Runtime{logger: logger, sem: sem, lifecycle: lifecycle}
}

// ErrQueueFull is the error an ingress listener returns when TryAcquire
// reports the concurrency semaphore saturated (Run itself never returns
// it; spec.md §5 backpressure: the webhook dispatcher turns this into a
// 429-equivalent response).
var ErrQueueFull = fmt.Errorf("pipeline: concurrency limit reached")

// TryAcquire attempts to reserve a concurrency slot without blocking. The
// caller must call the returned release func exactly once, whether or
// not it proceeds to Run (Run itself does not acquire).
func (rt *Runtime) TryAcquire() (release func(), ok bool) {
	if rt.sem == nil {
		return func() {}, true
	}
	select {
	case rt.sem <- struct{}{}:
		return func() { <-rt.sem }, true
	default:
		return func() {}, false
	}
}

// Run walks p's stage list against q in order. The caller is expected to
// have already reserved a concurrency slot via TryAcquire; Run itself
// performs no admission control, so the backpressure policy lives at the
// ingress point (spec.md §5).
func (rt *Runtime) Run(ctx context.Context, p *RuntimePipeline, q *query.Query) ([]StageContainer, error) {
	cur := q
	var replyContainer *StageContainer
	for i := range p.StageContainers {
		sc := p.StageContainers[i]
		if sc.InstName == p.ReplyStageName {
			replyContainer = &p.StageContainers[i]
		}
	}

	for i, sc := range p.StageContainers {
		if sc.InstName == p.ReplyStageName {
			continue // reply stage always runs last, handled below
		}

		result, runErr := rt.runStage(ctx, sc, cur)
		if runErr != nil {
			cur.Error = runErr
			rt.logger.Error("pipeline stage failed", "stage", sc.InstName, "query_id", cur.QueryID, "error", runErr)
			break
		}

		if result.Error != nil {
			rt.logger.Warn("pipeline stage reported error", "stage", sc.InstName, "query_id", cur.QueryID, "error", result.Error)
		}

		if result.ResultType == CONTINUE {
			if result.NewQuery != nil {
				cur = result.NewQuery
			}
		} else { // INTERRUPT
			if len(result.UserNotice) > 0 {
				cur.RespMessageChain = append(cur.RespMessageChain, result.UserNotice)
			}
			break
		}

		if rt.lifecycle != nil {
			preventDefault, err := rt.lifecycle(ctx, cur, sc.InstName)
			if err != nil {
				rt.logger.Warn("lifecycle hook failed", "after_stage", sc.InstName, "error", err)
			}
			if preventDefault {
				break
			}
		}

		_ = i
	}

	if replyContainer != nil {
		if _, err := rt.runStage(ctx, *replyContainer, cur); err != nil {
			rt.logger.Error("reply stage failed", "query_id", cur.QueryID, "error", err)
			return p.StageContainers, err
		}
	}

	return p.StageContainers, nil
}

// runStage invokes a single stage, recovering from a panic as a fatal
// error so one misbehaving stage cannot crash the runtime (spec.md §7:
// "unhandled exception from any stage is caught at the runtime").
func (rt *Runtime) runStage(ctx context.Context, sc StageContainer, q *query.Query) (result StageProcessResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipeline: stage %q panicked: %v", sc.InstName, r)
		}
	}()
	return sc.Stage.Process(ctx, q, sc.InstName)
}

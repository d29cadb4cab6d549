package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/langbot-app/LangBot/internal/query"
	"github.com/langbot-app/LangBot/pkg/models"
)

type recordingStage struct {
	name    string
	log     *[]string
	result  StageProcessResult
	err     error
	panics  bool
}

func (s *recordingStage) Process(_ context.Context, q *query.Query, instName string) (StageProcessResult, error) {
	*s.log = append(*s.log, instName)
	if s.panics {
		panic("boom")
	}
	if s.err != nil {
		return StageProcessResult{}, s.err
	}
	if s.result.ResultType == "" {
		return Continue(q), nil
	}
	return s.result, nil
}

func buildPipeline(containers ...StageContainer) *RuntimePipeline {
	return &RuntimePipeline{Entity: PipelineEntity{UUID: "p1"}, StageContainers: containers, ReplyStageName: "reply"}
}

func TestRuntimeRunsStagesInOrderThenReply(t *testing.T) {
	var log []string
	rt := NewRuntime(0, nil, nil)
	p := buildPipeline(
		StageContainer{InstName: "a", Stage: &recordingStage{log: &log}},
		StageContainer{InstName: "b", Stage: &recordingStage{log: &log}},
		StageContainer{InstName: "reply", Stage: &recordingStage{log: &log}},
	)

	_, err := rt.Run(context.Background(), p, &query.Query{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "reply"}, log)
}

func TestRuntimeStopsOnInterruptButStillRunsReply(t *testing.T) {
	var log []string
	rt := NewRuntime(0, nil, nil)
	p := buildPipeline(
		StageContainer{InstName: "a", Stage: &recordingStage{log: &log, result: InterruptWithNotice(models.MessageChain{models.Plain("denied")})}},
		StageContainer{InstName: "b", Stage: &recordingStage{log: &log}},
		StageContainer{InstName: "reply", Stage: &recordingStage{log: &log}},
	)

	q := &query.Query{}
	_, err := rt.Run(context.Background(), p, q)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "reply"}, log)
	require.Len(t, q.RespMessageChain, 1)
	assert.Equal(t, "denied", q.RespMessageChain[0].PlainText())
}

func TestRuntimeStopsOnStageErrorButStillRunsReply(t *testing.T) {
	var log []string
	rt := NewRuntime(0, nil, nil)
	stageErr := errors.New("stage blew up")
	p := buildPipeline(
		StageContainer{InstName: "a", Stage: &recordingStage{log: &log, err: stageErr}},
		StageContainer{InstName: "reply", Stage: &recordingStage{log: &log}},
	)

	q := &query.Query{}
	_, err := rt.Run(context.Background(), p, q)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "reply"}, log)
	assert.ErrorIs(t, q.Error, stageErr)
}

func TestRuntimeRecoversStagePanicAsError(t *testing.T) {
	var log []string
	rt := NewRuntime(0, nil, nil)
	p := buildPipeline(
		StageContainer{InstName: "a", Stage: &recordingStage{log: &log, panics: true}},
		StageContainer{InstName: "reply", Stage: &recordingStage{log: &log}},
	)

	q := &query.Query{}
	_, err := rt.Run(context.Background(), p, q)
	require.NoError(t, err)
	require.Error(t, q.Error)
	assert.Contains(t, q.Error.Error(), "panicked")
}

func TestRuntimeLifecyclePreventDefaultSkipsToReply(t *testing.T) {
	var log []string
	rt := NewRuntime(0, func(_ context.Context, _ *query.Query, justRan string) (bool, error) {
		return justRan == "a", nil
	}, nil)
	p := buildPipeline(
		StageContainer{InstName: "a", Stage: &recordingStage{log: &log}},
		StageContainer{InstName: "b", Stage: &recordingStage{log: &log}},
		StageContainer{InstName: "reply", Stage: &recordingStage{log: &log}},
	)

	_, err := rt.Run(context.Background(), p, &query.Query{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "reply"}, log)
}

func TestRuntimeReplyStageErrorIsReturned(t *testing.T) {
	var log []string
	rt := NewRuntime(0, nil, nil)
	replyErr := errors.New("reply failed")
	p := buildPipeline(
		StageContainer{InstName: "a", Stage: &recordingStage{log: &log}},
		StageContainer{InstName: "reply", Stage: &recordingStage{log: &log, err: replyErr}},
	)

	_, err := rt.Run(context.Background(), p, &query.Query{})
	assert.ErrorIs(t, err, replyErr)
}

func TestRuntimeTryAcquireRespectsConcurrencyLimit(t *testing.T) {
	rt := NewRuntime(1, nil, nil)

	release1, ok := rt.TryAcquire()
	require.True(t, ok)

	_, ok = rt.TryAcquire()
	assert.False(t, ok, "second acquire must fail while the only slot is held")

	release1()

	release2, ok := rt.TryAcquire()
	assert.True(t, ok, "slot must be available again after release")
	release2()
}

func TestRuntimeTryAcquireUnboundedWhenZero(t *testing.T) {
	rt := NewRuntime(0, nil, nil)
	for i := 0; i < 50; i++ {
		_, ok := rt.TryAcquire()
		assert.True(t, ok)
	}
}

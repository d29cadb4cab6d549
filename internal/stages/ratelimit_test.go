package stages

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/langbot-app/LangBot/internal/pipeline"
	"github.com/langbot-app/LangBot/internal/query"
	"github.com/langbot-app/LangBot/internal/ratelimit"
)

func TestRateLimitStageDeniesOverCapacity(t *testing.T) {
	algo := ratelimit.NewTokenBucketAlgorithm(ratelimit.Config{RequestsPerSecond: 1, BurstSize: 1})
	stage := NewRateLimit(algo)

	q := &query.Query{LauncherID: "sess-1", Variables: query.NewVariables()}

	result, err := stage.Process(context.Background(), q, RequireRateLimitOccupancy)
	require.NoError(t, err)
	assert.Equal(t, pipeline.CONTINUE, result.ResultType)

	result, err = stage.Process(context.Background(), q, RequireRateLimitOccupancy)
	require.NoError(t, err)
	assert.Equal(t, pipeline.INTERRUPT, result.ResultType)
	assert.NotEmpty(t, result.UserNotice)
}

func TestRateLimitStageReleaseIsANoOpResultWise(t *testing.T) {
	algo := ratelimit.NewTokenBucketAlgorithm(ratelimit.Config{RequestsPerSecond: 1, BurstSize: 1})
	stage := NewRateLimit(algo)
	q := &query.Query{LauncherID: "sess-1", Variables: query.NewVariables()}

	result, err := stage.Process(context.Background(), q, ReleaseRateLimitOccupancy)
	require.NoError(t, err)
	assert.Equal(t, pipeline.CONTINUE, result.ResultType)
}

func TestRateLimitStagePrefersSessionIDVariableOverLauncherID(t *testing.T) {
	algo := ratelimit.NewTokenBucketAlgorithm(ratelimit.Config{RequestsPerSecond: 1, BurstSize: 1})
	stage := NewRateLimit(algo)

	vars := query.NewVariables()
	vars.Set("session_id", "shared-key")
	q1 := &query.Query{LauncherID: "a", Variables: vars}
	q2 := &query.Query{LauncherID: "b", Variables: vars}

	_, err := stage.Process(context.Background(), q1, RequireRateLimitOccupancy)
	require.NoError(t, err)
	result, err := stage.Process(context.Background(), q2, RequireRateLimitOccupancy)
	require.NoError(t, err)
	assert.Equal(t, pipeline.INTERRUPT, result.ResultType, "both queries share session_id so the second must be denied")
}

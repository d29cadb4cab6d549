package stages

import (
	"context"

	"github.com/langbot-app/LangBot/internal/pipeline"
	"github.com/langbot-app/LangBot/internal/query"
	"github.com/langbot-app/LangBot/internal/ratelimit"
	"github.com/langbot-app/LangBot/pkg/models"
)

// RateLimitDeniedNotice is the fixed, localized denial message
// (spec.md §4.8, verbatim from the scenario in §8.3).
const RateLimitDeniedNotice = "请求数超过限速器设定值,已丢弃本消息。"

// RateLimit is one stage instance holding a single Algorithm, driven by
// two operations selected by InstName: RequireRateLimitOccupancy and
// ReleaseRateLimitOccupancy.
type RateLimit struct {
	Algorithm ratelimit.Algorithm
}

// Stage instance names a pipeline config may reference.
const (
	RequireRateLimitOccupancy = "RequireRateLimitOccupancy"
	ReleaseRateLimitOccupancy = "ReleaseRateLimitOccupancy"
)

// NewRateLimit constructs a RateLimit stage around algo.
func NewRateLimit(algo ratelimit.Algorithm) *RateLimit {
	return &RateLimit{Algorithm: algo}
}

// Process implements pipeline.Stage.
func (s *RateLimit) Process(_ context.Context, q *query.Query, instName string) (pipeline.StageProcessResult, error) {
	sessionID := q.Variables.GetString("session_id")
	if sessionID == "" {
		sessionID = q.LauncherID
	}

	switch instName {
	case ReleaseRateLimitOccupancy:
		s.Algorithm.ReleaseAccess(sessionID)
		return pipeline.Continue(q), nil
	default: // RequireRateLimitOccupancy
		if s.Algorithm.RequireAccess(sessionID) {
			return pipeline.Continue(q), nil
		}
		return pipeline.InterruptWithNotice(models.MessageChain{models.Plain(RateLimitDeniedNotice)}), nil
	}
}

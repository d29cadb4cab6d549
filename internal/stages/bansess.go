// Package stages implements the concrete pipeline stages (spec.md §4.8,
// C8): bansess, ratelimit, resprule, preproc, process, longtext, respback.
package stages

import (
	"context"
	"strings"

	"github.com/langbot-app/LangBot/internal/pipeline"
	"github.com/langbot-app/LangBot/internal/query"
	"github.com/langbot-app/LangBot/pkg/models"
)

// BanSessionCheckStage evaluates trigger.access-control against the
// query's (launcher_type, launcher_id). Whitelist mode continues iff a
// spec matches; blacklist mode continues iff none match.
type BanSessionCheckStage struct{}

// NewBanSessionCheckStage constructs the access-control stage.
func NewBanSessionCheckStage() *BanSessionCheckStage {
	return &BanSessionCheckStage{}
}

// Process implements pipeline.Stage.
func (s *BanSessionCheckStage) Process(_ context.Context, q *query.Query, _ string) (pipeline.StageProcessResult, error) {
	ac := q.PipelineConfig.Trigger.AccessControl
	matched := matchesAnySpec(ac, q.LauncherType, q.LauncherID)

	switch ac.Mode {
	case models.AccessControlBlacklist:
		if matched {
			return pipeline.Interrupt(), nil
		}
		return pipeline.Continue(q), nil
	case models.AccessControlWhitelist:
		fallthrough
	default:
		if matched {
			return pipeline.Continue(q), nil
		}
		return pipeline.Interrupt(), nil
	}
}

func matchesAnySpec(ac models.AccessControlConfig, launcherType models.LauncherType, launcherID string) bool {
	var specs []string
	switch ac.Mode {
	case models.AccessControlBlacklist:
		specs = ac.Blacklist
	default:
		specs = ac.Whitelist
	}
	for _, spec := range specs {
		if MatchSpec(spec, launcherType, launcherID) {
			return true
		}
	}
	return false
}

// MatchSpec reports whether a spec of the form "<person|group>_<id>"
// (with "*" as a wildcard id, e.g. "group_*") matches the given launcher.
func MatchSpec(spec string, launcherType models.LauncherType, launcherID string) bool {
	parts := strings.SplitN(spec, "_", 2)
	if len(parts) != 2 {
		return false
	}
	kind, id := parts[0], parts[1]

	var wantKind string
	switch launcherType {
	case models.LauncherGroup:
		wantKind = "group"
	default:
		wantKind = "person"
	}
	if kind != wantKind {
		return false
	}
	return id == "*" || id == launcherID
}

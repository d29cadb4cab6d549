// Package pipeline implements the stage registry and runtime that walk a
// RuntimePipeline's ordered stage list against a Query (spec.md §4.7, C7).
package pipeline

import (
	"github.com/langbot-app/LangBot/internal/query"
	"github.com/langbot-app/LangBot/pkg/models"
)

// ResultType is the control signal a stage uses to tell the runtime
// whether to continue to the next stage or stop processing.
type ResultType string

const (
	// CONTINUE proceeds to the next stage, optionally swapping in a
	// replacement Query.
	CONTINUE ResultType = "CONTINUE"
	// INTERRUPT stops processing; if UserNotice is set it is queued as
	// the reply and only the reply stage still runs.
	INTERRUPT ResultType = "INTERRUPT"
)

// StageProcessResult is what Stage.Process returns.
type StageProcessResult struct {
	ResultType ResultType

	// NewQuery replaces the query going into the next stage, when set.
	NewQuery *query.Query

	// UserNotice, set on INTERRUPT, is queued as a reply chain before
	// the pipeline stops (e.g. the rate-limit denial notice).
	UserNotice models.MessageChain

	// Error records a non-fatal, stage-observed error worth logging even
	// though the stage still chose to continue or interrupt cleanly.
	Error error
}

// Continue builds a CONTINUE result carrying the (possibly unchanged)
// query onward.
func Continue(q *query.Query) StageProcessResult {
	return StageProcessResult{ResultType: CONTINUE, NewQuery: q}
}

// Interrupt builds a silent INTERRUPT result (no user notice).
func Interrupt() StageProcessResult {
	return StageProcessResult{ResultType: INTERRUPT}
}

// InterruptWithNotice builds an INTERRUPT result carrying a user-visible
// notice chain.
func InterruptWithNotice(notice models.MessageChain) StageProcessResult {
	return StageProcessResult{ResultType: INTERRUPT, UserNotice: notice}
}

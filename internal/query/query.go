// Package query implements the mutable per-request envelope threaded
// through the pipeline (spec.md §3 Query, §4.6, C6), the process-wide
// query pool, and cooperative cancellation.
package query

import (
	"github.com/langbot-app/LangBot/internal/session"
	"github.com/langbot-app/LangBot/pkg/models"
)

// Adapter is the minimal surface the query package needs from a
// platform adapter, enough to avoid an import cycle between query and
// platform (platform constructs Query values at ingress).
type Adapter interface {
	Type() string
}

// LLMMessage is one entry of the conversation prompt/response list.
type LLMMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Query is the mutable per-request envelope. It is registered in the
// global Pool at ingress and removed when its pipeline run terminates,
// successfully or not.
type Query struct {
	QueryID int64

	LauncherType models.LauncherType
	LauncherID   string
	SenderID     string

	Adapter Adapter
	BotUUID string

	MessageEvent models.Event
	// MessageChain is the user input; preproc or other stages may
	// replace it with a new chain rather than mutating it in place.
	MessageChain models.MessageChain

	PipelineUUID   string
	PipelineConfig *models.PipelineConfig

	Session *session.Session

	UseLLMModelUUID string

	Variables *Variables

	Prompt   string
	Messages []LLMMessage

	RespMessages     []LLMMessage
	RespMessageChain []models.MessageChain

	// Error, when non-nil, records a fatal error raised by a stage so
	// the runtime can decide whether to surface it to the user
	// (spec.md §7).
	Error error
}

// Clone returns a shallow copy of q. Stages that want to "replace the
// query" (spec.md §4.7 CONTINUE with new_query) build off of Clone
// rather than mutating the original in place, so earlier references
// (e.g. held by a concurrently-polling cancellation check) stay valid.
func (q *Query) Clone() *Query {
	cp := *q
	return &cp
}

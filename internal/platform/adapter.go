// Package platform implements the Adapter contract and the webhook
// dispatcher that routes an inbound platform callback to the bot
// instance it belongs to (spec.md §4.5, C5).
package platform

import (
	"context"

	"github.com/langbot-app/LangBot/pkg/models"
)

// Adapter is the contract every platform connector implements. A bot
// instance is one Adapter bound to one BotUUID and one PipelineUUID
// (spec.md §4.5).
type Adapter interface {
	// Type returns the adapter's platform name ("qq", "discord",
	// "wechat", "webchat", ...).
	Type() string

	// RegisterListener installs the callback the dispatcher invokes for
	// every inbound Event this adapter produces.
	RegisterListener(listener EventListener)

	// SendMessage sends chain to target (a platform-specific recipient
	// id) outside of any particular inbound event's reply context.
	SendMessage(ctx context.Context, target string, chain models.MessageChain) error

	// ReplyMessage sends chain back in reply to the event that produced
	// the MessageEvent carried by event (spec.md §4.8 SendResponseBackStage).
	ReplyMessage(ctx context.Context, event models.Event, chain models.MessageChain) error

	// HandleUnifiedWebhook processes one inbound webhook request body
	// already routed to this adapter's bot uuid, returning the adapter's
	// raw handshake/ack response body (if any) and an error.
	HandleUnifiedWebhook(ctx context.Context, subpath string, body []byte, headers map[string][]string) ([]byte, error)

	// RunAsync starts any background polling/connection loop the adapter
	// needs (e.g. a long-poll or websocket client); returns once ctx is
	// canceled or the loop exits on its own.
	RunAsync(ctx context.Context) error

	// SetBotUUID binds this adapter instance to a bot uuid, used to
	// build the webhook path /bots/<uuid>[/<path>] and as the key in the
	// bot Registry.
	SetBotUUID(uuid string)

	// Kill stops the adapter's background loop and releases any held
	// resources. Idempotent.
	Kill(ctx context.Context) error
}

// EventListener receives every Event an adapter produces. It returns an
// error only to signal ingress-level rejection of the event itself (e.g.
// the pipeline concurrency gate is saturated, spec.md §5 "beyond a
// configurable queue depth the webhook dispatcher returns a
// 429-equivalent response"); a query that is admitted and then fails
// mid-pipeline is handled internally by the listener and never surfaces
// here.
type EventListener func(ctx context.Context, event models.Event) error

// WebhookVerifier authenticates an inbound webhook request before it
// reaches the adapter, implementing the Ed25519 signing contract from
// spec.md §4.5. A nil Verifier accepts every request.
type WebhookVerifier interface {
	Verify(headers map[string][]string, body []byte) error
}

// Package webchat implements the WebChat platform adapter: a
// synchronous-reply bridge for HTTP callers and a WebSocket debug
// channel for streaming the same traffic to a connected browser
// (spec.md §4.5 WebChat, §8 scenario 6).
package webchat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/langbot-app/LangBot/internal/platform"
	"github.com/langbot-app/LangBot/pkg/models"
)

// replyWaitTimeout bounds how long SendDebugMessage blocks for a reply
// before giving up (spec.md §8 scenario 6: the HTTP caller gets the
// reply synchronously, or a timeout error).
const replyWaitTimeout = 60 * time.Second

// future is a single-shot box a waiter blocks on and the adapter's
// ReplyMessage fulfills exactly once.
type future struct {
	done  chan struct{}
	once  sync.Once
	chain models.MessageChain
}

func newFuture() *future { return &future{done: make(chan struct{})} }

func (f *future) fulfill(chain models.MessageChain) {
	f.once.Do(func() {
		f.chain = chain
		close(f.done)
	})
}

// Session type values the HTTP/WebSocket debug surface accepts
// (spec.md §4.5 "keyed by webchat<person|group>", §6 debug HTTP body
// "session_type: person|group").
const (
	SessionTypePerson = "person"
	SessionTypeGroup  = "group"
)

// debugSenderID is the fixed identity every debug-console message is
// attributed to; the console has exactly one synthetic person session
// and one synthetic group session per pipeline, not one per browser tab.
const debugSenderID = "debug-user"

// debugGroupID is the synthetic group id used for session_type=="group"
// debug messages.
const debugGroupID = "debug-group"

// Adapter is the WebChat platform.Adapter. Inbound HTTP chat requests
// are delivered through Ingest/SendDebugMessage, which block (via a
// single-shot future keyed by message_id) until the pipeline replies,
// then return that reply synchronously to the caller (the resolved
// option for spec.md §9 "WebChat sync-bridge return shape").
type Adapter struct {
	botUUID  string
	listener platform.EventListener
	debug    *DebugHub
	history  *HistoryStore

	mu      sync.Mutex
	waiters map[string]*future
	active  map[string]context.CancelFunc
}

// New constructs a WebChat adapter. debug may be nil to disable the
// WebSocket debug mirror.
func New(debug *DebugHub) *Adapter {
	return &Adapter{
		waiters: make(map[string]*future),
		active:  make(map[string]context.CancelFunc),
		debug:   debug,
		history: NewHistoryStore(),
	}
}

// Interrupt cancels the in-flight request for sessionType, if any
// (spec.md §6 WebSocket client event "interrupt"). Returns false if no
// request is currently in flight for that session.
func (a *Adapter) Interrupt(sessionType string) bool {
	a.mu.Lock()
	cancel, ok := a.active[sessionType]
	a.mu.Unlock()
	if !ok {
		return false
	}
	cancel()
	return true
}

// History returns the adapter's per-session debug history store, used
// directly by the GET .../messages/{session_type} and POST
// .../reset/{session_type} HTTP routes.
func (a *Adapter) History() *HistoryStore { return a.history }

// Type implements platform.Adapter.
func (a *Adapter) Type() string { return "webchat" }

// SetBotUUID implements platform.Adapter.
func (a *Adapter) SetBotUUID(uuid string) { a.botUUID = uuid }

// RegisterListener implements platform.Adapter.
func (a *Adapter) RegisterListener(listener platform.EventListener) { a.listener = listener }

// RunAsync implements platform.Adapter; WebChat has no background loop,
// it is driven entirely by inbound HTTP requests.
func (a *Adapter) RunAsync(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

// Kill implements platform.Adapter.
func (a *Adapter) Kill(context.Context) error { return nil }

// SendMessage implements platform.Adapter; WebChat has no out-of-band
// send path distinct from ReplyMessage, since every chat message is
// addressed by the single-shot future the triggering request created.
func (a *Adapter) SendMessage(context.Context, string, models.MessageChain) error {
	return errors.New("webchat: SendMessage unsupported, use ReplyMessage against an in-flight request")
}

// HandleUnifiedWebhook implements platform.Adapter; WebChat never
// receives platform callbacks, only direct HTTP chat requests through
// Ingest, so the dispatcher should never route here.
func (a *Adapter) HandleUnifiedWebhook(context.Context, string, []byte, map[string][]string) ([]byte, error) {
	return nil, platform.ErrWebhookUnsupported
}

// Ingest accepts one synchronous chat request addressed by a raw sender
// id (used directly by tests and by any caller that isn't the
// session_type-keyed HTTP debug surface). It builds a FriendMessage
// event keyed by a fresh message id, registers a future for that id,
// fires the event to the pipeline via the registered listener, mirrors
// the message to the debug hub, and blocks for the reply.
func (a *Adapter) Ingest(ctx context.Context, senderID, sessionType, text string) (models.MessageChain, error) {
	event := models.Event{
		Type:   models.EventFriendMessage,
		Sender: models.Sender{ID: senderID, DisplayName: senderID},
	}
	return a.ingest(ctx, sessionType, event, models.MessageChain{models.Plain(text)})
}

// SendDebugMessage is the ingress used by the HTTP debug surface's
// POST /api/v1/pipelines/{pipeline_uuid}/chat/send (spec.md §6): it
// builds a Friend- or GroupMessage event for the fixed debug-console
// identity according to sessionType, feeds it to the pipeline, records
// both directions in the session's history, and blocks for the reply.
func (a *Adapter) SendDebugMessage(ctx context.Context, sessionType string, chain models.MessageChain) (models.MessageChain, error) {
	event := models.Event{Type: models.EventFriendMessage, Sender: models.Sender{ID: debugSenderID, DisplayName: debugSenderID}}
	if sessionType == SessionTypeGroup {
		event.Type = models.EventGroupMessage
		event.Sender.GroupID = debugGroupID
		event.Sender.GroupName = debugGroupID
	}
	return a.ingest(ctx, sessionType, event, chain)
}

// ingest is the shared body of Ingest/SendDebugMessage: it prepends the
// required Source component, registers the single-shot reply future,
// fires the event, records history, mirrors to the debug hub, and
// blocks for the reply (spec.md §4.5).
func (a *Adapter) ingest(ctx context.Context, sessionType string, event models.Event, chain models.MessageChain) (models.MessageChain, error) {
	if a.listener == nil {
		return nil, errors.New("webchat: no listener registered")
	}

	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	a.mu.Lock()
	a.active[sessionType] = cancel
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		delete(a.active, sessionType)
		a.mu.Unlock()
	}()

	messageID := uuid.NewString()
	now := time.Now().Unix()
	event.MessageChain = append(models.MessageChain{models.SourceComponent(messageID, now)}, chain...)
	event.Time = now
	event.SourcePlatformObject = messageID

	fut := newFuture()
	a.mu.Lock()
	a.waiters[messageID] = fut
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		delete(a.waiters, messageID)
		a.mu.Unlock()
	}()

	a.history.Append(sessionType, HistoryMessage{Direction: "inbound", MessageID: messageID, Chain: event.MessageChain, Time: now})
	if a.debug != nil {
		a.debug.Broadcast(a.botUUID, sessionType, DebugFrame{Direction: "inbound", MessageID: messageID, Text: chain.PlainText()})
	}

	if err := a.listener(reqCtx, event); err != nil {
		return nil, fmt.Errorf("webchat: pipeline rejected message: %w", err)
	}

	select {
	case <-fut.done:
		a.history.Append(sessionType, HistoryMessage{Direction: "outbound", MessageID: messageID, Chain: fut.chain, Time: time.Now().Unix()})
		if a.debug != nil {
			a.debug.Broadcast(a.botUUID, sessionType, DebugFrame{Direction: "outbound", MessageID: messageID, Text: fut.chain.PlainText()})
		}
		return fut.chain, nil
	case <-reqCtx.Done():
		return nil, reqCtx.Err()
	case <-time.After(replyWaitTimeout):
		return nil, fmt.Errorf("webchat: timed out waiting for reply to message %q", messageID)
	}
}

// ReplyMessage implements platform.Adapter by resolving the future
// registered for the triggering event's message id.
func (a *Adapter) ReplyMessage(_ context.Context, event models.Event, chain models.MessageChain) error {
	messageID, _ := event.SourcePlatformObject.(string)
	if messageID == "" {
		return errors.New("webchat: event has no associated message id")
	}

	a.mu.Lock()
	fut, ok := a.waiters[messageID]
	a.mu.Unlock()
	if !ok {
		return fmt.Errorf("webchat: no waiter for message %q (already replied or timed out)", messageID)
	}
	fut.fulfill(chain)
	return nil
}

// DebugFrame is one message mirrored to the WebSocket debug channel.
type DebugFrame struct {
	Direction string `json:"direction"`
	MessageID string `json:"message_id"`
	Text      string `json:"text"`
}

func (f DebugFrame) marshal() []byte {
	b, _ := json.Marshal(f)
	return b
}

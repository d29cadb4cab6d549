package webchat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/langbot-app/LangBot/pkg/models"
)

const (
	debugWriteWait  = 10 * time.Second
	debugPongWait   = 45 * time.Second
	debugPingPeriod = 30 * time.Second

	// connectHandshakeWait bounds how long the hub waits for the
	// client's first "connect" event before treating the connection as a
	// protocol violation (spec.md §6: "Client sends a connect event
	// first").
	connectHandshakeWait = 10 * time.Second
)

// Client/server WebSocket event type names (spec.md §6).
const (
	clientEventConnect     = "connect"
	clientEventSendMessage = "send_message"
	clientEventLoadHistory = "load_history"
	clientEventInterrupt   = "interrupt"
	clientEventPing        = "ping"

	serverEventConnected   = "connected"
	serverEventMessageSent = "message_sent"
	serverEventHistory     = "history"
	serverEventInterrupted = "interrupted"
	serverEventPong        = "pong"
	serverEventError       = "error"
)

// Error codes the "error" server event's error_code carries (spec.md
// §6).
const (
	ErrCodeInvalidHandshake   = "INVALID_HANDSHAKE"
	ErrCodeInvalidSessionType = "INVALID_SESSION_TYPE"
	ErrCodeMissingToken       = "MISSING_TOKEN"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeAuthError          = "AUTH_ERROR"
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeUnknownEvent       = "UNKNOWN_EVENT"
	ErrCodeInternalError      = "INTERNAL_ERROR"
)

// Close codes used against the WebSocket itself, distinct from the
// in-band "error" event (spec.md §6: "Close codes: 1008 for protocol
// violations, 1000 for server-initiated stale-connection close").
const (
	closeProtocolViolation = websocket.ClosePolicyViolation // 1008
	closeStaleConnection   = websocket.CloseNormalClosure   // 1000
)

// TokenValidator authenticates the token carried in a "connect" event.
// No user-identity service exists in this codebase, so
// defaultTokenValidator only rejects an empty token; a real deployment
// overrides this with one backed by its own session/auth service via
// SetTokenValidator.
type TokenValidator func(token string) error

func defaultTokenValidator(token string) error {
	if token == "" {
		return fmt.Errorf("webchat: empty token")
	}
	return nil
}

// clientEvent is the envelope every inbound WebSocket frame is decoded
// into before dispatch on Type.
type clientEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// serverEvent is the envelope every outbound WebSocket frame is encoded
// from.
type serverEvent struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

func (e serverEvent) marshal() []byte {
	b, _ := json.Marshal(e)
	return b
}

type connectData struct {
	SessionType string `json:"session_type"`
	Token       string `json:"token"`
}

type sendMessageData struct {
	Message models.MessageChain `json:"message"`
}

// conn is one connected debug-channel client.
type conn struct {
	ws     *websocket.Conn
	send   chan []byte
	closed atomic.Bool

	connectionID string
	pipelineUUID string
	sessionType  string
	adapter      *Adapter
}

func (c *conn) sendEvent(typ string, data any) {
	payload := serverEvent{Type: typ, Data: data}.marshal()
	select {
	case c.send <- payload:
	default:
	}
}

func (c *conn) sendError(code, message string) {
	c.sendEvent(serverEventError, map[string]string{"error_code": code, "message": message})
}

// DebugHub is the WebSocket debug channel: a pool of connections keyed
// by "<pipeline_uuid>:<session_type>" (spec.md §4.5 "WebSocket debug
// channel"). Adding a connection takes the top-level map lock only
// briefly to find or create its slot, then appends under that slot's own
// lock; removal and the stale-connection sweep take the top-level map
// lock since they mutate the key set itself.
type DebugHub struct {
	mu       sync.Mutex
	slots    map[string]*slot
	adapters map[string]*Adapter
	validate TokenValidator
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

type slot struct {
	mu    sync.Mutex
	conns []*conn
}

// NewDebugHub constructs a debug hub with no adapters wired yet; call
// SetAdapters once the pipeline-uuid-keyed adapter set is built.
func NewDebugHub(logger *slog.Logger) *DebugHub {
	if logger == nil {
		logger = slog.Default()
	}
	return &DebugHub{
		slots:    make(map[string]*slot),
		adapters: make(map[string]*Adapter),
		validate: defaultTokenValidator,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

// SetAdapters installs the pipeline-uuid-keyed adapter set the hub
// dispatches send_message/load_history/interrupt events against.
func (h *DebugHub) SetAdapters(adapters map[string]*Adapter) { h.adapters = adapters }

// SetTokenValidator overrides the connect-handshake token validator.
func (h *DebugHub) SetTokenValidator(v TokenValidator) {
	if v != nil {
		h.validate = v
	}
}

func debugKey(pipelineUUID, sessionType string) string {
	return pipelineUUID + ":" + sessionType
}

// ServeHTTP upgrades the request to a WebSocket, performs the
// connect-event handshake (spec.md §6), and then serves the
// send_message/load_history/interrupt/ping event loop. Mount under
// "/api/v1/pipelines/" alongside Router; the path must be
// ".../{pipeline_uuid}/chat/ws".
func (h *DebugHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	pipelineUUID, rest := parsePipelinesPath(r.URL.Path)
	if pipelineUUID == "" || rest != "chat/ws" {
		http.NotFound(w, r)
		return
	}
	adapter, ok := h.adapters[pipelineUUID]
	if !ok {
		http.Error(w, "unknown pipeline", http.StatusNotFound)
		return
	}

	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("webchat: debug ws upgrade failed", "error", err)
		return
	}

	c := &conn{
		ws:           wsConn,
		send:         make(chan []byte, 64),
		connectionID: uuid.NewString(),
		pipelineUUID: pipelineUUID,
		adapter:      adapter,
	}

	go h.writePump(c)
	h.handshake(c)
}

// handshake reads the client's first frame, requiring it to be a valid
// "connect" event naming a session_type and a token that passes
// validation; anything else is a protocol violation closed with 1008.
// On success it registers the connection under its slot and enters the
// normal read loop.
func (h *DebugHub) handshake(c *conn) {
	_ = c.ws.SetReadDeadline(time.Now().Add(connectHandshakeWait))

	var evt clientEvent
	if err := c.ws.ReadJSON(&evt); err != nil || evt.Type != clientEventConnect {
		c.sendError(ErrCodeInvalidHandshake, "first event must be \"connect\"")
		h.closeViolation(c)
		return
	}

	var data connectData
	if err := json.Unmarshal(evt.Data, &data); err != nil {
		c.sendError(ErrCodeInvalidHandshake, "malformed connect data")
		h.closeViolation(c)
		return
	}
	if data.SessionType != SessionTypePerson && data.SessionType != SessionTypeGroup {
		c.sendError(ErrCodeInvalidSessionType, "session_type must be \"person\" or \"group\"")
		h.closeViolation(c)
		return
	}
	if data.Token == "" {
		c.sendError(ErrCodeMissingToken, "token is required")
		h.closeViolation(c)
		return
	}
	if err := h.validate(data.Token); err != nil {
		c.sendError(ErrCodeUnauthorized, "token validation failed")
		h.closeViolation(c)
		return
	}

	c.sessionType = data.SessionType
	key := debugKey(c.pipelineUUID, c.sessionType)
	h.add(key, c)

	c.sendEvent(serverEventConnected, map[string]string{
		"connection_id": c.connectionID,
		"session_type":  c.sessionType,
		"pipeline_uuid": c.pipelineUUID,
	})

	h.readPump(key, c)
}

func (h *DebugHub) closeViolation(c *conn) {
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(closeProtocolViolation, "protocol violation"),
		time.Now().Add(debugWriteWait))
	c.closed.Store(true)
	_ = c.ws.Close()
}

// add looks up (or creates) the named slot under the hub's map lock,
// releases it, then appends c to the slot's connection list under the
// slot's own lock.
func (h *DebugHub) add(key string, c *conn) {
	h.mu.Lock()
	s, ok := h.slots[key]
	if !ok {
		s = &slot{}
		h.slots[key] = s
	}
	h.mu.Unlock()

	s.mu.Lock()
	s.conns = append(s.conns, c)
	s.mu.Unlock()
}

// remove drops c from the named slot, sweeping the slot from the map
// entirely once it is empty (the stale-connection sweep).
func (h *DebugHub) remove(key string, c *conn) {
	h.mu.Lock()
	s, ok := h.slots[key]
	h.mu.Unlock()
	if !ok {
		return
	}

	s.mu.Lock()
	for i, existing := range s.conns {
		if existing == c {
			s.conns = append(s.conns[:i], s.conns[i+1:]...)
			break
		}
	}
	empty := len(s.conns) == 0
	s.mu.Unlock()

	if empty {
		h.mu.Lock()
		if cur, ok := h.slots[key]; ok && cur == s {
			delete(h.slots, key)
		}
		h.mu.Unlock()
	}
}

// Broadcast fans frame out to every connection registered under
// "pipelineUUID:sessionType". A pipeline/session with no attached debug
// viewers is a cheap no-op.
func (h *DebugHub) Broadcast(pipelineUUID, sessionType string, frame DebugFrame) {
	key := debugKey(pipelineUUID, sessionType)
	h.mu.Lock()
	s, ok := h.slots[key]
	h.mu.Unlock()
	if !ok {
		return
	}

	payload := frame.marshal()
	s.mu.Lock()
	targets := append([]*conn(nil), s.conns...)
	s.mu.Unlock()

	for _, c := range targets {
		if c.closed.Load() {
			continue
		}
		select {
		case c.send <- payload:
		default:
			h.logger.Warn("webchat: debug connection send buffer full, dropping frame")
		}
	}
}

func (h *DebugHub) writePump(c *conn) {
	ticker := time.NewTicker(debugPingPeriod)
	defer ticker.Stop()
	defer c.ws.Close()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(debugWriteWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(debugWriteWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump runs the post-handshake event loop: decode each client frame
// and dispatch send_message/load_history/interrupt/ping, replying with
// the matching server event or an "error" event carrying an error_code
// for an unknown event type or malformed send_message data (spec.md §6).
// A read failure that isn't a clean client close (an expired read
// deadline, or a frame that does not decode as JSON) is treated as a
// stale connection and closed with 1000.
func (h *DebugHub) readPump(key string, c *conn) {
	defer func() {
		c.closed.Store(true)
		h.remove(key, c)
		c.ws.Close()
	}()

	c.ws.SetReadLimit(4096)
	_ = c.ws.SetReadDeadline(time.Now().Add(debugPongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(debugPongWait))
	})

	for {
		var evt clientEvent
		if err := c.ws.ReadJSON(&evt); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.staleClose(c)
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(debugPongWait))

		h.dispatch(c, evt)
	}
}

func (h *DebugHub) dispatch(c *conn, evt clientEvent) {
	switch evt.Type {
	case clientEventSendMessage:
		h.handleSendMessage(c, evt.Data)
	case clientEventLoadHistory:
		c.sendEvent(serverEventHistory, map[string]any{"messages": c.adapter.History().Messages(c.sessionType)})
	case clientEventInterrupt:
		c.adapter.Interrupt(c.sessionType)
		c.sendEvent(serverEventInterrupted, map[string]string{"session_type": c.sessionType})
	case clientEventPing:
		c.sendEvent(serverEventPong, map[string]any{})
	default:
		c.sendError(ErrCodeUnknownEvent, fmt.Sprintf("unknown event type %q", evt.Type))
	}
}

func (h *DebugHub) handleSendMessage(c *conn, raw json.RawMessage) {
	var data sendMessageData
	if err := json.Unmarshal(raw, &data); err != nil {
		c.sendError(ErrCodeInvalidRequest, "malformed send_message data")
		return
	}

	go func() {
		reply, err := c.adapter.SendDebugMessage(context.Background(), c.sessionType, data.Message)
		if err != nil {
			c.sendError(ErrCodeInternalError, err.Error())
			return
		}
		c.sendEvent(serverEventMessageSent, map[string]any{"messages": reply})
	}()
}

// staleClose sends the server-initiated 1000 close handshake for a
// connection whose read failed without a clean client close, typically
// because its read deadline (driven by the ping/pong keepalive) expired.
func (h *DebugHub) staleClose(c *conn) {
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(closeStaleConnection, "stale connection"),
		time.Now().Add(debugWriteWait))
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

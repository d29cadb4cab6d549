package webchat

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/langbot-app/LangBot/pkg/models"
)

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func newDebugTestServer(t *testing.T, adapter *Adapter) (*httptest.Server, string) {
	t.Helper()
	hub := NewDebugHub(nil)
	hub.SetAdapters(map[string]*Adapter{"default": adapter})

	srv := httptest.NewServer(hub)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/pipelines/default/chat/ws"
	return srv, wsURL
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func TestWSHandshakeSucceedsAndSendsConnectedEvent(t *testing.T) {
	adapter := New(nil)
	srv, url := newDebugTestServer(t, adapter)
	defer srv.Close()

	conn := dial(t, url)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(clientEvent{Type: clientEventConnect, Data: mustJSON(t, connectData{SessionType: SessionTypePerson, Token: "tok"})}))

	var evt serverEvent
	require.NoError(t, conn.ReadJSON(&evt))
	assert.Equal(t, serverEventConnected, evt.Type)
}

func TestWSHandshakeRejectsMissingTokenWithCloseCode(t *testing.T) {
	adapter := New(nil)
	srv, url := newDebugTestServer(t, adapter)
	defer srv.Close()

	conn := dial(t, url)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(clientEvent{Type: clientEventConnect, Data: mustJSON(t, connectData{SessionType: SessionTypePerson, Token: ""})}))

	var evt serverEvent
	require.NoError(t, conn.ReadJSON(&evt))
	assert.Equal(t, serverEventError, evt.Type)

	_, _, err := conn.ReadMessage()
	closeErr, ok := err.(*websocket.CloseError)
	require.True(t, ok, "expected a close frame after a failed handshake, got %v", err)
	assert.Equal(t, websocket.ClosePolicyViolation, closeErr.Code)
}

func TestWSHandshakeRejectsInvalidSessionType(t *testing.T) {
	adapter := New(nil)
	srv, url := newDebugTestServer(t, adapter)
	defer srv.Close()

	conn := dial(t, url)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(clientEvent{Type: clientEventConnect, Data: mustJSON(t, connectData{SessionType: "bogus", Token: "tok"})}))

	var evt serverEvent
	require.NoError(t, conn.ReadJSON(&evt))
	assert.Equal(t, serverEventError, evt.Type)
}

func TestWSPingPongAndLoadHistory(t *testing.T) {
	adapter := New(nil)
	adapter.History().Append(SessionTypePerson, HistoryMessage{MessageID: "m1"})
	srv, url := newDebugTestServer(t, adapter)
	defer srv.Close()

	conn := dial(t, url)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(clientEvent{Type: clientEventConnect, Data: mustJSON(t, connectData{SessionType: SessionTypePerson, Token: "tok"})}))
	var connected serverEvent
	require.NoError(t, conn.ReadJSON(&connected))
	require.Equal(t, serverEventConnected, connected.Type)

	require.NoError(t, conn.WriteJSON(clientEvent{Type: clientEventPing}))
	var pong serverEvent
	require.NoError(t, conn.ReadJSON(&pong))
	assert.Equal(t, serverEventPong, pong.Type)

	require.NoError(t, conn.WriteJSON(clientEvent{Type: clientEventLoadHistory}))
	var history serverEvent
	require.NoError(t, conn.ReadJSON(&history))
	assert.Equal(t, serverEventHistory, history.Type)
}

func TestWSSendMessageRoundTripsThroughAdapter(t *testing.T) {
	adapter := New(nil)
	adapter.RegisterListener(func(ctx context.Context, event models.Event) error {
		go func() { _ = adapter.ReplyMessage(ctx, event, models.MessageChain{models.Plain("pong")}) }()
		return nil
	})
	srv, url := newDebugTestServer(t, adapter)
	defer srv.Close()

	conn := dial(t, url)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(clientEvent{Type: clientEventConnect, Data: mustJSON(t, connectData{SessionType: SessionTypePerson, Token: "tok"})}))
	var connected serverEvent
	require.NoError(t, conn.ReadJSON(&connected))

	require.NoError(t, conn.WriteJSON(clientEvent{Type: clientEventSendMessage, Data: mustJSON(t, sendMessageData{Message: models.MessageChain{models.Plain("hi")}})}))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var sent serverEvent
	require.NoError(t, conn.ReadJSON(&sent))
	assert.Equal(t, serverEventMessageSent, sent.Type)
}

func TestWSUnknownEventTypeReturnsError(t *testing.T) {
	adapter := New(nil)
	srv, url := newDebugTestServer(t, adapter)
	defer srv.Close()

	conn := dial(t, url)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(clientEvent{Type: clientEventConnect, Data: mustJSON(t, connectData{SessionType: SessionTypePerson, Token: "tok"})}))
	var connected serverEvent
	require.NoError(t, conn.ReadJSON(&connected))

	require.NoError(t, conn.WriteJSON(clientEvent{Type: "bogus"}))
	var errEvt serverEvent
	require.NoError(t, conn.ReadJSON(&errEvt))
	assert.Equal(t, serverEventError, errEvt.Type)
}

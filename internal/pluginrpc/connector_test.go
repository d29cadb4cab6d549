package pluginrpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPTransportCallActionRoundTrips(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/actions/ping", r.URL.Path)
		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "bot-1", payload["plugin_id"])
		_ = json.NewEncoder(w).Encode(ActionResponse{Data: map[string]any{"ok": true}})
	}))
	defer srv.Close()

	transport := NewHTTPTransport(srv.Listener.Addr().String())
	resp, err := transport.CallAction(context.Background(), "ping", map[string]any{"plugin_id": "bot-1"})
	require.NoError(t, err)
	assert.Equal(t, true, resp.Data["ok"])
}

func TestConnectorWrapsTransportErrorAsPluginRPCError(t *testing.T) {
	transport := &erroringTransport{}
	c := NewConnector(transport)

	_, err := c.GetPluginSettings(context.Background(), "plugin-a")
	require.Error(t, err)
	var rpcErr *PluginRPCError
	assert.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, "get_plugin_settings", rpcErr.Verb)
}

func TestConnectorWrapsPluginReportedErrorField(t *testing.T) {
	transport := &scriptedConnectorTransport{resp: ActionResponse{Error: "plugin exploded"}}
	c := NewConnector(transport)

	err := c.CreateNewConversation(context.Background(), "session-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "plugin exploded")
}

func TestConnectorCallToolPassesSessionAndQueryID(t *testing.T) {
	transport := &scriptedConnectorTransport{resp: ActionResponse{Data: map[string]any{"result": "done"}}}
	c := NewConnector(transport)

	result, err := c.CallTool(context.Background(), "lookup", map[string]any{"q": "x"}, "PERSON:u1", 42)
	require.NoError(t, err)
	assert.Equal(t, "done", result["result"])
	assert.Equal(t, "PERSON:u1", transport.lastPayload["session_id"])
	assert.Equal(t, int64(42), transport.lastPayload["query_id"])
}

type erroringTransport struct{}

func (erroringTransport) CallAction(context.Context, string, map[string]any) (ActionResponse, error) {
	return ActionResponse{}, assertTransportDown
}
func (erroringTransport) CallActionGenerator(context.Context, string, map[string]any) (<-chan ActionResponse, error) {
	return nil, assertTransportDown
}

type transportDownError struct{}

func (transportDownError) Error() string { return "transport down" }

var assertTransportDown = transportDownError{}

type scriptedConnectorTransport struct {
	resp        ActionResponse
	lastPayload map[string]any
}

func (t *scriptedConnectorTransport) CallAction(_ context.Context, _ string, payload map[string]any) (ActionResponse, error) {
	t.lastPayload = payload
	return t.resp, nil
}

func (t *scriptedConnectorTransport) CallActionGenerator(context.Context, string, map[string]any) (<-chan ActionResponse, error) {
	ch := make(chan ActionResponse)
	close(ch)
	return ch, nil
}

func TestTimeoutConstantsAreOrderedBySeverity(t *testing.T) {
	assert.Less(t, TimeoutPing, TimeoutSchema)
	assert.Less(t, TimeoutSchema, TimeoutLLMTool)
	assert.Less(t, TimeoutLLMTool, TimeoutIngest)
	assert.Equal(t, 10*time.Second, TimeoutPing)
}

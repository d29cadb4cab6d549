package platform

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/langbot-app/LangBot/pkg/models"
)

type stubAdapter struct {
	response []byte
	err      error
}

func (s *stubAdapter) Type() string                        { return "stub" }
func (s *stubAdapter) RegisterListener(EventListener)       {}
func (s *stubAdapter) SetBotUUID(string)                    {}
func (s *stubAdapter) RunAsync(context.Context) error       { return nil }
func (s *stubAdapter) Kill(context.Context) error           { return nil }
func (s *stubAdapter) SendMessage(context.Context, string, models.MessageChain) error {
	return nil
}
func (s *stubAdapter) ReplyMessage(context.Context, models.Event, models.MessageChain) error {
	return nil
}
func (s *stubAdapter) HandleUnifiedWebhook(_ context.Context, _ string, _ []byte, _ map[string][]string) ([]byte, error) {
	return s.response, s.err
}

func TestDispatcherReturns404ForUnknownBot(t *testing.T) {
	d := NewDispatcher(NewRegistry(), nil)
	req := httptest.NewRequest(http.MethodPost, "/bots/nope", strings.NewReader("{}"))
	rec := httptest.NewRecorder()

	d.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDispatcherReturns501ForUnsupportedWebhook(t *testing.T) {
	reg := NewRegistry()
	reg.Add("bot1", &stubAdapter{err: ErrWebhookUnsupported}, nil)
	d := NewDispatcher(reg, nil)

	req := httptest.NewRequest(http.MethodPost, "/bots/bot1", strings.NewReader("{}"))
	rec := httptest.NewRecorder()
	d.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestDispatcherReturns200OnSuccess(t *testing.T) {
	reg := NewRegistry()
	reg.Add("bot1", &stubAdapter{response: []byte("ok")}, nil)
	d := NewDispatcher(reg, nil)

	req := httptest.NewRequest(http.MethodPost, "/bots/bot1/webhook", strings.NewReader("{}"))
	rec := httptest.NewRecorder()
	d.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestDispatcherReturns500WhenAdapterHandlerFails(t *testing.T) {
	reg := NewRegistry()
	reg.Add("bot1", &stubAdapter{err: assertHandlerFailed}, nil)
	d := NewDispatcher(reg, nil)

	req := httptest.NewRequest(http.MethodPost, "/bots/bot1", strings.NewReader("{}"))
	rec := httptest.NewRecorder()
	d.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

type handlerFailedError struct{}

func (handlerFailedError) Error() string { return "handler failed" }

var assertHandlerFailed = handlerFailedError{}

type rejectVerifier struct{}

func (rejectVerifier) Verify(map[string][]string, []byte) error { return errRejected }

var errRejected = &verifierError{}

type verifierError struct{}

func (*verifierError) Error() string { return "rejected" }

func TestDispatcherReturns403ForDisabledBot(t *testing.T) {
	reg := NewRegistry()
	reg.Add("bot1", &stubAdapter{response: []byte("ok")}, nil)
	reg.SetEnabled("bot1", false)
	d := NewDispatcher(reg, nil)

	req := httptest.NewRequest(http.MethodPost, "/bots/bot1", strings.NewReader("{}"))
	rec := httptest.NewRecorder()
	d.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDispatcherReturns403WhenVerifierRejects(t *testing.T) {
	reg := NewRegistry()
	reg.Add("bot1", &stubAdapter{response: []byte("ok")}, rejectVerifier{})
	d := NewDispatcher(reg, nil)

	req := httptest.NewRequest(http.MethodPost, "/bots/bot1", strings.NewReader("{}"))
	rec := httptest.NewRecorder()
	d.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestParseBotsPath(t *testing.T) {
	uuid, sub := parseBotsPath("/bots/abc/webhook/sub")
	assert.Equal(t, "abc", uuid)
	assert.Equal(t, "webhook/sub", sub)

	uuid, sub = parseBotsPath("/bots/abc")
	assert.Equal(t, "abc", uuid)
	assert.Equal(t, "", sub)

	uuid, _ = parseBotsPath("/other/path")
	assert.Equal(t, "", uuid)
}

func TestEd25519VerifierRoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	v, err := NewEd25519Verifier(hex.EncodeToString(pub), "")
	require.NoError(t, err)

	body := []byte(`{"hello":"world"}`)
	sig := ed25519.Sign(priv, body)

	require.NoError(t, v.Verify(map[string][]string{"X-Signature-Ed25519": {hex.EncodeToString(sig)}}, body))

	badSig := make([]byte, len(sig))
	copy(badSig, sig)
	badSig[0] ^= 0xFF
	err = v.Verify(map[string][]string{"X-Signature-Ed25519": {hex.EncodeToString(badSig)}}, body)
	assert.Error(t, err)
}

func TestEd25519VerifierMissingHeader(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	v, err := NewEd25519Verifier(hex.EncodeToString(pub), "")
	require.NoError(t, err)

	err = v.Verify(map[string][]string{}, []byte("x"))
	assert.Error(t, err)
}

package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryAddSetsBotUUIDAndStoresVerifier(t *testing.T) {
	r := NewRegistry()
	adapter := &stubAdapter{}
	v := rejectVerifier{}

	r.Add("bot-1", adapter, v)

	gotAdapter, gotVerifier, ok := r.Get("bot-1")
	require.True(t, ok)
	assert.Same(t, adapter, gotAdapter)
	assert.Equal(t, v, gotVerifier)
}

func TestRegistryGetUnknownBotReturnsFalse(t *testing.T) {
	r := NewRegistry()
	_, _, ok := r.Get("nope")
	assert.False(t, ok)
}

func TestRegistryRemoveDeregistersBot(t *testing.T) {
	r := NewRegistry()
	r.Add("bot-1", &stubAdapter{}, nil)
	r.Remove("bot-1")

	_, _, ok := r.Get("bot-1")
	assert.False(t, ok)
}

func TestRegistryNewBotIsEnabledByDefault(t *testing.T) {
	r := NewRegistry()
	r.Add("bot-1", &stubAdapter{}, nil)

	enabled, found := r.Enabled("bot-1")
	assert.True(t, found)
	assert.True(t, enabled)
}

func TestRegistrySetEnabledTogglesWithoutDeregistering(t *testing.T) {
	r := NewRegistry()
	r.Add("bot-1", &stubAdapter{}, nil)
	r.SetEnabled("bot-1", false)

	enabled, found := r.Enabled("bot-1")
	assert.True(t, found)
	assert.False(t, enabled)

	_, _, ok := r.Get("bot-1")
	assert.True(t, ok, "disabling must not remove the bot from the registry")
}

func TestRegistryEnabledUnknownBotReturnsNotFound(t *testing.T) {
	r := NewRegistry()
	_, found := r.Enabled("nope")
	assert.False(t, found)
}

func TestErrUnknownBotMessageIncludesUUID(t *testing.T) {
	err := &ErrUnknownBot{BotUUID: "bot-x"}
	assert.Contains(t, err.Error(), "bot-x")
}

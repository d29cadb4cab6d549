package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryResolveReturnsConfiguredModelAndRequester(t *testing.T) {
	reg, err := NewRegistry([]ModelConfig{
		{UUID: "model-1", Name: "gpt-4o", Provider: "openai", APIKey: "sk-test", Abilities: []string{"vision"}},
		{UUID: "model-2", Name: "claude-3-opus", Provider: "anthropic", APIKey: "sk-ant-test"},
	})
	require.NoError(t, err)

	model, requester, err := reg.Resolve("model-1")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", model.Name)
	assert.True(t, model.HasAbility("vision"))
	assert.IsType(t, &OpenAIRequester{}, requester)

	model, requester, err = reg.Resolve("model-2")
	require.NoError(t, err)
	assert.Equal(t, "claude-3-opus", model.Name)
	assert.IsType(t, &AnthropicRequester{}, requester)
}

func TestRegistryResolveUnknownUUIDFails(t *testing.T) {
	reg, err := NewRegistry(nil)
	require.NoError(t, err)

	_, _, err = reg.Resolve("missing")
	assert.Error(t, err)
}

func TestNewRegistryRejectsUnknownProvider(t *testing.T) {
	_, err := NewRegistry([]ModelConfig{{UUID: "m", Provider: "bedrock"}})
	assert.Error(t, err)
}

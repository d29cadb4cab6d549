package llm

import "fmt"

// ModelConfig is one entry of the gateway's models: config section
// (spec.md §4.1 "Model UUID resolution" — "e.g. a models: config
// section mapping a uuid to provider+credentials").
type ModelConfig struct {
	UUID      string   `yaml:"uuid" json:"uuid"`
	Name      string   `yaml:"name" json:"name"`
	Provider  string   `yaml:"provider" json:"provider"` // "openai" | "anthropic"
	APIKey    string   `yaml:"api-key" json:"api-key"`
	BaseURL   string   `yaml:"base-url" json:"base-url"`
	Abilities []string `yaml:"abilities" json:"abilities"`
}

// Registry resolves a model uuid to its Model metadata and the Requester
// that serves it, built once at startup from the configured model list.
// This is the production ModelResolver: every stages.ProcessStage is
// wired against Registry.Resolve rather than a hand-rolled closure.
type Registry struct {
	models     map[string]Model
	requesters map[string]Requester
}

// NewRegistry constructs a Registry from cfgs, building one Requester
// per entry. An unsupported provider fails the whole registry build
// rather than resolving later at query time, so a misconfigured
// deployment fails at startup (spec.md §6 "fail loudly at startup").
func NewRegistry(cfgs []ModelConfig) (*Registry, error) {
	reg := &Registry{
		models:     make(map[string]Model, len(cfgs)),
		requesters: make(map[string]Requester, len(cfgs)),
	}
	for _, c := range cfgs {
		requester, err := buildRequester(c)
		if err != nil {
			return nil, fmt.Errorf("llm: build requester for model %q: %w", c.UUID, err)
		}
		reg.models[c.UUID] = Model{
			UUID:         c.UUID,
			Name:         c.Name,
			Abilities:    c.Abilities,
			ProviderType: c.Provider,
		}
		reg.requesters[c.UUID] = requester
	}
	return reg, nil
}

func buildRequester(c ModelConfig) (Requester, error) {
	switch c.Provider {
	case "openai":
		return NewOpenAIRequester(c.APIKey, c.BaseURL), nil
	case "anthropic":
		return NewAnthropicRequester(c.APIKey), nil
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", c.Provider)
	}
}

// Resolve implements stages.ModelResolver's shape (the stages package
// takes the bare func value, not the Registry, to avoid importing llm's
// config type into the stage).
func (r *Registry) Resolve(modelUUID string) (Model, Requester, error) {
	model, ok := r.models[modelUUID]
	if !ok {
		return Model{}, nil, fmt.Errorf("llm: no model registered for uuid %q", modelUUID)
	}
	return model, r.requesters[modelUUID], nil
}

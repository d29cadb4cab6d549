package llm

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/sashabaranov/go-openai"

	"github.com/langbot-app/LangBot/internal/query"
)

// OpenAIRequester implements Requester against an OpenAI-compatible
// chat-completions API (also used by self-hosted gateways that mimic the
// OpenAI wire format, the way the teacher's own provider layer treats
// OpenAI-compatible backends uniformly).
type OpenAIRequester struct {
	client *openai.Client
}

// NewOpenAIRequester constructs a requester from an API key and
// (optional) base URL override, the way WeKnora's model requesters are
// constructed from plain config values rather than a DI container.
func NewOpenAIRequester(apiKey, baseURL string) *OpenAIRequester {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIRequester{client: openai.NewClientWithConfig(cfg)}
}

// InvokeLLM implements Requester.
func (r *OpenAIRequester) InvokeLLM(ctx context.Context, _ *query.Query, model Model, messages []query.LLMMessage, funcs []FuncDef, extra ExtraArgs) (InvokeResult, error) {
	req := openai.ChatCompletionRequest{
		Model:    model.Name,
		Messages: toOpenAIMessages(messages),
	}
	if len(funcs) > 0 {
		req.Tools = toOpenAITools(funcs)
	}
	applyExtraArgsOpenAI(&req, extra)

	resp, err := r.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return InvokeResult{}, classifyOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return InvokeResult{}, &RequesterError{Kind: ErrUnknown, Provider: "openai", Err: errors.New("empty choices")}
	}

	choice := resp.Choices[0]
	result := InvokeResult{Role: "assistant", Content: choice.Message.Content}
	for _, tc := range choice.Message.ToolCalls {
		var args map[string]any
		_ = json.Unmarshal([]byte(tc.Function.Arguments), &args)
		result.ToolCalls = append(result.ToolCalls, ToolCallRequest{ID: tc.ID, Name: tc.Function.Name, Arguments: args})
	}
	return result, nil
}

// Embed implements EmbeddingRequester.
func (r *OpenAIRequester) Embed(ctx context.Context, model Model, text string) ([]float32, error) {
	resp, err := r.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(model.Name),
		Input: []string{text},
	})
	if err != nil {
		return nil, classifyOpenAIError(err)
	}
	if len(resp.Data) == 0 {
		return nil, &RequesterError{Kind: ErrUnknown, Provider: "openai", Err: errors.New("empty embedding data")}
	}
	return resp.Data[0].Embedding, nil
}

func toOpenAIMessages(messages []query.LLMMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	return out
}

func toOpenAITools(funcs []FuncDef) []openai.Tool {
	out := make([]openai.Tool, 0, len(funcs))
	for _, f := range funcs {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        f.Name,
				Description: f.Description,
				Parameters:  f.Parameters,
			},
		})
	}
	return out
}

func applyExtraArgsOpenAI(req *openai.ChatCompletionRequest, extra ExtraArgs) {
	if extra == nil {
		return
	}
	if v, ok := extra["temperature"].(float64); ok {
		req.Temperature = float32(v)
	}
	if v, ok := extra["top_p"].(float64); ok {
		req.TopP = float32(v)
	}
	if v, ok := extra["max_tokens"].(int); ok {
		req.MaxTokens = v
	}
}

func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		kind := ErrUnknown
		switch apiErr.HTTPStatusCode {
		case 401, 403:
			kind = ErrAuth
		case 400, 422:
			kind = ErrBadRequest
		case 404:
			kind = ErrNotFound
		case 429:
			kind = ErrRateLimit
		case 408, 504:
			kind = ErrTimeout
		}
		return &RequesterError{Kind: kind, Provider: "openai", Err: err}
	}
	return &RequesterError{Kind: ErrUnknown, Provider: "openai", Err: err}
}

package llm

import (
	"context"
	"errors"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/langbot-app/LangBot/internal/query"
)

// AnthropicRequester implements Requester against the Anthropic Messages
// API, exercising a second concrete provider behind the same uniform
// Requester interface (spec.md §1: "a uniform requester interface").
type AnthropicRequester struct {
	client anthropic.Client
}

// NewAnthropicRequester constructs a requester from an API key.
func NewAnthropicRequester(apiKey string) *AnthropicRequester {
	return &AnthropicRequester{client: anthropic.NewClient(option.WithAPIKey(apiKey))}
}

// InvokeLLM implements Requester.
func (r *AnthropicRequester) InvokeLLM(ctx context.Context, _ *query.Query, model Model, messages []query.LLMMessage, funcs []FuncDef, extra ExtraArgs) (InvokeResult, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model.Name),
		MaxTokens: extraMaxTokens(extra),
		Messages:  toAnthropicMessages(messages),
	}

	msg, err := r.client.Messages.New(ctx, params)
	if err != nil {
		return InvokeResult{}, classifyAnthropicError(err)
	}

	result := InvokeResult{Role: "assistant"}
	for _, block := range msg.Content {
		if text := block.AsAny(); text != nil {
			if tb, ok := text.(anthropic.TextBlock); ok {
				result.Content += tb.Text
			}
		}
	}
	return result, nil
}

func extraMaxTokens(extra ExtraArgs) int64 {
	if extra == nil {
		return 1024
	}
	if v, ok := extra["max_tokens"].(int); ok && v > 0 {
		return int64(v)
	}
	return 1024
}

func toAnthropicMessages(messages []query.LLMMessage) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == "assistant" {
			out = append(out, anthropic.NewAssistantMessage(block))
		} else {
			out = append(out, anthropic.NewUserMessage(block))
		}
	}
	return out
}

func classifyAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		kind := ErrUnknown
		switch apiErr.StatusCode {
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
		return &RequesterError{Kind: kind, Provider: "anthropic", Err: err}
	}
	return &RequesterError{Kind: ErrUnknown, Provider: "anthropic", Err: err}
}

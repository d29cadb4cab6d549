// Package llm defines the uniform requester interface LLM and embedding
// providers are invoked through (spec.md §1 Non-goals: LLM/embedding
// models are remote HTTP services, never embedded).
package llm

import (
	"context"
	"fmt"

	"github.com/langbot-app/LangBot/internal/query"
)

// Model describes one configured LLM model.
type Model struct {
	UUID         string
	Name         string
	Abilities    []string // e.g. "vision", "func_call"
	ProviderType string   // "openai", "anthropic", ...
}

// HasAbility reports whether the model advertises the given ability.
func (m Model) HasAbility(ability string) bool {
	for _, a := range m.Abilities {
		if a == ability {
			return true
		}
	}
	return false
}

// FuncDef is a tool/function definition surfaced to the model.
type FuncDef struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ToolCallRequest is one tool call the model asked to run.
type ToolCallRequest struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// InvokeResult is what Requester.InvokeLLM returns: either assistant text
// or a set of requested tool calls (or both, per OpenAI/Anthropic
// semantics).
type InvokeResult struct {
	Role      string
	Content   string
	ToolCalls []ToolCallRequest
}

// ExtraArgs carries provider-specific passthrough parameters (temperature,
// top_p, ...).
type ExtraArgs map[string]any

// Requester is the uniform interface every LLM provider backend
// implements. invoke_llm from spec.md §4.8 Process.
type Requester interface {
	InvokeLLM(ctx context.Context, q *query.Query, model Model, messages []query.LLMMessage, funcs []FuncDef, extra ExtraArgs) (InvokeResult, error)
}

// EmbeddingRequester turns text into vectors for retrieval (spec.md §4.2).
type EmbeddingRequester interface {
	Embed(ctx context.Context, model Model, text string) ([]float32, error)
}

// RequesterErrorKind enumerates the RequesterError taxonomy from
// spec.md §7.
type RequesterErrorKind string

const (
	ErrAuth       RequesterErrorKind = "auth"
	ErrBadRequest RequesterErrorKind = "bad_request"
	ErrRateLimit  RequesterErrorKind = "rate_limited"
	ErrTimeout    RequesterErrorKind = "timeout"
	ErrNotFound   RequesterErrorKind = "not_found"
	ErrUnknown    RequesterErrorKind = "unknown"
)

// RequesterError is raised by a Requester implementation; the process
// stage surfaces a localized message derived from Kind.
type RequesterError struct {
	Kind     RequesterErrorKind
	Provider string
	Err      error
}

func (e *RequesterError) Error() string {
	return fmt.Sprintf("llm requester (%s): %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *RequesterError) Unwrap() error { return e.Err }

// LocalizedMessage returns a short, user-facing description of the
// failure for the pipeline's error-surfacing path (spec.md §7).
func (e *RequesterError) LocalizedMessage() string {
	switch e.Kind {
	case ErrAuth:
		return "模型服务鉴权失败,请检查配置。"
	case ErrBadRequest:
		return "请求参数有误,模型服务拒绝处理。"
	case ErrRateLimit:
		return "模型服务请求过于频繁,请稍后再试。"
	case ErrTimeout:
		return "模型服务响应超时,请稍后再试。"
	case ErrNotFound:
		return "未找到指定的模型。"
	default:
		return "模型服务出现未知错误。"
	}
}

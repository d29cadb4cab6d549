package stages

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/langbot-app/LangBot/internal/llm"
	"github.com/langbot-app/LangBot/internal/pipeline"
	"github.com/langbot-app/LangBot/internal/pluginrpc"
	"github.com/langbot-app/LangBot/internal/query"
	"github.com/langbot-app/LangBot/pkg/models"
)

// KnowledgeRetriever resolves a knowledge-base uuid + query string to a
// fused, ordered retrieval result (spec.md §1 "RAG retrieval ... runs
// inside the process stage and invokes C2/C3"). Both the plugin-backed
// rag.Manager.Retrieve and a direct internal/retriever.Retriever satisfy
// this with an appropriate adapter.
type KnowledgeRetriever interface {
	Retrieve(ctx context.Context, kbUUID, query string) ([]models.RetrievalResultEntry, error)
}

// maxToolCallRounds bounds the tool-call loop so a misbehaving model
// cannot spin the pipeline forever requesting tools.
const maxToolCallRounds = 8

// ModelResolver resolves an LLM model uuid to its Model metadata and the
// Requester implementation that serves it.
type ModelResolver func(modelUUID string) (llm.Model, llm.Requester, error)

// ToolCatalog lists the function definitions surfaced to the model for
// this query (spec.md §4.8 Process: "tool-call dispatch loop").
type ToolCatalog func(ctx context.Context, q *query.Query) ([]llm.FuncDef, error)

// Runner abstracts the three execution modes spec.md §4.8 describes for
// the Process stage: a direct single-shot LLM call, an agent loop with
// tool dispatch, or delegation to an external workflow engine. The
// default ProcessStage wires in the agent-loop Runner (runAgentLoop);
// an external-workflow integration can supply its own Runner.
type Runner interface {
	Run(ctx context.Context, q *query.Query) error
}

// ProcessStage invokes the bound LLM model, dispatching any requested
// tool calls back through the plugin RPC connector until the model
// stops requesting tools or maxToolCallRounds is hit (spec.md §4.8
// Process).
type ProcessStage struct {
	Resolver  ModelResolver
	Tools     ToolCatalog
	Connector *pluginrpc.Connector
	Pool      *query.Pool
	Runner    Runner // optional override (e.g. external workflow engine)

	// Knowledge resolves a RAG-enabled pipeline's retrieval call. Nil
	// means no KB is wired; RAG-enabled pipelines then run without
	// retrieved context rather than failing the query (spec.md §7
	// VectorStoreFailure: "the process stage may choose to continue
	// without RAG").
	Knowledge KnowledgeRetriever
}

// NewProcessStage constructs the Process stage.
func NewProcessStage(resolver ModelResolver, tools ToolCatalog, connector *pluginrpc.Connector, pool *query.Pool) *ProcessStage {
	return &ProcessStage{Resolver: resolver, Tools: tools, Connector: connector, Pool: pool}
}

// WithKnowledge sets the KnowledgeRetriever used for RAG-enabled
// pipelines and returns s for chaining at construction time.
func (s *ProcessStage) WithKnowledge(k KnowledgeRetriever) *ProcessStage {
	s.Knowledge = k
	return s
}

// ErrInterrupted is returned internally when cooperative cancellation
// fires mid tool-call loop; Process converts it into a silent INTERRUPT.
var ErrInterrupted = errors.New("stages: query interrupted")

// Process implements pipeline.Stage.
func (s *ProcessStage) Process(ctx context.Context, q *query.Query, _ string) (pipeline.StageProcessResult, error) {
	next := q.Clone()

	if s.Runner != nil {
		if err := s.Runner.Run(ctx, next); err != nil {
			if errors.Is(err, ErrInterrupted) {
				return pipeline.Interrupt(), nil
			}
			return pipeline.StageProcessResult{}, err
		}
		return pipeline.Continue(next), nil
	}

	if err := s.runAgentLoop(ctx, next); err != nil {
		if errors.Is(err, ErrInterrupted) {
			return pipeline.Interrupt(), nil
		}
		return pipeline.StageProcessResult{}, err
	}
	return pipeline.Continue(next), nil
}

// runAgentLoop implements the default agent-loop Runner: invoke the
// model, and while it asks for tool calls, dispatch each via
// Connector.CallTool and feed the results back as a new message, up to
// maxToolCallRounds.
func (s *ProcessStage) runAgentLoop(ctx context.Context, q *query.Query) error {
	model, requester, err := s.Resolver(q.UseLLMModelUUID)
	if err != nil {
		return fmt.Errorf("stages: resolve model %q: %w", q.UseLLMModelUUID, err)
	}

	var funcs []llm.FuncDef
	if s.Tools != nil {
		funcs, err = s.Tools(ctx, q)
		if err != nil {
			return fmt.Errorf("stages: list tools: %w", err)
		}
	}

	messages := append([]query.LLMMessage(nil), q.Messages...)
	if ragMsg, ok := s.retrieveContext(ctx, q); ok {
		messages = append(messages, ragMsg)
	}
	messages = append(messages, query.LLMMessage{Role: "user", Content: q.Prompt})

	for round := 0; round < maxToolCallRounds; round++ {
		if s.Pool != nil && s.Pool.IsInterrupted(q.QueryID) {
			return ErrInterrupted
		}

		result, err := requester.InvokeLLM(ctx, q, model, messages, funcs, nil)
		if err != nil {
			return classifyAndWrap(model, err)
		}

		if len(result.ToolCalls) == 0 {
			q.Messages = messages
			q.RespMessages = append(q.RespMessages, query.LLMMessage{Role: "assistant", Content: result.Content})
			return nil
		}

		messages = append(messages, query.LLMMessage{Role: "assistant", Content: result.Content})

		for _, call := range result.ToolCalls {
			if s.Pool != nil && s.Pool.IsInterrupted(q.QueryID) {
				return ErrInterrupted
			}

			sessionID := string(q.LauncherType) + ":" + q.LauncherID
			toolResult, err := s.Connector.CallTool(ctx, call.Name, call.Arguments, sessionID, q.QueryID)
			if err != nil {
				messages = append(messages, query.LLMMessage{
					Role:    "tool",
					Content: fmt.Sprintf("tool %q failed: %v", call.Name, err),
				})
				continue
			}
			messages = append(messages, query.LLMMessage{
				Role:    "tool",
				Content: fmt.Sprintf("%v", toolResult["result"]),
			})
		}
	}

	return fmt.Errorf("stages: exceeded %d tool-call rounds", maxToolCallRounds)
}

// retrieveContext runs RAG retrieval for q's pipeline when enabled,
// returning a system-role message carrying the retrieved passages. A
// disabled RAG config, a nil Knowledge resolver, or a retrieval failure
// all result in (zero-value, false): the pipeline continues without RAG
// rather than failing the query (spec.md §7 VectorStoreFailure).
func (s *ProcessStage) retrieveContext(ctx context.Context, q *query.Query) (query.LLMMessage, bool) {
	if s.Knowledge == nil || q.PipelineConfig == nil || !q.PipelineConfig.RAG.Enabled {
		return query.LLMMessage{}, false
	}
	kbUUID := q.PipelineConfig.RAG.KnowledgeBaseID
	if kbUUID == "" {
		return query.LLMMessage{}, false
	}
	queryText := q.Variables.GetString("user_message_text")
	if queryText == "" {
		return query.LLMMessage{}, false
	}

	entries, err := s.Knowledge.Retrieve(ctx, kbUUID, queryText)
	if err != nil {
		return query.LLMMessage{}, false
	}

	topK := q.PipelineConfig.RAG.TopK
	if topK > 0 && len(entries) > topK {
		entries = entries[:topK]
	}
	if len(entries) == 0 {
		return query.LLMMessage{}, false
	}

	var b strings.Builder
	b.WriteString("Relevant retrieved context:\n")
	for i, entry := range entries {
		b.WriteString(fmt.Sprintf("[%d] %s\n", i+1, entry.Text()))
	}
	return query.LLMMessage{Role: "system", Content: b.String()}, true
}

func classifyAndWrap(model llm.Model, err error) error {
	var rerr *llm.RequesterError
	if errors.As(err, &rerr) {
		return fmt.Errorf("stages: invoke model %q: %s: %w", model.Name, rerr.LocalizedMessage(), rerr)
	}
	return fmt.Errorf("stages: invoke model %q: %w", model.Name, err)
}

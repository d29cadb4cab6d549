package stages

import (
	"context"
	"strings"

	"github.com/langbot-app/LangBot/internal/pipeline"
	"github.com/langbot-app/LangBot/internal/query"
	"github.com/langbot-app/LangBot/internal/session"
)

// ModelAbilities resolves the advertised abilities (e.g. "vision",
// "func_call") of an LLM model by uuid.
type ModelAbilities func(modelUUID string) []string

// PromptAssembler builds Query.Prompt from the query's resolved session,
// conversation, and message chain. The default implementation
// concatenates conversation history and the current user message; a
// prevent-default plugin may supply its own (spec.md §4.8 PreProcessor).
type PromptAssembler func(q *query.Query, conv *session.Conversation) (string, error)

// PreProcessEvent is the plugin event the preproc stage emits after
// populating variables, mirroring the "pre-process plugin event" in
// spec.md §4.8. If it returns preventDefault, customPrompt is used
// verbatim instead of the default assembler's output.
type PreProcessEvent func(ctx context.Context, q *query.Query) (preventDefault bool, customPrompt string, err error)

// PreProcessor resolves session/conversation, binds the LLM model,
// strips unsupported components, and populates query variables.
type PreProcessor struct {
	Sessions         *session.Manager
	ModelAbilities   ModelAbilities
	PromptAssembler  PromptAssembler
	PreProcessEvent  PreProcessEvent
}

// NewPreProcessor constructs the PreProcessor stage.
func NewPreProcessor(sessions *session.Manager, abilities ModelAbilities, assembler PromptAssembler, event PreProcessEvent) *PreProcessor {
	if assembler == nil {
		assembler = defaultPromptAssembler
	}
	return &PreProcessor{Sessions: sessions, ModelAbilities: abilities, PromptAssembler: assembler, PreProcessEvent: event}
}

// Process implements pipeline.Stage.
func (p *PreProcessor) Process(ctx context.Context, q *query.Query, _ string) (pipeline.StageProcessResult, error) {
	next := q.Clone()

	sess := p.Sessions.GetOrCreate(next.LauncherType, next.LauncherID)
	next.Session = sess

	conv, err := p.Sessions.EnsureConversation(sess)
	if err != nil {
		return pipeline.StageProcessResult{}, err
	}

	next.UseLLMModelUUID = next.PipelineConfig.AI.LocalAgent.Model

	if p.ModelAbilities != nil {
		abilities := p.ModelAbilities(next.UseLLMModelUUID)
		if !containsString(abilities, "vision") && next.MessageChain.HasImage() {
			next.MessageChain = next.MessageChain.WithoutImages()
		}
	}

	next.Variables = query.NewVariables()
	next.Variables.Set("session_id", string(next.LauncherType)+":"+next.LauncherID)
	next.Variables.Set("conversation_id", conv.UUID)
	next.Variables.Set("msg_create_time", next.MessageEvent.Time)
	next.Variables.Set("sender_id", next.SenderID)
	next.Variables.Set("sender_name", next.MessageEvent.Sender.DisplayName)
	next.Variables.Set("user_message_text", next.MessageChain.PlainText())

	if p.PreProcessEvent != nil {
		preventDefault, customPrompt, err := p.PreProcessEvent(ctx, next)
		if err != nil {
			return pipeline.StageProcessResult{}, err
		}
		if preventDefault {
			next.Prompt = customPrompt
			return pipeline.Continue(next), nil
		}
	}

	prompt, err := p.PromptAssembler(next, conv)
	if err != nil {
		return pipeline.StageProcessResult{}, err
	}
	next.Prompt = prompt

	return pipeline.Continue(next), nil
}

func defaultPromptAssembler(q *query.Query, conv *session.Conversation) (string, error) {
	var b strings.Builder
	for _, msg := range conv.Messages {
		b.WriteString(msg.Role)
		b.WriteString(": ")
		b.WriteString(msg.Content)
		b.WriteString("\n")
	}
	b.WriteString("user: ")
	b.WriteString(q.MessageChain.PlainText())
	return b.String(), nil
}

func containsString(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}


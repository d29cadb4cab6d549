package stages

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/langbot-app/LangBot/internal/pipeline"
	"github.com/langbot-app/LangBot/internal/query"
	"github.com/langbot-app/LangBot/pkg/models"
)

func TestGroupRespondRuleCheckPassesPersonMessagesUnconditionally(t *testing.T) {
	stage := NewGroupRespondRuleCheckStage([]RuleMatcher{AtMentionMatcher{BotAccountID: "bot"}})
	q := &query.Query{LauncherType: models.LauncherPerson, MessageChain: models.MessageChain{models.Plain("hi")}}

	result, err := stage.Process(context.Background(), q, "")
	require.NoError(t, err)
	assert.Equal(t, pipeline.CONTINUE, result.ResultType)
}

func TestGroupRespondRuleCheckDropsGroupMessageMissingMention(t *testing.T) {
	stage := NewGroupRespondRuleCheckStage([]RuleMatcher{AtMentionMatcher{BotAccountID: "bot"}})
	q := &query.Query{LauncherType: models.LauncherGroup, MessageChain: models.MessageChain{models.Plain("hi")}}

	result, err := stage.Process(context.Background(), q, "")
	require.NoError(t, err)
	assert.Equal(t, pipeline.INTERRUPT, result.ResultType)
}

func TestGroupRespondRuleCheckPrefixMatcherStripsPrefix(t *testing.T) {
	stage := NewGroupRespondRuleCheckStage([]RuleMatcher{PrefixMatcher{Prefix: "!bot "}})
	q := &query.Query{LauncherType: models.LauncherGroup, MessageChain: models.MessageChain{models.Plain("!bot hello")}}

	result, err := stage.Process(context.Background(), q, "")
	require.NoError(t, err)
	require.Equal(t, pipeline.CONTINUE, result.ResultType)
	assert.Equal(t, "hello", result.NewQuery.MessageChain.PlainText())
}

func TestGroupRespondRuleCheckFallsThroughToLaterMatcher(t *testing.T) {
	stage := NewGroupRespondRuleCheckStage([]RuleMatcher{AtAllMatcher{}, AtMentionMatcher{BotAccountID: "bot"}})
	q := &query.Query{LauncherType: models.LauncherGroup, MessageChain: models.MessageChain{models.At("bot")}}

	result, err := stage.Process(context.Background(), q, "")
	require.NoError(t, err)
	assert.Equal(t, pipeline.CONTINUE, result.ResultType, "second matcher should still match even though the first didn't")
}

package stages

import (
	"context"

	"github.com/langbot-app/LangBot/internal/pipeline"
	"github.com/langbot-app/LangBot/internal/query"
	"github.com/langbot-app/LangBot/pkg/models"
)

// RuleMatch is the result of evaluating one group-respond rule matcher
// against a query's message chain.
type RuleMatch struct {
	Matching    bool
	Replacement models.MessageChain
}

// RuleMatcher evaluates one configured group-respond-rule entry.
type RuleMatcher interface {
	Match(q *query.Query) RuleMatch
}

// GroupRespondRuleCheckStage applies only to launcher_type==GROUP;
// personal messages continue unconditionally. Group messages walk an
// ordered matcher list; the first match wins and may replace the query's
// chain. No match means a silent drop (spec.md §4.8).
type GroupRespondRuleCheckStage struct {
	Matchers []RuleMatcher
}

// NewGroupRespondRuleCheckStage constructs the stage with an ordered
// rule matcher list.
func NewGroupRespondRuleCheckStage(matchers []RuleMatcher) *GroupRespondRuleCheckStage {
	return &GroupRespondRuleCheckStage{Matchers: matchers}
}

// Process implements pipeline.Stage.
func (s *GroupRespondRuleCheckStage) Process(_ context.Context, q *query.Query, _ string) (pipeline.StageProcessResult, error) {
	if q.LauncherType != models.LauncherGroup {
		return pipeline.Continue(q), nil
	}

	for _, matcher := range s.Matchers {
		m := matcher.Match(q)
		if !m.Matching {
			continue
		}
		if m.Replacement != nil {
			next := q.Clone()
			next.MessageChain = m.Replacement
			return pipeline.Continue(next), nil
		}
		return pipeline.Continue(q), nil
	}

	return pipeline.Interrupt(), nil
}

// AtMentionMatcher matches group messages that @-mention the bot,
// requiring an At component targeting botAccountID. This is the
// "missing @-mention" scenario from spec.md §8.2.
type AtMentionMatcher struct {
	BotAccountID string
}

// Match implements RuleMatcher.
func (m AtMentionMatcher) Match(q *query.Query) RuleMatch {
	if q.MessageChain.HasAt(m.BotAccountID) {
		return RuleMatch{Matching: true}
	}
	return RuleMatch{Matching: false}
}

// AtAllMatcher matches group messages that use an @everyone mention.
type AtAllMatcher struct{}

// Match implements RuleMatcher.
func (AtAllMatcher) Match(q *query.Query) RuleMatch {
	return RuleMatch{Matching: q.MessageChain.HasAtAll()}
}

// PrefixMatcher matches group messages whose plain text starts with a
// configured prefix, and strips the prefix from the replacement chain.
type PrefixMatcher struct {
	Prefix string
}

// Match implements RuleMatcher.
func (m PrefixMatcher) Match(q *query.Query) RuleMatch {
	text := q.MessageChain.PlainText()
	if len(text) < len(m.Prefix) || text[:len(m.Prefix)] != m.Prefix {
		return RuleMatch{Matching: false}
	}
	replacement := make(models.MessageChain, 0, len(q.MessageChain))
	stripped := false
	for _, comp := range q.MessageChain {
		if !stripped && comp.Type == models.ComponentPlain {
			comp.Text = comp.Text[len(m.Prefix):]
			stripped = true
		}
		replacement = append(replacement, comp)
	}
	return RuleMatch{Matching: true, Replacement: replacement}
}

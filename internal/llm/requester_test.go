package llm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestModelHasAbility(t *testing.T) {
	m := Model{Name: "gpt", Abilities: []string{"vision", "func_call"}}

	assert.True(t, m.HasAbility("vision"))
	assert.True(t, m.HasAbility("func_call"))
	assert.False(t, m.HasAbility("audio"))
}

func TestModelHasAbilityOnEmptyModel(t *testing.T) {
	var m Model
	assert.False(t, m.HasAbility("vision"))
}

func TestRequesterErrorLocalizedMessagePerKind(t *testing.T) {
	cases := []struct {
		kind RequesterErrorKind
		want string
	}{
		{ErrAuth, "模型服务鉴权失败,请检查配置。"},
		{ErrBadRequest, "请求参数有误,模型服务拒绝处理。"},
		{ErrRateLimit, "模型服务请求过于频繁,请稍后再试。"},
		{ErrTimeout, "模型服务响应超时,请稍后再试。"},
		{ErrNotFound, "未找到指定的模型。"},
		{RequesterErrorKind("something-else"), "模型服务出现未知错误。"},
	}

	for _, tc := range cases {
		e := &RequesterError{Kind: tc.kind, Provider: "openai", Err: errors.New("boom")}
		assert.Equal(t, tc.want, e.LocalizedMessage())
	}
}

func TestRequesterErrorUnwrapAndError(t *testing.T) {
	inner := errors.New("connection reset")
	e := &RequesterError{Kind: ErrTimeout, Provider: "anthropic", Err: inner}

	assert.ErrorIs(t, e, inner)
	assert.Contains(t, e.Error(), "anthropic")
	assert.Contains(t, e.Error(), "timeout")
}

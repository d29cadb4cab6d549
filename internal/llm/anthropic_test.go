package llm

import (
	"errors"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
)

func TestClassifyAnthropicErrorMapsStatusCodesToKinds(t *testing.T) {
	cases := []struct {
		status int
		want   RequesterErrorKind
	}{
		{401, ErrAuth},
		{403, ErrAuth},
		{400, ErrBadRequest},
		{422, ErrBadRequest},
		{404, ErrNotFound},
		{429, ErrRateLimit},
		{408, ErrTimeout},
		{504, ErrTimeout},
		{500, ErrUnknown},
	}

	for _, tc := range cases {
		err := classifyAnthropicError(&anthropic.Error{StatusCode: tc.status})
		var rerr *RequesterError
		ok := errors.As(err, &rerr)
		assert.True(t, ok)
		assert.Equal(t, tc.want, rerr.Kind)
		assert.Equal(t, "anthropic", rerr.Provider)
	}
}

func TestClassifyAnthropicErrorWrapsNonAPIErrorAsUnknown(t *testing.T) {
	err := classifyAnthropicError(errors.New("connection refused"))
	var rerr *RequesterError
	ok := errors.As(err, &rerr)
	assert.True(t, ok)
	assert.Equal(t, ErrUnknown, rerr.Kind)
}

func TestExtraMaxTokensDefaultsAndOverrides(t *testing.T) {
	assert.Equal(t, int64(1024), extraMaxTokens(nil))
	assert.Equal(t, int64(1024), extraMaxTokens(ExtraArgs{}))
	assert.Equal(t, int64(256), extraMaxTokens(ExtraArgs{"max_tokens": 256}))
}

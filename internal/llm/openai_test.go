package llm

import (
	"errors"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
)

func TestClassifyOpenAIErrorMapsStatusCodesToKinds(t *testing.T) {
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
		err := classifyOpenAIError(&openai.APIError{HTTPStatusCode: tc.status})
		var rerr *RequesterError
		ok := errors.As(err, &rerr)
		assert.True(t, ok)
		assert.Equal(t, tc.want, rerr.Kind)
		assert.Equal(t, "openai", rerr.Provider)
	}
}

func TestClassifyOpenAIErrorWrapsNonAPIErrorAsUnknown(t *testing.T) {
	err := classifyOpenAIError(errors.New("connection refused"))
	var rerr *RequesterError
	require := errors.As(err, &rerr)
	assert.True(t, require)
	assert.Equal(t, ErrUnknown, rerr.Kind)
}

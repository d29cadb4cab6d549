package vectordb

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNameSanitizerReplacesHyphensAndIsStable(t *testing.T) {
	s := NewNameSanitizer()
	safe := s.Safe("kb-123-abc")
	assert.Equal(t, "kb_123_abc", safe)
	assert.Equal(t, safe, s.Safe("kb-123-abc"), "repeated calls for the same name must be stable")
}

func TestNameSanitizerPrefixesLeadingDigit(t *testing.T) {
	s := NewNameSanitizer()
	safe := s.Safe("123-kb")
	assert.Equal(t, "c_123_kb", safe)
}

func TestNameSanitizerOriginalReverseLookup(t *testing.T) {
	s := NewNameSanitizer()
	safe := s.Safe("kb-abc")
	orig, ok := s.Original(safe)
	assert.True(t, ok)
	assert.Equal(t, "kb-abc", orig)

	_, ok = s.Original("never-registered")
	assert.False(t, ok)
}

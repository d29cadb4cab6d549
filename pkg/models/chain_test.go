package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlainTextConcatenatesOnlyPlainComponents(t *testing.T) {
	chain := MessageChain{Plain("hello "), At("u1"), Plain("world")}
	assert.Equal(t, "hello world", chain.PlainText())
}

func TestHasAtMatchesTargetOrAnyWhenEmpty(t *testing.T) {
	chain := MessageChain{At("u1")}
	assert.True(t, chain.HasAt("u1"))
	assert.True(t, chain.HasAt(""))
	assert.False(t, chain.HasAt("u2"))
}

func TestHasAtAll(t *testing.T) {
	assert.True(t, MessageChain{AtAllComponent()}.HasAtAll())
	assert.False(t, MessageChain{Plain("hi")}.HasAtAll())
}

func TestHasImageAndWithoutImages(t *testing.T) {
	chain := MessageChain{Plain("look"), ImageFromURL("https://x/y.png"), Plain("at this")}
	assert.True(t, chain.HasImage())

	stripped := chain.WithoutImages()
	assert.False(t, stripped.HasImage())
	assert.Equal(t, "lookat this", stripped.PlainText())
}

func TestSourceReturnsLeadingSourceComponentOnly(t *testing.T) {
	chain := MessageChain{SourceComponent("s1", 100), Plain("hi")}
	src, ok := chain.Source()
	assert.True(t, ok)
	assert.Equal(t, "s1", src.SourceID)

	noSource := MessageChain{Plain("hi"), SourceComponent("s1", 100)}
	_, ok = noSource.Source()
	assert.False(t, ok)
}

func TestQuoteComponentWrapsOrigin(t *testing.T) {
	origin := MessageChain{Plain("original")}
	q := QuoteComponent("msg-1", "sender-1", origin)
	assert.Equal(t, ComponentQuote, q.Type)
	assert.Equal(t, "msg-1", q.QuoteID)
	assert.Equal(t, origin, q.QuoteOrigin)
}

func TestImageConstructors(t *testing.T) {
	url := ImageFromURL("https://x/y.png")
	assert.Equal(t, ComponentImage, url.Type)
	assert.Equal(t, "https://x/y.png", url.ImageURL)

	b64 := ImageFromBase64("abcd")
	assert.Equal(t, ComponentImage, b64.Type)
	assert.Equal(t, "abcd", b64.ImageBase64)
}

func TestUnknownComponentPreservesRawPayload(t *testing.T) {
	raw := []byte(`{"odd":"shape"}`)
	c := UnknownComponent(raw, "sender-prefix")
	assert.Equal(t, ComponentUnknown, c.Type)
	assert.Equal(t, "sender-prefix", c.SenderIDInPrefix)
	assert.JSONEq(t, `{"odd":"shape"}`, string(c.Raw))
}

// Package models holds the canonical, platform-agnostic types that cross
// the adapter boundary: message chains, events, pipeline config shapes,
// and the RAG/knowledge-base entities. These are the types a plugin SDK
// would also import, so they live under pkg/ rather than internal/.
package models

import "encoding/json"

// ComponentType identifies the concrete variant stored in a Component.
type ComponentType string

const (
	ComponentPlain   ComponentType = "Plain"
	ComponentAt      ComponentType = "At"
	ComponentAtAll   ComponentType = "AtAll"
	ComponentImage   ComponentType = "Image"
	ComponentVoice   ComponentType = "Voice"
	ComponentQuote   ComponentType = "Quote"
	ComponentSource  ComponentType = "Source"
	ComponentForward ComponentType = "Forward"
	ComponentUnknown ComponentType = "Unknown"
)

// Component is one element of a MessageChain. Exactly one of the
// type-specific fields is populated, matching ComponentType. This is a
// closed tagged union plus the Unknown escape hatch, deliberately not a
// reflection-driven shape: every adapter converts through this contract
// and nothing platform-specific leaks past it.
type Component struct {
	Type ComponentType `json:"type"`

	// Plain
	Text string `json:"text,omitempty"`

	// At
	Target string `json:"target,omitempty"`

	// Image
	ImageURL    string `json:"image_url,omitempty"`
	ImageBase64 string `json:"image_base64,omitempty"`
	ImagePath   string `json:"image_path,omitempty"`

	// Voice
	VoiceURL    string `json:"voice_url,omitempty"`
	VoiceLength int    `json:"voice_length,omitempty"`

	// Quote
	QuoteID       string      `json:"quote_id,omitempty"`
	QuoteSenderID string      `json:"quote_sender_id,omitempty"`
	QuoteOrigin   MessageChain `json:"quote_origin,omitempty"`

	// Source
	SourceID   string `json:"source_id,omitempty"`
	SourceTime int64  `json:"source_time,omitempty"`

	// Forward
	ForwardNodes []ForwardNode `json:"forward_nodes,omitempty"`

	// Unknown
	Raw              json.RawMessage `json:"raw,omitempty"`
	SenderIDInPrefix string          `json:"sender_id_in_prefix,omitempty"`
}

// ForwardNode is one entry of a Forward component: a sender label plus
// the chain that sender authored.
type ForwardNode struct {
	SenderID   string       `json:"sender_id"`
	SenderName string       `json:"sender_name"`
	Chain      MessageChain `json:"chain"`
}

// MessageChain is an ordered, immutable sequence of components. Stages
// never mutate a chain in place; they build a new one.
type MessageChain []Component

// Plain returns a Plain text component.
func Plain(text string) Component { return Component{Type: ComponentPlain, Text: text} }

// At returns an At component targeting the given account id.
func At(target string) Component { return Component{Type: ComponentAt, Target: target} }

// AtAllComponent returns the AtAll component.
func AtAllComponent() Component { return Component{Type: ComponentAtAll} }

// ImageFromURL returns an Image component carrying a URL reference.
func ImageFromURL(url string) Component { return Component{Type: ComponentImage, ImageURL: url} }

// ImageFromBase64 returns an Image component carrying inline base64 bytes.
func ImageFromBase64(b64 string) Component {
	return Component{Type: ComponentImage, ImageBase64: b64}
}

// SourceComponent returns the Source component that must lead every
// chain produced by a converter.
func SourceComponent(id string, unixTime int64) Component {
	return Component{Type: ComponentSource, SourceID: id, SourceTime: unixTime}
}

// QuoteComponent returns a Quote component wrapping the quoted chain.
func QuoteComponent(id, senderID string, origin MessageChain) Component {
	return Component{Type: ComponentQuote, QuoteID: id, QuoteSenderID: senderID, QuoteOrigin: origin}
}

// UnknownComponent wraps an unrecognized platform payload without
// interpreting it, preserving it through the pipeline.
func UnknownComponent(raw json.RawMessage, senderIDInPrefix string) Component {
	return Component{Type: ComponentUnknown, Raw: raw, SenderIDInPrefix: senderIDInPrefix}
}

// PlainText concatenates the text of every Plain component in the chain,
// in order. Used by the preproc stage to populate query variables.
func (c MessageChain) PlainText() string {
	var out string
	for _, comp := range c {
		if comp.Type == ComponentPlain {
			out += comp.Text
		}
	}
	return out
}

// HasAt reports whether the chain contains an At component targeting the
// given account id, or any At component when target is empty.
func (c MessageChain) HasAt(target string) bool {
	for _, comp := range c {
		if comp.Type == ComponentAt && (target == "" || comp.Target == target) {
			return true
		}
	}
	return false
}

// HasAtAll reports whether the chain contains an AtAll component.
func (c MessageChain) HasAtAll() bool {
	for _, comp := range c {
		if comp.Type == ComponentAtAll {
			return true
		}
	}
	return false
}

// HasImage reports whether the chain contains at least one Image component.
func (c MessageChain) HasImage() bool {
	for _, comp := range c {
		if comp.Type == ComponentImage {
			return true
		}
	}
	return false
}

// WithoutImages returns a copy of the chain with all Image components
// removed, preserving order of the rest. Used when the target LLM model
// lacks vision ability.
func (c MessageChain) WithoutImages() MessageChain {
	out := make(MessageChain, 0, len(c))
	for _, comp := range c {
		if comp.Type != ComponentImage {
			out = append(out, comp)
		}
	}
	return out
}

// Source returns the leading Source component, if present.
func (c MessageChain) Source() (Component, bool) {
	if len(c) > 0 && c[0].Type == ComponentSource {
		return c[0], true
	}
	return Component{}, false
}

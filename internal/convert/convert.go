// Package convert defines the MessageConverter contract each platform
// adapter implements to translate between the canonical MessageChain and
// its own wire format, plus a generic-webhook reference implementation
// (spec.md §4.4, §8 round-trip invariant).
package convert

import (
	"encoding/json"
	"fmt"

	"github.com/langbot-app/LangBot/pkg/models"
)

// MessageConverter translates between a platform's native message shape
// (opaque to the core as json.RawMessage) and the canonical MessageChain.
// Yiri2Target(Target2Yiri(x)) must reconstruct x up to fields the
// platform itself cannot represent (spec.md §8: round-trip invariant).
type MessageConverter interface {
	// Yiri2Target converts a canonical chain into the platform's native
	// payload.
	Yiri2Target(chain models.MessageChain) (json.RawMessage, error)
	// Target2Yiri converts a platform-native payload into a canonical
	// chain.
	Target2Yiri(payload json.RawMessage) (models.MessageChain, error)
}

// genericComponent is the wire shape GenericWebhookConverter round-trips
// each Component through: a flat, self-describing JSON object mirroring
// Component's own fields, used by webhook-style platforms that accept
// arbitrary JSON rather than a platform SDK's native struct.
type genericComponent struct {
	Type          models.ComponentType `json:"type"`
	Text          string               `json:"text,omitempty"`
	Target        string               `json:"target,omitempty"`
	ImageURL      string               `json:"image_url,omitempty"`
	ImageBase64   string               `json:"image_base64,omitempty"`
	ImagePath     string               `json:"image_path,omitempty"`
	VoiceURL      string               `json:"voice_url,omitempty"`
	VoiceLength   int                  `json:"voice_length,omitempty"`
	QuoteID       string               `json:"quote_id,omitempty"`
	QuoteSenderID string               `json:"quote_sender_id,omitempty"`
	QuoteOrigin   []genericComponent   `json:"quote_origin,omitempty"`
	SourceID      string               `json:"source_id,omitempty"`
	SourceTime    int64                `json:"source_time,omitempty"`
	ForwardNodes  []genericForwardNode `json:"forward_nodes,omitempty"`
	Raw           json.RawMessage      `json:"raw,omitempty"`
}

type genericForwardNode struct {
	SenderID   string             `json:"sender_id"`
	SenderName string             `json:"sender_name"`
	Chain      []genericComponent `json:"chain"`
}

// GenericWebhookConverter is the reference MessageConverter for a
// generic JSON webhook platform: every Component maps 1:1 to a
// genericComponent, so the round trip is lossless for every component
// type the canonical model defines.
type GenericWebhookConverter struct{}

// Yiri2Target implements MessageConverter.
func (GenericWebhookConverter) Yiri2Target(chain models.MessageChain) (json.RawMessage, error) {
	out := toGeneric(chain)
	b, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("convert: marshal generic payload: %w", err)
	}
	return b, nil
}

// Target2Yiri implements MessageConverter.
func (GenericWebhookConverter) Target2Yiri(payload json.RawMessage) (models.MessageChain, error) {
	var in []genericComponent
	if err := json.Unmarshal(payload, &in); err != nil {
		return nil, fmt.Errorf("convert: unmarshal generic payload: %w", err)
	}
	return fromGeneric(in), nil
}

func toGeneric(chain models.MessageChain) []genericComponent {
	if len(chain) == 0 {
		return nil
	}
	out := make([]genericComponent, 0, len(chain))
	for _, c := range chain {
		out = append(out, genericComponent{
			Type:          c.Type,
			Text:          c.Text,
			Target:        c.Target,
			ImageURL:      c.ImageURL,
			ImageBase64:   c.ImageBase64,
			ImagePath:     c.ImagePath,
			VoiceURL:      c.VoiceURL,
			VoiceLength:   c.VoiceLength,
			QuoteID:       c.QuoteID,
			QuoteSenderID: c.QuoteSenderID,
			QuoteOrigin:   toGeneric(c.QuoteOrigin),
			SourceID:      c.SourceID,
			SourceTime:    c.SourceTime,
			ForwardNodes:  toGenericForwardNodes(c.ForwardNodes),
			Raw:           c.Raw,
		})
	}
	return out
}

func toGenericForwardNodes(nodes []models.ForwardNode) []genericForwardNode {
	if len(nodes) == 0 {
		return nil
	}
	out := make([]genericForwardNode, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, genericForwardNode{SenderID: n.SenderID, SenderName: n.SenderName, Chain: toGeneric(n.Chain)})
	}
	return out
}

func fromGeneric(in []genericComponent) models.MessageChain {
	if len(in) == 0 {
		return nil
	}
	out := make(models.MessageChain, 0, len(in))
	for _, c := range in {
		out = append(out, models.Component{
			Type:          c.Type,
			Text:          c.Text,
			Target:        c.Target,
			ImageURL:      c.ImageURL,
			ImageBase64:   c.ImageBase64,
			ImagePath:     c.ImagePath,
			VoiceURL:      c.VoiceURL,
			VoiceLength:   c.VoiceLength,
			QuoteID:       c.QuoteID,
			QuoteSenderID: c.QuoteSenderID,
			QuoteOrigin:   fromGeneric(c.QuoteOrigin),
			SourceID:      c.SourceID,
			SourceTime:    c.SourceTime,
			ForwardNodes:  fromGenericForwardNodes(c.ForwardNodes),
			Raw:           c.Raw,
		})
	}
	return out
}

func fromGenericForwardNodes(nodes []genericForwardNode) []models.ForwardNode {
	if len(nodes) == 0 {
		return nil
	}
	out := make([]models.ForwardNode, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, models.ForwardNode{SenderID: n.SenderID, SenderName: n.SenderName, Chain: fromGeneric(n.Chain)})
	}
	return out
}

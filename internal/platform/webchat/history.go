package webchat

import (
	"sync"

	"github.com/langbot-app/LangBot/pkg/models"
)

// HistoryMessage is one recorded turn of a debug session's history.
type HistoryMessage struct {
	Direction string              `json:"direction"` // "inbound" | "outbound"
	MessageID string              `json:"message_id"`
	Chain     models.MessageChain `json:"message"`
	Time      int64               `json:"time"`
}

// HistoryStore holds per-session message histories keyed by
// "webchat<person|group>" (spec.md §4.5 WebChat adapter: "maintains
// per-session message histories keyed by webchat<person|group>").
type HistoryStore struct {
	mu       sync.Mutex
	sessions map[string][]HistoryMessage
}

// NewHistoryStore constructs an empty history store.
func NewHistoryStore() *HistoryStore {
	return &HistoryStore{sessions: make(map[string][]HistoryMessage)}
}

func historyKey(sessionType string) string { return "webchat" + sessionType }

// Append records one message against sessionType's history.
func (s *HistoryStore) Append(sessionType string, msg HistoryMessage) {
	key := historyKey(sessionType)
	s.mu.Lock()
	s.sessions[key] = append(s.sessions[key], msg)
	s.mu.Unlock()
}

// Messages returns a copy of sessionType's recorded history, in order.
func (s *HistoryStore) Messages(sessionType string) []HistoryMessage {
	key := historyKey(sessionType)
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]HistoryMessage, len(s.sessions[key]))
	copy(out, s.sessions[key])
	return out
}

// Reset clears sessionType's recorded history.
func (s *HistoryStore) Reset(sessionType string) {
	key := historyKey(sessionType)
	s.mu.Lock()
	delete(s.sessions, key)
	s.mu.Unlock()
}

// Package session implements Session and Conversation (spec.md §3, C6):
// a session is identified by (launcher_type, launcher_id) and is shared
// across every query from the same launcher; a conversation is the
// ordered message history, allocated lazily and persisted externally.
package session

import (
	"sync"

	"github.com/langbot-app/LangBot/pkg/models"
)

// Conversation is an ordered list of role+content messages, identified
// by UUID. The core only holds it in memory; persistence is delegated
// to an external store (spec.md §3 Conversation, §6 persisted state).
type Conversation struct {
	UUID     string
	Messages []Message
}

// Message is one turn of a conversation.
type Message struct {
	Role    string
	Content string
}

// AppendMessage appends a message to the conversation. A Conversation
// has no lock of its own and no accessor exposes the owning Session's
// lock, so AppendMessage is not safe for concurrent use.
func (c *Conversation) AppendMessage(role, content string) {
	c.Messages = append(c.Messages, Message{Role: role, Content: content})
}

// Session holds the current conversation for one (launcher_type,
// launcher_id) pair. A nil UsingConversation means a new one is
// allocated on next use.
type Session struct {
	LauncherType models.LauncherType
	LauncherID   string

	mu                sync.Mutex
	usingConversation *Conversation
	history           []*Conversation
}

// UsingConversation returns the session's current conversation, or nil.
func (s *Session) UsingConversation() *Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usingConversation
}

// SetUsingConversation sets (or clears, with nil) the current
// conversation. A plugin or stage clears it to start a new conversation
// on the next query.
func (s *Session) SetUsingConversation(c *Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c != nil {
		s.history = append(s.history, c)
	}
	s.usingConversation = c
}

// History returns a copy of the session's past conversations, most
// recent last.
func (s *Session) History() []*Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Conversation, len(s.history))
	copy(out, s.history)
	return out
}

// ConversationFactory allocates a new Conversation, typically backed by
// an external persistence call (uuid generation, DB row insert). Kept as
// an injectable func so the session manager does not depend on a
// concrete persistence package.
type ConversationFactory func() (*Conversation, error)

// Manager keys sessions by (launcher_type, launcher_id) and allocates a
// conversation on first use within a session.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	newConv  ConversationFactory
}

// NewManager constructs a session manager. newConv is called whenever a
// session needs a conversation and has none.
func NewManager(newConv ConversationFactory) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		newConv:  newConv,
	}
}

func key(launcherType models.LauncherType, launcherID string) string {
	return string(launcherType) + ":" + launcherID
}

// GetOrCreate returns the session for (launcherType, launcherID),
// creating it if absent.
func (m *Manager) GetOrCreate(launcherType models.LauncherType, launcherID string) *Session {
	k := key(launcherType, launcherID)

	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[k]; ok {
		return s
	}
	s := &Session{LauncherType: launcherType, LauncherID: launcherID}
	m.sessions[k] = s
	return s
}

// EnsureConversation returns the session's current conversation,
// allocating one via the factory if none exists.
func (m *Manager) EnsureConversation(s *Session) (*Conversation, error) {
	if c := s.UsingConversation(); c != nil {
		return c, nil
	}
	c, err := m.newConv()
	if err != nil {
		return nil, err
	}
	s.SetUsingConversation(c)
	return c, nil
}

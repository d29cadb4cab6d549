package webchat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryStoreAppendAndMessagesAreKeyedPerSessionType(t *testing.T) {
	s := NewHistoryStore()
	s.Append(SessionTypePerson, HistoryMessage{Direction: "inbound", MessageID: "m1"})
	s.Append(SessionTypeGroup, HistoryMessage{Direction: "inbound", MessageID: "m2"})

	person := s.Messages(SessionTypePerson)
	require.Len(t, person, 1)
	assert.Equal(t, "m1", person[0].MessageID)

	group := s.Messages(SessionTypeGroup)
	require.Len(t, group, 1)
	assert.Equal(t, "m2", group[0].MessageID)
}

func TestHistoryStoreMessagesForUnknownSessionIsEmpty(t *testing.T) {
	s := NewHistoryStore()
	assert.Empty(t, s.Messages(SessionTypePerson))
}

func TestHistoryStoreMessagesReturnsACopy(t *testing.T) {
	s := NewHistoryStore()
	s.Append(SessionTypePerson, HistoryMessage{MessageID: "m1"})

	got := s.Messages(SessionTypePerson)
	got[0].MessageID = "mutated"

	fresh := s.Messages(SessionTypePerson)
	assert.Equal(t, "m1", fresh[0].MessageID, "mutating a returned slice must not affect the store")
}

func TestHistoryStoreReset(t *testing.T) {
	s := NewHistoryStore()
	s.Append(SessionTypePerson, HistoryMessage{MessageID: "m1"})
	s.Reset(SessionTypePerson)
	assert.Empty(t, s.Messages(SessionTypePerson))
}

package vectordb

import (
	"strings"
	"sync"
)

// NameSanitizer maps UUID-shaped collection names (which may contain
// hyphens that a SQL-backed implementation cannot use as identifiers)
// to a safe identifier, while keeping an internal original->safe map so
// callers remain UUID-agnostic (spec.md §4.1, grounded on
// original_source/src/langbot/pkg/vector/vdbs/seekdb.py's
// hyphen-to-underscore mapping).
type NameSanitizer struct {
	mu           sync.RWMutex
	originalToSafe map[string]string
	safeToOriginal map[string]string
}

// NewNameSanitizer constructs an empty sanitizer.
func NewNameSanitizer() *NameSanitizer {
	return &NameSanitizer{
		originalToSafe: make(map[string]string),
		safeToOriginal: make(map[string]string),
	}
}

// Safe returns the safe identifier for name, registering the mapping if
// this is the first time name is seen.
func (s *NameSanitizer) Safe(name string) string {
	s.mu.RLock()
	if safe, ok := s.originalToSafe[name]; ok {
		s.mu.RUnlock()
		return safe
	}
	s.mu.RUnlock()

	safe := sanitize(name)

	s.mu.Lock()
	defer s.mu.Unlock()
	// Re-check under write lock in case of a race.
	if existing, ok := s.originalToSafe[name]; ok {
		return existing
	}
	s.originalToSafe[name] = safe
	s.safeToOriginal[safe] = name
	return safe
}

// Original returns the original name a safe identifier was derived from,
// if known.
func (s *NameSanitizer) Original(safe string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	orig, ok := s.safeToOriginal[safe]
	return orig, ok
}

func sanitize(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := b.String()
	if out == "" || (out[0] >= '0' && out[0] <= '9') {
		out = "c_" + out
	}
	return out
}

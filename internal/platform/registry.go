package platform

import (
	"fmt"
	"sync"
)

// botEntry pairs one Adapter instance with the verifier guarding its
// webhook path, if any, and whether the bot currently accepts webhooks.
type botEntry struct {
	adapter  Adapter
	verifier WebhookVerifier
	enabled  bool
}

// Registry keys running bot instances by bot uuid, the identity a
// webhook path's /bots/<uuid> segment addresses (spec.md §4.5).
type Registry struct {
	mu   sync.RWMutex
	bots map[string]botEntry
}

// NewRegistry constructs an empty bot registry.
func NewRegistry() *Registry {
	return &Registry{bots: make(map[string]botEntry)}
}

// Add registers adapter under botUUID, calling SetBotUUID on it.
// verifier may be nil to accept every webhook unauthenticated (only
// appropriate for adapters that don't speak an HTTP callback, e.g.
// long-poll-only ones).
func (r *Registry) Add(botUUID string, adapter Adapter, verifier WebhookVerifier) {
	adapter.SetBotUUID(botUUID)
	r.mu.Lock()
	r.bots[botUUID] = botEntry{adapter: adapter, verifier: verifier, enabled: true}
	r.mu.Unlock()
}

// SetEnabled toggles whether botUUID currently accepts webhooks, without
// removing it from the registry (spec.md §4.5: "disabled bot -> 403",
// distinct from an unregistered bot's 404). A no-op if botUUID isn't
// registered.
func (r *Registry) SetEnabled(botUUID string, enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.bots[botUUID]
	if !ok {
		return
	}
	entry.enabled = enabled
	r.bots[botUUID] = entry
}

// Enabled reports whether botUUID is registered and currently enabled.
// The second return is false if botUUID isn't registered at all.
func (r *Registry) Enabled(botUUID string) (enabled, found bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.bots[botUUID]
	return entry.enabled, ok
}

// Remove deregisters a bot instance. Callers are responsible for calling
// Kill on the adapter first.
func (r *Registry) Remove(botUUID string) {
	r.mu.Lock()
	delete(r.bots, botUUID)
	r.mu.Unlock()
}

// Get returns the adapter and verifier registered under botUUID.
func (r *Registry) Get(botUUID string) (Adapter, WebhookVerifier, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.bots[botUUID]
	return entry.adapter, entry.verifier, ok
}

// ErrUnknownBot is an error value for a botUUID that isn't registered.
// The dispatcher does not use it: it answers 404 directly when Get
// reports ok=false.
type ErrUnknownBot struct {
	BotUUID string
}

func (e *ErrUnknownBot) Error() string {
	return fmt.Sprintf("platform: unknown bot %q", e.BotUUID)
}

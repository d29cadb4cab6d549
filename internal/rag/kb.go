// Package rag implements the Knowledge-Base lifecycle: create / ingest /
// retrieve / delete, delegated to an external RAG-engine plugin
// (spec.md §4.3, C3).
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/langbot-app/LangBot/internal/pluginrpc"
	"github.com/langbot-app/LangBot/pkg/models"
)

// Store persists KnowledgeBase and File rows. GormStore backs it onto
// the relational store with direct GORM calls; tests use an in-memory
// fake.
type Store interface {
	SaveKB(ctx context.Context, kb *models.KnowledgeBase) error
	GetKB(ctx context.Context, uuid string) (*models.KnowledgeBase, error)
	DeleteKB(ctx context.Context, uuid string) error

	SaveFile(ctx context.Context, file *models.File) error
	GetFile(ctx context.Context, uuid string) (*models.File, error)
	DeleteFile(ctx context.Context, uuid string) error
	ListFiles(ctx context.Context, kbID string) ([]*models.File, error)
}

// Blobs is the object-storage surface the manager needs: blob existence
// pre-check and deletion after ingest (spec.md §4.3).
type Blobs interface {
	Exists(ctx context.Context, path string) (bool, error)
	Delete(ctx context.Context, path string) error
}

// PluginLookup reports whether a named plugin exists and what
// capabilities it advertises (spec.md §4.3 "doc-ingestion capability
// check").
type PluginLookup interface {
	Exists(pluginID string) bool
	Capabilities(ctx context.Context, pluginID string) ([]string, error)
}

// RuntimeKnowledgeBase wraps one KB and delegates ingest/retrieve/delete
// to its plugin.
type RuntimeKnowledgeBase struct {
	KB *models.KnowledgeBase
}

// Manager holds a uuid -> RuntimeKnowledgeBase map and mediates every
// KB operation through the named plugin via the RPC connector.
type Manager struct {
	mu        sync.RWMutex
	store     Store
	blobs     Blobs
	plugins   PluginLookup
	connector *pluginrpc.Connector
	tasks     *asynq.Client
	runtime   map[string]*RuntimeKnowledgeBase
}

// NewManager constructs a KB manager. tasks may be nil, in which case
// EnqueueIngest skips queueing and callers are expected to invoke
// RunIngest directly (used by tests and by single-process deployments
// that run ingest synchronously).
func NewManager(store Store, blobs Blobs, plugins PluginLookup, connector *pluginrpc.Connector, tasks *asynq.Client) *Manager {
	return &Manager{
		store:     store,
		blobs:     blobs,
		plugins:   plugins,
		connector: connector,
		tasks:     tasks,
		runtime:   make(map[string]*RuntimeKnowledgeBase),
	}
}

// CapabilityError is raised when a KB operation requires a plugin
// capability the owning plugin does not advertise (spec.md §4.3
// "doc-ingestion capability check").
type CapabilityError struct {
	Capability string
	PluginID   string
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("rag: plugin %q does not advertise capability %q", e.PluginID, e.Capability)
}

// Create validates the named plugin exists, allocates a uuid, sets
// collection_id = uuid, persists, loads into the runtime map, and
// notifies the plugin. On plugin failure it rolls back both the runtime
// entry and the DB row (spec.md §4.3 Lifecycle: Create).
func (m *Manager) Create(ctx context.Context, kb *models.KnowledgeBase) (*models.KnowledgeBase, error) {
	if !m.plugins.Exists(kb.RAGEnginePluginID) {
		return nil, fmt.Errorf("rag: plugin %q not found", kb.RAGEnginePluginID)
	}

	kb.UUID = uuid.NewString()
	kb.CollectionID = kb.UUID

	if err := m.store.SaveKB(ctx, kb); err != nil {
		return nil, fmt.Errorf("rag: persist kb: %w", err)
	}

	m.mu.Lock()
	m.runtime[kb.UUID] = &RuntimeKnowledgeBase{KB: kb}
	m.mu.Unlock()

	if err := m.connector.RAGOnKBCreate(ctx, kb.RAGEnginePluginID, kb.UUID, kb.CreationSettings); err != nil {
		m.mu.Lock()
		delete(m.runtime, kb.UUID)
		m.mu.Unlock()
		_ = m.store.DeleteKB(ctx, kb.UUID)
		return nil, fmt.Errorf("rag: plugin on_kb_create failed, rolled back: %w", err)
	}

	return kb, nil
}

// Get returns the runtime entry for uuid.
func (m *Manager) Get(kbUUID string) (*RuntimeKnowledgeBase, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rkb, ok := m.runtime[kbUUID]
	return rkb, ok
}

// Dispose notifies the plugin and deletes the KB row. The DB row is
// deleted before the plugin notification so the UI is always consistent
// even if the plugin call fails (spec.md §4.3 "Dispose KB").
func (m *Manager) Dispose(ctx context.Context, kbUUID string) error {
	m.mu.Lock()
	rkb, ok := m.runtime[kbUUID]
	delete(m.runtime, kbUUID)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("rag: unknown kb %q", kbUUID)
	}

	if err := m.store.DeleteKB(ctx, kbUUID); err != nil {
		return fmt.Errorf("rag: delete kb row: %w", err)
	}

	if err := m.connector.RAGOnKBDelete(ctx, rkb.KB.RAGEnginePluginID, kbUUID); err != nil {
		// Log-only: DB row deletion already ran, so the UI stays
		// consistent regardless of this failure.
		slog.Default().Warn("rag: plugin on_kb_delete failed (kb row already removed)", "kb", kbUUID, "error", err)
	}
	return nil
}

// requireCapability returns a CapabilityError unless the KB's plugin
// advertises capability.
func (m *Manager) requireCapability(ctx context.Context, rkb *RuntimeKnowledgeBase, capability string) error {
	caps, err := m.plugins.Capabilities(ctx, rkb.KB.RAGEnginePluginID)
	if err != nil {
		return fmt.Errorf("rag: query plugin capabilities: %w", err)
	}
	for _, c := range caps {
		if c == capability {
			return nil
		}
	}
	return &CapabilityError{Capability: capability, PluginID: rkb.KB.RAGEnginePluginID}
}

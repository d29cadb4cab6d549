package rag

import (
	"context"

	"github.com/langbot-app/LangBot/internal/pluginrpc"
)

// ConnectorPluginLookup implements PluginLookup over the live plugin RPC
// connector's list_rag_engines / rag_engine_capabilities verbs (spec.md
// §4.9), rather than a local plugin registry the core would otherwise
// have to duplicate.
type ConnectorPluginLookup struct {
	connector *pluginrpc.Connector
}

// NewConnectorPluginLookup wraps connector as a PluginLookup.
func NewConnectorPluginLookup(connector *pluginrpc.Connector) *ConnectorPluginLookup {
	return &ConnectorPluginLookup{connector: connector}
}

// Exists implements PluginLookup. A transport failure is treated as "not
// found" rather than panicking the caller; Create already surfaces a
// clear error in that case ("plugin not found").
func (l *ConnectorPluginLookup) Exists(pluginID string) bool {
	engines, err := l.connector.ListRAGEngines(context.Background())
	if err != nil {
		return false
	}
	for _, engine := range engines {
		if id, ok := engine["id"].(string); ok && id == pluginID {
			return true
		}
	}
	return false
}

// Capabilities implements PluginLookup.
func (l *ConnectorPluginLookup) Capabilities(ctx context.Context, pluginID string) ([]string, error) {
	return l.connector.RAGEngineCapabilities(ctx, pluginID)
}

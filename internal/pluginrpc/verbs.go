package pluginrpc

import "context"

// Runtime -> platform verbs.

// GetPluginSettings fetches a plugin's own persisted settings.
func (c *Connector) GetPluginSettings(ctx context.Context, pluginID string) (map[string]any, error) {
	resp, err := c.call(ctx, "get_plugin_settings", TimeoutPing, map[string]any{"plugin_id": pluginID})
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// SetPluginSettings persists a plugin's settings.
func (c *Connector) SetPluginSettings(ctx context.Context, pluginID string, settings map[string]any) error {
	_, err := c.call(ctx, "set_plugin_settings", TimeoutPing, map[string]any{"plugin_id": pluginID, "settings": settings})
	return err
}

// GetBinaryStorage reads a key/value owned by plugin:<author/name>.
func (c *Connector) GetBinaryStorage(ctx context.Context, owner, key string) ([]byte, error) {
	resp, err := c.call(ctx, "get_binary_storage", TimeoutPing, map[string]any{"owner": owner, "key": key})
	if err != nil {
		return nil, err
	}
	b, _ := resp.Data["value"].([]byte)
	return b, nil
}

// SetBinaryStorage writes a key/value owned by plugin:<author/name>.
func (c *Connector) SetBinaryStorage(ctx context.Context, owner, key string, value []byte) error {
	_, err := c.call(ctx, "set_binary_storage", TimeoutPing, map[string]any{"owner": owner, "key": key, "value": value})
	return err
}

// Plugin -> platform verbs. This package has no server side for them;
// these wrappers issue them as an RPC client, which is how the tests
// exercise them.

// CreateNewConversation clears a session's current conversation, the
// "new conversation" verb from spec.md §4.6.
func (c *Connector) CreateNewConversation(ctx context.Context, sessionID string) error {
	_, err := c.call(ctx, "create_new_conversation", TimeoutPing, map[string]any{"session_id": sessionID})
	return err
}

// GetQueryVar reads one variable from a running query's bag.
func (c *Connector) GetQueryVar(ctx context.Context, queryID int64, key string) (any, error) {
	resp, err := c.call(ctx, "get_query_var", TimeoutPing, map[string]any{"query_id": queryID, "key": key})
	if err != nil {
		return nil, err
	}
	return resp.Data["value"], nil
}

// SetQueryVar writes one variable into a running query's bag.
func (c *Connector) SetQueryVar(ctx context.Context, queryID int64, key string, value any) error {
	_, err := c.call(ctx, "set_query_var", TimeoutPing, map[string]any{"query_id": queryID, "key": key, "value": value})
	return err
}

// ListQueryVars lists every variable in a running query's bag.
func (c *Connector) ListQueryVars(ctx context.Context, queryID int64) (map[string]any, error) {
	resp, err := c.call(ctx, "list_query_vars", TimeoutPing, map[string]any{"query_id": queryID})
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// InvokeLLM proxies an LLM call through the platform on a plugin's
// behalf.
func (c *Connector) InvokeLLM(ctx context.Context, modelUUID string, messages []map[string]any) (map[string]any, error) {
	resp, err := c.call(ctx, "invoke_llm", TimeoutLLMTool, map[string]any{"model_uuid": modelUUID, "messages": messages})
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// CallTool dispatches a tool call the model requested, to be executed by
// the plugin runtime (spec.md §4.8 Process stage).
func (c *Connector) CallTool(ctx context.Context, toolName string, params map[string]any, sessionID string, queryID int64) (map[string]any, error) {
	resp, err := c.call(ctx, "call_tool", TimeoutLLMTool, map[string]any{
		"tool_name":  toolName,
		"params":     params,
		"session_id": sessionID,
		"query_id":   queryID,
	})
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Platform -> plugin verbs.

// EmitEvent emits a pipeline lifecycle event, optionally scoped to
// includePlugins. The plugin(s) may set prevent_default in the response,
// which the pipeline runtime interprets as "skip remaining stages
// except reply" (spec.md §4.7).
func (c *Connector) EmitEvent(ctx context.Context, eventName string, payload map[string]any, includePlugins []string) (preventDefault bool, data map[string]any, err error) {
	req := map[string]any{"event": eventName, "payload": payload}
	if len(includePlugins) > 0 {
		req["include_plugins"] = includePlugins
	}
	resp, err := c.call(ctx, "emit_event", TimeoutLLMTool, req)
	if err != nil {
		return false, nil, err
	}
	pd, _ := resp.Data["prevent_default"].(bool)
	return pd, resp.Data, nil
}

// ListTools lists tools exposed by installed plugins.
func (c *Connector) ListTools(ctx context.Context) ([]map[string]any, error) {
	resp, err := c.call(ctx, "list_tools", TimeoutSchema, nil)
	if err != nil {
		return nil, err
	}
	tools, _ := resp.Data["tools"].([]map[string]any)
	return tools, nil
}

// RAG verbs: ingest/retrieve/delete/on-kb-create/on-kb-delete, delegated
// to the named rag_engine_plugin_id (spec.md §4.3).

// RAGIngest asks a plugin to ingest one file into a KB collection.
func (c *Connector) RAGIngest(ctx context.Context, pluginID string, req map[string]any) error {
	_, err := c.call(ctx, "rag_ingest", TimeoutIngest, mergePluginID(pluginID, req))
	return err
}

// RAGRetrieve asks a plugin to run a retrieval query against a KB.
func (c *Connector) RAGRetrieve(ctx context.Context, pluginID string, req map[string]any) ([]map[string]any, error) {
	resp, err := c.call(ctx, "rag_retrieve", TimeoutLLMTool, mergePluginID(pluginID, req))
	if err != nil {
		return nil, err
	}
	results, _ := resp.Data["results"].([]map[string]any)
	return results, nil
}

// RAGDeleteDocument asks a plugin to delete one file's ingested content.
func (c *Connector) RAGDeleteDocument(ctx context.Context, pluginID, fileID, kbID string) error {
	_, err := c.call(ctx, "rag_delete_document", TimeoutIngest, map[string]any{
		"plugin_id": pluginID, "file_id": fileID, "kb_id": kbID,
	})
	return err
}

// RAGOnKBCreate notifies a plugin that a KB was created.
func (c *Connector) RAGOnKBCreate(ctx context.Context, pluginID, kbUUID string, creationSettings map[string]any) error {
	_, err := c.call(ctx, "rag_on_kb_create", TimeoutSchema, map[string]any{
		"plugin_id": pluginID, "kb_uuid": kbUUID, "creation_settings": creationSettings,
	})
	return err
}

// RAGOnKBDelete notifies a plugin that a KB was deleted.
func (c *Connector) RAGOnKBDelete(ctx context.Context, pluginID, kbUUID string) error {
	_, err := c.call(ctx, "rag_on_kb_delete", TimeoutSchema, map[string]any{"plugin_id": pluginID, "kb_uuid": kbUUID})
	return err
}

// ListRAGEngines lists the RAG-engine plugins currently installed.
func (c *Connector) ListRAGEngines(ctx context.Context) ([]map[string]any, error) {
	resp, err := c.call(ctx, "list_rag_engines", TimeoutSchema, nil)
	if err != nil {
		return nil, err
	}
	engines, _ := resp.Data["engines"].([]map[string]any)
	return engines, nil
}

// RAGEngineCapabilities reports the doc_ingestion and other capabilities
// a rag-engine plugin advertises.
func (c *Connector) RAGEngineCapabilities(ctx context.Context, pluginID string) ([]string, error) {
	resp, err := c.call(ctx, "rag_engine_capabilities", TimeoutSchema, map[string]any{"plugin_id": pluginID})
	if err != nil {
		return nil, err
	}
	caps, _ := resp.Data["capabilities"].([]string)
	return caps, nil
}

func mergePluginID(pluginID string, req map[string]any) map[string]any {
	out := make(map[string]any, len(req)+1)
	for k, v := range req {
		out[k] = v
	}
	out["plugin_id"] = pluginID
	return out
}

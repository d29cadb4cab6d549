// Package pluginrpc implements the typed connector to the separate
// plugin runtime process (spec.md §4.9, C9). All plugin logic runs out
// of process; this package holds only typed verbs, per-verb timeouts,
// and cancellation — no shared memory with the plugin.
package pluginrpc

import (
	"context"
	"time"
)

// Verb timeouts (spec.md §4.9).
const (
	TimeoutPing     = 10 * time.Second
	TimeoutSchema   = 30 * time.Second
	TimeoutLLMTool  = 180 * time.Second
	TimeoutIngest   = 300 * time.Second
)

// ActionResponse is the envelope every plugin verb resolves to. An
// Error field set by the plugin becomes a Go error at the connector
// boundary (spec.md §7 PluginRPCFailure).
type ActionResponse struct {
	Error string
	Data  map[string]any
}

// Transport is the underlying RPC mechanism (HTTPTransport in
// production; a fake in tests). Connector is transport-agnostic so
// production code wires the JSON-over-HTTP transport and tests wire an
// in-memory one.
type Transport interface {
	CallAction(ctx context.Context, verb string, payload map[string]any) (ActionResponse, error)
	CallActionGenerator(ctx context.Context, verb string, payload map[string]any) (<-chan ActionResponse, error)
}

// Connector exposes typed wrappers over Transport for every verb in
// spec.md §4.9's relevant-to-the-core list. A transport failure
// triggers a reconnect attempt on the *next* call; the in-flight verb
// still fails (spec.md §7).
type Connector struct {
	transport Transport
}

// NewConnector wraps transport.
func NewConnector(transport Transport) *Connector {
	return &Connector{transport: transport}
}

func (c *Connector) call(ctx context.Context, verb string, timeout time.Duration, payload map[string]any) (ActionResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := c.transport.CallAction(ctx, verb, payload)
	if err != nil {
		return ActionResponse{}, &PluginRPCError{Verb: verb, Err: err}
	}
	if resp.Error != "" {
		return ActionResponse{}, &PluginRPCError{Verb: verb, Err: errString(resp.Error)}
	}
	return resp, nil
}

type errString string

func (e errString) Error() string { return string(e) }

// PluginRPCFailure / PluginRPCError: timeouts and disconnections raise,
// and an in-flight verb fails without retry at this layer (spec.md §7).
type PluginRPCError struct {
	Verb string
	Err  error
}

func (e *PluginRPCError) Error() string { return "plugin rpc (" + e.Verb + "): " + e.Err.Error() }
func (e *PluginRPCError) Unwrap() error { return e.Err }

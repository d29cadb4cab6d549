package pluginrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// HTTPTransport implements Transport over a plain JSON/HTTP call to the
// plugin runtime process: POST {address}/actions/{verb} with the
// payload as the JSON body, decode an ActionResponse back. The plugin
// runtime is always a separate OS process (spec.md §4.9), so this is
// the connector's only link to it.
type HTTPTransport struct {
	address string
	client  *http.Client
}

// NewHTTPTransport constructs an HTTPTransport pointed at address (a
// bare host:port or a full base URL).
func NewHTTPTransport(address string) *HTTPTransport {
	return &HTTPTransport{address: address, client: &http.Client{}}
}

// CallAction implements Transport.
func (t *HTTPTransport) CallAction(ctx context.Context, verb string, payload map[string]any) (ActionResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return ActionResponse{}, fmt.Errorf("pluginrpc: marshal payload: %w", err)
	}

	url := fmt.Sprintf("http://%s/actions/%s", t.address, verb)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return ActionResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return ActionResponse{}, fmt.Errorf("pluginrpc: call %q: %w", verb, err)
	}
	defer resp.Body.Close()

	var decoded ActionResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return ActionResponse{}, fmt.Errorf("pluginrpc: decode response for %q: %w", verb, err)
	}
	return decoded, nil
}

// CallActionGenerator implements Transport for streaming verbs by
// decoding a sequence of newline-delimited ActionResponse JSON objects
// from the same POST request.
func (t *HTTPTransport) CallActionGenerator(ctx context.Context, verb string, payload map[string]any) (<-chan ActionResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("pluginrpc: marshal payload: %w", err)
	}

	url := fmt.Sprintf("http://%s/actions/%s/stream", t.address, verb)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pluginrpc: call %q: %w", verb, err)
	}

	out := make(chan ActionResponse)
	go func() {
		defer close(out)
		defer resp.Body.Close()
		dec := json.NewDecoder(resp.Body)
		for {
			var chunk ActionResponse
			if err := dec.Decode(&chunk); err != nil {
				return
			}
			select {
			case out <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

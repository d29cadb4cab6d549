package platform

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/langbot-app/LangBot/internal/pipeline"
)

// Dispatcher serves /bots/<uuid>[/<path>] webhook requests, routing each
// to the registered adapter's HandleUnifiedWebhook after signature
// verification (spec.md §4.5):
//
//   - unknown bot uuid              -> 404
//   - disabled bot                  -> 403
//   - verifier present and rejects  -> 403
//   - adapter doesn't support HTTP  -> 501 (ErrWebhookUnsupported)
//   - pipeline concurrency saturated -> 429 (pipeline.ErrQueueFull)
//   - adapter handler returns error -> 500
type Dispatcher struct {
	registry *Registry
	logger   *slog.Logger
}

// NewDispatcher constructs a webhook dispatcher over registry.
func NewDispatcher(registry *Registry, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{registry: registry, logger: logger}
}

// ErrWebhookUnsupported is returned by an adapter's HandleUnifiedWebhook
// when that adapter has no HTTP callback surface.
var ErrWebhookUnsupported = errors.New("platform: adapter does not support webhook callbacks")

// ServeHTTP implements http.Handler. Mount at "/bots/".
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	botUUID, subpath := parseBotsPath(r.URL.Path)
	if botUUID == "" {
		http.NotFound(w, r)
		return
	}

	adapter, verifier, ok := d.registry.Get(botUUID)
	if !ok {
		http.Error(w, "unknown bot", http.StatusNotFound)
		return
	}
	if enabled, _ := d.registry.Enabled(botUUID); !enabled {
		http.Error(w, "bot disabled", http.StatusForbidden)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	if verifier != nil {
		if err := verifier.Verify(r.Header, body); err != nil {
			d.logger.Warn("platform: webhook signature rejected", "bot_uuid", botUUID, "error", err)
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
	}

	resp, err := adapter.HandleUnifiedWebhook(r.Context(), subpath, body, r.Header)
	switch {
	case errors.Is(err, ErrWebhookUnsupported):
		http.Error(w, "not implemented", http.StatusNotImplemented)
		return
	case errors.Is(err, pipeline.ErrQueueFull):
		http.Error(w, "pipeline concurrency limit reached", http.StatusTooManyRequests)
		return
	case err != nil:
		d.logger.Error("platform: webhook handler failed", "bot_uuid", botUUID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	if len(resp) > 0 {
		_, _ = w.Write(resp)
	}
}

// parseBotsPath extracts the bot uuid and remaining subpath from a
// "/bots/<uuid>[/<path>]" request path. Returns ("", "") if path does
// not match the expected shape.
func parseBotsPath(path string) (botUUID, subpath string) {
	trimmed := strings.TrimPrefix(path, "/bots/")
	if trimmed == path {
		return "", ""
	}
	trimmed = strings.Trim(trimmed, "/")
	if trimmed == "" {
		return "", ""
	}
	parts := strings.SplitN(trimmed, "/", 2)
	botUUID = parts[0]
	if len(parts) == 2 {
		subpath = parts[1]
	}
	return botUUID, subpath
}

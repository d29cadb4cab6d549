package webchat

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/langbot-app/LangBot/internal/pipeline"
	"github.com/langbot-app/LangBot/pkg/models"
)

// Router serves the WebChat debug HTTP surface under
// "/api/v1/pipelines/" (spec.md §6 "WebChat debug HTTP"):
//
//	POST .../{pipeline_uuid}/chat/send           -> synchronous reply
//	GET  .../{pipeline_uuid}/chat/messages/{t}   -> session history
//	POST .../{pipeline_uuid}/chat/reset/{t}      -> clear session history
//
// Routing to a pipeline's Adapter is by the same manual prefix-strip and
// split style as platform.Dispatcher's "/bots/<uuid>" parsing.
type Router struct {
	adapters map[string]*Adapter
	logger   *slog.Logger
}

// NewRouter constructs a debug HTTP router over a pipeline-uuid-keyed
// set of WebChat adapters.
func NewRouter(adapters map[string]*Adapter, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{adapters: adapters, logger: logger}
}

// sendRequest is the POST .../chat/send request body.
type sendRequest struct {
	SessionType string              `json:"session_type"`
	Message     models.MessageChain `json:"message"`
}

// sendResponse is the POST .../chat/send response body.
type sendResponse struct {
	Success  bool                `json:"success"`
	Messages models.MessageChain `json:"messages"`
}

// ServeHTTP implements http.Handler. Mount at "/api/v1/pipelines/".
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	pipelineUUID, rest := parsePipelinesPath(r.URL.Path)
	if pipelineUUID == "" {
		http.NotFound(w, r)
		return
	}

	adapter, ok := rt.adapters[pipelineUUID]
	if !ok {
		http.Error(w, "unknown pipeline", http.StatusNotFound)
		return
	}

	switch {
	case rest == "chat/send" && r.Method == http.MethodPost:
		rt.handleSend(w, r, pipelineUUID, adapter)
	case strings.HasPrefix(rest, "chat/messages/") && r.Method == http.MethodGet:
		rt.handleMessages(w, adapter, strings.TrimPrefix(rest, "chat/messages/"))
	case strings.HasPrefix(rest, "chat/reset/") && r.Method == http.MethodPost:
		rt.handleReset(w, adapter, strings.TrimPrefix(rest, "chat/reset/"))
	default:
		http.NotFound(w, r)
	}
}

func (rt *Router) handleSend(w http.ResponseWriter, r *http.Request, pipelineUUID string, adapter *Adapter) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.SessionType != SessionTypePerson && req.SessionType != SessionTypeGroup {
		http.Error(w, "session_type must be \"person\" or \"group\"", http.StatusBadRequest)
		return
	}

	reply, err := adapter.SendDebugMessage(r.Context(), req.SessionType, req.Message)
	if err != nil {
		if errors.Is(err, pipeline.ErrQueueFull) {
			http.Error(w, "pipeline concurrency limit reached", http.StatusTooManyRequests)
			return
		}
		rt.logger.Error("webchat: send_debug_message failed", "pipeline_uuid", pipelineUUID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, sendResponse{Success: true, Messages: reply})
}

func (rt *Router) handleMessages(w http.ResponseWriter, adapter *Adapter, sessionType string) {
	if sessionType != SessionTypePerson && sessionType != SessionTypeGroup {
		http.Error(w, "unknown session_type", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Messages []HistoryMessage `json:"messages"`
	}{Messages: adapter.History().Messages(sessionType)})
}

func (rt *Router) handleReset(w http.ResponseWriter, adapter *Adapter, sessionType string) {
	if sessionType != SessionTypePerson && sessionType != SessionTypeGroup {
		http.Error(w, "unknown session_type", http.StatusBadRequest)
		return
	}
	adapter.History().Reset(sessionType)
	writeJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
	}{Success: true})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// parsePipelinesPath extracts the pipeline uuid and remaining subpath
// from a "/api/v1/pipelines/<uuid>/<path>" request path.
func parsePipelinesPath(path string) (pipelineUUID, subpath string) {
	const prefix = "/api/v1/pipelines/"
	trimmed := strings.TrimPrefix(path, prefix)
	if trimmed == path {
		return "", ""
	}
	trimmed = strings.Trim(trimmed, "/")
	if trimmed == "" {
		return "", ""
	}
	parts := strings.SplitN(trimmed, "/", 2)
	pipelineUUID = parts[0]
	if len(parts) == 2 {
		subpath = parts[1]
	}
	return pipelineUUID, subpath
}

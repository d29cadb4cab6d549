package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/hibiken/asynq"
)

// BlobReader opens a previously-uploaded blob for reading, resolved by
// the in-archive member name for zip-expanded files or the original
// path otherwise.
type BlobReader interface {
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

// NewWorkerMux wires TaskTypeIngestFile to Manager.RunIngest, the
// asynq.ServeMux handler registration a worker process runs (spec.md
// §4.3 "async ingest task").
func NewWorkerMux(m *Manager, blobs BlobReader) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskTypeIngestFile, func(ctx context.Context, t *asynq.Task) error {
		var payload ingestPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("rag: decode ingest task payload: %w", err)
		}
		rc, err := blobs.Open(ctx, payload.BlobPath)
		if err != nil {
			return fmt.Errorf("rag: open blob %q: %w", payload.BlobPath, err)
		}
		defer rc.Close()
		return m.RunIngest(ctx, payload, rc)
	})
	return mux
}

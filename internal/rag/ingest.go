package rag

import (
	"archive/zip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/langbot-app/LangBot/pkg/models"
)

// TaskTypeIngestFile is the asynq task type name for one file's async
// ingest job (spec.md §4.3 "File lifecycle": pending -> processing ->
// completed/failed).
const TaskTypeIngestFile = "rag:ingest_file"

// ingestPayload is the asynq task payload for TaskTypeIngestFile.
type ingestPayload struct {
	FileUUID string `json:"file_uuid"`
	KBUUID   string `json:"kb_uuid"`
	BlobPath string `json:"blob_path"`
}

// EnqueueIngest records a pending File row for each of the given paths
// and enqueues one asynq ingest task per file. A path ending in .zip is
// expanded into one File per member entry instead of ingested whole
// (spec.md §4.3 "ZIP ingest expansion").
func (m *Manager) EnqueueIngest(ctx context.Context, kbUUID string, paths []string, zipReaders map[string]*zip.Reader) ([]*models.File, error) {
	rkb, ok := m.Get(kbUUID)
	if !ok {
		return nil, fmt.Errorf("rag: unknown kb %q", kbUUID)
	}
	if err := m.requireCapability(ctx, rkb, "doc_ingestion"); err != nil {
		return nil, err
	}

	var files []*models.File
	for _, p := range paths {
		if strings.EqualFold(filepath.Ext(p), ".zip") {
			zr, ok := zipReaders[p]
			if !ok {
				return nil, fmt.Errorf("rag: no zip reader supplied for %q", p)
			}
			expanded, err := m.expandZIP(ctx, kbUUID, zr)
			if err != nil {
				return nil, fmt.Errorf("rag: expand zip %q: %w", p, err)
			}
			files = append(files, expanded...)
			continue
		}

		file := &models.File{
			UUID:      uuid.NewString(),
			KBID:      kbUUID,
			FileName:  filepath.Base(p),
			Extension: strings.TrimPrefix(filepath.Ext(p), "."),
			Status:    models.FileStatusPending,
		}
		if err := m.store.SaveFile(ctx, file); err != nil {
			return nil, fmt.Errorf("rag: persist file: %w", err)
		}
		if err := m.enqueueTask(file.UUID, kbUUID, p); err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	return files, nil
}

// supportedZIPExtensions are the inner file types expanded out of a ZIP
// upload (spec.md §4.3 "Ingest file"); everything else is skipped with a
// debug log, matching the source behaviour of silently dropping
// unsupported archive members rather than failing the whole upload.
var supportedZIPExtensions = map[string]bool{
	"txt": true, "pdf": true, "docx": true, "md": true, "html": true,
}

// ErrNoSupportedZIPMembers is returned when a ZIP upload contains no
// member with a supported extension (spec.md §8 boundary behaviour: "ZIP
// ingest with no supported members -> raises a user-visible error and no
// File row is persisted").
var ErrNoSupportedZIPMembers = fmt.Errorf("rag: zip archive has no supported files")

// expandZIP persists a File row per supported zip member (each member's
// blob path is its own in-archive name, resolved by the ingest worker),
// and enqueues a task per member. Apple's __MACOSX metadata directory
// and any extension outside supportedZIPExtensions are skipped.
func (m *Manager) expandZIP(ctx context.Context, kbUUID string, zr *zip.Reader) ([]*models.File, error) {
	var files []*models.File
	for _, member := range zr.File {
		if member.FileInfo().IsDir() {
			continue
		}
		if strings.HasPrefix(member.Name, "__MACOSX/") || strings.Contains(member.Name, "/__MACOSX/") {
			slog.Default().Debug("rag: skipping apple metadata zip member", "name", member.Name)
			continue
		}
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(member.Name), "."))
		if !supportedZIPExtensions[ext] {
			slog.Default().Debug("rag: skipping unsupported zip member", "name", member.Name, "extension", ext)
			continue
		}

		file := &models.File{
			UUID:      uuid.NewString(),
			KBID:      kbUUID,
			FileName:  filepath.Base(member.Name),
			Extension: ext,
			Status:    models.FileStatusPending,
		}
		if err := m.store.SaveFile(ctx, file); err != nil {
			return nil, fmt.Errorf("rag: persist file %q: %w", member.Name, err)
		}
		if err := m.enqueueTask(file.UUID, kbUUID, member.Name); err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	if len(files) == 0 {
		return nil, ErrNoSupportedZIPMembers
	}
	return files, nil
}

func (m *Manager) enqueueTask(fileUUID, kbUUID, blobPath string) error {
	if m.tasks == nil {
		return nil // synchronous test doubles may omit the queue and call RunIngest directly
	}
	task, err := newIngestTask(fileUUID, kbUUID, blobPath)
	if err != nil {
		return err
	}
	if _, err := m.tasks.Enqueue(task); err != nil {
		return fmt.Errorf("rag: enqueue ingest task: %w", err)
	}
	return nil
}

func newIngestTask(fileUUID, kbUUID, blobPath string) (*asynq.Task, error) {
	payload := ingestPayload{FileUUID: fileUUID, KBUUID: kbUUID, BlobPath: blobPath}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeIngestFile, b), nil
}

// RunIngest is the asynq handler body: marks the file processing, reads
// its blob, calls the owning plugin's rag_ingest verb, and marks the
// file completed or failed (spec.md §4.3 "File lifecycle").
func (m *Manager) RunIngest(ctx context.Context, payload ingestPayload, blob io.Reader) error {
	file, err := m.store.GetFile(ctx, payload.FileUUID)
	if err != nil {
		return fmt.Errorf("rag: load file: %w", err)
	}
	rkb, ok := m.Get(payload.KBUUID)
	if !ok {
		file.Status = models.FileStatusFailed
		file.Error = "knowledge base not loaded"
		_ = m.store.SaveFile(ctx, file)
		return fmt.Errorf("rag: unknown kb %q", payload.KBUUID)
	}

	file.Status = models.FileStatusProcessing
	if err := m.store.SaveFile(ctx, file); err != nil {
		return fmt.Errorf("rag: mark processing: %w", err)
	}

	content, err := io.ReadAll(blob)
	if err != nil {
		return m.failFile(ctx, file, fmt.Errorf("read blob: %w", err))
	}

	req := map[string]any{
		"kb_uuid":   payload.KBUUID,
		"file_uuid": file.UUID,
		"file_name": file.FileName,
		"content":   content,
	}
	if err := m.connector.RAGIngest(ctx, rkb.KB.RAGEnginePluginID, req); err != nil {
		return m.failFile(ctx, file, err)
	}

	file.Status = models.FileStatusCompleted
	file.Error = ""
	if err := m.store.SaveFile(ctx, file); err != nil {
		return fmt.Errorf("rag: mark completed: %w", err)
	}

	if m.blobs != nil && payload.BlobPath != "" {
		if err := m.blobs.Delete(ctx, payload.BlobPath); err != nil {
			slog.Default().Warn("rag: failed to delete source blob after ingest", "path", payload.BlobPath, "error", err)
		}
	}
	return nil
}

func (m *Manager) failFile(ctx context.Context, file *models.File, cause error) error {
	file.Status = models.FileStatusFailed
	file.Error = cause.Error()
	if err := m.store.SaveFile(ctx, file); err != nil {
		return fmt.Errorf("rag: mark failed (original cause %v): %w", cause, err)
	}
	return cause
}

// DeleteFile removes a file's ingested content via the owning plugin,
// then deletes the File row.
func (m *Manager) DeleteFile(ctx context.Context, fileUUID string) error {
	file, err := m.store.GetFile(ctx, fileUUID)
	if err != nil {
		return fmt.Errorf("rag: load file: %w", err)
	}
	rkb, ok := m.Get(file.KBID)
	if !ok {
		return fmt.Errorf("rag: unknown kb %q", file.KBID)
	}
	if err := m.connector.RAGDeleteDocument(ctx, rkb.KB.RAGEnginePluginID, file.UUID, file.KBID); err != nil {
		return fmt.Errorf("rag: plugin rag_delete_document failed: %w", err)
	}
	return m.store.DeleteFile(ctx, fileUUID)
}

// Retrieve delegates a retrieval query to the KB's owning plugin
// (spec.md §4.3 "Retrieve" — distinct from internal/retriever's
// RRF-fused Retriever, which never talks to a plugin).
func (m *Manager) Retrieve(ctx context.Context, kbUUID, query string) ([]models.RetrievalResultEntry, error) {
	rkb, ok := m.Get(kbUUID)
	if !ok {
		return nil, fmt.Errorf("rag: unknown kb %q", kbUUID)
	}
	topK := rkb.KB.TopK
	if topK <= 0 {
		topK = 5
	}
	raw, err := m.connector.RAGRetrieve(ctx, rkb.KB.RAGEnginePluginID, map[string]any{
		"kb_uuid": kbUUID,
		"query":   query,
		"top_k":   topK,
	})
	if err != nil {
		return nil, fmt.Errorf("rag: plugin rag_retrieve failed: %w", err)
	}

	out := make([]models.RetrievalResultEntry, 0, len(raw))
	for _, r := range raw {
		entry := models.RetrievalResultEntry{Metadata: map[string]any{}}
		if id, ok := r["id"].(string); ok {
			entry.ID = id
		}
		if text, ok := r["text"].(string); ok {
			entry.Content = []models.ContentElement{{Type: "text", Text: text}}
		}
		if dist, ok := r["distance"].(float64); ok {
			entry.Distance = dist
		}
		if md, ok := r["metadata"].(map[string]any); ok {
			entry.Metadata = md
		}
		out = append(out, entry)
	}
	return out, nil
}

package models

import "time"

// FileStatus is the lifecycle state of an ingested KB file.
type FileStatus string

const (
	FileStatusPending    FileStatus = "pending"
	FileStatusProcessing FileStatus = "processing"
	FileStatusCompleted  FileStatus = "completed"
	FileStatusFailed     FileStatus = "failed"
)

// KnowledgeBase is the persisted shape of a KB. Exactly one plugin, named
// by RAGEnginePluginID, owns ingestion and retrieval for it; the platform
// only owns collection identity and file metadata.
type KnowledgeBase struct {
	UUID               string         `json:"uuid"`
	Name               string         `json:"name"`
	Description        string         `json:"description"`
	EmbeddingModelUUID string         `json:"embedding_model_uuid"`
	TopK               int            `json:"top_k"`
	RAGEnginePluginID  string         `json:"rag_engine_plugin_id"`
	CollectionID       string         `json:"collection_id"`
	CreationSettings   map[string]any `json:"creation_settings,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
}

// File is one uploaded document inside a knowledge base.
type File struct {
	UUID      string     `json:"uuid"`
	KBID      string     `json:"kb_id"`
	FileName  string     `json:"file_name"`
	Extension string     `json:"extension"`
	Status    FileStatus `json:"status"`
	Error     string     `json:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// ContentElement is one piece of a retrieval result's content; kept as a
// slice rather than a bare string so a plugin-returned result can carry
// mixed text/image content without the core needing to know the shape.
type ContentElement struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// RetrievalResultEntry is one fused/ranked retrieval hit.
type RetrievalResultEntry struct {
	ID       string         `json:"id"`
	Content  []ContentElement `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Distance float64        `json:"distance"`
}

// Text concatenates the entry's text content elements, convenience for
// prompt assembly.
func (e RetrievalResultEntry) Text() string {
	var out string
	for _, c := range e.Content {
		out += c.Text
	}
	return out
}

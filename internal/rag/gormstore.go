package rag

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/langbot-app/LangBot/pkg/models"
)

// knowledgeBaseRow and fileRow are the GORM models backing GormStore,
// mirroring the "knowledge_bases" / "knowledge_base_files" tables
// spec.md §6 "Persisted state" names. CreationSettings is stored as a
// JSON blob since its shape is declared by the owning plugin's schema,
// not by this table.
type knowledgeBaseRow struct {
	UUID               string `gorm:"primaryKey"`
	Name               string
	Description        string
	EmbeddingModelUUID string
	TopK               int
	RAGEnginePluginID  string
	CollectionID       string
	CreationSettings   string
}

type fileRow struct {
	UUID      string `gorm:"primaryKey"`
	KBID      string `gorm:"index"`
	FileName  string
	Extension string
	Status    string
	Error     string
}

// TableName maps knowledgeBaseRow onto the "knowledge_bases" table.
func (knowledgeBaseRow) TableName() string { return "knowledge_bases" }

// TableName maps fileRow onto the "knowledge_base_files" table.
func (fileRow) TableName() string { return "knowledge_base_files" }

// GormStore persists KnowledgeBase and File rows via GORM, the relational
// store spec.md §1 says the system relies on ("exposed via an async
// execution gateway" — here, direct GORM calls standing in for that
// gateway at the edge this core owns; the gateway itself is an external
// collaborator per spec.md §1 Non-goals).
type GormStore struct {
	db *gorm.DB
}

// NewGormStore constructs a GormStore and auto-migrates its tables.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&knowledgeBaseRow{}, &fileRow{}); err != nil {
		return nil, fmt.Errorf("rag: auto-migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

func toRow(kb *models.KnowledgeBase) (knowledgeBaseRow, error) {
	settings, err := json.Marshal(kb.CreationSettings)
	if err != nil {
		return knowledgeBaseRow{}, err
	}
	return knowledgeBaseRow{
		UUID:               kb.UUID,
		Name:               kb.Name,
		Description:        kb.Description,
		EmbeddingModelUUID: kb.EmbeddingModelUUID,
		TopK:               kb.TopK,
		RAGEnginePluginID:  kb.RAGEnginePluginID,
		CollectionID:       kb.CollectionID,
		CreationSettings:   string(settings),
	}, nil
}

func fromRow(row knowledgeBaseRow) *models.KnowledgeBase {
	var settings map[string]any
	_ = json.Unmarshal([]byte(row.CreationSettings), &settings)
	return &models.KnowledgeBase{
		UUID:               row.UUID,
		Name:               row.Name,
		Description:        row.Description,
		EmbeddingModelUUID: row.EmbeddingModelUUID,
		TopK:               row.TopK,
		RAGEnginePluginID:  row.RAGEnginePluginID,
		CollectionID:       row.CollectionID,
		CreationSettings:   settings,
	}
}

// SaveKB implements Store.
func (s *GormStore) SaveKB(ctx context.Context, kb *models.KnowledgeBase) error {
	row, err := toRow(kb)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Save(&row).Error
}

// GetKB implements Store.
func (s *GormStore) GetKB(ctx context.Context, uuid string) (*models.KnowledgeBase, error) {
	var row knowledgeBaseRow
	if err := s.db.WithContext(ctx).First(&row, "uuid = ?", uuid).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("rag: unknown kb %q", uuid)
		}
		return nil, err
	}
	return fromRow(row), nil
}

// DeleteKB implements Store.
func (s *GormStore) DeleteKB(ctx context.Context, uuid string) error {
	return s.db.WithContext(ctx).Delete(&knowledgeBaseRow{}, "uuid = ?", uuid).Error
}

// SaveFile implements Store.
func (s *GormStore) SaveFile(ctx context.Context, file *models.File) error {
	row := fileRow{
		UUID:      file.UUID,
		KBID:      file.KBID,
		FileName:  file.FileName,
		Extension: file.Extension,
		Status:    string(file.Status),
		Error:     file.Error,
	}
	return s.db.WithContext(ctx).Save(&row).Error
}

// GetFile implements Store.
func (s *GormStore) GetFile(ctx context.Context, uuid string) (*models.File, error) {
	var row fileRow
	if err := s.db.WithContext(ctx).First(&row, "uuid = ?", uuid).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("rag: unknown file %q", uuid)
		}
		return nil, err
	}
	return &models.File{
		UUID:      row.UUID,
		KBID:      row.KBID,
		FileName:  row.FileName,
		Extension: row.Extension,
		Status:    models.FileStatus(row.Status),
		Error:     row.Error,
	}, nil
}

// DeleteFile implements Store.
func (s *GormStore) DeleteFile(ctx context.Context, uuid string) error {
	return s.db.WithContext(ctx).Delete(&fileRow{}, "uuid = ?", uuid).Error
}

// ListFiles implements Store.
func (s *GormStore) ListFiles(ctx context.Context, kbID string) ([]*models.File, error) {
	var rows []fileRow
	if err := s.db.WithContext(ctx).Where("kb_id = ?", kbID).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*models.File, 0, len(rows))
	for _, row := range rows {
		out = append(out, &models.File{
			UUID:      row.UUID,
			KBID:      row.KBID,
			FileName:  row.FileName,
			Extension: row.Extension,
			Status:    models.FileStatus(row.Status),
			Error:     row.Error,
		})
	}
	return out, nil
}

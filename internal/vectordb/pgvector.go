package vectordb

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

// pgvectorRow is the GORM model backing one embedding row. Table name is
// derived per-collection via Table(), since each KB collection gets its
// own table the way WeKnora's pgvector store partitions by collection.
type pgvectorRow struct {
	ID         string `gorm:"primaryKey"`
	Embedding  pgvector.Vector
	MetadataJSON string
	Document   string
}

// Pgvector is a VectorDatabase backend storing embeddings in PostgreSQL
// via pgvector, grounded on WeKnora's own pgvector-go + gorm usage
// (internal/rag/store/pgvector).
type Pgvector struct {
	db        *gorm.DB
	sanitizer *NameSanitizer
}

// NewPgvector constructs a pgvector-backed VectorDatabase over an
// existing *gorm.DB connection.
func NewPgvector(db *gorm.DB) *Pgvector {
	return &Pgvector{db: db, sanitizer: NewNameSanitizer()}
}

func (p *Pgvector) table(name string) string {
	return "vdb_" + p.sanitizer.Safe(name)
}

func (p *Pgvector) GetOrCreateCollection(ctx context.Context, name string, dimension int) error {
	table := p.table(name)
	if p.db.Migrator().HasTable(table) {
		return nil
	}
	return p.db.WithContext(ctx).Table(table).AutoMigrate(&pgvectorRow{})
}

func (p *Pgvector) AddEmbeddings(ctx context.Context, name string, ids []string, vectors [][]float32, metadatas []map[string]any, documents []string) error {
	if len(ids) != len(vectors) || len(ids) != len(metadatas) {
		return fmt.Errorf("vectordb: mismatched lengths: ids=%d vectors=%d metadatas=%d", len(ids), len(vectors), len(metadatas))
	}
	table := p.table(name)

	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, id := range ids {
			metaBytes, err := json.Marshal(metadatas[i])
			if err != nil {
				return err
			}
			var doc string
			if i < len(documents) {
				doc = documents[i]
			}
			row := pgvectorRow{
				ID:           id,
				Embedding:    pgvector.NewVector(vectors[i]),
				MetadataJSON: string(metaBytes),
				Document:     doc,
			}
			if err := tx.Table(table).Save(&row).Error; err != nil {
				return fmt.Errorf("vectordb: insert row %d/%d: %w", i+1, len(ids), err)
			}
		}
		return nil
	})
}

func (p *Pgvector) Search(ctx context.Context, name string, queryVector []float32, k int) (SearchResult, error) {
	table := p.table(name)
	if !p.db.Migrator().HasTable(table) {
		return SearchResult{}, nil
	}

	var rows []pgvectorRow
	err := p.db.WithContext(ctx).Table(table).
		Order(gorm.Expr("embedding <-> ?", pgvector.NewVector(queryVector))).
		Limit(k).
		Find(&rows).Error
	if err != nil {
		return SearchResult{}, err
	}
	return rowsToResult(rows), nil
}

func (p *Pgvector) SearchFulltext(context.Context, string, string, int) (SearchResult, error) {
	return SearchResult{}, ErrUnsupported
}

func (p *Pgvector) SearchHybrid(context.Context, string, []float32, string, int) (SearchResult, error) {
	return SearchResult{}, ErrUnsupported
}

func (p *Pgvector) DeleteByFileID(ctx context.Context, name string, fileID string) error {
	table := p.table(name)
	return p.db.WithContext(ctx).Table(table).
		Where("metadata_json::jsonb ->> 'file_id' = ?", fileID).
		Delete(&pgvectorRow{}).Error
}

func (p *Pgvector) DeleteCollection(ctx context.Context, name string) error {
	return p.db.WithContext(ctx).Migrator().DropTable(p.table(name))
}

func (p *Pgvector) GetCapabilities() map[Capability]bool {
	return map[Capability]bool{CapVector: true}
}

func rowsToResult(rows []pgvectorRow) SearchResult {
	out := SearchResult{}
	for _, r := range rows {
		out.IDs = append(out.IDs, r.ID)
		out.Distances = append(out.Distances, 0)
		var md map[string]any
		_ = json.Unmarshal([]byte(r.MetadataJSON), &md)
		out.Metadatas = append(out.Metadatas, md)
		out.Documents = append(out.Documents, r.Document)
	}
	return out
}

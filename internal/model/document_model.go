package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

type Document struct {
	ID                 uuid.UUID        `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Title              string           `json:"title"`
	Content            string           `gorm:"type:text" json:"content"`
	DepartmentID       *uuid.UUID       `gorm:"type:uuid;index" json:"department_id"`
	Embedding          *pgvector.Vector `gorm:"type:vector" json:"-"`
	EmbeddingUpdatedAt *time.Time       `json:"embedding_updated_at"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

func (d *Document) TableName() string {
	return "documents"
}

func (d *Document) TextForEmbedding() string {
	return textForEmbedding(d.Title, d.Content)
}

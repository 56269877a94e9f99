package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

type Ticket struct {
	ID                 uuid.UUID        `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Title              string           `json:"title"`
	Description        string           `gorm:"type:text" json:"description"`
	DepartmentID       *uuid.UUID       `gorm:"type:uuid;index" json:"department_id"`
	SubDepartmentID    *uuid.UUID       `gorm:"type:uuid" json:"sub_department_id"`
	AssignedTo         *uuid.UUID       `gorm:"type:uuid;index" json:"assigned_to"`
	Embedding          *pgvector.Vector `gorm:"type:vector" json:"-"`
	EmbeddingUpdatedAt *time.Time       `json:"embedding_updated_at"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

func (t *Ticket) TableName() string {
	return "tickets"
}

func (t *Ticket) TextForEmbedding() string {
	return textForEmbedding(t.Title, t.Description)
}

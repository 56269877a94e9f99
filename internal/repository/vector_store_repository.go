package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fadilmartias/ticket-router/internal/model"
	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

var ErrEntityNotFound = errors.New("entity not found")

// VectorStoreInterface is the read/write contract over the vector columns of
// documents and tickets.
type VectorStoreInterface interface {
	GetText(ctx context.Context, kind model.EntityKind, id string) (string, error)
	GetVector(ctx context.Context, kind model.EntityKind, id string) ([]float32, error)
	SetVector(ctx context.Context, kind model.EntityKind, id string, vector []float32, updatedAt time.Time) error
	ListEmbeddable(ctx context.Context, kind model.EntityKind) ([]model.EmbeddedEntity, error)
	ListIDs(ctx context.Context, kind model.EntityKind) ([]string, error)
}

type VectorStoreRepository struct {
	db *gorm.DB
}

func NewVectorStoreRepository(db *gorm.DB) *VectorStoreRepository {
	return &VectorStoreRepository{db}
}

func (r *VectorStoreRepository) GetText(ctx context.Context, kind model.EntityKind, id string) (string, error) {
	db := r.db.WithContext(ctx)
	switch kind {
	case model.KindDocument:
		var d model.Document
		if err := db.Select("id", "title", "content").First(&d, "id = ?", id).Error; err != nil {
			return "", lookupError(kind, id, err)
		}
		return d.TextForEmbedding(), nil
	case model.KindTicket:
		var t model.Ticket
		if err := db.Select("id", "title", "description").First(&t, "id = ?", id).Error; err != nil {
			return "", lookupError(kind, id, err)
		}
		return t.TextForEmbedding(), nil
	}
	return "", fmt.Errorf("%w: %q", model.ErrUnknownKind, kind)
}

// GetVector returns nil without error when the entity exists but has no
// vector yet.
func (r *VectorStoreRepository) GetVector(ctx context.Context, kind model.EntityKind, id string) ([]float32, error) {
	db := r.db.WithContext(ctx)
	var emb *pgvector.Vector
	switch kind {
	case model.KindDocument:
		var d model.Document
		if err := db.Select("id", "embedding").First(&d, "id = ?", id).Error; err != nil {
			return nil, lookupError(kind, id, err)
		}
		emb = d.Embedding
	case model.KindTicket:
		var t model.Ticket
		if err := db.Select("id", "embedding").First(&t, "id = ?", id).Error; err != nil {
			return nil, lookupError(kind, id, err)
		}
		emb = t.Embedding
	default:
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownKind, kind)
	}
	if emb == nil {
		return nil, nil
	}
	return emb.Slice(), nil
}

// SetVector writes the vector and its timestamp in one statement so readers
// never observe one without the other. UpdateColumns keeps updated_at, the
// content mutation time, untouched.
func (r *VectorStoreRepository) SetVector(ctx context.Context, kind model.EntityKind, id string, vector []float32, updatedAt time.Time) error {
	target, err := modelFor(kind)
	if err != nil {
		return err
	}
	res := r.db.WithContext(ctx).Model(target).Where("id = ?", id).UpdateColumns(map[string]any{
		"embedding":            pgvector.NewVector(vector),
		"embedding_updated_at": updatedAt,
	})
	if res.Error != nil {
		return fmt.Errorf("set vector for %s %s: %w", kind, id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s %s", ErrEntityNotFound, kind, id)
	}
	return nil
}

func (r *VectorStoreRepository) ListEmbeddable(ctx context.Context, kind model.EntityKind) ([]model.EmbeddedEntity, error) {
	db := r.db.WithContext(ctx).Where("embedding IS NOT NULL")
	switch kind {
	case model.KindDocument:
		var docs []model.Document
		err := db.Select("id", "title", "department_id", "embedding", "embedding_updated_at").Find(&docs).Error
		if err != nil {
			return nil, fmt.Errorf("list embedded documents: %w", err)
		}
		out := make([]model.EmbeddedEntity, 0, len(docs))
		for i := range docs {
			d := &docs[i]
			out = append(out, embeddedEntity(kind, d.ID, d.Title, d.Embedding, d.EmbeddingUpdatedAt, d.DepartmentID, nil))
		}
		return out, nil
	case model.KindTicket:
		var tickets []model.Ticket
		err := db.Select("id", "title", "department_id", "assigned_to", "embedding", "embedding_updated_at").Find(&tickets).Error
		if err != nil {
			return nil, fmt.Errorf("list embedded tickets: %w", err)
		}
		out := make([]model.EmbeddedEntity, 0, len(tickets))
		for i := range tickets {
			t := &tickets[i]
			out = append(out, embeddedEntity(kind, t.ID, t.Title, t.Embedding, t.EmbeddingUpdatedAt, t.DepartmentID, t.AssignedTo))
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %q", model.ErrUnknownKind, kind)
}

func (r *VectorStoreRepository) ListIDs(ctx context.Context, kind model.EntityKind) ([]string, error) {
	target, err := modelFor(kind)
	if err != nil {
		return nil, err
	}
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).Model(target).Order("created_at").Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list %s ids: %w", kind, err)
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out, nil
}

func modelFor(kind model.EntityKind) (any, error) {
	switch kind {
	case model.KindDocument:
		return &model.Document{}, nil
	case model.KindTicket:
		return &model.Ticket{}, nil
	}
	return nil, fmt.Errorf("%w: %q", model.ErrUnknownKind, kind)
}

func lookupError(kind model.EntityKind, id string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s %s", ErrEntityNotFound, kind, id)
	}
	return fmt.Errorf("load %s %s: %w", kind, id, err)
}

func embeddedEntity(kind model.EntityKind, id uuid.UUID, title string, emb *pgvector.Vector, at *time.Time, dept, assignee *uuid.UUID) model.EmbeddedEntity {
	e := model.EmbeddedEntity{
		Kind:         kind,
		ID:           id.String(),
		Title:        title,
		DepartmentID: uuidString(dept),
		AssignedTo:   uuidString(assignee),
	}
	if emb != nil {
		e.Vector = emb.Slice()
	}
	if at != nil {
		e.VectorUpdatedAt = *at
	}
	return e
}

func uuidString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

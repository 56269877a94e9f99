package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/fadilmartias/ticket-router/internal/model"
	"gorm.io/gorm"
)

type DepartmentRepository struct {
	db *gorm.DB
}

func NewDepartmentRepository(db *gorm.DB) *DepartmentRepository {
	return &DepartmentRepository{db}
}

// ChildOf returns one sub-department of parentID, or nil when it has none.
// With several children the lowest child id wins so the answer is stable.
func (r *DepartmentRepository) ChildOf(ctx context.Context, parentID string) (*string, error) {
	var edge model.DepartmentEdge
	err := r.db.WithContext(ctx).
		Where("parent_department_id = ?", parentID).
		Order("child_department_id").
		Take(&edge).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load sub-department of %s: %w", parentID, err)
	}
	child := edge.ChildDepartmentID.String()
	return &child, nil
}

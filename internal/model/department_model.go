package model

import (
	"time"

	"github.com/google/uuid"
)

// DepartmentEdge links a parent department to one of its sub-departments.
type DepartmentEdge struct {
	ID                 uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ParentDepartmentID uuid.UUID `gorm:"type:uuid;not null;index" json:"parent_department_id"`
	ChildDepartmentID  uuid.UUID `gorm:"type:uuid;not null" json:"child_department_id"`
	CreatedAt          time.Time `json:"created_at"`
}

func (e *DepartmentEdge) TableName() string {
	return "department_edges"
}

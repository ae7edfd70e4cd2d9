package model

import (
	"time"

	"github.com/google/uuid"
)

// TaskPatch is a partial update. Nil fields are left untouched. ID and
// CreatorID are deliberately absent: they can never be changed.
type TaskPatch struct {
	Title        *string
	Description  *string
	DueDate      *time.Time
	Priority     *Priority
	Status       *Status
	AssignedToID *uuid.UUID

	// ClearAssignee removes the current assignee. It wins over AssignedToID.
	ClearAssignee bool
}

func (p TaskPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.DueDate == nil &&
		p.Priority == nil && p.Status == nil && p.AssignedToID == nil && !p.ClearAssignee
}

// Apply merges the supplied fields into t.
func (p TaskPatch) Apply(t *Task) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.DueDate != nil {
		t.DueDate = p.DueDate.UTC()
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	switch {
	case p.ClearAssignee:
		t.AssignedToID = nil
	case p.AssignedToID != nil:
		id := *p.AssignedToID
		t.AssignedToID = &id
	}
}

// TaskFilter selects tasks for List. Zero-valued fields do not filter;
// the rest are combined with AND.
type TaskFilter struct {
	Status       Status
	Priority     Priority
	CreatorID    *uuid.UUID
	AssignedToID *uuid.UUID
}

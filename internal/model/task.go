package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const TitleMaxLength = 100

type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

type Status string

const (
	StatusTodo       Status = "TODO"
	StatusInProgress Status = "IN_PROGRESS"
	StatusReview     Status = "REVIEW"
	StatusCompleted  Status = "COMPLETED"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusReview, StatusCompleted:
		return true
	}
	return false
}

// Task is the canonical task record. Timestamps are assigned by the store,
// not by gorm, so that updates can guarantee a strictly increasing UpdatedAt.
type Task struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Title        string     `gorm:"size:100;not null" json:"title"`
	Description  string     `json:"description"`
	DueDate      time.Time  `gorm:"not null;index" json:"dueDate"`
	Priority     Priority   `gorm:"size:16;not null;index" json:"priority"`
	Status       Status     `gorm:"size:16;not null;index" json:"status"`
	CreatorID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"creatorId"`
	AssignedToID *uuid.UUID `gorm:"type:uuid;index" json:"assignedToId"`
	CreatedAt    time.Time  `gorm:"autoCreateTime:false" json:"createdAt"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime:false" json:"updatedAt"`
}

// BeforeCreate assigns the id and fills enum defaults left empty by the caller.
func (t *Task) BeforeCreate(_ *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	t.ApplyDefaults()
	return nil
}

func (t *Task) ApplyDefaults() {
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	if t.Status == "" {
		t.Status = StatusTodo
	}
}

// IsOverdue reports whether the task is past due and still open.
func (t Task) IsOverdue(now time.Time) bool {
	return t.DueDate.Before(now) && t.Status != StatusCompleted
}

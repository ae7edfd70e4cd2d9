package model_test

import (
	"testing"
	"time"

	"taskhub/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestPriorityIsValid(t *testing.T) {
	for _, p := range []model.Priority{model.PriorityLow, model.PriorityMedium, model.PriorityHigh, model.PriorityUrgent} {
		assert.True(t, p.IsValid(), p)
	}
	assert.False(t, model.Priority("CRITICAL").IsValid())
	assert.False(t, model.Priority("").IsValid())
	assert.False(t, model.Priority("low").IsValid())
}

func TestStatusIsValid(t *testing.T) {
	for _, s := range []model.Status{model.StatusTodo, model.StatusInProgress, model.StatusReview, model.StatusCompleted} {
		assert.True(t, s.IsValid(), s)
	}
	assert.False(t, model.Status("DONE").IsValid())
	assert.False(t, model.Status("").IsValid())
}

func TestTaskBeforeCreate_FillsDefaults(t *testing.T) {
	task := &model.Task{Title: "Write docs"}

	assert.NoError(t, task.BeforeCreate(nil))

	assert.NotEqual(t, uuid.Nil, task.ID)
	assert.Equal(t, model.PriorityMedium, task.Priority)
	assert.Equal(t, model.StatusTodo, task.Status)
}

func TestTaskBeforeCreate_KeepsExplicitValues(t *testing.T) {
	id := uuid.New()
	task := &model.Task{ID: id, Priority: model.PriorityUrgent, Status: model.StatusReview}

	assert.NoError(t, task.BeforeCreate(nil))

	assert.Equal(t, id, task.ID)
	assert.Equal(t, model.PriorityUrgent, task.Priority)
	assert.Equal(t, model.StatusReview, task.Status)
}

func TestTaskIsOverdue(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	past := model.Task{DueDate: now.Add(-time.Hour), Status: model.StatusInProgress}
	done := model.Task{DueDate: now.Add(-time.Hour), Status: model.StatusCompleted}
	future := model.Task{DueDate: now.Add(time.Hour), Status: model.StatusTodo}

	assert.True(t, past.IsOverdue(now))
	assert.False(t, done.IsOverdue(now))
	assert.False(t, future.IsOverdue(now))
}

package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"taskhub/internal/model"
)

type TaskRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db, now: time.Now}
}

// WithClock returns a copy of the repository that stamps records with now.
func (r *TaskRepository) WithClock(now func() time.Time) *TaskRepository {
	return &TaskRepository{db: r.db, now: now}
}

// Create inserts a new task, assigning a missing id, defaults and timestamps
func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	ts := r.timestamp()
	task.CreatedAt = ts
	task.UpdatedAt = ts
	task.DueDate = task.DueDate.UTC()
	task.ApplyDefaults()
	return r.db.WithContext(ctx).Create(task).Error
}

// GetByID retrieves a task by its ID
func (r *TaskRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Task, error) {
	var task model.Task
	result := r.db.WithContext(ctx).First(&task, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, result.Error
	}
	return &task, nil
}

// Update merges the patch into the stored task. UpdatedAt always moves
// forward, even when the clock has not advanced since the last write.
func (r *TaskRepository) Update(ctx context.Context, id uuid.UUID, patch model.TaskPatch) (*model.Task, error) {
	var task model.Task
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&task, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTaskNotFound
			}
			return err
		}

		patch.Apply(&task)

		ts := r.timestamp()
		if !ts.After(task.UpdatedAt) {
			ts = task.UpdatedAt.Add(time.Microsecond)
		}
		task.UpdatedAt = ts

		return tx.Save(&task).Error
	})
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// timestamp is truncated to the microsecond precision postgres keeps.
func (r *TaskRepository) timestamp() time.Time {
	return r.now().UTC().Truncate(time.Microsecond)
}

// Delete removes a task by its ID
func (r *TaskRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&model.Task{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// List returns the tasks matching every set filter field, ordered by due date
// with the id as tie-break.
func (r *TaskRepository) List(ctx context.Context, filter model.TaskFilter) ([]model.Task, error) {
	query := r.db.WithContext(ctx).Model(&model.Task{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Priority != "" {
		query = query.Where("priority = ?", filter.Priority)
	}
	if filter.CreatorID != nil {
		query = query.Where("creator_id = ?", *filter.CreatorID)
	}
	if filter.AssignedToID != nil {
		query = query.Where("assigned_to_id = ?", *filter.AssignedToID)
	}

	tasks := make([]model.Task, 0)
	if err := query.Order("due_date ASC").Order("id ASC").Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

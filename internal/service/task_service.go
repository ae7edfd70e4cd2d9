// Package service orchestrates task mutations: rules, store commit and the
// lifecycle events that follow every successful commit. Mutations of one
// task are serialized within the process, so its events leave in commit order.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"taskhub/internal/events"
	"taskhub/internal/model"
	"taskhub/internal/repository"
	"taskhub/internal/rules"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("task not found")

// TaskStore is the persistence the service needs.
type TaskStore interface {
	Create(ctx context.Context, task *model.Task) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Task, error)
	Update(ctx context.Context, id uuid.UUID, patch model.TaskPatch) (*model.Task, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter model.TaskFilter) ([]model.Task, error)
}

var _ TaskStore = (*repository.TaskRepository)(nil)

type CreateTaskInput struct {
	Title        string
	Description  string
	DueDate      time.Time
	Priority     model.Priority
	Status       model.Status
	AssignedToID *uuid.UUID
}

type TaskService struct {
	store  TaskStore
	rules  *rules.Engine
	events events.Publisher
	locks  *taskLocks
}

func NewTaskService(store TaskStore, engine *rules.Engine, publisher events.Publisher) *TaskService {
	return &TaskService{store: store, rules: engine, events: publisher, locks: newTaskLocks()}
}

// Create validates and stores a task owned by creatorID, then announces it.
func (s *TaskService) Create(ctx context.Context, creatorID uuid.UUID, in CreateTaskInput) (*model.Task, error) {
	task := &model.Task{
		ID:           uuid.New(),
		Title:        in.Title,
		Description:  in.Description,
		DueDate:      in.DueDate,
		Priority:     in.Priority,
		Status:       in.Status,
		CreatorID:    creatorID,
		AssignedToID: in.AssignedToID,
	}
	if err := s.rules.ValidateCreate(*task); err != nil {
		return nil, err
	}

	// the id is visible to lists as soon as the row commits
	unlock := s.locks.lock(task.ID)
	defer unlock()

	// past this point the mutation completes even if the caller goes away
	if err := s.store.Create(context.WithoutCancel(ctx), task); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	snapshot := snapshotOf(*task)
	s.events.Publish(events.Broadcast(events.TaskCreated, task.ID, snapshot))
	if task.AssignedToID != nil {
		s.events.Publish(events.ToUser(*task.AssignedToID, events.TaskAssigned, task.ID, snapshot))
	}
	return task, nil
}

func (s *TaskService) Get(ctx context.Context, id uuid.UUID) (*model.Task, error) {
	task, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	return task, nil
}

// Update applies a partial change. A new, different assignee additionally
// receives a targeted task:assigned event.
func (s *TaskService) Update(ctx context.Context, id uuid.UUID, patch model.TaskPatch) (*model.Task, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	current, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	if err := s.rules.ValidateUpdate(*current, patch); err != nil {
		return nil, err
	}

	updated, err := s.store.Update(context.WithoutCancel(ctx), id, patch)
	if err != nil {
		return nil, translate(err)
	}

	snapshot := snapshotOf(*updated)
	s.events.Publish(events.Broadcast(events.TaskUpdated, updated.ID, snapshot))
	if assignee, changed := newAssignee(current.AssignedToID, updated.AssignedToID); changed {
		s.events.Publish(events.ToUser(assignee, events.TaskAssigned, updated.ID, snapshot))
	}
	return updated, nil
}

func (s *TaskService) Delete(ctx context.Context, id uuid.UUID) error {
	unlock := s.locks.lock(id)
	defer unlock()

	if err := s.store.Delete(context.WithoutCancel(ctx), id); err != nil {
		return translate(err)
	}
	s.events.Publish(events.Broadcast(events.TaskDeleted, id, events.DeletedPayload{ID: id}))
	return nil
}

func (s *TaskService) List(ctx context.Context, filter model.TaskFilter) ([]model.Task, error) {
	tasks, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// newAssignee reports the assignee to notify: set, and different from before.
func newAssignee(before, after *uuid.UUID) (uuid.UUID, bool) {
	if after == nil {
		return uuid.Nil, false
	}
	if before != nil && *before == *after {
		return uuid.Nil, false
	}
	return *after, true
}

// snapshotOf detaches the event payload from the record returned to the caller.
func snapshotOf(t model.Task) model.Task {
	if t.AssignedToID != nil {
		id := *t.AssignedToID
		t.AssignedToID = &id
	}
	return t
}

func translate(err error) error {
	if errors.Is(err, repository.ErrTaskNotFound) {
		return ErrNotFound
	}
	return err
}

// Package rules holds the task business rules checked before any store mutation.
package rules

import (
	"strings"
	"time"
	"unicode/utf8"

	"taskhub/internal/model"
)

type Engine struct {
	now    func() time.Time
	strict bool
}

type Option func(*Engine)

// WithClock replaces time.Now; tests use it to pin "now".
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithStrictTransitions enforces TODO -> IN_PROGRESS -> REVIEW -> COMPLETED.
func WithStrictTransitions(strict bool) Option {
	return func(e *Engine) { e.strict = strict }
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) StrictTransitions() bool {
	return e.strict
}

// ValidateCreate checks a proposed task. Empty priority and status are
// accepted because the store fills their defaults.
func (e *Engine) ValidateCreate(task model.Task) error {
	if err := validateTitle(task.Title); err != nil {
		return err
	}
	if task.Priority != "" && !task.Priority.IsValid() {
		return violation(ErrInvalidField, "priority", "unknown priority %q", task.Priority)
	}
	if task.Status != "" && !task.Status.IsValid() {
		return violation(ErrInvalidField, "status", "unknown status %q", task.Status)
	}
	if task.DueDate.IsZero() {
		return violation(ErrInvalidField, "dueDate", "due date is required")
	}
	return e.validateDueDate(task.DueDate)
}

// ValidateUpdate checks a patch against the current record. The due date is
// only checked when the patch sets it.
func (e *Engine) ValidateUpdate(current model.Task, patch model.TaskPatch) error {
	if patch.Title != nil {
		if err := validateTitle(*patch.Title); err != nil {
			return err
		}
	}
	if patch.Priority != nil && !patch.Priority.IsValid() {
		return violation(ErrInvalidField, "priority", "unknown priority %q", *patch.Priority)
	}
	if patch.Status != nil {
		if !patch.Status.IsValid() {
			return violation(ErrInvalidField, "status", "unknown status %q", *patch.Status)
		}
		if e.strict && !isAllowedTransition(current.Status, *patch.Status) {
			return violation(ErrInvalidTransition, "status", "%s -> %s is not allowed", current.Status, *patch.Status)
		}
	}
	if patch.DueDate != nil {
		return e.validateDueDate(*patch.DueDate)
	}
	return nil
}

func (e *Engine) validateDueDate(due time.Time) error {
	if !due.After(e.now()) {
		return violation(ErrInvalidDueDate, "dueDate", "due date cannot be in the past")
	}
	return nil
}

func validateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return violation(ErrInvalidField, "title", "title is required")
	}
	if utf8.RuneCountInString(title) > model.TitleMaxLength {
		return violation(ErrInvalidField, "title", "title must be at most %d characters", model.TitleMaxLength)
	}
	return nil
}

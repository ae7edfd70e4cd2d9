package repository

import "errors"

// Common repository errors
var (
	// ErrTaskNotFound is returned when a task id does not exist
	ErrTaskNotFound = errors.New("task not found")

	// ErrEmailTaken is returned when a user is created with an email already in use
	ErrEmailTaken = errors.New("email already registered")
)

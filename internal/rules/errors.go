package rules

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidDueDate    = errors.New("invalid due date")
	ErrInvalidField      = errors.New("invalid field")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Violation is a business rule failure. Kind is one of the sentinels above.
type Violation struct {
	Kind   error
	Field  string
	Reason string
}

func (v *Violation) Error() string {
	if v == nil {
		return ""
	}
	if v.Field == "" {
		return fmt.Sprintf("%s: %s", v.Kind.Error(), v.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", v.Kind.Error(), v.Field, v.Reason)
}

func (v *Violation) Unwrap() error { return v.Kind }

func violation(kind error, field, format string, args ...any) error {
	return &Violation{Kind: kind, Field: field, Reason: fmt.Sprintf(format, args...)}
}

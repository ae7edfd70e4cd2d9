// Package events carries task lifecycle events from the API surface to the
// notification hub without either side depending on the other.
package events

import (
	"github.com/google/uuid"
)

type Kind string

const (
	TaskCreated  Kind = "task:created"
	TaskUpdated  Kind = "task:updated"
	TaskDeleted  Kind = "task:deleted"
	TaskAssigned Kind = "task:assigned"
)

func (k Kind) IsTaskKind() bool {
	switch k {
	case TaskCreated, TaskUpdated, TaskDeleted, TaskAssigned:
		return true
	}
	return false
}

// Event is one outbound notification. An empty UserID means broadcast to
// every subscription; otherwise only the user's group receives it.
type Event struct {
	Kind    Kind      `json:"kind"`
	TaskID  uuid.UUID `json:"task_id"`
	UserID  string    `json:"user_id,omitempty"`
	Payload any       `json:"payload"`
}

func (e Event) Targeted() bool {
	return e.UserID != ""
}

// DeletedPayload is the body of task:deleted.
type DeletedPayload struct {
	ID uuid.UUID `json:"id"`
}

func Broadcast(kind Kind, taskID uuid.UUID, payload any) Event {
	return Event{Kind: kind, TaskID: taskID, Payload: payload}
}

func ToUser(userID uuid.UUID, kind Kind, taskID uuid.UUID, payload any) Event {
	return Event{Kind: kind, TaskID: taskID, UserID: userID.String(), Payload: payload}
}

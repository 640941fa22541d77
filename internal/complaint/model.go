package complaint

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
	StatusClosed     Status = "closed"
)

func ParseStatus(s string) (Status, bool) {
	switch st := Status(s); st {
	case StatusOpen, StatusInProgress, StatusResolved, StatusClosed:
		return st, true
	}
	return "", false
}

// CanTransition allows any move between known statuses except out of closed.
func CanTransition(from, to Status) bool {
	if from == StatusClosed || from == to {
		return false
	}
	_, ok := ParseStatus(string(to))
	return ok
}

type Complaint struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	AppointmentID *uuid.UUID
	Subject       string
	Description   string
	Status        Status
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Reply is one chat message on a complaint. SenderID is nil for
// messages written by the system or by a deleted account.
type Reply struct {
	ID          uuid.UUID
	ComplaintID uuid.UUID
	SenderID    *uuid.UUID
	Message     string
	CreatedAt   time.Time
}

type NewComplaint struct {
	UserID        uuid.UUID
	AppointmentID *uuid.UUID
	Subject       string
	Description   string
}

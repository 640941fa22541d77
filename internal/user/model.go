package user

import (
	"time"

	"github.com/google/uuid"

	"github.com/mwangaza12/meditime/internal/session"
)

type User struct {
	ID              uuid.UUID
	FirstName       string
	LastName        string
	Email           string
	PasswordHash    string
	Role            session.Role
	Specialization  *string
	ConsultationFee *float64
	CreatedAt       time.Time
}

// NewUser is the insert shape. Password is plain text and hashed on write.
type NewUser struct {
	FirstName       string
	LastName        string
	Email           string
	Password        string
	Role            session.Role
	Specialization  *string
	ConsultationFee *float64
}

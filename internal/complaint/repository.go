package complaint

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrComplaintNotFound   = errors.New("complaint not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
)

type Repository interface {
	Create(ctx context.Context, in NewComplaint) (*Complaint, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Complaint, error)
	List(ctx context.Context, userID *uuid.UUID, limit, offset int) ([]Complaint, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Complaint, error)
	ListReplies(ctx context.Context, complaintID uuid.UUID) ([]Reply, error)
	CreateReply(ctx context.Context, complaintID uuid.UUID, senderID *uuid.UUID, message string) (*Reply, error)
	// AppointmentOwner returns the patient id of an appointment.
	AppointmentOwner(ctx context.Context, appointmentID uuid.UUID) (uuid.UUID, error)
}

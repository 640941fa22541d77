package complaint

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mwangaza12/meditime/internal/session"
	"github.com/mwangaza12/meditime/pkg/logging"
)

var (
	ErrForbidden               = errors.New("not allowed for this user")
	ErrInvalidComplaint        = errors.New("subject and description are required")
	ErrEmptyMessage            = errors.New("message must not be empty")
	ErrMessageTooLong          = errors.New("message must be at most 4000 characters")
	ErrComplaintClosed         = errors.New("complaint is closed")
	ErrInvalidStatusTransition = errors.New("invalid complaint status transition")
	ErrStatusConflict          = errors.New("complaint was changed by someone else, reload and retry")
)

const maxMessageLength = 4000

type Service struct {
	repo   Repository
	logger *logging.Logger
	tracer trace.Tracer
}

func NewService(repo Repository, logger *logging.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger.Component("complaint"),
		tracer: otel.Tracer("meditime/complaint"),
	}
}

// CreateRequest is a new complaint filed by the signed-in patient.
type CreateRequest struct {
	AppointmentID *uuid.UUID
	Subject       string
	Description   string
}

func (s *Service) Create(ctx context.Context, actor session.Session, req CreateRequest) (*Complaint, error) {
	ctx, span := s.tracer.Start(ctx, "complaint.create")
	defer span.End()

	if actor.Role != session.RolePatient {
		return nil, ErrForbidden
	}
	userID, err := uuid.Parse(actor.ActorID)
	if err != nil {
		return nil, ErrForbidden
	}

	req.Subject = strings.TrimSpace(req.Subject)
	req.Description = strings.TrimSpace(req.Description)
	if req.Subject == "" || req.Description == "" {
		return nil, ErrInvalidComplaint
	}

	if req.AppointmentID != nil {
		owner, err := s.repo.AppointmentOwner(ctx, *req.AppointmentID)
		if err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				return nil, err
			}
			return nil, fmt.Errorf("load appointment: %w", err)
		}
		if owner != userID {
			return nil, ErrForbidden
		}
	}

	c, err := s.repo.Create(ctx, NewComplaint{
		UserID:        userID,
		AppointmentID: req.AppointmentID,
		Subject:       req.Subject,
		Description:   req.Description,
	})
	if err != nil {
		return nil, fmt.Errorf("create complaint: %w", err)
	}

	s.logger.Info().Str("complaint_id", c.ID.String()).Str("user_id", userID.String()).Msg("complaint filed")
	return c, nil
}

// Get returns a complaint visible to actor.
func (s *Service) Get(ctx context.Context, actor session.Session, id uuid.UUID) (*Complaint, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrComplaintNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get complaint: %w", err)
	}
	if !canAccess(actor, c) {
		return nil, ErrForbidden
	}
	return c, nil
}

func (s *Service) ListAll(ctx context.Context, actor session.Session, limit, offset int) ([]Complaint, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	limit, offset = bounds(limit, offset)
	return s.repo.List(ctx, nil, limit, offset)
}

// ListByUser lists one patient's complaints. Patients may only list their own.
func (s *Service) ListByUser(ctx context.Context, actor session.Session, userID uuid.UUID, limit, offset int) ([]Complaint, error) {
	if !actor.IsAdmin() && !(actor.Role == session.RolePatient && actor.ActorID == userID.String()) {
		return nil, ErrForbidden
	}
	limit, offset = bounds(limit, offset)
	return s.repo.List(ctx, &userID, limit, offset)
}

// ChangeStatus is admin only. The update is guarded on the status that was read.
func (s *Service) ChangeStatus(ctx context.Context, actor session.Session, id uuid.UUID, to Status) (*Complaint, error) {
	ctx, span := s.tracer.Start(ctx, "complaint.change_status")
	defer span.End()
	span.SetAttributes(attribute.String("complaint_id", id.String()), attribute.String("to", string(to)))

	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}

	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrComplaintNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load complaint: %w", err)
	}
	if !CanTransition(c.Status, to) {
		return nil, ErrInvalidStatusTransition
	}

	updated, err := s.repo.UpdateStatus(ctx, id, c.Status, to)
	if err != nil {
		if errors.Is(err, ErrComplaintNotFound) {
			return nil, ErrStatusConflict
		}
		return nil, fmt.Errorf("update complaint status: %w", err)
	}

	s.logger.Info().
		Str("complaint_id", id.String()).
		Str("from", string(c.Status)).
		Str("to", string(to)).
		Msg("complaint status changed")
	return updated, nil
}

// Replies returns the historical thread of a complaint.
func (s *Service) Replies(ctx context.Context, actor session.Session, complaintID uuid.UUID) ([]Reply, error) {
	if _, err := s.Get(ctx, actor, complaintID); err != nil {
		return nil, err
	}
	replies, err := s.repo.ListReplies(ctx, complaintID)
	if err != nil {
		return nil, fmt.Errorf("list replies: %w", err)
	}
	return replies, nil
}

// AddReply persists a message from actor on an open complaint.
func (s *Service) AddReply(ctx context.Context, actor session.Session, complaintID uuid.UUID, message string) (*Reply, error) {
	ctx, span := s.tracer.Start(ctx, "complaint.add_reply")
	defer span.End()

	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrEmptyMessage
	}
	if utf8.RuneCountInString(message) > maxMessageLength {
		return nil, ErrMessageTooLong
	}

	c, err := s.Get(ctx, actor, complaintID)
	if err != nil {
		return nil, err
	}
	if c.Status == StatusClosed {
		return nil, ErrComplaintClosed
	}

	var sender *uuid.UUID
	if id, err := uuid.Parse(actor.ActorID); err == nil {
		sender = &id
	}

	reply, err := s.repo.CreateReply(ctx, complaintID, sender, message)
	if err != nil {
		return nil, err
	}
	return reply, nil
}

// CanJoin reports whether actor may join the live room of a complaint.
func (s *Service) CanJoin(ctx context.Context, actor session.Session, complaintID uuid.UUID) error {
	_, err := s.Get(ctx, actor, complaintID)
	return err
}

// canAccess lets staff see every complaint and patients only their own.
func canAccess(actor session.Session, c *Complaint) bool {
	switch actor.Role {
	case session.RoleAdmin, session.RoleDoctor:
		return true
	case session.RolePatient:
		return c.UserID.String() == actor.ActorID
	}
	return false
}

func bounds(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mwangaza12/meditime/internal/config"
	"github.com/mwangaza12/meditime/internal/metrics"
	redisclient "github.com/mwangaza12/meditime/internal/redis"
	"github.com/mwangaza12/meditime/internal/session"
	"github.com/mwangaza12/meditime/pkg/logging"
)

const (
	EventAppointmentCreated       = "APPOINTMENT_CREATED"
	EventAppointmentStatusChanged = "APPOINTMENT_STATUS_CHANGED"
	EventAppointmentRescheduled   = "APPOINTMENT_RESCHEDULED"
	EventAppointmentPaid          = "APPOINTMENT_PAID"
	EventAppointmentLapsed        = "APPOINTMENT_LAPSED"
)

var (
	ErrSlotAlreadyBooked       = errors.New("slot already has an active appointment")
	ErrSlotBeingBooked         = errors.New("slot is currently being booked, please retry")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrStatusConflict          = errors.New("appointment was changed by someone else, reload and retry")
	ErrAppointmentCancelled    = errors.New("appointment is cancelled")
	ErrPaymentNotAllowed       = errors.New("payment is only possible for unpaid pending appointments with an amount")
	ErrInvalidDate             = errors.New("appointment date must be today or later")
	ErrInvalidTimeSlot         = errors.New("time slot must be HH:MM")
	ErrInvalidDuration         = errors.New("duration must be between 15 and 240 minutes")
	ErrForbidden               = errors.New("not allowed for this user")
)

var timeSlotPattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

type Service struct {
	repo    Repository
	locker  redisclient.Locker
	cfg     config.Config
	logger  *logging.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
	now     func() time.Time
}

func NewService(repo Repository, locker redisclient.Locker, cfg config.Config, logger *logging.Logger, m *metrics.Metrics) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		repo:    repo,
		locker:  locker,
		cfg:     cfg,
		logger:  logger.Component("appointment"),
		metrics: m,
		tracer:  otel.Tracer("meditime/appointment"),
		now:     time.Now,
	}
}

// CreateRequest is a booking. PatientID is ignored for patients, who always
// book for themselves.
type CreateRequest struct {
	PatientID       uuid.UUID
	DoctorID        uuid.UUID
	Date            time.Time
	TimeSlot        string
	DurationMinutes int
}

// Page bounds a listing.
type Page struct {
	Limit  int
	Offset int
}

func (p Page) normalize() Page {
	if p.Limit <= 0 {
		p.Limit = 20 // default
	}
	if p.Limit > 100 {
		p.Limit = 100 // max
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// CreateAppointment books a doctor's slot for a patient.
// It uses a distributed lock so that concurrent requests for the same slot
// cannot both create an appointment.
func (s *Service) CreateAppointment(ctx context.Context, actor session.Session, req CreateRequest) (*Appointment, error) {
	ctx, span := s.tracer.Start(ctx, "appointment.create")
	defer span.End()

	switch actor.Role {
	case session.RolePatient:
		id, err := uuid.Parse(actor.ActorID)
		if err != nil {
			return nil, ErrForbidden
		}
		req.PatientID = id
	case session.RoleAdmin:
	default:
		return nil, ErrForbidden
	}

	if req.DurationMinutes == 0 {
		req.DurationMinutes = s.cfg.DefaultDuration
	}
	if err := s.validateSlot(req.Date, req.TimeSlot); err != nil {
		return nil, err
	}
	if req.DurationMinutes < 15 || req.DurationMinutes > 240 {
		return nil, ErrInvalidDuration
	}

	if _, err := s.repo.GetPatientByID(ctx, req.PatientID); err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	doctor, err := s.repo.GetDoctorByID(ctx, req.DoctorID)
	if err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}

	slot := redisclient.SlotKey{DoctorID: req.DoctorID, Date: req.Date.Format(DateLayout), TimeSlot: req.TimeSlot}
	span.SetAttributes(attribute.String("slot", slot.String()))

	var created *Appointment

	err = s.locker.WithSlotLock(ctx, slot, func(lockCtx context.Context) error {
		// Inside the critical section re-check for an active appointment in this slot
		if err := s.ensureSlotFree(lockCtx, req.DoctorID, req.Date, req.TimeSlot, uuid.Nil); err != nil {
			return err
		}

		appt, err := s.repo.CreateAppointment(lockCtx, NewAppointment{
			UserID:          req.PatientID,
			DoctorID:        req.DoctorID,
			AppointmentDate: req.Date,
			TimeSlot:        req.TimeSlot,
			DurationMinutes: req.DurationMinutes,
			TotalAmount:     TotalFor(*doctor, req.DurationMinutes),
		})
		if err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}

		created = appt

		s.logEvent(lockCtx, appt.ID, EventAppointmentCreated, map[string]any{
			"doctor_id":  req.DoctorID.String(),
			"patient_id": req.PatientID.String(),
			"date":       slot.Date,
			"time_slot":  req.TimeSlot,
			"actor_id":   actor.ActorID,
		})

		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		return nil, err
	}

	return created, nil
}

// ChangeStatus moves an appointment to a new status.
// Patients may only cancel their own appointments; doctors may confirm or
// cancel their own; admins may do either on any appointment.
func (s *Service) ChangeStatus(ctx context.Context, actor session.Session, id uuid.UUID, to AppointmentStatus) (*Appointment, error) {
	ctx, span := s.tracer.Start(ctx, "appointment.change_status")
	defer span.End()
	span.SetAttributes(attribute.String("appointment_id", id.String()), attribute.String("to", string(to)))

	updated, err := s.changeStatus(ctx, actor, id, to)
	if err != nil {
		s.metrics.ObserveTransition(string(to), "rejected")
		return nil, err
	}
	s.metrics.ObserveTransition(string(to), "ok")
	return updated, nil
}

func (s *Service) changeStatus(ctx context.Context, actor session.Session, id uuid.UUID, to AppointmentStatus) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	if !canAccess(actor, appt) {
		return nil, ErrForbidden
	}
	if actor.Role == session.RolePatient && to != StatusCancelled {
		return nil, ErrForbidden
	}

	if !CanTransition(appt.Status, to) {
		return nil, ErrInvalidStatusTransition
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, appt.Status, to)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// The guard on the old status did not match; someone else won.
			return nil, ErrStatusConflict
		}
		return nil, fmt.Errorf("update appointment status: %w", err)
	}

	s.logEvent(ctx, updated.ID, EventAppointmentStatusChanged, map[string]any{
		"from":     appt.Status,
		"to":       to,
		"actor_id": actor.ActorID,
		"role":     actor.Role,
	})

	return updated, nil
}

// Reschedule moves an appointment to another date and slot with the same doctor.
func (s *Service) Reschedule(ctx context.Context, actor session.Session, id uuid.UUID, date time.Time, timeSlot string) (*Appointment, error) {
	ctx, span := s.tracer.Start(ctx, "appointment.reschedule")
	defer span.End()

	if err := s.validateSlot(date, timeSlot); err != nil {
		return nil, err
	}

	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if !canAccess(actor, appt) {
		return nil, ErrForbidden
	}
	if appt.Status == StatusCancelled {
		return nil, ErrAppointmentCancelled
	}

	slot := redisclient.SlotKey{DoctorID: appt.DoctorID, Date: date.Format(DateLayout), TimeSlot: timeSlot}

	var updated *Appointment
	err = s.locker.WithSlotLock(ctx, slot, func(lockCtx context.Context) error {
		if err := s.ensureSlotFree(lockCtx, appt.DoctorID, date, timeSlot, appt.ID); err != nil {
			return err
		}
		u, err := s.repo.RescheduleAppointment(lockCtx, appt.ID, date, timeSlot)
		if err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				return ErrAppointmentCancelled
			}
			return fmt.Errorf("reschedule appointment: %w", err)
		}
		updated = u

		s.logEvent(lockCtx, appt.ID, EventAppointmentRescheduled, map[string]any{
			"from_date": appt.AppointmentDate.Format(DateLayout),
			"from_slot": appt.TimeSlot,
			"to_date":   slot.Date,
			"to_slot":   timeSlot,
			"actor_id":  actor.ActorID,
		})
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		return nil, err
	}

	return updated, nil
}

// Pay captures payment for a pending appointment with a positive amount.
func (s *Service) Pay(ctx context.Context, actor session.Session, id uuid.UUID) (*Appointment, error) {
	ctx, span := s.tracer.Start(ctx, "appointment.pay")
	defer span.End()

	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if actor.Role == session.RoleDoctor || !canAccess(actor, appt) {
		return nil, ErrForbidden
	}
	if !CanCapturePayment(*appt) {
		return nil, ErrPaymentNotAllowed
	}

	paid, err := s.repo.MarkPaid(ctx, appt.ID)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrPaymentNotAllowed
		}
		return nil, fmt.Errorf("mark paid: %w", err)
	}

	s.logEvent(ctx, paid.ID, EventAppointmentPaid, map[string]any{
		"amount":   *appt.TotalAmount,
		"actor_id": actor.ActorID,
	})

	return paid, nil
}

// CancelLapsedAppointments is intended to be called by the worker periodically.
// Pending, unpaid appointments whose date has passed are cancelled.
func (s *Service) CancelLapsedAppointments(ctx context.Context) (int, error) {
	today := truncateDay(s.now())
	candidates, err := s.repo.FindLapsedPending(ctx, today)
	if err != nil {
		return 0, fmt.Errorf("find lapsed pending appointments: %w", err)
	}

	cancelled := 0
	for _, appt := range candidates {
		_, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, StatusPending, StatusCancelled)
		if err != nil {
			if !errors.Is(err, ErrAppointmentNotFound) {
				s.logger.Error().Err(err).Str("appointment_id", appt.ID.String()).Msg("failed to cancel lapsed appointment")
			}
			continue
		}
		cancelled++
		s.logEvent(ctx, appt.ID, EventAppointmentLapsed, map[string]any{
			"reason": "worker",
			"date":   appt.AppointmentDate.Format(DateLayout),
		})
	}

	s.metrics.ObserveLapsed(cancelled)
	return cancelled, nil
}

// GetAppointment retrieves a fully hydrated appointment by ID
func (s *Service) GetAppointment(ctx context.Context, actor session.Session, id uuid.UUID) (*AppointmentDetail, error) {
	detail, err := s.repo.GetAppointmentDetail(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	if !canAccess(actor, &detail.Appointment) {
		return nil, ErrForbidden
	}
	return detail, nil
}

// ListAll is the admin listing.
func (s *Service) ListAll(ctx context.Context, actor session.Session, page Page) ([]AppointmentDetail, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	return s.list(ctx, ListFilter{}, page)
}

// ListForPatient lists the signed-in patient's appointments.
func (s *Service) ListForPatient(ctx context.Context, actor session.Session, page Page) ([]AppointmentDetail, error) {
	if actor.Role != session.RolePatient {
		return nil, ErrForbidden
	}
	id, err := uuid.Parse(actor.ActorID)
	if err != nil {
		return nil, ErrForbidden
	}
	return s.list(ctx, ListFilter{PatientID: &id}, page)
}

// ListForDoctor lists the signed-in doctor's appointments.
func (s *Service) ListForDoctor(ctx context.Context, actor session.Session, page Page) ([]AppointmentDetail, error) {
	if actor.Role != session.RoleDoctor {
		return nil, ErrForbidden
	}
	id, err := uuid.Parse(actor.ActorID)
	if err != nil {
		return nil, ErrForbidden
	}
	return s.list(ctx, ListFilter{DoctorID: &id}, page)
}

func (s *Service) list(ctx context.Context, filter ListFilter, page Page) ([]AppointmentDetail, error) {
	page = page.normalize()
	filter.Limit = page.Limit
	filter.Offset = page.Offset

	appointments, err := s.repo.ListAppointments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return appointments, nil
}

func (s *Service) validateSlot(date time.Time, timeSlot string) error {
	if date.IsZero() || truncateDay(date).Before(truncateDay(s.now())) {
		return ErrInvalidDate
	}
	if !timeSlotPattern.MatchString(timeSlot) {
		return ErrInvalidTimeSlot
	}
	return nil
}

// ensureSlotFree fails when another active appointment holds the slot.
// self is excluded so rescheduling onto the same slot is a no-op.
func (s *Service) ensureSlotFree(ctx context.Context, doctorID uuid.UUID, date time.Time, timeSlot string, self uuid.UUID) error {
	existing, err := s.repo.GetActiveAppointmentForSlot(ctx, doctorID, date, timeSlot)
	if err != nil && !errors.Is(err, ErrAppointmentNotFound) {
		return fmt.Errorf("check slot: %w", err)
	}
	if existing != nil && existing.ID != self {
		return ErrSlotAlreadyBooked
	}
	return nil
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Msg("failed to marshal event payload")
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.logger.Error().Err(err).
			Str("event", eventType).
			Str("appointment_id", appointmentID.String()).
			Msg("failed to insert event log")
	}
}

// canAccess reports whether actor may see or act on a.
func canAccess(actor session.Session, a *Appointment) bool {
	switch actor.Role {
	case session.RoleAdmin:
		return true
	case session.RoleDoctor:
		return a.DoctorID.String() == actor.ActorID
	case session.RolePatient:
		return a.UserID.String() == actor.ActorID
	}
	return false
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

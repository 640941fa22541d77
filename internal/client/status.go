package client

import (
	"context"
	"errors"
	"time"

	"github.com/mwangaza12/meditime/pkg/logging"
)

var (
	ErrNotCancellable = errors.New("appointment cannot be cancelled")
	ErrNotConfirmable = errors.New("appointment cannot be confirmed")
	ErrNotPayable     = errors.New("appointment is not awaiting payment")
)

// StatusAPI is the write side of the API the handler needs.
type StatusAPI interface {
	UpdateStatus(ctx context.Context, id string, status Status) (Appointment, error)
	Reschedule(ctx context.Context, id string, date time.Time, timeSlot string) (Appointment, error)
	Pay(ctx context.Context, id string) (Appointment, error)
}

// Confirmer asks the user a yes/no question and blocks for the answer.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) bool
}

// Notifier shows transient feedback.
type Notifier interface {
	Success(message string)
	Failure(message string)
}

// StatusHandler runs appointment mutations. It never changes local state
// optimistically: success invalidates the cached listings, failure leaves
// them alone.
type StatusHandler struct {
	api       StatusAPI
	cache     *Cache
	confirmer Confirmer
	notifier  Notifier
	logger    *logging.Logger
}

func NewStatusHandler(api StatusAPI, cache *Cache, confirmer Confirmer, notifier Notifier, logger *logging.Logger) *StatusHandler {
	return &StatusHandler{
		api:       api,
		cache:     cache,
		confirmer: confirmer,
		notifier:  notifier,
		logger:    logger.Component("status_handler"),
	}
}

// ChangeStatus requests target for appointment id.
func (h *StatusHandler) ChangeStatus(ctx context.Context, id string, target Status) error {
	_, err := h.api.UpdateStatus(ctx, id, target)
	return h.finish(err, id, "Appointment "+string(target))
}

// Cancel asks for confirmation first and does nothing when declined.
func (h *StatusHandler) Cancel(ctx context.Context, a Appointment) error {
	if !CanCancel(a) {
		return ErrNotCancellable
	}
	if h.confirmer != nil && !h.confirmer.Confirm(ctx, "Cancel this appointment?") {
		return nil
	}
	return h.ChangeStatus(ctx, a.ID, StatusCancelled)
}

// Confirm is the doctor's accept action.
func (h *StatusHandler) Confirm(ctx context.Context, a Appointment) error {
	if !CanConfirm(a) {
		return ErrNotConfirmable
	}
	return h.ChangeStatus(ctx, a.ID, StatusConfirmed)
}

func (h *StatusHandler) Reschedule(ctx context.Context, id string, date time.Time, timeSlot string) error {
	_, err := h.api.Reschedule(ctx, id, date, timeSlot)
	return h.finish(err, id, "Appointment rescheduled")
}

// Pay captures payment when the pay control is offered.
func (h *StatusHandler) Pay(ctx context.Context, a Appointment) error {
	if Payment(a) != PaymentOffered {
		return ErrNotPayable
	}
	_, err := h.api.Pay(ctx, a.ID)
	return h.finish(err, a.ID, "Payment received")
}

func (h *StatusHandler) finish(err error, id, success string) error {
	if err != nil {
		h.logger.Warn().Err(err).Str("appointment_id", id).Msg("appointment update failed")
		h.notify(false, UserMessage(err))
		return err
	}
	if h.cache != nil {
		h.cache.Invalidate(TagAppointments)
	}
	h.notify(true, success)
	return nil
}

func (h *StatusHandler) notify(ok bool, message string) {
	if h.notifier == nil {
		return
	}
	if ok {
		h.notifier.Success(message)
	} else {
		h.notifier.Failure(message)
	}
}

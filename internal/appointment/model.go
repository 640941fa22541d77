package appointment

import (
	"math"
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCancelled AppointmentStatus = "cancelled"
)

func ParseStatus(s string) (AppointmentStatus, bool) {
	switch st := AppointmentStatus(s); st {
	case StatusPending, StatusConfirmed, StatusCancelled:
		return st, true
	}
	return "", false
}

// DateLayout is the wire and lock-key format of an appointment date.
const DateLayout = "2006-01-02"

type Patient struct {
	ID        uuid.UUID
	FirstName string
	LastName  string
	Email     string
}

type Doctor struct {
	ID              uuid.UUID
	FirstName       string
	LastName        string
	Specialization  *string
	ConsultationFee *float64 // per hour
}

type Appointment struct {
	ID              uuid.UUID
	UserID          uuid.UUID // patient
	DoctorID        uuid.UUID
	AppointmentDate time.Time
	TimeSlot        string // HH:MM
	DurationMinutes int
	Status          AppointmentStatus
	TotalAmount     *float64
	IsPaid          bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Party is the display side of a joined user row. Fields are nil when the
// row is missing.
type Party struct {
	FirstName      *string
	LastName       *string
	Specialization *string
}

type AppointmentDetail struct {
	Appointment
	Patient Party
	Doctor  Party
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

// NewAppointment is the insert shape.
type NewAppointment struct {
	UserID          uuid.UUID
	DoctorID        uuid.UUID
	AppointmentDate time.Time
	TimeSlot        string
	DurationMinutes int
	TotalAmount     *float64
}

// ListFilter scopes a listing. Nil ids mean unscoped.
type ListFilter struct {
	PatientID *uuid.UUID
	DoctorID  *uuid.UUID
	Limit     int
	Offset    int
}

// CanTransition reports whether from -> to is a legal status change.
// Cancellation is allowed only from pending or confirmed; confirmation only
// from pending.
func CanTransition(from, to AppointmentStatus) bool {
	switch to {
	case StatusConfirmed:
		return from == StatusPending
	case StatusCancelled:
		return from == StatusPending || from == StatusConfirmed
	}
	return false
}

// CanCapturePayment reports whether a payment may be taken for a.
func CanCapturePayment(a Appointment) bool {
	return a.Status == StatusPending &&
		!a.IsPaid &&
		a.TotalAmount != nil &&
		*a.TotalAmount > 0
}

// TotalFor prices a booking from the doctor's hourly fee.
func TotalFor(d Doctor, durationMinutes int) *float64 {
	if d.ConsultationFee == nil || durationMinutes <= 0 {
		return nil
	}
	total := math.Round(*d.ConsultationFee*float64(durationMinutes)/60*100) / 100
	return &total
}

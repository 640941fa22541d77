package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

const dateLayout = "2006-01-02"

var (
	ErrMissingID     = errors.New("missing id")
	ErrUnknownStatus = errors.New("unknown status")
	ErrBadDate       = errors.New("unparseable date")
)

// Name is a display name. Missing parts are empty strings.
type Name struct {
	First string
	Last  string
}

func (n Name) Full() string {
	return strings.TrimSpace(n.First + " " + n.Last)
}

// Appointment is the client-side entity, built only by ParseAppointment.
type Appointment struct {
	ID                   string
	PatientID            string
	DoctorID             string
	Date                 time.Time
	TimeSlot             string
	DurationMinutes      int
	Status               Status
	TotalAmount          *float64
	IsPaid               bool
	Patient              Name
	Doctor               Name
	DoctorSpecialization string
}

type Reply struct {
	ID          string
	ComplaintID string
	SenderID    *string
	Message     string
	CreatedAt   time.Time
}

type Complaint struct {
	ID            string
	UserID        string
	AppointmentID *string
	Subject       string
	Description   string
	Status        string
	CreatedAt     time.Time
}

type rawParty struct {
	FirstName      *string `json:"firstName"`
	LastName       *string `json:"lastName"`
	Specialization *string `json:"specialization"`
}

type rawAppointment struct {
	ID              string    `json:"id"`
	UserID          string    `json:"userId"`
	DoctorID        string    `json:"doctorId"`
	AppointmentDate string    `json:"appointmentDate"`
	TimeSlot        string    `json:"timeSlot"`
	DurationMinutes int       `json:"durationMinutes"`
	Status          *string   `json:"status"`
	TotalAmount     *float64  `json:"totalAmount"`
	IsPaid          bool      `json:"isPaid"`
	User            *rawParty `json:"user"`
	Doctor          *rawParty `json:"doctor"`
}

type rawReply struct {
	ID          string  `json:"id"`
	ComplaintID string  `json:"complaintId"`
	SenderID    *string `json:"senderId"`
	Message     string  `json:"message"`
	CreatedAt   string  `json:"createdAt"`
}

type rawComplaint struct {
	ID            string  `json:"id"`
	UserID        string  `json:"userId"`
	AppointmentID *string `json:"appointmentId"`
	Subject       string  `json:"subject"`
	Description   string  `json:"description"`
	Status        string  `json:"status"`
	CreatedAt     string  `json:"createdAt"`
}

// ParseAppointment converts one wire record. Missing names become "" and a
// missing or blank status becomes pending; a missing id, an unknown status
// or an unparseable date rejects the record.
func ParseAppointment(data []byte) (Appointment, error) {
	var raw rawAppointment
	if err := json.Unmarshal(data, &raw); err != nil {
		return Appointment{}, fmt.Errorf("decode appointment: %w", err)
	}

	if strings.TrimSpace(raw.ID) == "" {
		return Appointment{}, ErrMissingID
	}

	status := StatusPending
	if raw.Status != nil && strings.TrimSpace(*raw.Status) != "" {
		switch s := Status(*raw.Status); s {
		case StatusPending, StatusConfirmed, StatusCancelled:
			status = s
		default:
			return Appointment{}, fmt.Errorf("appointment %s: %w %q", raw.ID, ErrUnknownStatus, *raw.Status)
		}
	}

	date, err := parseDate(raw.AppointmentDate)
	if err != nil {
		return Appointment{}, fmt.Errorf("appointment %s: %w", raw.ID, err)
	}

	a := Appointment{
		ID:              raw.ID,
		PatientID:       raw.UserID,
		DoctorID:        raw.DoctorID,
		Date:            date,
		TimeSlot:        raw.TimeSlot,
		DurationMinutes: raw.DurationMinutes,
		Status:          status,
		TotalAmount:     raw.TotalAmount,
		IsPaid:          raw.IsPaid,
	}
	if raw.User != nil {
		a.Patient = Name{First: deref(raw.User.FirstName), Last: deref(raw.User.LastName)}
	}
	if raw.Doctor != nil {
		a.Doctor = Name{First: deref(raw.Doctor.FirstName), Last: deref(raw.Doctor.LastName)}
		a.DoctorSpecialization = deref(raw.Doctor.Specialization)
	}
	return a, nil
}

// ParseAppointments decodes a list body. Invalid records are dropped and
// reported together in rejected; err is set only when the body itself is
// not a JSON array.
func ParseAppointments(data []byte) (items []Appointment, rejected error, err error) {
	items, _, rejected, err = parseAppointmentList(data)
	return items, rejected, err
}

// parseAppointmentList also reports how many records were on the wire,
// dropped ones included.
func parseAppointmentList(data []byte) (items []Appointment, received int, rejected error, err error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, 0, nil, fmt.Errorf("decode appointment list: %w", err)
	}

	items = make([]Appointment, 0, len(raws))
	var errs []error
	for i, raw := range raws {
		a, err := ParseAppointment(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("record %d: %w", i, err))
			continue
		}
		items = append(items, a)
	}
	return items, len(raws), errors.Join(errs...), nil
}

// ParseReply converts one wire reply. Id and complaint id are required.
func ParseReply(data []byte) (Reply, error) {
	var raw rawReply
	if err := json.Unmarshal(data, &raw); err != nil {
		return Reply{}, fmt.Errorf("decode reply: %w", err)
	}
	if raw.ID == "" {
		return Reply{}, ErrMissingID
	}
	if raw.ComplaintID == "" {
		return Reply{}, fmt.Errorf("reply %s: missing complaint id", raw.ID)
	}

	created, err := parseTimestamp(raw.CreatedAt)
	if err != nil {
		return Reply{}, fmt.Errorf("reply %s: %w", raw.ID, err)
	}

	var sender *string
	if raw.SenderID != nil && *raw.SenderID != "" {
		s := *raw.SenderID
		sender = &s
	}

	return Reply{
		ID:          raw.ID,
		ComplaintID: raw.ComplaintID,
		SenderID:    sender,
		Message:     raw.Message,
		CreatedAt:   created,
	}, nil
}

// ParseReplies decodes a reply list, dropping invalid records like
// ParseAppointments does.
func ParseReplies(data []byte) (items []Reply, rejected error, err error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, nil, fmt.Errorf("decode reply list: %w", err)
	}

	items = make([]Reply, 0, len(raws))
	var errs []error
	for i, raw := range raws {
		r, err := ParseReply(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("record %d: %w", i, err))
			continue
		}
		items = append(items, r)
	}
	return items, errors.Join(errs...), nil
}

func ParseComplaint(data []byte) (Complaint, error) {
	var raw rawComplaint
	if err := json.Unmarshal(data, &raw); err != nil {
		return Complaint{}, fmt.Errorf("decode complaint: %w", err)
	}
	if raw.ID == "" {
		return Complaint{}, ErrMissingID
	}
	created, err := parseTimestamp(raw.CreatedAt)
	if err != nil {
		return Complaint{}, fmt.Errorf("complaint %s: %w", raw.ID, err)
	}
	return Complaint{
		ID:            raw.ID,
		UserID:        raw.UserID,
		AppointmentID: raw.AppointmentID,
		Subject:       raw.Subject,
		Description:   raw.Description,
		Status:        raw.Status,
		CreatedAt:     created,
	}, nil
}

func ParseComplaints(data []byte) (items []Complaint, rejected error, err error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, nil, fmt.Errorf("decode complaint list: %w", err)
	}

	items = make([]Complaint, 0, len(raws))
	var errs []error
	for i, raw := range raws {
		c, err := ParseComplaint(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("record %d: %w", i, err))
			continue
		}
		items = append(items, c)
	}
	return items, errors.Join(errs...), nil
}

// wireReply is the outbound shape of a reply, used for channel frames.
func wireReply(r Reply) rawReply {
	out := rawReply{
		ID:          r.ID,
		ComplaintID: r.ComplaintID,
		SenderID:    r.SenderID,
		Message:     r.Message,
	}
	if !r.CreatedAt.IsZero() {
		out.CreatedAt = r.CreatedAt.Format(time.RFC3339Nano)
	}
	return out
}

// parseDate accepts YYYY-MM-DD or a full RFC 3339 timestamp.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		y, m, d := t.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}
	return time.Time{}, fmt.Errorf("%w %q", ErrBadDate, s)
}

// parseTimestamp allows an absent timestamp.
func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w %q", ErrBadDate, s)
	}
	return t, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// listPageSize is the largest page the server hands out.
const listPageSize = 100

type listOptions struct {
	limit  int
	offset int
	all    bool
}

func (o listOptions) query() string {
	v := url.Values{}
	if o.limit > 0 {
		v.Set("limit", strconv.Itoa(o.limit))
	}
	if o.offset > 0 {
		v.Set("offset", strconv.Itoa(o.offset))
	}
	if len(v) == 0 {
		return ""
	}
	return "?" + v.Encode()
}

// ListOption bounds a listing request.
type ListOption func(*listOptions)

func WithLimit(n int) ListOption  { return func(o *listOptions) { o.limit = n } }
func WithOffset(n int) ListOption { return func(o *listOptions) { o.offset = n } }

// AllPages follows the listing page by page until the server runs out,
// starting at the WithOffset offset. Any WithLimit is ignored.
func AllPages() ListOption { return func(o *listOptions) { o.all = true } }

func (a *API) listAppointments(ctx context.Context, path string, opts []ListOption) ([]Appointment, error) {
	var o listOptions
	for _, opt := range opts {
		opt(&o)
	}
	if !o.all {
		items, _, err := a.listAppointmentPage(ctx, path, o)
		return items, err
	}

	page := listOptions{limit: listPageSize, offset: o.offset}
	all := make([]Appointment, 0)
	for {
		items, received, err := a.listAppointmentPage(ctx, path, page)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
		if received < listPageSize {
			return all, nil
		}
		page.offset += received
	}
}

func (a *API) listAppointmentPage(ctx context.Context, path string, o listOptions) ([]Appointment, int, error) {
	data, err := a.send(ctx, http.MethodGet, path+o.query(), nil)
	if err != nil {
		return nil, 0, err
	}
	items, received, rejected, err := parseAppointmentList(data)
	if err != nil {
		return nil, 0, err
	}
	if rejected != nil {
		a.logger.Warn().Err(rejected).Str("path", path).Msg("dropped malformed appointments")
	}
	return items, received, nil
}

// ListAppointments is the admin listing.
func (a *API) ListAppointments(ctx context.Context, opts ...ListOption) ([]Appointment, error) {
	return a.listAppointments(ctx, "appointments", opts)
}

// ListDoctorAppointments lists the signed-in doctor's appointments.
func (a *API) ListDoctorAppointments(ctx context.Context, opts ...ListOption) ([]Appointment, error) {
	return a.listAppointments(ctx, "appointments/doctor", opts)
}

// ListPatientAppointments lists the signed-in patient's appointments.
func (a *API) ListPatientAppointments(ctx context.Context, opts ...ListOption) ([]Appointment, error) {
	return a.listAppointments(ctx, "appointments/user", opts)
}

func (a *API) GetAppointment(ctx context.Context, id string) (Appointment, error) {
	data, err := a.send(ctx, http.MethodGet, "appointments/"+url.PathEscape(id), nil)
	if err != nil {
		return Appointment{}, err
	}
	return ParseAppointment(data)
}

// NewBooking is a booking request. PatientID is only honored for admins.
type NewBooking struct {
	PatientID       string
	DoctorID        string
	Date            time.Time
	TimeSlot        string
	DurationMinutes int
}

func (a *API) CreateAppointment(ctx context.Context, b NewBooking) (Appointment, error) {
	body := map[string]any{
		"doctorId":        b.DoctorID,
		"appointmentDate": b.Date.Format(dateLayout),
		"timeSlot":        b.TimeSlot,
	}
	if b.PatientID != "" {
		body["userId"] = b.PatientID
	}
	if b.DurationMinutes > 0 {
		body["durationMinutes"] = b.DurationMinutes
	}
	data, err := a.send(ctx, http.MethodPost, "appointments", body)
	if err != nil {
		return Appointment{}, err
	}
	return ParseAppointment(data)
}

// UpdateStatus issues the partial status update for one appointment.
func (a *API) UpdateStatus(ctx context.Context, id string, status Status) (Appointment, error) {
	data, err := a.send(ctx, http.MethodPatch, "appointments/"+url.PathEscape(id)+"/status", map[string]string{"status": string(status)})
	if err != nil {
		return Appointment{}, err
	}
	return ParseAppointment(data)
}

func (a *API) Reschedule(ctx context.Context, id string, date time.Time, timeSlot string) (Appointment, error) {
	data, err := a.send(ctx, http.MethodPatch, "appointments/"+url.PathEscape(id)+"/reschedule", map[string]string{
		"appointmentDate": date.Format(dateLayout),
		"timeSlot":        timeSlot,
	})
	if err != nil {
		return Appointment{}, err
	}
	return ParseAppointment(data)
}

func (a *API) Pay(ctx context.Context, id string) (Appointment, error) {
	data, err := a.send(ctx, http.MethodPost, "appointments/"+url.PathEscape(id)+"/payment", nil)
	if err != nil {
		return Appointment{}, err
	}
	return ParseAppointment(data)
}

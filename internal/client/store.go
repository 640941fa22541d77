package client

import (
	"context"
	"sort"
	"sync"

	"github.com/mwangaza12/meditime/internal/session"
	"github.com/mwangaza12/meditime/pkg/logging"
)

// AppointmentLister is the read side of the API the store needs.
type AppointmentLister interface {
	ListAppointments(ctx context.Context, opts ...ListOption) ([]Appointment, error)
	ListDoctorAppointments(ctx context.Context, opts ...ListOption) ([]Appointment, error)
	ListPatientAppointments(ctx context.Context, opts ...ListOption) ([]Appointment, error)
}

type ViewState int

const (
	ViewLoading ViewState = iota
	ViewError
	ViewEmpty
	ViewReady
	// ViewIdle means nothing was fetched because there is no signed-in actor.
	ViewIdle
)

func (s ViewState) String() string {
	switch s {
	case ViewLoading:
		return "loading"
	case ViewError:
		return "error"
	case ViewEmpty:
		return "empty"
	case ViewReady:
		return "ready"
	case ViewIdle:
		return "idle"
	}
	return "unknown"
}

// View is what a screen renders. Err is set only in ViewError.
type View struct {
	State        ViewState
	Appointments []Appointment
	Err          error
}

// AppointmentStore selects exactly one of the three listings for the
// session's role. The other two are skipped queries. The active listing is
// fetched in full, page by page.
type AppointmentStore struct {
	all       *Query[[]Appointment]
	byDoctor  *Query[[]Appointment]
	byPatient *Query[[]Appointment]
	logger    *logging.Logger

	mu   sync.Mutex
	last View
}

func NewAppointmentStore(sess session.Session, api AppointmentLister, cache *Cache, logger *logging.Logger) *AppointmentStore {
	s := &AppointmentStore{
		all:       SkippedQuery[[]Appointment](),
		byDoctor:  SkippedQuery[[]Appointment](),
		byPatient: SkippedQuery[[]Appointment](),
		logger:    logger.Component("appointment_store"),
		last:      View{State: ViewLoading},
	}
	tags := []string{TagAppointments}

	switch {
	case sess.ActorID == "":
		// No identity: every query stays skipped.
	case sess.Role == session.RoleAdmin:
		s.all = NewQuery(cache, "appointments:all", tags, func(ctx context.Context) ([]Appointment, error) {
			return api.ListAppointments(ctx, AllPages())
		})
	case sess.Role == session.RoleDoctor:
		s.byDoctor = NewQuery(cache, "appointments:doctor:"+sess.ActorID, tags, func(ctx context.Context) ([]Appointment, error) {
			return api.ListDoctorAppointments(ctx, AllPages())
		})
	case sess.Role == session.RolePatient:
		s.byPatient = NewQuery(cache, "appointments:user:"+sess.ActorID, tags, func(ctx context.Context) ([]Appointment, error) {
			return api.ListPatientAppointments(ctx, AllPages())
		})
	}
	return s
}

// active returns the one query that is not skipped, or nil.
func (s *AppointmentStore) active() *Query[[]Appointment] {
	for _, q := range []*Query[[]Appointment]{s.all, s.byDoctor, s.byPatient} {
		if !q.Skipped() {
			return q
		}
	}
	return nil
}

// Load runs the active query and records the resulting view.
func (s *AppointmentStore) Load(ctx context.Context) View {
	var v View

	q := s.active()
	if q == nil {
		v = View{State: ViewIdle}
	} else {
		res := q.Run(ctx)
		switch {
		case res.State == QueryError:
			s.logger.Warn().Err(res.Err).Str("query", q.Key()).Msg("appointment fetch failed")
			v = View{State: ViewError, Err: res.Err}
		case len(res.Data) == 0:
			v = View{State: ViewEmpty, Appointments: []Appointment{}}
		default:
			v = View{State: ViewReady, Appointments: res.Data}
		}
	}

	s.mu.Lock()
	s.last = v
	s.mu.Unlock()
	return v
}

// Current returns the last loaded view, ViewLoading before the first Load.
func (s *AppointmentStore) Current() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Visible drops cancelled appointments.
func Visible(list []Appointment) []Appointment {
	out := make([]Appointment, 0, len(list))
	for _, a := range list {
		if a.Status != StatusCancelled {
			out = append(out, a)
		}
	}
	return out
}

// FilterByStatus keeps appointments in status. An empty status keeps all.
func FilterByStatus(list []Appointment, status Status) []Appointment {
	out := make([]Appointment, 0, len(list))
	for _, a := range list {
		if status == "" || a.Status == status {
			out = append(out, a)
		}
	}
	return out
}

// SortByDate returns a copy ordered by date then time slot.
func SortByDate(list []Appointment, descending bool) []Appointment {
	out := append([]Appointment(nil), list...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Date.Equal(b.Date) {
			if descending {
				return a.Date.After(b.Date)
			}
			return a.Date.Before(b.Date)
		}
		if descending {
			return a.TimeSlot > b.TimeSlot
		}
		return a.TimeSlot < b.TimeSlot
	})
	return out
}

// Paginate returns page (1-based) of size items and the page count.
func Paginate(list []Appointment, page, size int) ([]Appointment, int) {
	if size <= 0 {
		size = 10
	}
	pages := (len(list) + size - 1) / size
	if page < 1 || page > pages {
		return []Appointment{}, pages
	}
	start := (page - 1) * size
	end := min(start+size, len(list))
	return list[start:end], pages
}

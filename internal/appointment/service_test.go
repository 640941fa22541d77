package appointment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwangaza12/meditime/internal/config"
	redisclient "github.com/mwangaza12/meditime/internal/redis"
	"github.com/mwangaza12/meditime/internal/session"
	"github.com/mwangaza12/meditime/pkg/logging"
)

// memRepo is an in-memory Repository.
type memRepo struct {
	mu           sync.Mutex
	patients     map[uuid.UUID]Patient
	doctors      map[uuid.UUID]Doctor
	appointments map[uuid.UUID]*Appointment
	events       []EventLog
	failUpdate   error
}

func newMemRepo() *memRepo {
	return &memRepo{
		patients:     make(map[uuid.UUID]Patient),
		doctors:      make(map[uuid.UUID]Doctor),
		appointments: make(map[uuid.UUID]*Appointment),
	}
}

func (r *memRepo) GetPatientByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}

func (r *memRepo) GetDoctorByID(_ context.Context, id uuid.UUID) (*Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	return &d, nil
}

func (r *memRepo) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *memRepo) GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	a, err := r.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &AppointmentDetail{Appointment: *a}, nil
}

func (r *memRepo) GetActiveAppointmentForSlot(_ context.Context, doctorID uuid.UUID, date time.Time, slot string) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.appointments {
		if a.DoctorID == doctorID && a.AppointmentDate.Equal(date) && a.TimeSlot == slot && a.Status != StatusCancelled {
			cp := *a
			return &cp, nil
		}
	}
	return nil, ErrAppointmentNotFound
}

func (r *memRepo) CreateAppointment(_ context.Context, in NewAppointment) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := &Appointment{
		ID:              uuid.New(),
		UserID:          in.UserID,
		DoctorID:        in.DoctorID,
		AppointmentDate: in.AppointmentDate,
		TimeSlot:        in.TimeSlot,
		DurationMinutes: in.DurationMinutes,
		Status:          StatusPending,
		TotalAmount:     in.TotalAmount,
	}
	r.appointments[a.ID] = a
	cp := *a
	return &cp, nil
}

func (r *memRepo) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failUpdate != nil {
		return nil, r.failUpdate
	}
	a, ok := r.appointments[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	cp := *a
	return &cp, nil
}

func (r *memRepo) RescheduleAppointment(_ context.Context, id uuid.UUID, date time.Time, slot string) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok || a.Status == StatusCancelled {
		return nil, ErrAppointmentNotFound
	}
	a.AppointmentDate = date
	a.TimeSlot = slot
	cp := *a
	return &cp, nil
}

func (r *memRepo) MarkPaid(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok || !CanCapturePayment(*a) {
		return nil, ErrAppointmentNotFound
	}
	a.IsPaid = true
	cp := *a
	return &cp, nil
}

func (r *memRepo) ListAppointments(_ context.Context, f ListFilter) ([]AppointmentDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []AppointmentDetail
	for _, a := range r.appointments {
		if f.PatientID != nil && a.UserID != *f.PatientID {
			continue
		}
		if f.DoctorID != nil && a.DoctorID != *f.DoctorID {
			continue
		}
		out = append(out, AppointmentDetail{Appointment: *a})
	}
	return out, nil
}

func (r *memRepo) FindLapsedPending(_ context.Context, before time.Time) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Appointment
	for _, a := range r.appointments {
		if a.Status == StatusPending && !a.IsPaid && a.AppointmentDate.Before(before) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *memRepo) InsertEvent(_ context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *memRepo) eventTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType)
	}
	return out
}

// passLocker runs fn directly, or fails when busy is set.
type passLocker struct {
	busy  bool
	calls []redisclient.SlotKey
}

func (l *passLocker) WithSlotLock(ctx context.Context, slot redisclient.SlotKey, fn func(context.Context) error) error {
	l.calls = append(l.calls, slot)
	if l.busy {
		return redisclient.ErrLockNotAcquired
	}
	return fn(ctx)
}

type fixture struct {
	svc     *Service
	repo    *memRepo
	locker  *passLocker
	patient session.Session
	doctor  session.Session
	admin   session.Session
	docID   uuid.UUID
	patID   uuid.UUID
	today   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := newMemRepo()
	locker := &passLocker{}
	fee := 2000.0

	patID := uuid.New()
	docID := uuid.New()
	repo.patients[patID] = Patient{ID: patID, FirstName: "Amina", LastName: "Otieno"}
	repo.doctors[docID] = Doctor{ID: docID, FirstName: "Kip", LastName: "Mwangi", ConsultationFee: &fee}

	svc := NewService(repo, locker, config.Config{DefaultDuration: 60}, logging.Nop(), nil)
	now := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	return &fixture{
		svc:     svc,
		repo:    repo,
		locker:  locker,
		patient: session.Session{ActorID: patID.String(), Role: session.RolePatient},
		doctor:  session.Session{ActorID: docID.String(), Role: session.RoleDoctor},
		admin:   session.Session{ActorID: uuid.NewString(), Role: session.RoleAdmin},
		docID:   docID,
		patID:   patID,
		today:   time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC),
	}
}

func (f *fixture) book(t *testing.T, day int, slot string) *Appointment {
	t.Helper()
	appt, err := f.svc.CreateAppointment(context.Background(), f.patient, CreateRequest{
		DoctorID: f.docID,
		Date:     f.today.AddDate(0, 0, day),
		TimeSlot: slot,
	})
	require.NoError(t, err)
	return appt
}

func TestCreateAppointmentPricesAndLogs(t *testing.T) {
	f := newFixture(t)

	appt := f.book(t, 1, "09:00")

	assert.Equal(t, StatusPending, appt.Status)
	assert.Equal(t, f.patID, appt.UserID)
	assert.Equal(t, 60, appt.DurationMinutes)
	require.NotNil(t, appt.TotalAmount)
	assert.Equal(t, 2000.0, *appt.TotalAmount)
	assert.Equal(t, []string{EventAppointmentCreated}, f.repo.eventTypes())
	require.Len(t, f.locker.calls, 1)
	assert.Equal(t, "2026-10-17", f.locker.calls[0].Date)
}

func TestCreateAppointmentRejectsConflictsAndBadInput(t *testing.T) {
	f := newFixture(t)
	f.book(t, 1, "09:00")
	ctx := context.Background()

	_, err := f.svc.CreateAppointment(ctx, f.patient, CreateRequest{DoctorID: f.docID, Date: f.today.AddDate(0, 0, 1), TimeSlot: "09:00"})
	assert.ErrorIs(t, err, ErrSlotAlreadyBooked)

	_, err = f.svc.CreateAppointment(ctx, f.patient, CreateRequest{DoctorID: f.docID, Date: f.today.AddDate(0, 0, -1), TimeSlot: "09:00"})
	assert.ErrorIs(t, err, ErrInvalidDate)

	_, err = f.svc.CreateAppointment(ctx, f.patient, CreateRequest{DoctorID: f.docID, Date: f.today, TimeSlot: "9am"})
	assert.ErrorIs(t, err, ErrInvalidTimeSlot)

	_, err = f.svc.CreateAppointment(ctx, f.patient, CreateRequest{DoctorID: uuid.New(), Date: f.today, TimeSlot: "10:00"})
	assert.ErrorIs(t, err, ErrDoctorNotFound)

	_, err = f.svc.CreateAppointment(ctx, f.doctor, CreateRequest{DoctorID: f.docID, Date: f.today, TimeSlot: "10:00"})
	assert.ErrorIs(t, err, ErrForbidden)

	f.locker.busy = true
	_, err = f.svc.CreateAppointment(ctx, f.patient, CreateRequest{DoctorID: f.docID, Date: f.today, TimeSlot: "11:00"})
	assert.ErrorIs(t, err, ErrSlotBeingBooked)
}

func TestChangeStatusTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	appt := f.book(t, 2, "10:00")

	// Patients cannot confirm.
	_, err := f.svc.ChangeStatus(ctx, f.patient, appt.ID, StatusConfirmed)
	assert.ErrorIs(t, err, ErrForbidden)

	confirmed, err := f.svc.ChangeStatus(ctx, f.doctor, appt.ID, StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, confirmed.Status)

	cancelled, err := f.svc.ChangeStatus(ctx, f.patient, appt.ID, StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)

	// Cancelling twice is not a legal transition.
	_, err = f.svc.ChangeStatus(ctx, f.admin, appt.ID, StatusCancelled)
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)

	_, err = f.svc.ChangeStatus(ctx, f.admin, uuid.New(), StatusCancelled)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestChangeStatusForeignDoctorForbidden(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, 2, "10:00")
	other := session.Session{ActorID: uuid.NewString(), Role: session.RoleDoctor}

	_, err := f.svc.ChangeStatus(context.Background(), other, appt.ID, StatusConfirmed)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestChangeStatusLostRaceIsConflict(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, 2, "10:00")
	f.repo.failUpdate = ErrAppointmentNotFound

	_, err := f.svc.ChangeStatus(context.Background(), f.doctor, appt.ID, StatusConfirmed)
	assert.ErrorIs(t, err, ErrStatusConflict)
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to AppointmentStatus
		want     bool
	}{
		{StatusPending, StatusConfirmed, true},
		{StatusPending, StatusCancelled, true},
		{StatusConfirmed, StatusCancelled, true},
		{StatusConfirmed, StatusConfirmed, false},
		{StatusCancelled, StatusCancelled, false},
		{StatusCancelled, StatusConfirmed, false},
		{StatusConfirmed, StatusPending, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestRescheduleChecksSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.book(t, 3, "09:00")
	second := f.book(t, 3, "10:00")

	_, err := f.svc.Reschedule(ctx, f.patient, second.ID, f.today.AddDate(0, 0, 3), "09:00")
	assert.ErrorIs(t, err, ErrSlotAlreadyBooked)

	moved, err := f.svc.Reschedule(ctx, f.patient, first.ID, f.today.AddDate(0, 0, 4), "14:30")
	require.NoError(t, err)
	assert.Equal(t, "14:30", moved.TimeSlot)
	assert.Equal(t, "2026-10-20", moved.AppointmentDate.Format(DateLayout))

	_, err = f.svc.ChangeStatus(ctx, f.patient, moved.ID, StatusCancelled)
	require.NoError(t, err)
	_, err = f.svc.Reschedule(ctx, f.patient, moved.ID, f.today.AddDate(0, 0, 5), "14:30")
	assert.ErrorIs(t, err, ErrAppointmentCancelled)
}

func TestPay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	appt := f.book(t, 1, "15:00")

	_, err := f.svc.Pay(ctx, f.doctor, appt.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	paid, err := f.svc.Pay(ctx, f.patient, appt.ID)
	require.NoError(t, err)
	assert.True(t, paid.IsPaid)

	_, err = f.svc.Pay(ctx, f.patient, appt.ID)
	assert.ErrorIs(t, err, ErrPaymentNotAllowed)
}

func TestPayRequiresAmount(t *testing.T) {
	f := newFixture(t)
	f.repo.doctors[f.docID] = Doctor{ID: f.docID}
	appt := f.book(t, 1, "15:00")
	assert.Nil(t, appt.TotalAmount)

	_, err := f.svc.Pay(context.Background(), f.patient, appt.ID)
	assert.ErrorIs(t, err, ErrPaymentNotAllowed)
}

func TestCancelLapsedAppointments(t *testing.T) {
	f := newFixture(t)
	past := &Appointment{ID: uuid.New(), UserID: f.patID, DoctorID: f.docID, AppointmentDate: f.today.AddDate(0, 0, -2), TimeSlot: "09:00", Status: StatusPending}
	paid := &Appointment{ID: uuid.New(), UserID: f.patID, DoctorID: f.docID, AppointmentDate: f.today.AddDate(0, 0, -2), TimeSlot: "10:00", Status: StatusPending, IsPaid: true}
	f.repo.appointments[past.ID] = past
	f.repo.appointments[paid.ID] = paid
	f.book(t, 1, "09:00")

	n, err := f.svc.CancelLapsedAppointments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, StatusCancelled, f.repo.appointments[past.ID].Status)
	assert.Equal(t, StatusPending, f.repo.appointments[paid.ID].Status)
	assert.Contains(t, f.repo.eventTypes(), EventAppointmentLapsed)
}

func TestListingsAreRoleScoped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.book(t, 1, "09:00")

	_, err := f.svc.ListAll(ctx, f.patient, Page{})
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.ListForDoctor(ctx, f.patient, Page{})
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.ListForPatient(ctx, f.doctor, Page{})
	assert.ErrorIs(t, err, ErrForbidden)

	mine, err := f.svc.ListForPatient(ctx, f.patient, Page{})
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	theirs, err := f.svc.ListForDoctor(ctx, f.doctor, Page{})
	require.NoError(t, err)
	assert.Len(t, theirs, 1)

	all, err := f.svc.ListAll(ctx, f.admin, Page{Limit: 500})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestGetAppointmentVisibility(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, 1, "09:00")
	stranger := session.Session{ActorID: uuid.NewString(), Role: session.RolePatient}

	_, err := f.svc.GetAppointment(context.Background(), stranger, appt.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	detail, err := f.svc.GetAppointment(context.Background(), f.doctor, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, appt.ID, detail.ID)
}

func TestPageNormalize(t *testing.T) {
	assert.Equal(t, Page{Limit: 20}, Page{}.normalize())
	assert.Equal(t, Page{Limit: 100, Offset: 0}, Page{Limit: 1000, Offset: -5}.normalize())
}

func TestTotalFor(t *testing.T) {
	fee := 1500.0
	assert.Nil(t, TotalFor(Doctor{}, 30))
	assert.Equal(t, 750.0, *TotalFor(Doctor{ConsultationFee: &fee}, 30))
	assert.Nil(t, TotalFor(Doctor{ConsultationFee: &fee}, 0))
}

func TestInsertEventFailureDoesNotFailBooking(t *testing.T) {
	f := newFixture(t)
	repo := &failingEventRepo{memRepo: f.repo}
	f.svc.repo = repo

	_, err := f.svc.CreateAppointment(context.Background(), f.patient, CreateRequest{DoctorID: f.docID, Date: f.today, TimeSlot: "16:00"})
	require.NoError(t, err)
}

type failingEventRepo struct {
	*memRepo
}

func (r *failingEventRepo) InsertEvent(context.Context, EventLog) error {
	return errors.New("event log down")
}

package complaint

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwangaza12/meditime/internal/session"
	"github.com/mwangaza12/meditime/pkg/logging"
)

type memRepo struct {
	mu           sync.Mutex
	complaints   map[uuid.UUID]*Complaint
	replies      []Reply
	appointments map[uuid.UUID]uuid.UUID
}

func newMemRepo() *memRepo {
	return &memRepo{
		complaints:   make(map[uuid.UUID]*Complaint),
		appointments: make(map[uuid.UUID]uuid.UUID),
	}
}

func (r *memRepo) Create(_ context.Context, in NewComplaint) (*Complaint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := &Complaint{ID: uuid.New(), UserID: in.UserID, AppointmentID: in.AppointmentID, Subject: in.Subject, Description: in.Description, Status: StatusOpen, CreatedAt: time.Now()}
	r.complaints[c.ID] = c
	cp := *c
	return &cp, nil
}

func (r *memRepo) GetByID(_ context.Context, id uuid.UUID) (*Complaint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.complaints[id]
	if !ok {
		return nil, ErrComplaintNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *memRepo) List(_ context.Context, userID *uuid.UUID, limit, offset int) ([]Complaint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Complaint, 0)
	for _, c := range r.complaints {
		if userID == nil || c.UserID == *userID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *memRepo) UpdateStatus(_ context.Context, id uuid.UUID, from, to Status) (*Complaint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.complaints[id]
	if !ok || c.Status != from {
		return nil, ErrComplaintNotFound
	}
	c.Status = to
	cp := *c
	return &cp, nil
}

func (r *memRepo) ListReplies(_ context.Context, complaintID uuid.UUID) ([]Reply, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Reply, 0)
	for _, reply := range r.replies {
		if reply.ComplaintID == complaintID {
			out = append(out, reply)
		}
	}
	return out, nil
}

func (r *memRepo) CreateReply(_ context.Context, complaintID uuid.UUID, senderID *uuid.UUID, message string) (*Reply, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reply := Reply{ID: uuid.New(), ComplaintID: complaintID, SenderID: senderID, Message: message, CreatedAt: time.Now()}
	r.replies = append(r.replies, reply)
	return &reply, nil
}

func (r *memRepo) AppointmentOwner(_ context.Context, appointmentID uuid.UUID) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	owner, ok := r.appointments[appointmentID]
	if !ok {
		return uuid.Nil, ErrAppointmentNotFound
	}
	return owner, nil
}

func setup(t *testing.T) (*Service, *memRepo, session.Session) {
	t.Helper()
	repo := newMemRepo()
	patient := session.Session{ActorID: uuid.NewString(), Role: session.RolePatient}
	return NewService(repo, logging.Nop()), repo, patient
}

func TestCreateComplaint(t *testing.T) {
	svc, repo, patient := setup(t)
	ctx := context.Background()

	c, err := svc.Create(ctx, patient, CreateRequest{Subject: " Late doctor ", Description: "Waited an hour"})
	require.NoError(t, err)
	assert.Equal(t, "Late doctor", c.Subject)
	assert.Equal(t, StatusOpen, c.Status)
	assert.Equal(t, patient.ActorID, c.UserID.String())

	_, err = svc.Create(ctx, patient, CreateRequest{Subject: "x"})
	assert.ErrorIs(t, err, ErrInvalidComplaint)

	doctor := session.Session{ActorID: uuid.NewString(), Role: session.RoleDoctor}
	_, err = svc.Create(ctx, doctor, CreateRequest{Subject: "x", Description: "y"})
	assert.ErrorIs(t, err, ErrForbidden)

	// Complaints about someone else's appointment are refused.
	foreign := uuid.New()
	repo.appointments[foreign] = uuid.New()
	_, err = svc.Create(ctx, patient, CreateRequest{AppointmentID: &foreign, Subject: "x", Description: "y"})
	assert.ErrorIs(t, err, ErrForbidden)

	missing := uuid.New()
	_, err = svc.Create(ctx, patient, CreateRequest{AppointmentID: &missing, Subject: "x", Description: "y"})
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestComplaintVisibility(t *testing.T) {
	svc, _, patient := setup(t)
	ctx := context.Background()
	c, err := svc.Create(ctx, patient, CreateRequest{Subject: "s", Description: "d"})
	require.NoError(t, err)

	other := session.Session{ActorID: uuid.NewString(), Role: session.RolePatient}
	_, err = svc.Get(ctx, other, c.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.ListByUser(ctx, other, c.UserID, 0, 0)
	assert.ErrorIs(t, err, ErrForbidden)

	doctor := session.Session{ActorID: uuid.NewString(), Role: session.RoleDoctor}
	_, err = svc.Get(ctx, doctor, c.ID)
	require.NoError(t, err)
	_, err = svc.ListAll(ctx, doctor, 0, 0)
	assert.ErrorIs(t, err, ErrForbidden)

	mine, err := svc.ListByUser(ctx, patient, c.UserID, 0, 0)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	_, err = svc.Get(ctx, patient, uuid.New())
	assert.ErrorIs(t, err, ErrComplaintNotFound)
}

func TestReplies(t *testing.T) {
	svc, _, patient := setup(t)
	ctx := context.Background()
	admin := session.Session{ActorID: uuid.NewString(), Role: session.RoleAdmin}
	c, err := svc.Create(ctx, patient, CreateRequest{Subject: "s", Description: "d"})
	require.NoError(t, err)

	_, err = svc.AddReply(ctx, patient, c.ID, "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)

	first, err := svc.AddReply(ctx, patient, c.ID, "hello")
	require.NoError(t, err)
	require.NotNil(t, first.SenderID)
	assert.Equal(t, patient.ActorID, first.SenderID.String())

	_, err = svc.AddReply(ctx, admin, c.ID, "we are looking into it")
	require.NoError(t, err)

	thread, err := svc.Replies(ctx, patient, c.ID)
	require.NoError(t, err)
	require.Len(t, thread, 2)
	assert.Equal(t, "hello", thread[0].Message)

	_, err = svc.ChangeStatus(ctx, admin, c.ID, StatusClosed)
	require.NoError(t, err)
	_, err = svc.AddReply(ctx, patient, c.ID, "still there?")
	assert.ErrorIs(t, err, ErrComplaintClosed)
}

func TestReplyLengthCountsCharacters(t *testing.T) {
	svc, _, patient := setup(t)
	ctx := context.Background()
	c, err := svc.Create(ctx, patient, CreateRequest{Subject: "s", Description: "d"})
	require.NoError(t, err)

	// 4000 characters, 4001 bytes.
	atLimit := strings.Repeat("a", 3999) + "é"
	reply, err := svc.AddReply(ctx, patient, c.ID, atLimit)
	require.NoError(t, err)
	assert.Equal(t, atLimit, reply.Message)
	assert.True(t, utf8.ValidString(reply.Message))

	_, err = svc.AddReply(ctx, patient, c.ID, atLimit+"é")
	assert.ErrorIs(t, err, ErrMessageTooLong)

	thread, err := svc.Replies(ctx, patient, c.ID)
	require.NoError(t, err)
	assert.Len(t, thread, 1)
}

func TestComplaintStatusChange(t *testing.T) {
	svc, _, patient := setup(t)
	ctx := context.Background()
	admin := session.Session{ActorID: uuid.NewString(), Role: session.RoleAdmin}
	c, err := svc.Create(ctx, patient, CreateRequest{Subject: "s", Description: "d"})
	require.NoError(t, err)

	_, err = svc.ChangeStatus(ctx, patient, c.ID, StatusResolved)
	assert.ErrorIs(t, err, ErrForbidden)

	updated, err := svc.ChangeStatus(ctx, admin, c.ID, StatusInProgress)
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, updated.Status)

	_, err = svc.ChangeStatus(ctx, admin, c.ID, StatusInProgress)
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)

	_, err = svc.ChangeStatus(ctx, admin, c.ID, StatusClosed)
	require.NoError(t, err)
	_, err = svc.ChangeStatus(ctx, admin, c.ID, StatusOpen)
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)
}

func TestCanJoin(t *testing.T) {
	svc, _, patient := setup(t)
	ctx := context.Background()
	c, err := svc.Create(ctx, patient, CreateRequest{Subject: "s", Description: "d"})
	require.NoError(t, err)

	assert.NoError(t, svc.CanJoin(ctx, patient, c.ID))
	assert.ErrorIs(t, svc.CanJoin(ctx, session.Session{ActorID: uuid.NewString(), Role: session.RolePatient}, c.ID), ErrForbidden)
}

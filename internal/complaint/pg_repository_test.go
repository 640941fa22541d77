package complaint

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPgListRepliesKeepsNullSender(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	repo := NewPgRepository(mock)

	complaintID := uuid.New()
	sender := uuid.New()
	now := time.Now()

	mock.ExpectQuery("FROM complaint_replies").
		WithArgs(complaintID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "complaint_id", "sender_id", "message", "created_at"}).
			AddRow(uuid.New(), complaintID, nil, "system notice", now).
			AddRow(uuid.New(), complaintID, &sender, "hi", now))

	replies, err := repo.ListReplies(context.Background(), complaintID)
	require.NoError(t, err)
	require.Len(t, replies, 2)
	assert.Nil(t, replies[0].SenderID)
	require.NotNil(t, replies[1].SenderID)
	assert.Equal(t, sender, *replies[1].SenderID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgGetComplaintNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	repo := NewPgRepository(mock)

	id := uuid.New()
	mock.ExpectQuery("FROM complaints").WithArgs(id).WillReturnError(pgx.ErrNoRows)

	_, err = repo.GetByID(context.Background(), id)
	assert.ErrorIs(t, err, ErrComplaintNotFound)
}

func TestPgAppointmentOwner(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	repo := NewPgRepository(mock)

	apptID, owner := uuid.New(), uuid.New()
	mock.ExpectQuery("SELECT user_id FROM appointments").
		WithArgs(apptID).
		WillReturnRows(pgxmock.NewRows([]string{"user_id"}).AddRow(owner))

	got, err := repo.AppointmentOwner(context.Background(), apptID)
	require.NoError(t, err)
	assert.Equal(t, owner, got)
}

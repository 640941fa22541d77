package user

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwangaza12/meditime/internal/session"
)

var userCols = []string{"id", "first_name", "last_name", "email", "password_hash", "role", "specialization", "consultation_fee", "created_at"}

func TestPgGetByEmailNormalizes(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	repo := NewPgRepository(mock)

	id := uuid.New()
	specialty := "Pediatrics"
	fee := 2500.0
	mock.ExpectQuery("FROM users").
		WithArgs("doc@meditime.test").
		WillReturnRows(pgxmock.NewRows(userCols).
			AddRow(id, "Kip", "Mwangi", "doc@meditime.test", "hash", "doctor", &specialty, &fee, time.Now()))

	u, err := repo.GetByEmail(context.Background(), "  Doc@MediTime.test ")
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)
	assert.Equal(t, session.RoleDoctor, u.Role)
	assert.Equal(t, "Pediatrics", *u.Specialization)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgGetByIDNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	repo := NewPgRepository(mock)

	id := uuid.New()
	mock.ExpectQuery("FROM users").WithArgs(id).WillReturnError(pgx.ErrNoRows)

	_, err = repo.GetByID(context.Background(), id)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

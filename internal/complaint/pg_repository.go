package complaint

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mwangaza12/meditime/internal/db"
)

type PgRepository struct {
	pool db.Pool
}

func NewPgRepository(pool db.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const complaintColumns = `id, user_id, appointment_id, subject, description, status, created_at, updated_at`

const replyColumns = `id, complaint_id, sender_id, message, created_at`

func scanComplaint(row pgx.Row) (*Complaint, error) {
	var c Complaint
	var status string

	err := row.Scan(
		&c.ID,
		&c.UserID,
		&c.AppointmentID,
		&c.Subject,
		&c.Description,
		&status,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrComplaintNotFound
		}
		return nil, err
	}

	c.Status = Status(status)
	return &c, nil
}

func scanReply(row pgx.Row) (*Reply, error) {
	var r Reply

	err := row.Scan(
		&r.ID,
		&r.ComplaintID,
		&r.SenderID,
		&r.Message,
		&r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &r, nil
}

func (r *PgRepository) Create(ctx context.Context, in NewComplaint) (*Complaint, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO complaints (id, user_id, appointment_id, subject, description, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 'open', now(), now())
		RETURNING `+complaintColumns,
		uuid.New(), in.UserID, in.AppointmentID, in.Subject, in.Description)
	return scanComplaint(row)
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Complaint, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+complaintColumns+`
		FROM complaints
		WHERE id = $1
	`, id)
	return scanComplaint(row)
}

// List returns complaints newest first, optionally scoped to one patient.
func (r *PgRepository) List(ctx context.Context, userID *uuid.UUID, limit, offset int) ([]Complaint, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+complaintColumns+`
		FROM complaints
		WHERE ($1::uuid IS NULL OR user_id = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list complaints: %w", err)
	}
	defer rows.Close()

	result := make([]Complaint, 0)
	for rows.Next() {
		c, err := scanComplaint(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *c)
	}

	return result, rows.Err()
}

func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Complaint, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE complaints
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+complaintColumns,
		id, string(to), string(from))
	return scanComplaint(row)
}

// ListReplies returns a complaint's replies oldest first.
func (r *PgRepository) ListReplies(ctx context.Context, complaintID uuid.UUID) ([]Reply, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+replyColumns+`
		FROM complaint_replies
		WHERE complaint_id = $1
		ORDER BY created_at ASC, id ASC
	`, complaintID)
	if err != nil {
		return nil, fmt.Errorf("list replies: %w", err)
	}
	defer rows.Close()

	result := make([]Reply, 0)
	for rows.Next() {
		reply, err := scanReply(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *reply)
	}

	return result, rows.Err()
}

func (r *PgRepository) CreateReply(ctx context.Context, complaintID uuid.UUID, senderID *uuid.UUID, message string) (*Reply, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO complaint_replies (id, complaint_id, sender_id, message, created_at)
		VALUES ($1, $2, $3, $4, now())
		RETURNING `+replyColumns,
		uuid.New(), complaintID, senderID, message)

	reply, err := scanReply(row)
	if err != nil {
		return nil, fmt.Errorf("insert reply: %w", err)
	}
	return reply, nil
}

func (r *PgRepository) AppointmentOwner(ctx context.Context, appointmentID uuid.UUID) (uuid.UUID, error) {
	var owner uuid.UUID
	err := r.pool.QueryRow(ctx, `SELECT user_id FROM appointments WHERE id = $1`, appointmentID).Scan(&owner)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, ErrAppointmentNotFound
		}
		return uuid.Nil, err
	}
	return owner, nil
}

package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"

	"github.com/mwangaza12/meditime/internal/db"
	"github.com/mwangaza12/meditime/internal/user"
	"github.com/mwangaza12/meditime/pkg/logging"
)

var specialties = []string{
	"Dermatology",
	"Cardiology",
	"General Practice",
	"Orthopedics",
	"Endocrinology",
	"Neurology",
	"Pediatrics",
	"Psychiatry",
	"Ophthalmology",
	"ENT",
}

var slots = []string{"08:00", "09:00", "10:00", "11:00", "12:00", "14:00", "15:00", "16:00"}

var complaintSubjects = []string{
	"Long waiting time",
	"Billing discrepancy",
	"Prescription error",
	"Rude reception staff",
	"Appointment was moved without notice",
	"Could not reach the clinic by phone",
}

var logger = logging.New("info").Component("seed")

func main() {
	_ = godotenv.Load()
	logger.Info().Msg("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		logger.Fatal().Msg("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	password := getEnv("SEED_PASSWORD", "password123")
	hash, err := user.HashPassword(password, bcrypt.DefaultCost)
	if err != nil {
		logger.Fatal().Err(err).Msg("hash seed password")
	}

	gofakeit.Seed(time.Now().UnixNano())
	work := context.Background()

	if err := seedAdmin(work, pool, hash); err != nil {
		logger.Fatal().Err(err).Msg("seed admin")
	}
	doctors, err := seedDoctors(work, pool, hash, getInt("SEED_DOCTORS", 20))
	if err != nil {
		logger.Fatal().Err(err).Msg("seed doctors")
	}
	patients, err := seedPatients(work, pool, hash, getInt("SEED_PATIENTS", 500))
	if err != nil {
		logger.Fatal().Err(err).Msg("seed patients")
	}
	appointments, err := seedAppointments(work, pool, patients, doctors, getInt("SEED_APPOINTMENTS", 2000))
	if err != nil {
		logger.Fatal().Err(err).Msg("seed appointments")
	}
	if err := seedComplaints(work, pool, appointments, doctors, getInt("SEED_COMPLAINTS", 200)); err != nil {
		logger.Fatal().Err(err).Msg("seed complaints")
	}

	logger.Info().Str("admin", "admin@meditime.test").Str("password", password).Msg("seed complete")
}

type doctor struct {
	id  uuid.UUID
	fee float64
}

type booking struct {
	id        uuid.UUID
	patientID uuid.UUID
}

func seedAdmin(ctx context.Context, pool *pgxpool.Pool, hash string) error {
	_, err := pool.Exec(ctx, `
		INSERT INTO users (id, first_name, last_name, email, password_hash, role, created_at, updated_at)
		VALUES ($1, 'Clinic', 'Admin', 'admin@meditime.test', $2, 'admin', now(), now())
		ON CONFLICT (email) DO NOTHING
	`, uuid.New(), hash)
	return err
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, hash string, count int) ([]doctor, error) {
	logger.Info().Int("count", count).Msg("seeding doctors")

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	doctors := make([]doctor, 0, count)
	for i := 0; i < count; i++ {
		d := doctor{id: uuid.New(), fee: float64(gofakeit.Number(10, 60) * 100)}
		specialty := specialties[gofakeit.Number(0, len(specialties)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO users (id, first_name, last_name, email, password_hash, role, specialization, consultation_fee, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, 'doctor', $6, $7, now(), now())
		`, d.id, gofakeit.FirstName(), gofakeit.LastName(), uniqueEmail("dr", i), hash, specialty, d.fee)
		if err != nil {
			return nil, err
		}
		doctors = append(doctors, d)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	logger.Info().Msg("doctors seeded")
	return doctors, nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, hash string, count int) ([]uuid.UUID, error) {
	logger.Info().Int("count", count).Msg("seeding patients")

	const batchSize = 500
	patients := make([]uuid.UUID, 0, count)

	for offset := 0; offset < count; offset += batchSize {
		end := min(offset+batchSize, count)

		err := inTx(ctx, pool, func(tx pgx.Tx) error {
			for i := offset; i < end; i++ {
				id := uuid.New()
				_, err := tx.Exec(ctx, `
					INSERT INTO users (id, first_name, last_name, email, password_hash, role, created_at, updated_at)
					VALUES ($1, $2, $3, $4, $5, 'user', now(), now())
				`, id, gofakeit.FirstName(), gofakeit.LastName(), uniqueEmail("pt", i), hash)
				if err != nil {
					return err
				}
				patients = append(patients, id)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}

		logger.Info().Int("done", end).Int("total", count).Msg("patients seeded")
	}

	return patients, nil
}

// seedAppointments books random patients with random doctors over the
// previous and next 30 days. Taken slots are skipped.
func seedAppointments(ctx context.Context, pool *pgxpool.Pool, patients []uuid.UUID, doctors []doctor, count int) ([]booking, error) {
	if len(patients) == 0 || len(doctors) == 0 {
		return nil, nil
	}
	logger.Info().Int("count", count).Msg("seeding appointments")

	today := time.Now().UTC().Truncate(24 * time.Hour)
	taken := make(map[string]struct{}, count)
	bookings := make([]booking, 0, count)

	err := inTx(ctx, pool, func(tx pgx.Tx) error {
		for i := 0; i < count; i++ {
			d := doctors[gofakeit.Number(0, len(doctors)-1)]
			date := today.AddDate(0, 0, gofakeit.Number(-30, 30))
			slot := slots[gofakeit.Number(0, len(slots)-1)]

			key := fmt.Sprintf("%s|%s|%s", d.id, date.Format(time.DateOnly), slot)
			if _, dup := taken[key]; dup {
				continue
			}
			taken[key] = struct{}{}

			status := "pending"
			paid := false
			switch n := gofakeit.Number(0, 9); {
			case n < 4:
				status = "confirmed"
				paid = true
			case n < 6:
				status = "cancelled"
			case n < 8:
				paid = true
			}
			if date.Before(today) && status == "pending" && !paid {
				status = "cancelled"
			}

			b := booking{id: uuid.New(), patientID: patients[gofakeit.Number(0, len(patients)-1)]}
			_, err := tx.Exec(ctx, `
				INSERT INTO appointments (id, user_id, doctor_id, appointment_date, time_slot, duration_minutes, status, total_amount, is_paid, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, 30, $6, $7, $8, now(), now())
			`, b.id, b.patientID, d.id, date, slot, status, d.fee, paid)
			if err != nil {
				return err
			}
			bookings = append(bookings, b)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info().Int("created", len(bookings)).Msg("appointments seeded")
	return bookings, nil
}

func seedComplaints(ctx context.Context, pool *pgxpool.Pool, bookings []booking, doctors []doctor, count int) error {
	if len(bookings) == 0 {
		return nil
	}
	logger.Info().Int("count", count).Msg("seeding complaints")

	statuses := []string{"open", "open", "in_progress", "resolved", "closed"}

	return inTx(ctx, pool, func(tx pgx.Tx) error {
		for i := 0; i < count; i++ {
			b := bookings[gofakeit.Number(0, len(bookings)-1)]
			id := uuid.New()
			created := time.Now().Add(-time.Duration(gofakeit.Number(1, 240)) * time.Hour)

			var apptID *uuid.UUID
			if gofakeit.Bool() {
				apptID = &b.id
			}

			_, err := tx.Exec(ctx, `
				INSERT INTO complaints (id, user_id, appointment_id, subject, description, status, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
			`, id, b.patientID, apptID, complaintSubjects[gofakeit.Number(0, len(complaintSubjects)-1)],
				words(24), statuses[gofakeit.Number(0, len(statuses)-1)], created)
			if err != nil {
				return err
			}

			replies := gofakeit.Number(0, 4)
			for r := 0; r < replies; r++ {
				sender := b.patientID
				if r%2 == 1 {
					sender = doctors[gofakeit.Number(0, len(doctors)-1)].id
				}
				_, err := tx.Exec(ctx, `
					INSERT INTO complaint_replies (id, complaint_id, sender_id, message, created_at)
					VALUES ($1, $2, $3, $4, $5)
				`, uuid.New(), id, sender, words(10), created.Add(time.Duration(r+1)*time.Minute))
				if err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func inTx(ctx context.Context, pool *pgxpool.Pool, fn func(tx pgx.Tx) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

func uniqueEmail(prefix string, i int) string {
	local := strings.ToLower(gofakeit.Username())
	return fmt.Sprintf("%s.%s.%d.%s@meditime.test", prefix, local, i, uuid.NewString()[:8])
}

func words(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = gofakeit.Word()
	}
	return strings.ToUpper(parts[0][:1]) + strings.Join(parts, " ")[1:] + "."
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mwangaza12/meditime/internal/client"
	"github.com/mwangaza12/meditime/internal/config"
	"github.com/mwangaza12/meditime/internal/db"
	"github.com/mwangaza12/meditime/internal/session"
	"github.com/mwangaza12/meditime/pkg/logging"
)

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	BookingRatio float64
	StatusRatio  float64
	ReadRatio    float64
	ChatRatio    float64
	PatientLimit int
	DoctorLimit  int
}

// DataPool holds the identities the workers act as, plus the appointments
// and complaints created along the way.
type DataPool struct {
	Patients []*client.API
	Doctors  []*client.API
	Admin    *client.API

	DoctorIDs []string

	mu           sync.RWMutex
	appointments []client.Appointment
	complaints   []string
}

func (dp *DataPool) AddAppointment(a client.Appointment) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, a)
}

func (dp *DataPool) GetRandomAppointment(rng *rand.Rand) (client.Appointment, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return client.Appointment{}, false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
}

func (dp *DataPool) AddComplaint(id string) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.complaints = append(dp.complaints, id)
}

func (dp *DataPool) GetRandomComplaint(rng *rand.Rand) (string, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.complaints) == 0 {
		return "", false
	}
	return dp.complaints[rng.Intn(len(dp.complaints))], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, err error) {
	atomic.AddInt64(&om.Total, 1)
	var apiErr *client.APIError
	switch {
	case err == nil:
		atomic.AddInt64(&om.Success, 1)
	case errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusConflict || apiErr.StatusCode == http.StatusForbidden):
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)

	sort.Slice(latencies, func(i, j int) bool {
		return latencies[i] < latencies[j]
	})

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]
	p50 = latencies[percentileIndex(len(latencies), 50)]
	p95 = latencies[percentileIndex(len(latencies), 95)]

	return avg, min, max, p50, p95
}

func percentileIndex(n, p int) int {
	idx := n * p / 100
	if idx >= n {
		idx = n - 1
	}
	return idx
}

type Metrics struct {
	Booking     OperationMetrics
	Status      OperationMetrics
	ListByRole  OperationMetrics
	ReadByID    OperationMetrics
	Complaint   OperationMetrics
	ChatReply   OperationMetrics
	ChatHistory OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	cache   *client.Cache
	logger  *logging.Logger
	metrics Metrics
}

func main() {
	cfg, issuer, pg := loadConfig()
	logger := logging.New(getEnv("LOG_LEVEL", "info")).Component("simulate")

	if err := validateConfig(cfg); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	logger.Info().
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Float64("booking", cfg.BookingRatio).
		Float64("status", cfg.StatusRatio).
		Float64("read", cfg.ReadRatio).
		Float64("chat", cfg.ChatRatio).
		Msg("simulator starting")

	// Load identities from Postgres
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, pg)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pgPool.Close()

	httpClient := &http.Client{Timeout: 10 * time.Second}
	dataPool, err := loadDataPool(ctx, pgPool, cfg, issuer, httpClient, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("load data pool")
	}

	logger.Info().
		Int("patients", len(dataPool.Patients)).
		Int("doctors", len(dataPool.Doctors)).
		Msg("data pool loaded")

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		cache:  client.NewCache(),
		logger: logger,
	}

	sim.Run()
	sim.PrintReport()
}

// loadConfig reads SIM_* settings on top of the server config, whose JWT
// secret lets the simulator mint tokens for seeded users directly.
func loadConfig() (SimConfig, *session.Issuer, string) {
	baseCfg, err := config.Load()
	if err != nil {
		logging.Default().Fatal().Err(err).Msg("failed to load base config")
	}

	cfg := SimConfig{
		APIBaseURL:   getEnv("SIM_API_BASE_URL", "http://localhost:8080/api"),
		Duration:     getDuration("SIM_DURATION", 30*time.Second),
		Workers:      getInt("SIM_WORKERS", 10),
		BookingRatio: getFloat("SIM_BOOKING_RATIO", 0.35),
		StatusRatio:  getFloat("SIM_STATUS_RATIO", 0.2),
		ReadRatio:    getFloat("SIM_READ_RATIO", 0.3),
		ChatRatio:    getFloat("SIM_CHAT_RATIO", 0.15),
		PatientLimit: getInt("SIM_PATIENT_LIMIT", 400),
		DoctorLimit:  getInt("SIM_DOCTOR_LIMIT", 50),
	}

	// Normalize ratios
	total := cfg.BookingRatio + cfg.StatusRatio + cfg.ReadRatio + cfg.ChatRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.StatusRatio /= total
		cfg.ReadRatio /= total
		cfg.ChatRatio /= total
	}

	return cfg, session.NewIssuer(baseCfg.JWTSecret, time.Hour), baseCfg.PostgresDSN
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	return nil
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig, issuer *session.Issuer, doer client.Doer, logger *logging.Logger) (*DataPool, error) {
	dataPool := &DataPool{}

	apiFor := func(id uuid.UUID, role session.Role) (*client.API, error) {
		sess, err := issuer.Issue(id.String(), role)
		if err != nil {
			return nil, err
		}
		return client.NewAPI(cfg.APIBaseURL, sess, doer, logger), nil
	}

	ids, err := loadIDs(ctx, pool, "user", cfg.PatientLimit)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	for _, id := range ids {
		api, err := apiFor(id, session.RolePatient)
		if err != nil {
			return nil, err
		}
		dataPool.Patients = append(dataPool.Patients, api)
	}

	ids, err = loadIDs(ctx, pool, "doctor", cfg.DoctorLimit)
	if err != nil {
		return nil, fmt.Errorf("load doctors: %w", err)
	}
	for _, id := range ids {
		api, err := apiFor(id, session.RoleDoctor)
		if err != nil {
			return nil, err
		}
		dataPool.Doctors = append(dataPool.Doctors, api)
		dataPool.DoctorIDs = append(dataPool.DoctorIDs, id.String())
	}

	ids, err = loadIDs(ctx, pool, "admin", 1)
	if err != nil {
		return nil, fmt.Errorf("load admin: %w", err)
	}
	if len(ids) > 0 {
		if dataPool.Admin, err = apiFor(ids[0], session.RoleAdmin); err != nil {
			return nil, err
		}
	}

	if len(dataPool.Patients) == 0 {
		return nil, fmt.Errorf("no patients loaded")
	}
	if len(dataPool.Doctors) == 0 {
		return nil, fmt.Errorf("no doctors loaded")
	}

	return dataPool, nil
}

func loadIDs(ctx context.Context, pool *pgxpool.Pool, role string, limit int) ([]uuid.UUID, error) {
	rows, err := pool.Query(ctx, `SELECT id FROM users WHERE role = $1 LIMIT $2`, role, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.logger.Info().Dur("duration", s.config.Duration).Int("workers", s.config.Workers).Msg("starting simulation")

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.logger.Info().Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			switch {
			case r < s.config.BookingRatio:
				s.doBooking(ctx, rng)
			case r < s.config.BookingRatio+s.config.StatusRatio:
				s.doStatus(ctx, rng)
			case r < s.config.BookingRatio+s.config.StatusRatio+s.config.ReadRatio:
				if rng.Intn(2) == 0 {
					s.doListByRole(ctx, rng)
				} else {
					s.doReadByID(ctx, rng)
				}
			default:
				s.doChat(ctx, rng)
			}
		}
	}
}

func (s *Simulator) randomPatient(rng *rand.Rand) *client.API {
	return s.pool.Patients[rng.Intn(len(s.pool.Patients))]
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	api := s.randomPatient(rng)
	booking := client.NewBooking{
		DoctorID: s.pool.DoctorIDs[rng.Intn(len(s.pool.DoctorIDs))],
		Date:     time.Now().UTC().AddDate(0, 0, 1+rng.Intn(14)),
		TimeSlot: fmt.Sprintf("%02d:%02d", 8+rng.Intn(9), 30*rng.Intn(2)),
	}

	start := time.Now()
	appt, err := api.CreateAppointment(ctx, booking)
	s.metrics.Booking.Record(time.Since(start), err)

	if err == nil {
		s.pool.AddAppointment(appt)
	}
}

// doStatus runs a mutation through the same handler the CLI uses, so the
// shared cache is invalidated on every success.
func (s *Simulator) doStatus(ctx context.Context, rng *rand.Rand) {
	appt, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}

	var api *client.API
	var target client.Status
	switch rng.Intn(3) {
	case 0:
		api, target = s.pool.Admin, client.StatusConfirmed
	case 1:
		api, target = s.pool.Admin, client.StatusCancelled
	default:
		api, target = s.randomPatient(rng), client.StatusCancelled
	}
	if api == nil {
		return
	}

	handler := client.NewStatusHandler(api, s.cache, nil, nil, s.logger)
	start := time.Now()
	err := handler.ChangeStatus(ctx, appt.ID, target)
	s.metrics.Status.Record(time.Since(start), err)
}

func (s *Simulator) doListByRole(ctx context.Context, rng *rand.Rand) {
	var api *client.API
	switch rng.Intn(3) {
	case 0:
		api = s.pool.Admin
	case 1:
		api = s.pool.Doctors[rng.Intn(len(s.pool.Doctors))]
	default:
		api = s.randomPatient(rng)
	}
	if api == nil {
		return
	}

	store := client.NewAppointmentStore(api.Session(), api, s.cache, s.logger)
	start := time.Now()
	view := store.Load(ctx)
	s.metrics.ListByRole.Record(time.Since(start), view.Err)
}

func (s *Simulator) doReadByID(ctx context.Context, rng *rand.Rand) {
	appt, ok := s.pool.GetRandomAppointment(rng)
	if !ok || s.pool.Admin == nil {
		return
	}

	start := time.Now()
	_, err := s.pool.Admin.GetAppointment(ctx, appt.ID)
	s.metrics.ReadByID.Record(time.Since(start), err)
}

func (s *Simulator) doChat(ctx context.Context, rng *rand.Rand) {
	id, ok := s.pool.GetRandomComplaint(rng)
	if !ok || rng.Intn(4) == 0 {
		api := s.randomPatient(rng)
		start := time.Now()
		c, err := api.CreateComplaint(ctx, gofakeit.HackerPhrase(), gofakeit.HackerPhrase(), nil)
		s.metrics.Complaint.Record(time.Since(start), err)
		if err == nil {
			s.pool.AddComplaint(c.ID)
		}
		return
	}

	if s.pool.Admin == nil {
		return
	}

	start := time.Now()
	_, err := s.pool.Admin.ListReplies(ctx, id)
	s.metrics.ChatHistory.Record(time.Since(start), err)

	start = time.Now()
	_, err = s.pool.Admin.CreateReply(ctx, id, gofakeit.HackerPhrase())
	s.metrics.ChatReply.Record(time.Since(start), err)
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Status change", &s.metrics.Status)
	printOperationReport("List by role", &s.metrics.ListByRole)
	printOperationReport("Read by ID", &s.metrics.ReadByID)
	printOperationReport("Create complaint", &s.metrics.Complaint)
	printOperationReport("Chat history", &s.metrics.ChatHistory)
	printOperationReport("Chat reply", &s.metrics.ChatReply)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Rejected: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

// Helper functions

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

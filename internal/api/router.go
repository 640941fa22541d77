package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mwangaza12/meditime/internal/appointment"
	"github.com/mwangaza12/meditime/internal/complaint"
	"github.com/mwangaza12/meditime/internal/metrics"
	"github.com/mwangaza12/meditime/internal/session"
	"github.com/mwangaza12/meditime/internal/user"
	"github.com/mwangaza12/meditime/pkg/logging"
)

type AppointmentService interface {
	CreateAppointment(ctx context.Context, actor session.Session, req appointment.CreateRequest) (*appointment.Appointment, error)
	GetAppointment(ctx context.Context, actor session.Session, id uuid.UUID) (*appointment.AppointmentDetail, error)
	ListAll(ctx context.Context, actor session.Session, page appointment.Page) ([]appointment.AppointmentDetail, error)
	ListForPatient(ctx context.Context, actor session.Session, page appointment.Page) ([]appointment.AppointmentDetail, error)
	ListForDoctor(ctx context.Context, actor session.Session, page appointment.Page) ([]appointment.AppointmentDetail, error)
	ChangeStatus(ctx context.Context, actor session.Session, id uuid.UUID, to appointment.AppointmentStatus) (*appointment.Appointment, error)
	Reschedule(ctx context.Context, actor session.Session, id uuid.UUID, date time.Time, timeSlot string) (*appointment.Appointment, error)
	Pay(ctx context.Context, actor session.Session, id uuid.UUID) (*appointment.Appointment, error)
}

type ComplaintService interface {
	Create(ctx context.Context, actor session.Session, req complaint.CreateRequest) (*complaint.Complaint, error)
	Get(ctx context.Context, actor session.Session, id uuid.UUID) (*complaint.Complaint, error)
	ListAll(ctx context.Context, actor session.Session, limit, offset int) ([]complaint.Complaint, error)
	ListByUser(ctx context.Context, actor session.Session, userID uuid.UUID, limit, offset int) ([]complaint.Complaint, error)
	ChangeStatus(ctx context.Context, actor session.Session, id uuid.UUID, to complaint.Status) (*complaint.Complaint, error)
	Replies(ctx context.Context, actor session.Session, complaintID uuid.UUID) ([]complaint.Reply, error)
	AddReply(ctx context.Context, actor session.Session, complaintID uuid.UUID, message string) (*complaint.Reply, error)
	CanJoin(ctx context.Context, actor session.Session, complaintID uuid.UUID) error
}

type Authenticator interface {
	Login(ctx context.Context, email, password string) (session.Session, *user.User, error)
}

// LiveServer upgrades a request into a complaint room member.
type LiveServer interface {
	Serve(w http.ResponseWriter, r *http.Request, room, userID string) error
}

type RouterConfig struct {
	Appointments AppointmentService
	Complaints   ComplaintService
	Auth         Authenticator
	Verifier     TokenVerifier
	Live         LiveServer
	Health       *HealthHandler
	Metrics      *metrics.Metrics
	Gatherer     prometheus.Gatherer
	Logger       *logging.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Health == nil {
		cfg.Health = NewHealthHandler(nil, nil, "", "")
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger.Component("http"), cfg.Metrics))
	r.Use(middleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})

	// Health and metrics
	r.Get("/health/live", cfg.Health.Liveness)
	r.Get("/health/ready", cfg.Health.Readiness)
	r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", loginHandler(cfg.Auth))

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(cfg.Verifier))

			r.Get("/appointments", listAppointmentsHandler(cfg.Appointments.ListAll))
			r.Get("/appointments/user", listAppointmentsHandler(cfg.Appointments.ListForPatient))
			r.Get("/appointments/doctor", listAppointmentsHandler(cfg.Appointments.ListForDoctor))
			r.Post("/appointments", createAppointmentHandler(cfg.Appointments))
			r.Get("/appointments/{id}", getAppointmentHandler(cfg.Appointments))
			r.Patch("/appointments/{id}/status", changeStatusHandler(cfg.Appointments))
			r.Patch("/appointments/{id}/reschedule", rescheduleHandler(cfg.Appointments))
			r.Post("/appointments/{id}/payment", payHandler(cfg.Appointments))

			r.Get("/complaints", listComplaintsHandler(cfg.Complaints))
			r.Post("/complaints", createComplaintHandler(cfg.Complaints))
			r.Get("/complaints/user/{userId}", listUserComplaintsHandler(cfg.Complaints))
			r.Get("/complaints/{id}", getComplaintHandler(cfg.Complaints))
			r.Patch("/complaints/{id}/status", complaintStatusHandler(cfg.Complaints))
			r.Get("/complaints/{id}/replies", listRepliesHandler(cfg.Complaints))
			r.Post("/complaints/{id}/replies", createReplyHandler(cfg.Complaints))
		})
	})

	if cfg.Live != nil {
		r.With(AuthMiddleware(cfg.Verifier)).Get("/ws/complaints/{complaintId}", liveHandler(cfg.Complaints, cfg.Live))
	}

	return r
}

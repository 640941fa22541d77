package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwangaza12/meditime/internal/session"
	"github.com/mwangaza12/meditime/pkg/logging"
)

type recordedRequest struct {
	Method  string
	Path    string
	Query   string
	Auth    string
	HasAuth bool
	Body    string
}

type fakeServer struct {
	mu       sync.Mutex
	requests []recordedRequest
	status   int
	body     string
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	_, hasAuth := r.Header["Authorization"]

	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{
		Method:  r.Method,
		Path:    r.URL.Path,
		Query:   r.URL.RawQuery,
		Auth:    r.Header.Get("Authorization"),
		HasAuth: hasAuth,
		Body:    string(body),
	})
	status, resp := f.status, f.body
	f.mu.Unlock()

	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, resp)
}

func (f *fakeServer) last(t *testing.T) recordedRequest {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.requests)
	return f.requests[len(f.requests)-1]
}

func newTestAPI(t *testing.T, sess session.Session, status int, body string) (*API, *fakeServer) {
	t.Helper()
	fs := &fakeServer{status: status, body: body}
	srv := httptest.NewServer(fs)
	t.Cleanup(srv.Close)
	return NewAPI(srv.URL+"/api/", sess, srv.Client(), logging.Nop()), fs
}

var patientSession = session.Session{ActorID: "u1", Role: session.RolePatient, Token: "tok"}

func TestAPISendsBearerToken(t *testing.T) {
	api, fs := newTestAPI(t, patientSession, http.StatusOK, `[]`)

	list, err := api.ListPatientAppointments(context.Background(), WithLimit(5), WithOffset(10))
	require.NoError(t, err)
	assert.Empty(t, list)

	req := fs.last(t)
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "/api/appointments/user", req.Path)
	assert.Equal(t, "limit=5&offset=10", req.Query)
	assert.Equal(t, "Bearer tok", req.Auth)
}

func TestAPIOmitsAuthorizationWithoutToken(t *testing.T) {
	api, fs := newTestAPI(t, session.Session{}, http.StatusOK, `[]`)

	_, err := api.ListAppointments(context.Background())
	require.NoError(t, err)

	req := fs.last(t)
	assert.False(t, req.HasAuth)
	assert.Equal(t, "", req.Query)
}

func TestAPIUpdateStatusIsPartialPatch(t *testing.T) {
	api, fs := newTestAPI(t, patientSession, http.StatusOK,
		`{"id":"a1","appointmentDate":"2026-11-02","timeSlot":"09:00","status":"cancelled"}`)

	a, err := api.UpdateStatus(context.Background(), "a1", StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, a.Status)

	req := fs.last(t)
	assert.Equal(t, http.MethodPatch, req.Method)
	assert.Equal(t, "/api/appointments/a1/status", req.Path)
	assert.JSONEq(t, `{"status":"cancelled"}`, req.Body)
}

func TestAPICreateAppointmentBody(t *testing.T) {
	api, fs := newTestAPI(t, patientSession, http.StatusCreated,
		`{"id":"a9","appointmentDate":"2026-11-02","timeSlot":"10:00","status":"pending","totalAmount":2000}`)

	a, err := api.CreateAppointment(context.Background(), NewBooking{
		DoctorID: "d1",
		Date:     time.Date(2026, 11, 2, 0, 0, 0, 0, time.UTC),
		TimeSlot: "10:00",
	})
	require.NoError(t, err)
	require.NotNil(t, a.TotalAmount)
	assert.Equal(t, 2000.0, *a.TotalAmount)

	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(fs.last(t).Body), &body))
	assert.Equal(t, "d1", body["doctorId"])
	assert.Equal(t, "2026-11-02", body["appointmentDate"])
	assert.NotContains(t, body, "userId")
	assert.NotContains(t, body, "durationMinutes")
}

func TestAPIErrorCarriesServerMessage(t *testing.T) {
	api, _ := newTestAPI(t, patientSession, http.StatusConflict,
		`{"error":"slot_taken","message":"That time slot is already booked"}`)

	_, err := api.Pay(context.Background(), "a1")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Equal(t, "slot_taken", apiErr.Code)
	assert.Equal(t, "That time slot is already booked", UserMessage(err))
}

func TestUserMessageFallback(t *testing.T) {
	api, _ := newTestAPI(t, patientSession, http.StatusBadGateway, `<html>bad gateway</html>`)

	_, err := api.ListReplies(context.Background(), "c1")
	require.Error(t, err)
	assert.Equal(t, FallbackMessage, UserMessage(err))
	assert.Equal(t, FallbackMessage, UserMessage(errors.New("dial tcp: refused")))
}

func TestAPIListDropsMalformedRecords(t *testing.T) {
	api, _ := newTestAPI(t, patientSession, http.StatusOK, `[
		{"id":"a1","appointmentDate":"2026-11-02"},
		{"appointmentDate":"2026-11-02"}
	]`)

	list, err := api.ListDoctorAppointments(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "a1", list[0].ID)
}

func TestWithSessionLeavesOriginal(t *testing.T) {
	api, fs := newTestAPI(t, session.Session{}, http.StatusOK, `[]`)
	doctor := api.WithSession(session.Session{ActorID: "d1", Role: session.RoleDoctor, Token: "doc"})

	_, err := doctor.ListDoctorAppointments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer doc", fs.last(t).Auth)
	assert.Equal(t, "", api.Session().Token)
}

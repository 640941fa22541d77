package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/mwangaza12/meditime/internal/session"
)

// Login exchanges credentials for a session. The returned API is not
// modified; use WithSession to act as the new session.
func (a *API) Login(ctx context.Context, email, password string) (session.Session, error) {
	data, err := a.send(ctx, http.MethodPost, "auth/login", map[string]string{"email": email, "password": password})
	if err != nil {
		return session.Session{}, err
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return session.Session{}, fmt.Errorf("decode login response: %w", err)
	}
	return session.FromToken(resp.Token)
}

func (a *API) listComplaints(ctx context.Context, path string, opts []ListOption) ([]Complaint, error) {
	var o listOptions
	for _, opt := range opts {
		opt(&o)
	}
	data, err := a.send(ctx, http.MethodGet, path+o.query(), nil)
	if err != nil {
		return nil, err
	}
	items, rejected, err := ParseComplaints(data)
	if err != nil {
		return nil, err
	}
	if rejected != nil {
		a.logger.Warn().Err(rejected).Str("path", path).Msg("dropped malformed complaints")
	}
	return items, nil
}

// ListComplaints is the admin listing.
func (a *API) ListComplaints(ctx context.Context, opts ...ListOption) ([]Complaint, error) {
	return a.listComplaints(ctx, "complaints", opts)
}

func (a *API) ListUserComplaints(ctx context.Context, userID string, opts ...ListOption) ([]Complaint, error) {
	return a.listComplaints(ctx, "complaints/user/"+url.PathEscape(userID), opts)
}

func (a *API) CreateComplaint(ctx context.Context, subject, description string, appointmentID *string) (Complaint, error) {
	body := map[string]any{"subject": subject, "description": description}
	if appointmentID != nil {
		body["appointmentId"] = *appointmentID
	}
	data, err := a.send(ctx, http.MethodPost, "complaints", body)
	if err != nil {
		return Complaint{}, err
	}
	return ParseComplaint(data)
}

func (a *API) UpdateComplaintStatus(ctx context.Context, id, status string) (Complaint, error) {
	data, err := a.send(ctx, http.MethodPatch, "complaints/"+url.PathEscape(id)+"/status", map[string]string{"status": status})
	if err != nil {
		return Complaint{}, err
	}
	return ParseComplaint(data)
}

// ListReplies fetches the historical thread of a complaint.
func (a *API) ListReplies(ctx context.Context, complaintID string) ([]Reply, error) {
	data, err := a.send(ctx, http.MethodGet, "complaints/"+url.PathEscape(complaintID)+"/replies", nil)
	if err != nil {
		return nil, err
	}
	items, rejected, err := ParseReplies(data)
	if err != nil {
		return nil, err
	}
	if rejected != nil {
		a.logger.Warn().Err(rejected).Str("complaint_id", complaintID).Msg("dropped malformed replies")
	}
	return items, nil
}

// CreateReply persists a message and returns the stored reply.
func (a *API) CreateReply(ctx context.Context, complaintID, message string) (Reply, error) {
	data, err := a.send(ctx, http.MethodPost, "complaints/"+url.PathEscape(complaintID)+"/replies", map[string]string{"message": message})
	if err != nil {
		return Reply{}, err
	}
	return ParseReply(data)
}

package api

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/mwangaza12/meditime/internal/complaint"
	"github.com/mwangaza12/meditime/internal/session"
)

func createComplaintHandler(svc ComplaintService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := session.FromContext(r.Context())

		var req CreateComplaintRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		in := complaint.CreateRequest{Subject: req.Subject, Description: req.Description}
		if req.AppointmentID != nil && *req.AppointmentID != "" {
			id, err := uuid.Parse(*req.AppointmentID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_appointment_id", "appointmentId must be a valid UUID")
				return
			}
			in.AppointmentID = &id
		}

		c, err := svc.Create(r.Context(), actor, in)
		if err != nil {
			handleComplaintError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, toComplaintResponse(c))
	}
}

func getComplaintHandler(svc ComplaintService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := session.FromContext(r.Context())
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		c, err := svc.Get(r.Context(), actor, id)
		if err != nil {
			handleComplaintError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toComplaintResponse(c))
	}
}

func listComplaintsHandler(svc ComplaintService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := session.FromContext(r.Context())
		limit, offset := pageParams(r)

		list, err := svc.ListAll(r.Context(), actor, limit, offset)
		if err != nil {
			handleComplaintError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toComplaintResponses(list))
	}
}

func listUserComplaintsHandler(svc ComplaintService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := session.FromContext(r.Context())
		userID, ok := uuidParam(w, r, "userId")
		if !ok {
			return
		}
		limit, offset := pageParams(r)

		list, err := svc.ListByUser(r.Context(), actor, userID, limit, offset)
		if err != nil {
			handleComplaintError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toComplaintResponses(list))
	}
}

func complaintStatusHandler(svc ComplaintService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := session.FromContext(r.Context())
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		var req StatusRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		to, ok := complaint.ParseStatus(req.Status)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_status", "status must be open, in_progress, resolved or closed")
			return
		}

		c, err := svc.ChangeStatus(r.Context(), actor, id, to)
		if err != nil {
			handleComplaintError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toComplaintResponse(c))
	}
}

func listRepliesHandler(svc ComplaintService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := session.FromContext(r.Context())
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		replies, err := svc.Replies(r.Context(), actor, id)
		if err != nil {
			handleComplaintError(w, r, err)
			return
		}

		out := make([]ReplyResponse, 0, len(replies))
		for i := range replies {
			out = append(out, toReplyResponse(&replies[i]))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func createReplyHandler(svc ComplaintService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := session.FromContext(r.Context())
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		var req ReplyRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		reply, err := svc.AddReply(r.Context(), actor, id, req.Message)
		if err != nil {
			handleComplaintError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, toReplyResponse(reply))
	}
}

func toComplaintResponses(list []complaint.Complaint) []ComplaintResponse {
	out := make([]ComplaintResponse, 0, len(list))
	for i := range list {
		out = append(out, toComplaintResponse(&list[i]))
	}
	return out
}

func handleComplaintError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, complaint.ErrComplaintNotFound):
		writeError(w, http.StatusNotFound, "complaint_not_found", err.Error())
	case errors.Is(err, complaint.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, complaint.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, complaint.ErrInvalidComplaint),
		errors.Is(err, complaint.ErrEmptyMessage),
		errors.Is(err, complaint.ErrMessageTooLong):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, complaint.ErrComplaintClosed):
		writeError(w, http.StatusConflict, "complaint_closed", err.Error())
	case errors.Is(err, complaint.ErrInvalidStatusTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, complaint.ErrStatusConflict):
		writeError(w, http.StatusConflict, "status_conflict", err.Error())
	default:
		writeInternal(w, r, err)
	}
}

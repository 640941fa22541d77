package api

import (
	"errors"
	"net/http"

	"github.com/mwangaza12/meditime/internal/session"
	"github.com/mwangaza12/meditime/internal/user"
)

func loginHandler(auth Authenticator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		sess, u, err := auth.Login(r.Context(), req.Email, req.Password)
		if err != nil {
			if errors.Is(err, user.ErrInvalidCredentials) {
				writeError(w, http.StatusUnauthorized, "invalid_credentials", err.Error())
				return
			}
			writeInternal(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, LoginResponse{Token: sess.Token, User: toUserResponse(u)})
	}
}

// liveHandler authorizes the caller for the complaint room and upgrades.
func liveHandler(complaints ComplaintService, live LiveServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := session.FromContext(r.Context())
		id, ok := uuidParam(w, r, "complaintId")
		if !ok {
			return
		}

		if err := complaints.CanJoin(r.Context(), actor, id); err != nil {
			handleComplaintError(w, r, err)
			return
		}

		// Upgrade writes its own HTTP error on failure.
		if err := live.Serve(w, r, id.String(), actor.ActorID); err != nil {
			return
		}
	}
}

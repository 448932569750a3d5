package httpapi

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/example/ambulance-dispatch/internal/auth"
	"github.com/example/ambulance-dispatch/internal/booking"
	"github.com/example/ambulance-dispatch/internal/models"
)

type createBookingRequest struct {
	Pickup models.Pickup `json:"pickup"`
	Notes  string        `json:"notes"`
}

func (s *Server) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFromContext(r.Context())
	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	b, fx, err := s.engine.Create(r.Context(), id.UserID, req.Pickup, req.Notes)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.dispatcher.Run(r.Context(), fx)
	writeJSON(w, http.StatusCreated, map[string]any{"booking": b})
}

func (s *Server) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFromContext(r.Context())
	bookingID := mux.Vars(r)["id"]
	enriched, err := s.engine.GetByID(r.Context(), bookingID, id.UserID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"booking": enriched})
}

type updateStatusRequest struct {
	Status models.Status `json:"status"`
}

func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFromContext(r.Context())
	bookingID := mux.Vars(r)["id"]
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	b, fx, err := s.engine.UpdateStatus(r.Context(), bookingID, id.UserID, req.Status)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.dispatcher.Run(r.Context(), fx)
	writeJSON(w, http.StatusOK, map[string]any{"booking": b})
}

func (s *Server) handleDriverActive(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFromContext(r.Context())
	bookings, err := s.engine.ListDriverActive(r.Context(), id.UserID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

func (s *Server) handleRiderHistory(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFromContext(r.Context())
	bookings, err := s.engine.ListRiderHistory(r.Context(), id.UserID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

type fcmTokenRequest struct {
	Token string `json:"fcm_token"`
}

func (s *Server) handleFCMToken(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFromContext(r.Context())
	var req fcmTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.users.SetFCMToken(r.Context(), id.UserID, req.Token); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "fcm token updated"})
}

// writeError maps the engine and auth error taxonomy onto HTTP status
// codes. Unexpected failures surface as a generic 500; detail goes to the
// log, not the caller.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrUnauthorized):
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	case errors.Is(err, booking.ErrForbidden), errors.Is(err, auth.ErrForbidden):
		http.Error(w, "not authorized", http.StatusForbidden)
	case errors.Is(err, booking.ErrNotFound):
		http.Error(w, "booking not found", http.StatusNotFound)
	case errors.Is(err, booking.ErrConflict):
		http.Error(w, "booking is no longer available", http.StatusConflict)
	case errors.Is(err, booking.ErrInvalidTransition):
		http.Error(w, "invalid status transition", http.StatusUnprocessableEntity)
	default:
		s.logger.Error("internal error", "error", err)
		http.Error(w, "server error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newID() string { b := make([]byte, 8); _, _ = rand.Read(b); return hex.EncodeToString(b) }

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/maisonlumiere/booking/internal/booking"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// writeBookingError maps the booking error taxonomy onto HTTP statuses.
// Conflicts carry the offending slot starts so the UI can re-render its
// picker; storage errors stay opaque.
func writeBookingError(w http.ResponseWriter, err error) {
	var (
		ve *booking.ValidationError
		ne *booking.NotFoundError
		ce *booking.ConflictError
	)
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, "validation_error", ve.Error())
	case errors.As(err, &ne):
		writeError(w, http.StatusNotFound, "not_found", ne.Error())
	case errors.As(err, &ce):
		resp := ErrorResponse{Error: "conflict", Details: ce.Message}
		for _, t := range ce.Starts {
			resp.ConflictingSlots = append(resp.ConflictingSlots, t.Format(booking.ClockLayout))
		}
		writeJSON(w, http.StatusConflict, resp)
	default:
		log.Printf("internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "something went wrong, please try again")
	}
}

func appointmentResponse(a *booking.Appointment) AppointmentResponse {
	resp := AppointmentResponse{
		ID:              a.ID.String(),
		ServiceID:       a.ServiceID.String(),
		CustomerName:    a.CustomerName,
		CustomerContact: a.CustomerEmail,
		Date:            a.Date.Format(booking.DateLayout),
		StartTime:       a.StartAt.Format(booking.ClockLayout),
		Status:          string(a.Status),
	}
	if a.ProposedDate != nil {
		d := a.ProposedDate.Format(booking.DateLayout)
		resp.ProposedDate = &d
	}
	if a.ProposedStartAt != nil {
		t := a.ProposedStartAt.Format(booking.ClockLayout)
		resp.ProposedStartTime = &t
	}
	return resp
}

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/maisonlumiere/booking/internal/booking"
)

// BookingService is the slice of the coordinator the handlers depend on.
type BookingService interface {
	ListAvailability(ctx context.Context, serviceID uuid.UUID, from, to time.Time) (*booking.Availability, error)
	Reserve(ctx context.Context, req booking.ReserveRequest) (*booking.Appointment, int, error)
	GetAppointment(ctx context.Context, apptID uuid.UUID) (*booking.Appointment, error)
	Cancel(ctx context.Context, apptID uuid.UUID) (*booking.Appointment, error)
	ProposeReschedule(ctx context.Context, apptID uuid.UUID, newDate, newStart time.Time) (*booking.Appointment, error)
	ResolveReschedule(ctx context.Context, apptID uuid.UUID, accepted bool) (*booking.Appointment, error)
	PruneSlots(ctx context.Context, before *time.Time) (deleted, kept int64, err error)
	Granularity() time.Duration
	Location() *time.Location
}

func availabilityHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		rawService := q.Get("service_id")
		if rawService == "" {
			writeError(w, http.StatusBadRequest, "missing_service", "service_id is required")
			return
		}
		serviceID, err := uuid.Parse(rawService)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_service_id", "service_id must be a valid UUID")
			return
		}

		loc := svc.Location()
		var from, to time.Time
		switch {
		case q.Get("date") != "":
			from, err = booking.ParseDate(q.Get("date"), loc)
			to = from
		case q.Get("date_from") != "" && q.Get("date_to") != "":
			from, err = booking.ParseDate(q.Get("date_from"), loc)
			if err == nil {
				to, err = booking.ParseDate(q.Get("date_to"), loc)
			}
		default:
			writeError(w, http.StatusBadRequest, "missing_date", "provide date or date_from/date_to")
			return
		}
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "dates must be YYYY-MM-DD")
			return
		}

		av, err := svc.ListAvailability(r.Context(), serviceID, from, to)
		if err != nil {
			writeBookingError(w, err)
			return
		}

		resp := AvailabilityResponse{
			Service: ServiceResponse{
				ID:              av.Service.ID.String(),
				Name:            av.Service.Name,
				DurationMinutes: av.Service.DurationMinutes,
				PriceCents:      av.Service.PriceCents,
			},
			SlotGranularity:   int(av.Granularity.Minutes()),
			RequiredSlotCount: av.RequiredSlots,
			AvailableSlots:    []AvailableStart{},
		}
		for _, day := range av.Days {
			for _, start := range day.Starts {
				entry := AvailableStart{
					Date:      start.Date.Format(booking.DateLayout),
					StartTime: start.StartAt.Format(booking.ClockLayout),
				}
				for _, s := range start.Run {
					entry.RequiredSlots = append(entry.RequiredSlots, SlotRef{
						ID:        s.ID.String(),
						StartTime: s.StartAt.Format(booking.ClockLayout),
					})
				}
				resp.AvailableSlots = append(resp.AvailableSlots, entry)
			}
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func reserveHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ReserveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		serviceID, err := uuid.Parse(req.ServiceID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_service_id", "service_id must be a valid UUID")
			return
		}

		date, startAt, err := booking.ParseStart(req.Date, req.StartTime, svc.Location())
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start", "date must be YYYY-MM-DD and start_time HH:MM")
			return
		}

		slotIDs := make([]uuid.UUID, 0, len(req.RequiredSlotIDs))
		for _, raw := range req.RequiredSlotIDs {
			id, err := uuid.Parse(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_slot_id", "required_slot_ids must be valid UUIDs")
				return
			}
			slotIDs = append(slotIDs, id)
		}

		var email *string
		if req.CustomerContact != "" {
			email = &req.CustomerContact
		}

		appt, reserved, err := svc.Reserve(r.Context(), booking.ReserveRequest{
			ServiceID:     serviceID,
			Date:          date,
			StartAt:       startAt,
			CustomerName:  req.CustomerName,
			CustomerEmail: email,
			SlotIDs:       slotIDs,
			AdminEntered:  IsAdmin(r),
		})
		if err != nil {
			writeBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, ReserveResponse{
			Appointment:   appointmentResponse(appt),
			SlotsReserved: reserved,
		})
	}
}

func getAppointmentHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}
		appt, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			writeBookingError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, appointmentResponse(appt))
	}
}

func cancelAppointmentHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}
		appt, err := svc.Cancel(r.Context(), id)
		if err != nil {
			writeBookingError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, appointmentResponse(appt))
	}
}

func proposeRescheduleHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}

		var req RescheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		newDate, newStart, err := booking.ParseStart(req.NewDate, req.NewTime, svc.Location())
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start", "new_date must be YYYY-MM-DD and new_time HH:MM")
			return
		}

		appt, err := svc.ProposeReschedule(r.Context(), id, newDate, newStart)
		if err != nil {
			writeBookingError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, appointmentResponse(appt))
	}
}

func resolveRescheduleHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}

		var req ResolveRescheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if req.Accepted == nil {
			writeError(w, http.StatusBadRequest, "missing_accepted", "accepted is required")
			return
		}

		if _, err := svc.ResolveReschedule(r.Context(), id, *req.Accepted); err != nil {
			writeBookingError(w, err)
			return
		}

		msg := "reschedule declined"
		if *req.Accepted {
			msg = "reschedule confirmed"
		}
		writeJSON(w, http.StatusOK, MessageResponse{Message: msg})
	}
}

func pruneSlotsHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var before *time.Time
		if raw := r.URL.Query().Get("before"); raw != "" {
			d, err := booking.ParseDate(raw, svc.Location())
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_date", "before must be YYYY-MM-DD")
				return
			}
			before = &d
		}

		deleted, kept, err := svc.PruneSlots(r.Context(), before)
		if err != nil {
			writeBookingError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, PruneResponse{Deleted: deleted, Kept: kept})
	}
}

func parseIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

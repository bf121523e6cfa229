package api

type ReserveRequest struct {
	ServiceID       string   `json:"service_id"`
	Date            string   `json:"date"`
	StartTime       string   `json:"start_time"`
	CustomerName    string   `json:"customer_name"`
	CustomerContact string   `json:"customer_contact,omitempty"`
	RequiredSlotIDs []string `json:"required_slot_ids"`
}

type RescheduleRequest struct {
	NewDate string `json:"new_date"`
	NewTime string `json:"new_time"`
}

type ResolveRescheduleRequest struct {
	Accepted *bool `json:"accepted"`
}

type AppointmentResponse struct {
	ID                string  `json:"id"`
	ServiceID         string  `json:"service_id"`
	CustomerName      string  `json:"customer_name"`
	CustomerContact   *string `json:"customer_contact,omitempty"`
	Date              string  `json:"date"`
	StartTime         string  `json:"start_time"`
	Status            string  `json:"status"`
	ProposedDate      *string `json:"proposed_date,omitempty"`
	ProposedStartTime *string `json:"proposed_start_time,omitempty"`
}

type ReserveResponse struct {
	Appointment   AppointmentResponse `json:"appointment"`
	SlotsReserved int                 `json:"slots_reserved"`
}

type ServiceResponse struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	DurationMinutes int    `json:"duration_minutes"`
	PriceCents      int    `json:"price_cents"`
}

type SlotRef struct {
	ID        string `json:"id"`
	StartTime string `json:"start_time"`
}

type AvailableStart struct {
	Date          string    `json:"date"`
	StartTime     string    `json:"start_time"`
	RequiredSlots []SlotRef `json:"required_slots"`
}

type AvailabilityResponse struct {
	Service           ServiceResponse  `json:"service"`
	SlotGranularity   int              `json:"slot_granularity"`
	RequiredSlotCount int              `json:"required_slot_count"`
	AvailableSlots    []AvailableStart `json:"available_slots"`
}

type PruneResponse struct {
	Deleted int64 `json:"deleted"`
	Kept    int64 `json:"kept"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error            string   `json:"error"`
	Details          string   `json:"details,omitempty"`
	ConflictingSlots []string `json:"conflicting_slots,omitempty"`
}

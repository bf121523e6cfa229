package booking

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusAccepted  AppointmentStatus = "accepted"
	StatusRefused   AppointmentStatus = "refused"
	StatusCancelled AppointmentStatus = "cancelled"
)

// IsActive reports whether an appointment in this status still holds its slots.
func (s AppointmentStatus) IsActive() bool {
	return s == StatusPending || s == StatusAccepted
}

// SlotPhase distinguishes the run an appointment currently occupies from the
// run held for it while a reschedule proposal is outstanding.
type SlotPhase string

const (
	PhaseBooked   SlotPhase = "booked"
	PhaseProposed SlotPhase = "proposed"
)

// TimeSlot is the atomic bookable unit. Date is midnight of the slot's day in
// the salon's timezone; StartAt is the full start timestamp on that day.
type TimeSlot struct {
	ID        uuid.UUID
	Date      time.Time
	StartAt   time.Time
	Available bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Service is a salon offering. Read-only input to the booking core; its
// duration determines how many contiguous slots a reservation consumes.
type Service struct {
	ID              uuid.UUID
	Name            string
	DurationMinutes int
	PriceCents      int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Appointment struct {
	ID              uuid.UUID
	ServiceID       uuid.UUID
	CustomerName    string
	CustomerEmail   *string
	Date            time.Time
	StartAt         time.Time
	Status          AppointmentStatus
	ProposedDate    *time.Time
	ProposedStartAt *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// AppointmentSlot links an appointment to one physical slot it consumed.
// Position is authoritative for run order; the store is not trusted to
// preserve insertion order.
type AppointmentSlot struct {
	AppointmentID uuid.UUID
	TimeSlotID    uuid.UUID
	Position      int
	Phase         SlotPhase
}

type WindowKind string

const (
	WindowOpen   WindowKind = "open"
	WindowClosed WindowKind = "closed"
)

// ScheduleWindow is an exceptional open or closed date range, e.g. a holiday
// closure or a Sunday the salon exceptionally opens.
type ScheduleWindow struct {
	ID        uuid.UUID
	Kind      WindowKind
	StartDate time.Time
	EndDate   time.Time
	Reason    *string
	CreatedAt time.Time
}

// Contains reports whether the given date (midnight-normalized) falls inside
// the window, boundaries included.
func (w ScheduleWindow) Contains(date time.Time) bool {
	return !date.Before(w.StartDate) && !date.After(w.EndDate)
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

const (
	EventAppointmentCreated   = "APPOINTMENT_CREATED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
	EventRescheduleProposed   = "RESCHEDULE_PROPOSED"
	EventRescheduleAccepted   = "RESCHEDULE_ACCEPTED"
	EventRescheduleRejected   = "RESCHEDULE_REJECTED"
)

// Event is handed to the notifier after a successful state change. Delivery is
// best-effort and never affects the operation's outcome.
type Event struct {
	Type        string
	Appointment Appointment
	ServiceName string
}

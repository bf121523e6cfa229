package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrServiceNotFound     = errors.New("service not found")
	ErrSlotNotFound        = errors.New("slot not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrStateMismatch       = errors.New("appointment not in expected state")
)

// Repository contains all store interactions needed by the coordinator.
// Implementations must make the availability writes conditional so that a
// write racing another reservation affects zero rows instead of clobbering
// the other side's claim.
type Repository interface {
	GetServiceByID(ctx context.Context, id uuid.UUID) (*Service, error)

	// ListSlotsInRange returns all slots whose date lies in [from, to].
	ListSlotsInRange(ctx context.Context, from, to time.Time) ([]TimeSlot, error)
	ListSlotsOnDate(ctx context.Context, date time.Time) ([]TimeSlot, error)
	GetSlotsByIDs(ctx context.Context, ids []uuid.UUID) ([]TimeSlot, error)

	// MarkSlotUnavailable claims a slot. It returns false, with no error,
	// when the slot was no longer available: a late-discovered conflict.
	MarkSlotUnavailable(ctx context.Context, id uuid.UUID) (bool, error)
	MarkSlotAvailable(ctx context.Context, id uuid.UUID) error

	CreateAppointment(ctx context.Context, appt *Appointment) (*Appointment, error)
	// DeleteAppointment exists for rollback only.
	DeleteAppointment(ctx context.Context, id uuid.UUID) error
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// FindActiveAppointmentAt returns the pending/accepted appointment
	// occupying startAt, excluding the given appointment.
	FindActiveAppointmentAt(ctx context.Context, startAt time.Time, exclude uuid.UUID) (*Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error)

	// Reschedule state transitions, each guarded on current status so a
	// stale second resolve affects zero rows (ErrStateMismatch).
	ProposeReschedule(ctx context.Context, id uuid.UUID, date, startAt time.Time) (*Appointment, error)
	ApplyReschedule(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ClearReschedule(ctx context.Context, id uuid.UUID, to AppointmentStatus) (*Appointment, error)

	InsertSlotLinks(ctx context.Context, apptID uuid.UUID, slotIDs []uuid.UUID, phase SlotPhase) error
	ListSlotLinks(ctx context.Context, apptID uuid.UUID, phase SlotPhase) ([]AppointmentSlot, error)
	DeleteSlotLinks(ctx context.Context, apptID uuid.UUID, phase SlotPhase) error
	// PromoteProposedLinks replaces the booked run with the proposed one.
	PromoteProposedLinks(ctx context.Context, apptID uuid.UUID) error

	// DeleteUnreservedSlots removes available slots not referenced by any
	// pending/accepted appointment, optionally only before a cutoff date.
	// kept counts slots retained because an active appointment holds them.
	DeleteUnreservedSlots(ctx context.Context, before *time.Time) (deleted, kept int64, err error)

	ListScheduleWindows(ctx context.Context) ([]ScheduleWindow, error)

	InsertEvent(ctx context.Context, ev EventLog) error
}

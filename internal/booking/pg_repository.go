package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxPool is the subset of pgxpool.Pool the repository uses. Declared so the
// repository can be exercised against a mock pool in tests.
type PgxPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type PgRepository struct {
	pool PgxPool
}

func NewPgRepository(pool PgxPool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanService(row pgx.Row) (*Service, error) {
	var s Service
	err := row.Scan(
		&s.ID,
		&s.Name,
		&s.DurationMinutes,
		&s.PriceCents,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrServiceNotFound
		}
		return nil, err
	}
	return &s, nil
}

func scanSlot(row pgx.Row) (*TimeSlot, error) {
	var s TimeSlot
	err := row.Scan(
		&s.ID,
		&s.Date,
		&s.StartAt,
		&s.Available,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}
	return &s, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID,
		&a.ServiceID,
		&a.CustomerName,
		&a.CustomerEmail,
		&a.Date,
		&a.StartAt,
		&a.Status,
		&a.ProposedDate,
		&a.ProposedStartAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	return &a, nil
}

const appointmentColumns = `id, service_id, customer_name, customer_email, appointment_date, start_at,
	status, proposed_date, proposed_start_at, created_at, updated_at`

// Interface methods

func (r *PgRepository) GetServiceByID(ctx context.Context, id uuid.UUID) (*Service, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, duration_minutes, price_cents, created_at, updated_at
		FROM services
		WHERE id = $1
	`, id)
	return scanService(row)
}

func (r *PgRepository) ListSlotsInRange(ctx context.Context, from, to time.Time) ([]TimeSlot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, slot_date, start_at, available, created_at, updated_at
		FROM time_slots
		WHERE slot_date >= $1 AND slot_date <= $2
		ORDER BY start_at
	`, dateArg(from), dateArg(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSlots(rows)
}

func (r *PgRepository) ListSlotsOnDate(ctx context.Context, date time.Time) ([]TimeSlot, error) {
	return r.ListSlotsInRange(ctx, date, date)
}

func (r *PgRepository) GetSlotsByIDs(ctx context.Context, ids []uuid.UUID) ([]TimeSlot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, slot_date, start_at, available, created_at, updated_at
		FROM time_slots
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSlots(rows)
}

func collectSlots(rows pgx.Rows) ([]TimeSlot, error) {
	var result []TimeSlot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) MarkSlotUnavailable(ctx context.Context, id uuid.UUID) (bool, error) {
	// Conditional write: zero rows affected means another reservation got
	// there first, which the caller treats as a late conflict.
	tag, err := r.pool.Exec(ctx, `
		UPDATE time_slots
		SET available = false,
		    updated_at = now()
		WHERE id = $1
		  AND available = true
	`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PgRepository) MarkSlotAvailable(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE time_slots
		SET available = true,
		    updated_at = now()
		WHERE id = $1
	`, id)
	return err
}

func (r *PgRepository) CreateAppointment(ctx context.Context, appt *Appointment) (*Appointment, error) {
	id := appt.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (id, service_id, customer_name, customer_email, appointment_date, start_at, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		RETURNING `+appointmentColumns+`
	`, id, appt.ServiceID, appt.CustomerName, appt.CustomerEmail, dateArg(appt.Date), appt.StartAt, appt.Status)
	return scanAppointment(row)
}

func (r *PgRepository) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	return err
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) FindActiveAppointmentAt(ctx context.Context, startAt time.Time, exclude uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE start_at = $1
		  AND status IN ('pending', 'accepted')
		  AND id <> $2
		LIMIT 1
	`, startAt, exclude)
	return scanAppointment(row)
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, id, to, from)
	appt, err := scanAppointment(row)
	if errors.Is(err, ErrAppointmentNotFound) {
		return nil, ErrStateMismatch
	}
	return appt, err
}

func (r *PgRepository) ProposeReschedule(ctx context.Context, id uuid.UUID, date, startAt time.Time) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET proposed_date = $2,
		    proposed_start_at = $3,
		    status = 'pending',
		    updated_at = now()
		WHERE id = $1
		  AND status = 'accepted'
		RETURNING `+appointmentColumns+`
	`, id, dateArg(date), startAt)
	appt, err := scanAppointment(row)
	if errors.Is(err, ErrAppointmentNotFound) {
		return nil, ErrStateMismatch
	}
	return appt, err
}

func (r *PgRepository) ApplyReschedule(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET appointment_date = proposed_date,
		    start_at = proposed_start_at,
		    proposed_date = NULL,
		    proposed_start_at = NULL,
		    status = 'accepted',
		    updated_at = now()
		WHERE id = $1
		  AND status = 'pending'
		  AND proposed_start_at IS NOT NULL
		RETURNING `+appointmentColumns+`
	`, id)
	appt, err := scanAppointment(row)
	if errors.Is(err, ErrAppointmentNotFound) {
		return nil, ErrStateMismatch
	}
	return appt, err
}

func (r *PgRepository) ClearReschedule(ctx context.Context, id uuid.UUID, to AppointmentStatus) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET proposed_date = NULL,
		    proposed_start_at = NULL,
		    status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = 'pending'
		  AND proposed_start_at IS NOT NULL
		RETURNING `+appointmentColumns+`
	`, id, to)
	appt, err := scanAppointment(row)
	if errors.Is(err, ErrAppointmentNotFound) {
		return nil, ErrStateMismatch
	}
	return appt, err
}

func (r *PgRepository) InsertSlotLinks(ctx context.Context, apptID uuid.UUID, slotIDs []uuid.UUID, phase SlotPhase) error {
	for i, slotID := range slotIDs {
		_, err := r.pool.Exec(ctx, `
			INSERT INTO appointment_slots (appointment_id, time_slot_id, position, phase)
			VALUES ($1, $2, $3, $4)
		`, apptID, slotID, i, phase)
		if err != nil {
			return fmt.Errorf("insert slot link %d: %w", i, err)
		}
	}
	return nil
}

func (r *PgRepository) ListSlotLinks(ctx context.Context, apptID uuid.UUID, phase SlotPhase) ([]AppointmentSlot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT appointment_id, time_slot_id, position, phase
		FROM appointment_slots
		WHERE appointment_id = $1 AND phase = $2
		ORDER BY position
	`, apptID, phase)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []AppointmentSlot
	for rows.Next() {
		var l AppointmentSlot
		if err := rows.Scan(&l.AppointmentID, &l.TimeSlotID, &l.Position, &l.Phase); err != nil {
			return nil, err
		}
		result = append(result, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) DeleteSlotLinks(ctx context.Context, apptID uuid.UUID, phase SlotPhase) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM appointment_slots
		WHERE appointment_id = $1 AND phase = $2
	`, apptID, phase)
	return err
}

func (r *PgRepository) PromoteProposedLinks(ctx context.Context, apptID uuid.UUID) error {
	if err := r.DeleteSlotLinks(ctx, apptID, PhaseBooked); err != nil {
		return fmt.Errorf("drop booked links: %w", err)
	}
	_, err := r.pool.Exec(ctx, `
		UPDATE appointment_slots
		SET phase = 'booked'
		WHERE appointment_id = $1 AND phase = 'proposed'
	`, apptID)
	if err != nil {
		return fmt.Errorf("promote proposed links: %w", err)
	}
	return nil
}

func (r *PgRepository) DeleteUnreservedSlots(ctx context.Context, before *time.Time) (int64, int64, error) {
	var kept int64
	err := r.pool.QueryRow(ctx, `
		SELECT count(DISTINCT ts.id)
		FROM time_slots ts
		JOIN appointment_slots asl ON asl.time_slot_id = ts.id
		JOIN appointments a ON a.id = asl.appointment_id
		WHERE a.status IN ('pending', 'accepted')
		  AND ($1::date IS NULL OR ts.slot_date < $1)
	`, nullableDateArg(before)).Scan(&kept)
	if err != nil {
		return 0, 0, fmt.Errorf("count reserved slots: %w", err)
	}

	tag, err := r.pool.Exec(ctx, `
		DELETE FROM time_slots ts
		WHERE ts.available = true
		  AND ($1::date IS NULL OR ts.slot_date < $1)
		  AND NOT EXISTS (
			SELECT 1
			FROM appointment_slots asl
			JOIN appointments a ON a.id = asl.appointment_id
			WHERE asl.time_slot_id = ts.id
			  AND a.status IN ('pending', 'accepted')
		  )
	`, nullableDateArg(before))
	if err != nil {
		return 0, 0, fmt.Errorf("delete unreserved slots: %w", err)
	}

	return tag.RowsAffected(), kept, nil
}

func (r *PgRepository) ListScheduleWindows(ctx context.Context) ([]ScheduleWindow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, kind, start_date, end_date, reason, created_at
		FROM schedule_windows
		ORDER BY start_date
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ScheduleWindow
	for rows.Next() {
		var w ScheduleWindow
		if err := rows.Scan(&w.ID, &w.Kind, &w.StartDate, &w.EndDate, &w.Reason, &w.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_log (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}
	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// dateArg binds a calendar date as its text form. Binding the time.Time
// directly goes through timestamptz, which shifts the stored day whenever
// the salon timezone and the server timezone disagree.
func dateArg(t time.Time) string {
	return t.Format(DateLayout)
}

func nullableDateArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return dateArg(*t)
}

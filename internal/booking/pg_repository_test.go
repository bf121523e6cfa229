package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (*PgRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPgRepository(mock), mock
}

func TestMarkSlotUnavailableClaimsOpenSlot(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()

	mock.ExpectExec("UPDATE time_slots").
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	ok, err := repo.MarkSlotUnavailable(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkSlotUnavailableReportsLateConflict(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()

	// The conditional write matched nothing: another reservation already
	// claimed the slot. No error, just a false.
	mock.ExpectExec("UPDATE time_slots").
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	ok, err := repo.MarkSlotUnavailable(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetServiceByID(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()
	now := time.Now()

	mock.ExpectQuery("SELECT id, name, duration_minutes").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "duration_minutes", "price_cents", "created_at", "updated_at"}).
			AddRow(id, "Full Colour", 90, 9500, now, now))

	svc, err := repo.GetServiceByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Full Colour", svc.Name)
	assert.Equal(t, 90, svc.DurationMinutes)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetServiceByIDNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()

	mock.ExpectQuery("SELECT id, name, duration_minutes").
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetServiceByID(context.Background(), id)
	assert.ErrorIs(t, err, ErrServiceNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func appointmentRow(id uuid.UUID, status AppointmentStatus) *pgxmock.Rows {
	now := time.Now()
	return pgxmock.NewRows([]string{
		"id", "service_id", "customer_name", "customer_email", "appointment_date", "start_at",
		"status", "proposed_date", "proposed_start_at", "created_at", "updated_at",
	}).AddRow(id, uuid.New(), "Ada Lovelace", (*string)(nil), now, now, status, (*time.Time)(nil), (*time.Time)(nil), now, now)
}

func TestGetAppointmentByID(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM appointments").
		WithArgs(id).
		WillReturnRows(appointmentRow(id, StatusPending))

	appt, err := repo.GetAppointmentByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, appt.ID)
	assert.Equal(t, StatusPending, appt.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateAppointmentStatusGuarded(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()

	mock.ExpectQuery("UPDATE appointments").
		WithArgs(id, StatusCancelled, StatusPending).
		WillReturnRows(appointmentRow(id, StatusCancelled))

	appt, err := repo.UpdateAppointmentStatus(context.Background(), id, StatusPending, StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, appt.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateAppointmentStatusStateMismatch(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()

	// Guarded update matched no row: the appointment moved on already.
	mock.ExpectQuery("UPDATE appointments").
		WithArgs(id, StatusCancelled, StatusPending).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.UpdateAppointmentStatus(context.Background(), id, StatusPending, StatusCancelled)
	assert.ErrorIs(t, err, ErrStateMismatch)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClearRescheduleStateMismatch(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()

	mock.ExpectQuery("UPDATE appointments").
		WithArgs(id, StatusRefused).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.ClearReschedule(context.Background(), id, StatusRefused)
	assert.ErrorIs(t, err, ErrStateMismatch)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertSlotLinksPositionsAreOrdinal(t *testing.T) {
	repo, mock := newMockRepo(t)
	apptID := uuid.New()
	slotIDs := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}

	for i, slotID := range slotIDs {
		mock.ExpectExec("INSERT INTO appointment_slots").
			WithArgs(apptID, slotID, i, PhaseBooked).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}

	err := repo.InsertSlotLinks(context.Background(), apptID, slotIDs, PhaseBooked)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPromoteProposedLinks(t *testing.T) {
	repo, mock := newMockRepo(t)
	apptID := uuid.New()

	mock.ExpectExec("DELETE FROM appointment_slots").
		WithArgs(apptID, PhaseBooked).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectExec("UPDATE appointment_slots").
		WithArgs(apptID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))

	err := repo.PromoteProposedLinks(context.Background(), apptID)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListSlotsInRangeBindsCalendarDates(t *testing.T) {
	repo, mock := newMockRepo(t)
	paris, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)

	// Bounds go over the wire as plain dates, so a salon timezone east or
	// west of the server cannot shift the queried day.
	from := time.Date(2099, time.June, 10, 0, 0, 0, 0, paris)
	to := time.Date(2099, time.June, 11, 0, 0, 0, 0, paris)

	mock.ExpectQuery("SELECT (.+) FROM time_slots").
		WithArgs("2099-06-10", "2099-06-11").
		WillReturnRows(pgxmock.NewRows([]string{"id", "slot_date", "start_at", "available", "created_at", "updated_at"}))

	_, err = repo.ListSlotsInRange(context.Background(), from, to)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteUnreservedSlots(t *testing.T) {
	repo, mock := newMockRepo(t)
	cutoff := time.Date(2099, time.March, 2, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT count").
		WithArgs("2099-03-02").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(3)))
	mock.ExpectExec("DELETE FROM time_slots").
		WithArgs("2099-03-02").
		WillReturnResult(pgxmock.NewResult("DELETE", 12))

	deleted, kept, err := repo.DeleteUnreservedSlots(context.Background(), &cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(12), deleted)
	assert.Equal(t, int64(3), kept)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteUnreservedSlotsPropagatesError(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("SELECT count").
		WithArgs(nil).
		WillReturnError(errors.New("connection reset"))

	_, _, err := repo.DeleteUnreservedSlots(context.Background(), nil)
	assert.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

package booking

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	redisclient "github.com/maisonlumiere/booking/internal/redis"
)

// Notifier consumes domain events after a successful state change. Calls are
// dispatched on their own goroutine and their outcome is never inspected by
// the coordinator.
type Notifier interface {
	Notify(ctx context.Context, ev Event)
}

// Metrics is the slice of instrumentation the coordinator reports into.
type Metrics interface {
	ObserveReserve(outcome string, seconds float64)
	ObserveReschedule(action, outcome string)
	AddPrunedSlots(n int64)
}

// CoordinatorConfig carries the salon's booking parameters.
type CoordinatorConfig struct {
	Granularity    time.Duration
	Location       *time.Location
	ClosedWeekdays map[time.Weekday]bool
}

// Coordinator owns every mutation of slot and appointment state. The store
// offers no multi-statement transactions, so multi-step commits track which
// steps succeeded and unwind them in reverse on failure.
type Coordinator struct {
	repo     Repository
	locker   redisclient.Locker
	notifier Notifier
	metrics  Metrics
	cfg      CoordinatorConfig
	now      func() time.Time
}

func NewCoordinator(repo Repository, locker redisclient.Locker, notifier Notifier, m Metrics, cfg CoordinatorConfig) *Coordinator {
	if cfg.Granularity <= 0 {
		cfg.Granularity = 30 * time.Minute
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Coordinator{
		repo:     repo,
		locker:   locker,
		notifier: notifier,
		metrics:  m,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Granularity exposes the slot granularity the coordinator was built with.
func (c *Coordinator) Granularity() time.Duration { return c.cfg.Granularity }

// Location exposes the salon timezone.
func (c *Coordinator) Location() *time.Location { return c.cfg.Location }

// Availability is the bookable-start projection for one service.
type Availability struct {
	Service       Service
	Granularity   time.Duration
	RequiredSlots int
	Days          []DayAvailability
}

type DayAvailability struct {
	Date   time.Time
	Starts []BookableStart
}

// ListAvailability prunes raw slots through the opening rules and groups the
// survivors into bookable start times for the service.
func (c *Coordinator) ListAvailability(ctx context.Context, serviceID uuid.UUID, from, to time.Time) (*Availability, error) {
	if to.Before(from) {
		return nil, validationf("date_to", "must not precede date_from")
	}

	svc, err := c.repo.GetServiceByID(ctx, serviceID)
	if err != nil {
		if errors.Is(err, ErrServiceNotFound) {
			return nil, &NotFoundError{Entity: "service", ID: serviceID.String()}
		}
		return nil, storagef("load service", err)
	}

	slots, err := c.repo.ListSlotsInRange(ctx, from, to)
	if err != nil {
		return nil, storagef("list slots", err)
	}

	windows, err := c.repo.ListScheduleWindows(ctx)
	if err != nil {
		return nil, storagef("list schedule windows", err)
	}

	rules := SplitWindows(windows, c.cfg.ClosedWeekdays)
	offerable := FilterOfferable(slots, rules, c.now())

	required := RequiredSlotCount(svc.DurationMinutes, int(c.cfg.Granularity.Minutes()))
	starts := BookableStarts(offerable, required, c.cfg.Granularity)

	av := &Availability{
		Service:       *svc,
		Granularity:   c.cfg.Granularity,
		RequiredSlots: required,
	}
	for _, bs := range starts {
		if n := len(av.Days); n == 0 || !av.Days[n-1].Date.Equal(bs.Date) {
			av.Days = append(av.Days, DayAvailability{Date: bs.Date})
		}
		last := &av.Days[len(av.Days)-1]
		last.Starts = append(last.Starts, bs)
	}
	return av, nil
}

// ReserveRequest is a validated booking attempt. SlotIDs is the run the
// client selected from a prior availability listing, in order.
type ReserveRequest struct {
	ServiceID     uuid.UUID
	Date          time.Time
	StartAt       time.Time
	CustomerName  string
	CustomerEmail *string
	SlotIDs       []uuid.UUID
	AdminEntered  bool
}

// Reserve claims a contiguous run of slots for a new appointment. The commit
// is a compensating saga: appointment row first, then per-slot conditional
// claims, then ordered link rows; any failure unwinds everything already
// applied before the error is returned, so a failed reserve leaves state
// observably unchanged.
func (c *Coordinator) Reserve(ctx context.Context, req ReserveRequest) (*Appointment, int, error) {
	start := c.now()
	appt, err := c.reserve(ctx, req)
	c.observeReserve(err, c.now().Sub(start))
	if err != nil {
		return nil, 0, err
	}
	return appt, len(req.SlotIDs), nil
}

func (c *Coordinator) reserve(ctx context.Context, req ReserveRequest) (*Appointment, error) {
	if req.CustomerName == "" {
		return nil, validationf("customer_name", "is required")
	}

	svc, err := c.repo.GetServiceByID(ctx, req.ServiceID)
	if err != nil {
		if errors.Is(err, ErrServiceNotFound) {
			return nil, &NotFoundError{Entity: "service", ID: req.ServiceID.String()}
		}
		return nil, storagef("load service", err)
	}

	// The required count is recomputed server-side; a stale or tampered
	// slot list from the client fails before anything is written.
	required := RequiredSlotCount(svc.DurationMinutes, int(c.cfg.Granularity.Minutes()))
	if len(req.SlotIDs) == 0 {
		return nil, validationf("required_slot_ids", "is required")
	}
	if len(req.SlotIDs) != required {
		return nil, validationf("required_slot_ids", "expected %d slots for this service, got %d", required, len(req.SlotIDs))
	}

	var created *Appointment
	err = c.locker.WithStartLock(ctx, req.StartAt, func(lockCtx context.Context) error {
		var err error
		created, err = c.reserveLocked(lockCtx, req, svc, required)
		return err
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, &ConflictError{Message: "time is currently being booked, please retry"}
		}
		return nil, err
	}

	c.logEvent(ctx, created.ID, EventAppointmentCreated, map[string]any{
		"service_id": req.ServiceID.String(),
		"date":       req.Date.Format(DateLayout),
		"start_time": req.StartAt.Format(ClockLayout),
		"slots":      len(req.SlotIDs),
	})
	c.dispatch(ctx, Event{Type: EventAppointmentCreated, Appointment: *created, ServiceName: svc.Name})

	return created, nil
}

func (c *Coordinator) reserveLocked(ctx context.Context, req ReserveRequest, svc *Service, required int) (*Appointment, error) {
	slots, err := c.repo.GetSlotsByIDs(ctx, req.SlotIDs)
	if err != nil {
		return nil, storagef("load slots", err)
	}
	byID := make(map[uuid.UUID]TimeSlot, len(slots))
	for _, s := range slots {
		byID[s.ID] = s
	}
	for _, id := range req.SlotIDs {
		if _, ok := byID[id]; !ok {
			return nil, &NotFoundError{Entity: "time slot", ID: id.String()}
		}
	}

	// The run must be exactly the contiguous sequence the requested start
	// implies, in the submitted order.
	var taken []time.Time
	for i, id := range req.SlotIDs {
		s := byID[id]
		want := req.StartAt.Add(time.Duration(i) * c.cfg.Granularity)
		if !s.StartAt.Equal(want) || !SameDate(s.Date, req.Date) {
			return nil, validationf("required_slot_ids", "slot %s does not match the requested start time", id)
		}
		if !s.Available {
			taken = append(taken, s.StartAt)
		}
	}
	if len(taken) > 0 {
		return nil, &ConflictError{Message: "slots no longer available", Starts: taken}
	}

	status := StatusPending
	if req.AdminEntered {
		status = StatusAccepted
	}

	// Step 1: appointment row.
	created, err := c.repo.CreateAppointment(ctx, &Appointment{
		ServiceID:     req.ServiceID,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		Date:          req.Date,
		StartAt:       req.StartAt,
		Status:        status,
	})
	if err != nil {
		return nil, storagef("create appointment", err)
	}

	// Step 2: claim each slot with a conditional write; a zero-row update
	// means someone took the slot between check and act.
	claimed, claimErr := c.claimRun(ctx, req.SlotIDs)
	if claimErr != nil {
		c.releaseSlots(ctx, claimed)
		if delErr := c.repo.DeleteAppointment(ctx, created.ID); delErr != nil {
			log.Printf("rollback: delete appointment %s: %v", created.ID, delErr)
		}
		return nil, claimErr
	}

	// Step 3: ordered link rows.
	if err := c.repo.InsertSlotLinks(ctx, created.ID, req.SlotIDs, PhaseBooked); err != nil {
		c.releaseSlots(ctx, req.SlotIDs)
		if delErr := c.repo.DeleteAppointment(ctx, created.ID); delErr != nil {
			log.Printf("rollback: delete appointment %s: %v", created.ID, delErr)
		}
		return nil, storagef("link slots", err)
	}

	return created, nil
}

// claimRun marks the run unavailable slot by slot, returning the ids already
// claimed when a later one fails so the caller can unwind.
func (c *Coordinator) claimRun(ctx context.Context, slotIDs []uuid.UUID) ([]uuid.UUID, error) {
	claimed := make([]uuid.UUID, 0, len(slotIDs))
	for _, id := range slotIDs {
		ok, err := c.repo.MarkSlotUnavailable(ctx, id)
		if err != nil {
			return claimed, storagef("claim slot", err)
		}
		if !ok {
			return claimed, &ConflictError{Message: "slot taken at commit time", Starts: nil}
		}
		claimed = append(claimed, id)
	}
	return claimed, nil
}

// releaseSlots reverts claims in reverse order. Failures are logged and skipped;
// there is nothing further to unwind into.
func (c *Coordinator) releaseSlots(ctx context.Context, slotIDs []uuid.UUID) {
	for i := len(slotIDs) - 1; i >= 0; i-- {
		if err := c.repo.MarkSlotAvailable(ctx, slotIDs[i]); err != nil {
			log.Printf("rollback: release slot %s: %v", slotIDs[i], err)
		}
	}
}

// ProposeReschedule offers a new date/time for an accepted appointment. The
// proposed run is claimed immediately so it cannot be double-booked while the
// customer decides; the original run stays held in case of rejection.
func (c *Coordinator) ProposeReschedule(ctx context.Context, apptID uuid.UUID, newDate, newStart time.Time) (*Appointment, error) {
	appt, err := c.getAppointment(ctx, apptID)
	if err != nil {
		c.observeReschedule("propose", err)
		return nil, err
	}
	if appt.Status != StatusAccepted {
		err := validationf("appointment_id", "only accepted appointments can be rescheduled (status is %s)", appt.Status)
		c.observeReschedule("propose", err)
		return nil, err
	}

	svc, err := c.repo.GetServiceByID(ctx, appt.ServiceID)
	if err != nil {
		return nil, storagef("load service", err)
	}
	required := RequiredSlotCount(svc.DurationMinutes, int(c.cfg.Granularity.Minutes()))

	var updated *Appointment
	err = c.locker.WithStartLock(ctx, newStart, func(lockCtx context.Context) error {
		var err error
		updated, err = c.proposeLocked(lockCtx, appt, newDate, newStart, required)
		return err
	})
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		err = &ConflictError{Message: "time is currently being booked, please retry"}
	}
	c.observeReschedule("propose", err)
	if err != nil {
		return nil, err
	}

	c.logEvent(ctx, apptID, EventRescheduleProposed, map[string]any{
		"proposed_date":  newDate.Format(DateLayout),
		"proposed_start": newStart.Format(ClockLayout),
	})
	c.dispatch(ctx, Event{Type: EventRescheduleProposed, Appointment: *updated, ServiceName: svc.Name})

	return updated, nil
}

func (c *Coordinator) proposeLocked(ctx context.Context, appt *Appointment, newDate, newStart time.Time, required int) (*Appointment, error) {
	other, err := c.repo.FindActiveAppointmentAt(ctx, newStart, appt.ID)
	if err != nil && !errors.Is(err, ErrAppointmentNotFound) {
		return nil, storagef("check occupancy", err)
	}
	if other != nil {
		return nil, &ConflictError{Message: "another appointment already occupies that time", Starts: []time.Time{newStart}}
	}

	daySlots, err := c.repo.ListSlotsOnDate(ctx, newDate)
	if err != nil {
		return nil, storagef("list slots", err)
	}
	run, unavailable := ExpectedRun(daySlots, newStart, required, c.cfg.Granularity)
	if len(unavailable) > 0 {
		return nil, &ConflictError{Message: "proposed time is not fully available", Starts: unavailable}
	}

	runIDs := make([]uuid.UUID, len(run))
	for i, s := range run {
		runIDs[i] = s.ID
	}

	claimed, claimErr := c.claimRun(ctx, runIDs)
	if claimErr != nil {
		c.releaseSlots(ctx, claimed)
		return nil, claimErr
	}

	if err := c.repo.InsertSlotLinks(ctx, appt.ID, runIDs, PhaseProposed); err != nil {
		c.releaseSlots(ctx, runIDs)
		return nil, storagef("link proposed slots", err)
	}

	updated, err := c.repo.ProposeReschedule(ctx, appt.ID, newDate, newStart)
	if err != nil {
		if delErr := c.repo.DeleteSlotLinks(ctx, appt.ID, PhaseProposed); delErr != nil {
			log.Printf("rollback: delete proposed links for %s: %v", appt.ID, delErr)
		}
		c.releaseSlots(ctx, runIDs)
		if errors.Is(err, ErrStateMismatch) {
			return nil, validationf("appointment_id", "appointment is no longer in an accepted state")
		}
		return nil, storagef("record proposal", err)
	}
	return updated, nil
}

// ResolveReschedule finalizes an outstanding proposal. Accepting moves the
// appointment onto the proposed run and frees the original one; rejecting
// frees both runs, since refused is terminal and a refused appointment holds
// no claim. Resolving twice fails with a validation error.
func (c *Coordinator) ResolveReschedule(ctx context.Context, apptID uuid.UUID, accepted bool) (*Appointment, error) {
	action := "reject"
	if accepted {
		action = "accept"
	}

	appt, err := c.getAppointment(ctx, apptID)
	if err != nil {
		c.observeReschedule(action, err)
		return nil, err
	}
	if appt.Status != StatusPending || appt.ProposedStartAt == nil {
		err := validationf("appointment_id", "no reschedule proposal is outstanding")
		c.observeReschedule(action, err)
		return nil, err
	}

	// Best-effort lookup for the notification copy; the resolve itself does
	// not need the service row.
	svcName := "scheduled"
	if svc, svcErr := c.repo.GetServiceByID(ctx, appt.ServiceID); svcErr == nil {
		svcName = svc.Name
	} else {
		log.Printf("load service %s for notification: %v", appt.ServiceID, svcErr)
	}

	var updated *Appointment
	if accepted {
		updated, err = c.acceptProposal(ctx, appt)
	} else {
		updated, err = c.rejectProposal(ctx, appt)
	}
	c.observeReschedule(action, err)
	if err != nil {
		return nil, err
	}

	eventType := EventRescheduleRejected
	if accepted {
		eventType = EventRescheduleAccepted
	}
	c.logEvent(ctx, apptID, eventType, map[string]any{"accepted": accepted})
	c.dispatch(ctx, Event{Type: eventType, Appointment: *updated, ServiceName: svcName})

	return updated, nil
}

func (c *Coordinator) acceptProposal(ctx context.Context, appt *Appointment) (*Appointment, error) {
	booked, err := c.repo.ListSlotLinks(ctx, appt.ID, PhaseBooked)
	if err != nil {
		return nil, storagef("list booked slots", err)
	}

	// The guarded transition is the commit point. Nothing is mutated before
	// it, so a failure here leaves the proposal fully intact; concurrent
	// resolves serialize on it, and the loser fails before touching slots.
	updated, err := c.repo.ApplyReschedule(ctx, appt.ID)
	if err != nil {
		if errors.Is(err, ErrStateMismatch) {
			return nil, validationf("appointment_id", "no reschedule proposal is outstanding")
		}
		return nil, storagef("apply reschedule", err)
	}

	// Cleanup after the commit point only ever leaves slots conservatively
	// held, never an active appointment holding nothing.
	if err := c.repo.PromoteProposedLinks(ctx, appt.ID); err != nil {
		log.Printf("promote proposed slots for %s: %v", appt.ID, err)
	}
	for _, l := range booked {
		if err := c.repo.MarkSlotAvailable(ctx, l.TimeSlotID); err != nil {
			log.Printf("release old slot %s: %v", l.TimeSlotID, err)
		}
	}
	return updated, nil
}

func (c *Coordinator) rejectProposal(ctx context.Context, appt *Appointment) (*Appointment, error) {
	held := make(map[SlotPhase][]AppointmentSlot, 2)
	for _, phase := range []SlotPhase{PhaseProposed, PhaseBooked} {
		links, err := c.repo.ListSlotLinks(ctx, appt.ID, phase)
		if err != nil {
			return nil, storagef("list slot links", err)
		}
		held[phase] = links
	}

	// Commit point, same as acceptProposal: until this succeeds the
	// appointment keeps every claim it had.
	updated, err := c.repo.ClearReschedule(ctx, appt.ID, StatusRefused)
	if err != nil {
		if errors.Is(err, ErrStateMismatch) {
			return nil, validationf("appointment_id", "no reschedule proposal is outstanding")
		}
		return nil, storagef("clear reschedule", err)
	}

	// Refused is terminal: free both runs.
	for _, phase := range []SlotPhase{PhaseProposed, PhaseBooked} {
		for _, l := range held[phase] {
			if err := c.repo.MarkSlotAvailable(ctx, l.TimeSlotID); err != nil {
				log.Printf("release slot %s: %v", l.TimeSlotID, err)
			}
		}
		if err := c.repo.DeleteSlotLinks(ctx, appt.ID, phase); err != nil {
			log.Printf("delete %s links for %s: %v", phase, appt.ID, err)
		}
	}
	return updated, nil
}

// Cancel releases an active appointment's slots, slot by slot in link order,
// and moves it to the terminal cancelled status.
func (c *Coordinator) Cancel(ctx context.Context, apptID uuid.UUID) (*Appointment, error) {
	appt, err := c.getAppointment(ctx, apptID)
	if err != nil {
		return nil, err
	}
	if !appt.Status.IsActive() {
		return nil, validationf("appointment_id", "appointment is already %s", appt.Status)
	}

	held := make(map[SlotPhase][]AppointmentSlot, 2)
	for _, phase := range []SlotPhase{PhaseBooked, PhaseProposed} {
		links, err := c.repo.ListSlotLinks(ctx, appt.ID, phase)
		if err != nil {
			return nil, storagef("list slot links", err)
		}
		held[phase] = links
	}

	// Guarded transition first; a failed cancel must leave the appointment
	// holding its slots rather than active and holding nothing.
	updated, err := c.repo.UpdateAppointmentStatus(ctx, appt.ID, appt.Status, StatusCancelled)
	if err != nil {
		if errors.Is(err, ErrStateMismatch) {
			return nil, validationf("appointment_id", "appointment changed state, refresh and retry")
		}
		return nil, storagef("cancel appointment", err)
	}

	for _, phase := range []SlotPhase{PhaseBooked, PhaseProposed} {
		for _, l := range held[phase] {
			if err := c.repo.MarkSlotAvailable(ctx, l.TimeSlotID); err != nil {
				log.Printf("release slot %s: %v", l.TimeSlotID, err)
			}
		}
		if err := c.repo.DeleteSlotLinks(ctx, appt.ID, phase); err != nil {
			log.Printf("delete %s links for %s: %v", phase, appt.ID, err)
		}
	}

	c.logEvent(ctx, apptID, EventAppointmentCancelled, map[string]any{})
	c.dispatch(ctx, Event{Type: EventAppointmentCancelled, Appointment: *updated})

	return updated, nil
}

// GetAppointment fetches one appointment, translated into the error taxonomy.
func (c *Coordinator) GetAppointment(ctx context.Context, apptID uuid.UUID) (*Appointment, error) {
	return c.getAppointment(ctx, apptID)
}

func (c *Coordinator) getAppointment(ctx context.Context, apptID uuid.UUID) (*Appointment, error) {
	appt, err := c.repo.GetAppointmentByID(ctx, apptID)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, &NotFoundError{Entity: "appointment", ID: apptID.String()}
		}
		return nil, storagef("load appointment", err)
	}
	return appt, nil
}

// PruneSlots bulk-deletes available slots no active appointment references,
// optionally only before a cutoff date.
func (c *Coordinator) PruneSlots(ctx context.Context, before *time.Time) (deleted, kept int64, err error) {
	deleted, kept, err = c.repo.DeleteUnreservedSlots(ctx, before)
	if err != nil {
		return 0, 0, storagef("prune slots", err)
	}
	if c.metrics != nil {
		c.metrics.AddPrunedSlots(deleted)
	}
	return deleted, kept, nil
}

func (c *Coordinator) observeReserve(err error, elapsed time.Duration) {
	if c.metrics == nil {
		return
	}
	c.metrics.ObserveReserve(outcomeLabel(err), elapsed.Seconds())
}

func (c *Coordinator) observeReschedule(action string, err error) {
	if c.metrics == nil {
		return
	}
	c.metrics.ObserveReschedule(action, outcomeLabel(err))
}

func outcomeLabel(err error) string {
	var (
		ve *ValidationError
		ne *NotFoundError
		ce *ConflictError
	)
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &ce):
		return "conflict"
	case errors.As(err, &ve):
		return "validation"
	case errors.As(err, &ne):
		return "not_found"
	default:
		return "error"
	}
}

func (c *Coordinator) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("failed to marshal event payload for %s: %v", eventType, err)
		data = nil
	}

	apptID := appointmentID
	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     c.now(),
	}
	if err := c.repo.InsertEvent(ctx, ev); err != nil {
		log.Printf("failed to insert event log %s for appointment %s: %v", eventType, appointmentID, err)
	}
}

// dispatch hands the event to the notifier without waiting on it. The state
// change has already committed; a lost notification is logged downstream,
// never propagated.
func (c *Coordinator) dispatch(ctx context.Context, ev Event) {
	if c.notifier == nil {
		return
	}
	go c.notifier.Notify(context.WithoutCancel(ctx), ev)
}

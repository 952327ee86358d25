package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/hackgods/advisor-booking-engine/internal/clock"
	"github.com/hackgods/advisor-booking-engine/internal/config"
	"github.com/hackgods/advisor-booking-engine/internal/observability/metrics"
)

const (
	EventAppointmentRequested     = "APPOINTMENT_REQUESTED"
	EventAppointmentStatusChanged = "APPOINTMENT_STATUS_CHANGED"
	EventAppointmentCancelled     = "APPOINTMENT_CANCELLED"
	EventAppointmentExpired       = "APPOINTMENT_EXPIRED"
)

const (
	// maxStatusAttempts bounds reload-and-retry when a status write loses a race.
	maxStatusAttempts = 3
	staleSweepBatch   = 100
	systemActor       = "system"
)

type Service struct {
	repo     Repository
	advisors AdvisorDirectory
	locker   Locker
	cfg      config.Config
	clock    clock.Clock
	logger   *zap.Logger
	metrics  *metrics.SchedulerMetrics
	tracer   trace.Tracer
}

// Locker is satisfied by the Redis advisor locker and by LocalLocker.
type Locker interface {
	WithAdvisorLock(ctx context.Context, advisorID string, fn func(ctx context.Context) error) error
}

func NewService(repo Repository, advisors AdvisorDirectory, locker Locker, cfg config.Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:     repo,
		advisors: advisors,
		locker:   locker,
		cfg:      cfg,
		clock:    clock.System{},
		logger:   logger.Named("scheduler"),
		tracer:   otel.Tracer("advisor-booking-engine/appointment"),
	}
}

// WithClock replaces the wall clock, mainly for tests.
func (s *Service) WithClock(c clock.Clock) *Service {
	s.clock = c
	return s
}

func (s *Service) WithMetrics(m *metrics.SchedulerMetrics) *Service {
	s.metrics = m
	return s
}

func (s *Service) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.StoreTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.StoreTimeout)
}

func (s *Service) loadTemplate(ctx context.Context, advisorID string) (*Template, error) {
	sctx, cancel := s.storeCtx(ctx)
	tmpl, err := s.advisors.GetTemplate(sctx, advisorID)
	cancel()
	if err != nil {
		return nil, storeErr("load advisor", err)
	}
	return tmpl, nil
}

func (s *Service) loadAppointment(ctx context.Context, id string) (*Appointment, error) {
	sctx, cancel := s.storeCtx(ctx)
	appt, err := s.repo.FindByID(sctx, id)
	cancel()
	if err != nil {
		return nil, storeErr("load appointment", err)
	}
	return appt, nil
}

// CheckAvailability returns the open slots of an advisor on the calendar day
// of date. Only the year, month and day of date are used.
func (s *Service) CheckAvailability(ctx context.Context, advisorID string, date time.Time) (avail *Availability, err error) {
	ctx, span := s.tracer.Start(ctx, "CheckAvailability", trace.WithAttributes(
		attribute.String("advisor_id", advisorID),
		attribute.String("date", date.Format(time.DateOnly)),
	))
	defer func() {
		endSpan(span, err)
		s.metrics.ObserveAvailability(outcomeOf(err))
	}()

	if advisorID == "" {
		return nil, fmt.Errorf("%w: advisor id is required", ErrInvalidRequest)
	}

	tmpl, err := s.loadTemplate(ctx, advisorID)
	if err != nil {
		return nil, err
	}

	loc := tmpl.location()
	y, m, d := date.Date()
	dayStart := time.Date(y, m, d, 0, 0, 0, 0, loc)
	avail = &Availability{
		AdvisorID: advisorID,
		Date:      dayStart,
		Slots:     make([]TimeSlot, 0),
	}

	_, open, err := WorkingWindow(*tmpl, date)
	if err != nil {
		return nil, err
	}
	if !open {
		return avail, nil
	}
	entry, _ := tmpl.EntryFor(dayStart.Weekday())
	avail.WorkingHours = &entry

	sctx, cancel := s.storeCtx(ctx)
	booked, err := s.repo.FindByAdvisorAndRange(sctx, advisorID, dayStart, dayStart.AddDate(0, 0, 1), BookedStatuses)
	cancel()
	if err != nil {
		return nil, storeErr("load booked appointments", err)
	}

	slots, err := ComputeSlots(*tmpl, booked, date, DefaultDuration)
	if err != nil {
		return nil, err
	}
	avail.Slots = slots
	return avail, nil
}

// CreateAppointment books a DefaultDuration window starting at
// req.ScheduledAt for the patient. The overlap check and the insert run
// under the advisor lock, so of several concurrent requests for one window
// only the first succeeds. A request repeating a patient's idempotency key
// returns the appointment created the first time.
func (s *Service) CreateAppointment(ctx context.Context, req CreateRequest, patientID string) (created *Appointment, err error) {
	ctx, span := s.tracer.Start(ctx, "CreateAppointment", trace.WithAttributes(
		attribute.String("advisor_id", req.AdvisorID),
		attribute.String("patient_id", patientID),
	))
	replayed := false
	defer func() {
		endSpan(span, err)
		outcome := outcomeOf(err)
		if replayed {
			outcome = "replayed"
		}
		s.metrics.ObserveBooking(outcome)
	}()

	if err := normalizeCreate(&req, patientID); err != nil {
		return nil, err
	}

	tmpl, err := s.loadTemplate(ctx, req.AdvisorID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	slot := TimeSlot{Start: req.ScheduledAt, End: req.ScheduledAt.Add(DefaultDuration)}
	if !slot.Start.After(now) {
		return nil, fmt.Errorf("%w: start time must be in the future", ErrSlotUnavailable)
	}

	window, open, err := WorkingWindow(*tmpl, slot.Start.In(tmpl.location()))
	if err != nil {
		return nil, err
	}
	if !open || slot.Start.Before(window.Start) || slot.End.After(window.End) {
		return nil, fmt.Errorf("%w: outside advisor working hours", ErrSlotUnavailable)
	}

	var key *string
	if req.IdempotencyKey != "" {
		k := req.IdempotencyKey
		key = &k
	}

	lockRequested := time.Now()
	err = s.locker.WithAdvisorLock(ctx, req.AdvisorID, func(lockCtx context.Context) error {
		s.metrics.ObserveLockWait(time.Since(lockRequested))

		if key != nil {
			existing, err := s.findByIdempotencyKey(lockCtx, patientID, *key)
			if err == nil {
				created, replayed = existing, true
				return nil
			}
			if !errors.Is(err, ErrAppointmentNotFound) {
				return err
			}
		}

		sctx, cancel := s.storeCtx(lockCtx)
		busy, err := s.repo.ExistsOverlapping(sctx, req.AdvisorID, slot.Start, slot.End, HoldingStatuses)
		cancel()
		if err != nil {
			return fmt.Errorf("check overlap: %w", err)
		}
		if busy {
			return ErrSlotUnavailable
		}

		appt := Appointment{
			ID:              uuid.NewString(),
			PatientID:       patientID,
			AdvisorID:       req.AdvisorID,
			Type:            req.Type,
			Status:          StatusRequested,
			ScheduledAt:     slot.Start,
			DurationMinutes: int(DefaultDuration / time.Minute),
			Notes:           req.Notes,
			Symptoms:        req.Symptoms,
			Priority:        req.Priority,
			IdempotencyKey:  key,
			CreatedAt:       now,
			ModifiedAt:      now,
		}

		sctx, cancel = s.storeCtx(lockCtx)
		created, err = s.repo.Create(sctx, appt)
		cancel()
		if errors.Is(err, ErrDuplicateIdempotencyKey) {
			// same key used concurrently against another advisor
			created, err = s.findByIdempotencyKey(lockCtx, patientID, *key)
			replayed = err == nil
			return err
		}
		if err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}

		s.logEvent(lockCtx, created.ID, EventAppointmentRequested, map[string]any{
			"advisor_id":   created.AdvisorID,
			"patient_id":   created.PatientID,
			"scheduled_at": created.ScheduledAt,
			"ends_at":      created.EndsAt(),
		})
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrSlotUnavailable) {
			s.logger.Info("booking rejected",
				zap.String("advisor_id", req.AdvisorID),
				zap.String("patient_id", patientID),
				zap.Time("scheduled_at", slot.Start),
			)
		}
		return nil, storeErr("create appointment", err)
	}

	if !replayed {
		s.logger.Info("appointment requested",
			zap.String("appointment_id", created.ID),
			zap.String("advisor_id", created.AdvisorID),
			zap.String("patient_id", created.PatientID),
			zap.Time("scheduled_at", created.ScheduledAt),
		)
	}
	return created, nil
}

func (s *Service) findByIdempotencyKey(ctx context.Context, patientID, key string) (*Appointment, error) {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	return s.repo.FindByIdempotencyKey(sctx, patientID, key)
}

func normalizeCreate(req *CreateRequest, patientID string) error {
	switch {
	case patientID == "":
		return fmt.Errorf("%w: patient id is required", ErrInvalidRequest)
	case req.AdvisorID == "":
		return fmt.Errorf("%w: advisor id is required", ErrInvalidRequest)
	case req.ScheduledAt.IsZero():
		return fmt.Errorf("%w: scheduled time is required", ErrInvalidRequest)
	case req.AdvisorID == patientID:
		return fmt.Errorf("%w: advisor cannot book themselves", ErrInvalidRequest)
	}

	if req.Type == "" {
		req.Type = TypeVideoCall
	}
	if !req.Type.Valid() {
		return fmt.Errorf("%w: unknown appointment type %q", ErrInvalidRequest, req.Type)
	}
	if req.Priority == "" {
		req.Priority = PriorityRoutine
	}
	if !req.Priority.Valid() {
		return fmt.Errorf("%w: unknown priority %q", ErrInvalidRequest, req.Priority)
	}
	if req.Symptoms == nil {
		req.Symptoms = []string{}
	}
	return nil
}

// UpdateStatus moves an appointment to newStatus on behalf of actorID, who
// must be its patient or advisor.
func (s *Service) UpdateStatus(ctx context.Context, id string, newStatus Status, actorID string) (updated *Appointment, err error) {
	ctx, span := s.tracer.Start(ctx, "UpdateStatus", trace.WithAttributes(
		attribute.String("appointment_id", id),
		attribute.String("to", string(newStatus)),
	))
	defer func() {
		endSpan(span, err)
		s.metrics.ObserveTransition(string(newStatus), outcomeOf(err))
	}()

	eventType := EventAppointmentStatusChanged
	if newStatus == StatusCancelled {
		eventType = EventAppointmentCancelled
	}
	return s.transition(ctx, id, newStatus, actorID, func(a *Appointment) (ActorRole, error) {
		return RoleFor(a, actorID)
	}, eventType)
}

// Cancel is UpdateStatus with CANCELLED as the target.
func (s *Service) Cancel(ctx context.Context, id, actorID string) (*Appointment, error) {
	return s.UpdateStatus(ctx, id, StatusCancelled, actorID)
}

func (s *Service) transition(
	ctx context.Context,
	id string,
	to Status,
	actor string,
	roleOf func(*Appointment) (ActorRole, error),
	eventType string,
) (*Appointment, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: appointment id is required", ErrInvalidRequest)
	}

	for attempt := 1; ; attempt++ {
		current, err := s.loadAppointment(ctx, id)
		if err != nil {
			return nil, err
		}

		role, err := roleOf(current)
		if err != nil {
			return nil, err
		}
		if err := ValidateTransition(current.Status, to, role); err != nil {
			return nil, err
		}

		sctx, cancel := s.storeCtx(ctx)
		updated, err := s.repo.UpdateStatus(sctx, id, current.Status, to, s.clock.Now())
		cancel()
		if errors.Is(err, ErrStatusChanged) && attempt < maxStatusAttempts {
			s.logger.Debug("status changed underneath, retrying",
				zap.String("appointment_id", id),
				zap.Int("attempt", attempt),
			)
			continue
		}
		if err != nil {
			return nil, storeErr("update status", err)
		}

		s.logger.Info("appointment status changed",
			zap.String("appointment_id", id),
			zap.String("actor", actor),
			zap.String("from", string(current.Status)),
			zap.String("to", string(to)),
		)
		s.logEvent(ctx, id, eventType, map[string]any{
			"from":  current.Status,
			"to":    to,
			"actor": actor,
		})
		return updated, nil
	}
}

// GetAppointment returns the appointment if actorID is one of its parties.
func (s *Service) GetAppointment(ctx context.Context, id, actorID string) (*Appointment, error) {
	appt, err := s.loadAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := RoleFor(appt, actorID); err != nil {
		return nil, err
	}
	return appt, nil
}

// ListAppointments returns the user's appointments as patient or advisor in
// start order, limited to the calendar day of date when it is set.
func (s *Service) ListAppointments(ctx context.Context, userID string, date *time.Time) ([]Appointment, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidRequest)
	}

	var start, end *time.Time
	if date != nil {
		y, m, d := date.Date()
		from := time.Date(y, m, d, 0, 0, 0, 0, date.Location())
		to := from.AddDate(0, 0, 1)
		start, end = &from, &to
	}

	sctx, cancel := s.storeCtx(ctx)
	list, err := s.repo.ListByParticipant(sctx, userID, start, end)
	cancel()
	if err != nil {
		return nil, storeErr("list appointments", err)
	}
	return list, nil
}

// ExpireStaleRequests cancels REQUESTED appointments whose start passed more
// than StaleRequestGrace ago, so they stop holding their window. It returns
// how many were cancelled.
func (s *Service) ExpireStaleRequests(ctx context.Context) (int, error) {
	cutoff := s.clock.Now().Add(-s.cfg.StaleRequestGrace)

	sctx, cancel := s.storeCtx(ctx)
	stale, err := s.repo.FindStaleRequested(sctx, cutoff, staleSweepBatch)
	cancel()
	if err != nil {
		return 0, storeErr("find stale requests", err)
	}

	expired := 0
	for _, appt := range stale {
		_, err := s.transition(ctx, appt.ID, StatusCancelled, systemActor, func(*Appointment) (ActorRole, error) {
			return RoleSystem, nil
		}, EventAppointmentExpired)
		if err != nil {
			if errors.Is(err, ErrInvalidTransition) {
				// someone moved it out of REQUESTED first
				continue
			}
			if ctx.Err() != nil {
				s.metrics.AddSwept(expired)
				return expired, storeErr("expire stale requests", ctx.Err())
			}
			s.logger.Warn("failed to expire appointment",
				zap.String("appointment_id", appt.ID),
				zap.Error(err),
			)
			continue
		}
		expired++
	}

	s.metrics.AddSwept(expired)
	return expired, nil
}

func (s *Service) logEvent(ctx context.Context, appointmentID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn("failed to marshal event payload", zap.String("event", eventType), zap.Error(err))
		data = nil
	}

	apptID := appointmentID
	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.clock.Now(),
	}

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	if err := s.repo.InsertEvent(sctx, ev); err != nil {
		s.logger.Warn("failed to insert event log",
			zap.String("event", eventType),
			zap.String("appointment_id", appointmentID),
			zap.Error(err),
		)
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrSlotUnavailable):
		return "conflict"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrAccessDenied):
		return "denied"
	case errors.Is(err, ErrAdvisorNotFound), errors.Is(err, ErrAppointmentNotFound):
		return "not_found"
	case errors.Is(err, ErrStoreUnavailable):
		return "unavailable"
	default:
		return "rejected"
	}
}

package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pgExclusionViolation = "23P01"
	pgUniqueViolation    = "23505"
	pgNotNullViolation   = "23502"
	pgCheckViolation     = "23514"

	idempotencyConstraint = "appointments_patient_idempotency_key"
)

const appointmentColumns = `id, patient_id, advisor_id, type, status, scheduled_at, duration_minutes,
	notes, symptoms, priority, idempotency_key, created_at, modified_at`

// pgQuerier is the subset of *pgxpool.Pool the repository uses.
type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgRepository struct {
	pool pgQuerier
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	if pool == nil {
		panic("appointment: pgx pool required")
	}
	return &PgRepository{pool: pool}
}

func newPgRepositoryWithQuerier(q pgQuerier) *PgRepository {
	return &PgRepository{pool: q}
}

// Helpers

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var typ, status, priority string
	var key *string

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.AdvisorID,
		&typ,
		&status,
		&a.ScheduledAt,
		&a.DurationMinutes,
		&a.Notes,
		&a.Symptoms,
		&priority,
		&key,
		&a.CreatedAt,
		&a.ModifiedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Type = Type(typ)
	a.Status = Status(status)
	a.Priority = Priority(priority)
	a.IdempotencyKey = key
	return &a, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	result := make([]Appointment, 0)
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func statusStrings(statuses []Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

// nonNilStrings keeps pgx from encoding a nil slice as NULL.
func nonNilStrings(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}

func classifyWriteError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch {
	case pgErr.Code == pgExclusionViolation:
		return fmt.Errorf("%w: overlaps an existing booking", ErrSlotUnavailable)
	case pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == idempotencyConstraint:
		return ErrDuplicateIdempotencyKey
	case pgErr.Code == pgUniqueViolation:
		return fmt.Errorf("%w: %s", ErrSlotUnavailable, pgErr.ConstraintName)
	case pgErr.Code == pgNotNullViolation, pgErr.Code == pgCheckViolation:
		// the row itself is bad, retrying cannot help
		return fmt.Errorf("%w: %s", ErrInvalidRequest, pgErr.Message)
	}
	return err
}

// Interface methods

func (r *PgRepository) FindByID(ctx context.Context, id string) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) FindByAdvisorAndRange(ctx context.Context, advisorID string, start, end time.Time, statuses []Status) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE advisor_id = $1
		  AND scheduled_at < $3
		  AND ends_at > $2
		  AND status = ANY($4)
		ORDER BY scheduled_at
	`, advisorID, start, end, statusStrings(statuses))
	if err != nil {
		return nil, fmt.Errorf("query advisor appointments: %w", err)
	}
	return collectAppointments(rows)
}

func (r *PgRepository) ExistsOverlapping(ctx context.Context, advisorID string, start, end time.Time, statuses []Status) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM appointments
			WHERE advisor_id = $1
			  AND scheduled_at < $3
			  AND ends_at > $2
			  AND status = ANY($4)
		)
	`, advisorID, start, end, statusStrings(statuses)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check overlapping appointments: %w", err)
	}
	return exists, nil
}

func (r *PgRepository) FindByIdempotencyKey(ctx context.Context, patientID, key string) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1
		  AND idempotency_key = $2
	`, patientID, key)
	return scanAppointment(row)
}

func (r *PgRepository) ListByParticipant(ctx context.Context, userID string, start, end *time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE (patient_id = $1 OR advisor_id = $1)
		  AND ($2::timestamptz IS NULL OR ends_at > $2)
		  AND ($3::timestamptz IS NULL OR scheduled_at < $3)
		ORDER BY scheduled_at
	`, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("query participant appointments: %w", err)
	}
	return collectAppointments(rows)
}

func (r *PgRepository) Create(ctx context.Context, a Appointment) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, advisor_id, type, status, scheduled_at, ends_at,
			duration_minutes, notes, symptoms, priority, idempotency_key, created_at, modified_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)
		RETURNING `+appointmentColumns+`
	`,
		a.ID,
		a.PatientID,
		a.AdvisorID,
		string(a.Type),
		string(a.Status),
		a.ScheduledAt,
		a.EndsAt(),
		a.DurationMinutes,
		a.Notes,
		nonNilStrings(a.Symptoms),
		string(a.Priority),
		a.IdempotencyKey,
		a.CreatedAt,
	)

	created, err := scanAppointment(row)
	if err != nil {
		return nil, classifyWriteError(err)
	}
	return created, nil
}

func (r *PgRepository) UpdateStatus(ctx context.Context, id string, from, to Status, modifiedAt time.Time) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    modified_at = $4
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, id, string(to), string(from), modifiedAt)

	updated, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrStatusChanged
		}
		return nil, classifyWriteError(err)
	}
	return updated, nil
}

func (r *PgRepository) FindStaleRequested(ctx context.Context, startedBefore time.Time, limit int) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = 'REQUESTED'
		  AND scheduled_at < $1
		ORDER BY scheduled_at
		LIMIT $2
	`, startedBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("query stale requests: %w", err)
	}
	return collectAppointments(rows)
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
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

package appointment

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var appointmentCols = []string{
	"id", "patient_id", "advisor_id", "type", "status", "scheduled_at", "duration_minutes",
	"notes", "symptoms", "priority", "idempotency_key", "created_at", "modified_at",
}

func newMockRepo(t *testing.T) (*PgRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return newPgRepositoryWithQuerier(mock), mock
}

func appointmentRow(rows *pgxmock.Rows, id, status string, start time.Time, key *string) *pgxmock.Rows {
	return rows.AddRow(
		id, "pat-1", "adv-1", "VIDEO_CALL", status, start, 60,
		"", []string{"cough"}, "ROUTINE", key, at(0, 0), at(0, 0),
	)
}

func TestPgFindByID(t *testing.T) {
	repo, mock := newMockRepo(t)
	key := "k1"

	mock.ExpectQuery("FROM appointments").
		WithArgs("a1").
		WillReturnRows(appointmentRow(pgxmock.NewRows(appointmentCols), "a1", "CONFIRMED", at(10, 0), &key))

	got, err := repo.FindByID(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, "a1", got.ID)
	assert.Equal(t, StatusConfirmed, got.Status)
	assert.Equal(t, TypeVideoCall, got.Type)
	assert.Equal(t, PriorityRoutine, got.Priority)
	assert.Equal(t, at(11, 0), got.EndsAt())
	assert.Equal(t, []string{"cough"}, got.Symptoms)
	require.NotNil(t, got.IdempotencyKey)
	assert.Equal(t, "k1", *got.IdempotencyKey)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgFindByIDNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("FROM appointments").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgFindByAdvisorAndRange(t *testing.T) {
	repo, mock := newMockRepo(t)

	rows := pgxmock.NewRows(appointmentCols)
	appointmentRow(rows, "a1", "SCHEDULED", at(9, 0), (*string)(nil))
	appointmentRow(rows, "a2", "CONFIRMED", at(11, 0), (*string)(nil))

	mock.ExpectQuery("FROM appointments").
		WithArgs("adv-1", at(0, 0), at(23, 0), []string{"SCHEDULED", "CONFIRMED", "IN_PROGRESS"}).
		WillReturnRows(rows)

	got, err := repo.FindByAdvisorAndRange(context.Background(), "adv-1", at(0, 0), at(23, 0), BookedStatuses)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a1", got[0].ID)
	assert.Nil(t, got[0].IdempotencyKey)
	assert.Equal(t, StatusConfirmed, got[1].Status)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgExistsOverlapping(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("adv-1", at(10, 0), at(11, 0), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	busy, err := repo.ExistsOverlapping(context.Background(), "adv-1", at(10, 0), at(11, 0), HoldingStatuses)
	require.NoError(t, err)
	assert.True(t, busy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgCreate(t *testing.T) {
	repo, mock := newMockRepo(t)
	a := memAppointment("a1", "pat-1", StatusRequested, at(10, 0))

	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs("a1", "pat-1", "adv-1", "CHAT", "REQUESTED", at(10, 0), at(11, 0),
			60, "", []string{}, "ROUTINE", pgxmock.AnyArg(), at(0, 0)).
		WillReturnRows(appointmentRow(pgxmock.NewRows(appointmentCols), "a1", "REQUESTED", at(10, 0), (*string)(nil)))

	created, err := repo.Create(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, StatusRequested, created.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgCreateKeepsSymptomsProvided(t *testing.T) {
	repo, mock := newMockRepo(t)
	a := memAppointment("a1", "pat-1", StatusRequested, at(10, 0))
	a.Symptoms = []string{"fever", "cough"}

	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs("a1", "pat-1", "adv-1", "CHAT", "REQUESTED", at(10, 0), at(11, 0),
			60, "", []string{"fever", "cough"}, "ROUTINE", pgxmock.AnyArg(), at(0, 0)).
		WillReturnRows(appointmentRow(pgxmock.NewRows(appointmentCols), "a1", "REQUESTED", at(10, 0), (*string)(nil)))

	_, err := repo.Create(context.Background(), a)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNonNilStrings(t *testing.T) {
	got := nonNilStrings(nil)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Equal(t, []string{"a"}, nonNilStrings([]string{"a"}))
}

func TestPgCreateMapsConstraintViolations(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"exclusion", &pgconn.PgError{Code: pgExclusionViolation, ConstraintName: "appointments_no_overlap"}, ErrSlotUnavailable},
		{"idempotency", &pgconn.PgError{Code: pgUniqueViolation, ConstraintName: idempotencyConstraint}, ErrDuplicateIdempotencyKey},
		{"primary key", &pgconn.PgError{Code: pgUniqueViolation, ConstraintName: "appointments_pkey"}, ErrSlotUnavailable},
		{"not null", &pgconn.PgError{Code: pgNotNullViolation, ColumnName: "symptoms"}, ErrInvalidRequest},
		{"check", &pgconn.PgError{Code: pgCheckViolation, ConstraintName: "appointments_check"}, ErrInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newMockRepo(t)
			mock.ExpectQuery("INSERT INTO appointments").
				WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
				WillReturnError(tt.err)

			_, err := repo.Create(context.Background(), memAppointment("a1", "pat-1", StatusRequested, at(10, 0)))
			assert.ErrorIs(t, err, tt.want)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPgUpdateStatus(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("UPDATE appointments").
		WithArgs("a1", "SCHEDULED", "REQUESTED", at(1, 0)).
		WillReturnRows(appointmentRow(pgxmock.NewRows(appointmentCols), "a1", "SCHEDULED", at(10, 0), (*string)(nil)))
	mock.ExpectQuery("UPDATE appointments").
		WithArgs("a1", "CANCELLED", "REQUESTED", at(2, 0)).
		WillReturnError(pgx.ErrNoRows)

	updated, err := repo.UpdateStatus(context.Background(), "a1", StatusRequested, StatusScheduled, at(1, 0))
	require.NoError(t, err)
	assert.Equal(t, StatusScheduled, updated.Status)

	_, err = repo.UpdateStatus(context.Background(), "a1", StatusRequested, StatusCancelled, at(2, 0))
	assert.ErrorIs(t, err, ErrStatusChanged)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgFindStaleRequested(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("WHERE status = 'REQUESTED'").
		WithArgs(at(12, 0), 50).
		WillReturnRows(appointmentRow(pgxmock.NewRows(appointmentCols), "a1", "REQUESTED", at(9, 0), (*string)(nil)))

	got, err := repo.FindStaleRequested(context.Background(), at(12, 0), 50)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, StatusRequested, got[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgInsertEvent(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := "a1"

	mock.ExpectExec("INSERT INTO event_logs").
		WithArgs(EventAppointmentRequested, &id, []byte(`{}`), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.InsertEvent(context.Background(), EventLog{
		EventType:     EventAppointmentRequested,
		AppointmentID: &id,
		Payload:       []byte(`{}`),
		CreatedAt:     at(1, 0),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgAdvisorDirectory(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	dir := &PgAdvisorDirectory{pool: mock}

	mock.ExpectQuery("FROM advisors").
		WithArgs("adv-1").
		WillReturnRows(pgxmock.NewRows([]string{"timezone"}).AddRow("UTC"))
	mock.ExpectQuery("FROM advisor_working_hours").
		WithArgs("adv-1").
		WillReturnRows(pgxmock.NewRows([]string{"day_of_week", "start_time", "end_time", "available"}).
			AddRow("MONDAY", "09:00", "12:00", true).
			AddRow("TUESDAY", "10:00", "16:00", false))

	tmpl, err := dir.GetTemplate(context.Background(), "adv-1")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, tmpl.Location)
	require.Len(t, tmpl.Entries, 2)
	assert.Equal(t, Monday, tmpl.Entries[0].DayOfWeek)
	assert.False(t, tmpl.Entries[1].Available)

	mock.ExpectQuery("FROM advisors").
		WithArgs("nobody").
		WillReturnError(pgx.ErrNoRows)

	_, err = dir.GetTemplate(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrAdvisorNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

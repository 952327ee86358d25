package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgAdvisorDirectory loads working hour templates from advisors and
// advisor_working_hours.
type PgAdvisorDirectory struct {
	pool pgQuerier
}

func NewPgAdvisorDirectory(pool *pgxpool.Pool) *PgAdvisorDirectory {
	if pool == nil {
		panic("appointment: pgx pool required")
	}
	return &PgAdvisorDirectory{pool: pool}
}

func (d *PgAdvisorDirectory) GetTemplate(ctx context.Context, advisorID string) (*Template, error) {
	var tz string
	err := d.pool.QueryRow(ctx, `
		SELECT timezone
		FROM advisors
		WHERE id = $1
	`, advisorID).Scan(&tz)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAdvisorNotFound
		}
		return nil, fmt.Errorf("load advisor: %w", err)
	}

	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("%w: advisor %s timezone %q", ErrInvalidWorkingHours, advisorID, tz)
	}

	rows, err := d.pool.Query(ctx, `
		SELECT day_of_week, start_time, end_time, available
		FROM advisor_working_hours
		WHERE advisor_id = $1
		ORDER BY position, id
	`, advisorID)
	if err != nil {
		return nil, fmt.Errorf("query working hours: %w", err)
	}
	defer rows.Close()

	tmpl := &Template{AdvisorID: advisorID, Location: loc}
	for rows.Next() {
		var day string
		var e WorkingHoursEntry
		if err := rows.Scan(&day, &e.StartTime, &e.EndTime, &e.Available); err != nil {
			return nil, fmt.Errorf("scan working hours: %w", err)
		}
		e.DayOfWeek = DayOfWeek(day)
		tmpl.Entries = append(tmpl.Entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate working hours: %w", err)
	}

	return tmpl, nil
}

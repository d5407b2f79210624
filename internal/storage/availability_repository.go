package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/slotline/slotline/internal/availability"
	"github.com/slotline/slotline/libs/db"
)

// AvailabilityRepository persists the three schedule inputs: recurring weekly
// hours, per-date overrides, and whole-day time off. Existing appointments are
// never touched by schedule edits; they only affect future slot generation.
type AvailabilityRepository struct {
	pool *db.Pool
}

func NewAvailabilityRepository(pool *db.Pool) *AvailabilityRepository {
	return &AvailabilityRepository{pool: pool}
}

// LoadSchedule fetches the full availability picture for one provider,
// windowed so the override and time-off scans stay bounded.
func (r *AvailabilityRepository) LoadSchedule(ctx context.Context, providerID string, from, to availability.Date) (availability.Schedule, error) {
	var sched availability.Schedule

	rows, err := r.pool.Query(ctx, `
		SELECT weekday, start_minute, end_minute
		FROM weekly_availability
		WHERE provider_id = $1
		ORDER BY weekday ASC
	`, providerID)
	if err != nil {
		return availability.Schedule{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var wh availability.WeeklyHours
		var weekday int
		if err := rows.Scan(&weekday, &wh.StartMinute, &wh.EndMinute); err != nil {
			return availability.Schedule{}, err
		}
		wh.Weekday = time.Weekday(weekday)
		sched.Weekly = append(sched.Weekly, wh)
	}
	if rows.Err() != nil {
		return availability.Schedule{}, rows.Err()
	}

	orows, err := r.pool.Query(ctx, `
		SELECT day, closed, start_minute, end_minute
		FROM date_overrides
		WHERE provider_id = $1 AND day BETWEEN $2 AND $3
		ORDER BY day ASC
	`, providerID, from.In(time.UTC), to.In(time.UTC))
	if err != nil {
		return availability.Schedule{}, err
	}
	defer orows.Close()
	for orows.Next() {
		var ov availability.DateOverride
		var day time.Time
		if err := orows.Scan(&day, &ov.Closed, &ov.StartMinute, &ov.EndMinute); err != nil {
			return availability.Schedule{}, err
		}
		ov.Day = availability.DateOf(day)
		sched.Overrides = append(sched.Overrides, ov)
	}
	if orows.Err() != nil {
		return availability.Schedule{}, orows.Err()
	}

	trows, err := r.pool.Query(ctx, `
		SELECT id::text, start_day, end_day, COALESCE(reason, '')
		FROM time_off
		WHERE provider_id = $1 AND start_day <= $3 AND end_day >= $2
		ORDER BY start_day ASC
	`, providerID, from.In(time.UTC), to.In(time.UTC))
	if err != nil {
		return availability.Schedule{}, err
	}
	defer trows.Close()
	for trows.Next() {
		var off availability.TimeOffRange
		var start, end time.Time
		if err := trows.Scan(&off.ID, &start, &end, &off.Reason); err != nil {
			return availability.Schedule{}, err
		}
		off.Start = availability.DateOf(start)
		off.End = availability.DateOf(end)
		sched.TimeOff = append(sched.TimeOff, off)
	}
	return sched, trows.Err()
}

// ReplaceWeekly swaps the provider's entire recurring schedule in one
// transaction. The submitted set is the new truth; there is no per-row edit.
func (r *AvailabilityRepository) ReplaceWeekly(ctx context.Context, providerID string, entries []availability.WeeklyHours) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM weekly_availability WHERE provider_id = $1`, providerID); err != nil {
		return err
	}
	for _, wh := range entries {
		if _, err := tx.Exec(ctx, `
			INSERT INTO weekly_availability (provider_id, weekday, start_minute, end_minute)
			VALUES ($1, $2, $3, $4)
		`, providerID, int(wh.Weekday), wh.StartMinute, wh.EndMinute); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// UpsertOverride sets or updates the override for one day. One override per
// provider per day; a second write for the same day replaces the first.
func (r *AvailabilityRepository) UpsertOverride(ctx context.Context, providerID string, ov availability.DateOverride) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO date_overrides (provider_id, day, closed, start_minute, end_minute)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (provider_id, day)
		DO UPDATE SET closed = EXCLUDED.closed,
			start_minute = EXCLUDED.start_minute,
			end_minute = EXCLUDED.end_minute
	`, providerID, ov.Day.In(time.UTC), ov.Closed, ov.StartMinute, ov.EndMinute)
	return err
}

func (r *AvailabilityRepository) DeleteOverride(ctx context.Context, providerID string, day availability.Date) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM date_overrides WHERE provider_id = $1 AND day = $2
	`, providerID, day.In(time.UTC))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *AvailabilityRepository) AddTimeOff(ctx context.Context, providerID string, off availability.TimeOffRange) (string, error) {
	var id string
	err := r.pool.QueryRow(ctx, `
		INSERT INTO time_off (provider_id, start_day, end_day, reason)
		VALUES ($1, $2, $3, $4)
		RETURNING id::text
	`, providerID, off.Start.In(time.UTC), off.End.In(time.UTC), off.Reason).Scan(&id)
	return id, err
}

func (r *AvailabilityRepository) DeleteTimeOff(ctx context.Context, providerID, id string) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM time_off WHERE id = $1 AND provider_id = $2
	`, id, providerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

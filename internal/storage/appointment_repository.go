package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/slotline/slotline/internal/booking"
	"github.com/slotline/slotline/internal/model"
	"github.com/slotline/slotline/internal/outbox"
	"github.com/slotline/slotline/libs/db"
)

// AppointmentRepository owns the appointments table. The overlap invariant is
// enforced by an exclusion constraint on (provider_id, [start, blocked_until))
// restricted to blocking statuses, so the conflict check and the insert are
// one atomic step: concurrent inserts for the same range cannot both commit.
type AppointmentRepository struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewAppointmentRepository(pool *db.Pool, outboxRepo *outbox.Repository) *AppointmentRepository {
	return &AppointmentRepository{pool: pool, outbox: outboxRepo}
}

func (r *AppointmentRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// Reserve inserts the appointment, its captured add-on rows, and the booked
// event in one transaction. A constraint rejection rolls everything back and
// is reported as a ConflictError naming the appointments that hold the range.
func (r *AppointmentRepository) Reserve(ctx context.Context, appt *model.Appointment, evt outbox.Event) (model.Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Appointment{}, &booking.RepositoryError{Op: "begin", Err: err}
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var clientID *string
	if appt.Subject.Kind == model.SubjectRegistered {
		clientID = &appt.Subject.ClientID
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO appointments
			(provider_id, service_id, subject_kind, client_id, guest_name, guest_email, guest_phone,
			 start_time, end_time, blocked_until, status, payment_status, payment_mode,
			 base_price_cents, addon_total_cents, total_cents, platform_fee_cents, provider_payout_cents, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		RETURNING id, created_at, updated_at
	`, appt.ProviderID, appt.ServiceID, appt.Subject.Kind, clientID,
		appt.Subject.GuestName, appt.Subject.GuestEmail, appt.Subject.GuestPhone,
		appt.StartTime, appt.EndTime, appt.BlockedUntil, appt.Status, appt.PaymentStatus, appt.PaymentMode,
		appt.BasePriceCents, appt.AddOnTotalCents, appt.TotalCents, appt.PlatformFeeCents, appt.ProviderPayoutCents,
		appt.Notes,
	).Scan(&appt.ID, &appt.CreatedAt, &appt.UpdatedAt)
	if err != nil {
		if isExclusionViolation(err) {
			overlapping, findErr := r.FindOverlapping(ctx, appt.ProviderID, appt.StartTime, appt.BlockedUntil)
			if findErr != nil {
				return model.Appointment{}, &booking.RepositoryError{Op: "find overlapping", Err: findErr}
			}
			return model.Appointment{}, &booking.ConflictError{Overlapping: overlapping}
		}
		return model.Appointment{}, &booking.RepositoryError{Op: "insert appointment", Err: err}
	}

	for _, ao := range appt.AddOns {
		if _, err := tx.Exec(ctx, `
			INSERT INTO appointment_add_ons (appointment_id, add_on_id, name, price_cents)
			VALUES ($1, $2, $3, $4)
		`, appt.ID, ao.AddOnID, ao.Name, ao.PriceCents); err != nil {
			return model.Appointment{}, &booking.RepositoryError{Op: "insert add-on", Err: err}
		}
	}

	evt.AggregateID = appt.ID
	if err := r.outbox.Insert(ctx, tx, evt); err != nil {
		return model.Appointment{}, &booking.RepositoryError{Op: "insert outbox event", Err: err}
	}

	if err := tx.Commit(ctx); err != nil {
		if isExclusionViolation(err) {
			overlapping, findErr := r.FindOverlapping(ctx, appt.ProviderID, appt.StartTime, appt.BlockedUntil)
			if findErr != nil {
				return model.Appointment{}, &booking.RepositoryError{Op: "find overlapping", Err: findErr}
			}
			return model.Appointment{}, &booking.ConflictError{Overlapping: overlapping}
		}
		return model.Appointment{}, &booking.RepositoryError{Op: "commit", Err: err}
	}
	return *appt, nil
}

// FindOverlapping returns blocking appointments whose [start_time,
// blocked_until) intersects [start, end), most recent first.
func (r *AppointmentRepository) FindOverlapping(ctx context.Context, providerID string, start, end time.Time) ([]model.Appointment, error) {
	rows, err := r.pool.Query(ctx, appointmentSelect+`
		WHERE provider_id = $1
			AND status NOT IN ('cancelled', 'missed', 'failed', 'expired')
			AND start_time < $3
			AND blocked_until > $2
		ORDER BY start_time ASC
	`, providerID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAppointments(rows)
}

func (r *AppointmentRepository) Get(ctx context.Context, id string) (model.Appointment, error) {
	row := r.pool.QueryRow(ctx, appointmentSelect+` WHERE id = $1`, id)
	appt, err := scanAppointment(row)
	if err != nil {
		return model.Appointment{}, err
	}
	if err := r.loadAddOns(ctx, []*model.Appointment{&appt}); err != nil {
		return model.Appointment{}, err
	}
	return appt, nil
}

func (r *AppointmentRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, providerID, id string) (model.Appointment, error) {
	row := tx.QueryRow(ctx, appointmentSelect+`
		WHERE id = $1 AND provider_id = $2
		FOR UPDATE
	`, id, providerID)
	return scanAppointment(row)
}

// LockByID is the payment-webhook variant of GetForUpdate: the webhook only
// knows the appointment id carried in the payment metadata.
func (r *AppointmentRepository) LockByID(ctx context.Context, tx pgx.Tx, id string) (model.Appointment, error) {
	row := tx.QueryRow(ctx, appointmentSelect+`
		WHERE id = $1
		FOR UPDATE
	`, id)
	return scanAppointment(row)
}

// UpdateStatus moves the row to a new status inside the caller's transaction.
// The caller checks transition legality via model.CanTransition first.
func (r *AppointmentRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, id string, status model.AppointmentStatus) error {
	tag, err := tx.Exec(ctx, `
		UPDATE appointments
		SET status = $2, updated_at = now()
		WHERE id = $1
	`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *AppointmentRepository) Cancel(ctx context.Context, tx pgx.Tx, providerID, id, reason string) (time.Time, error) {
	var cancelledAt time.Time
	err := tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'cancelled',
			cancelled_at = now(),
			cancellation_reason = $3,
			updated_at = now()
		WHERE id = $1 AND provider_id = $2
		RETURNING cancelled_at
	`, id, providerID, reason).Scan(&cancelledAt)
	return cancelledAt, err
}

// SetPaymentResult records a payment-collaborator outcome and the appointment
// status it drives, in one statement.
func (r *AppointmentRepository) SetPaymentResult(ctx context.Context, tx pgx.Tx, id string, payment model.PaymentStatus, status model.AppointmentStatus) error {
	tag, err := tx.Exec(ctx, `
		UPDATE appointments
		SET payment_status = $2, status = $3, updated_at = now()
		WHERE id = $1
	`, id, payment, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *AppointmentRepository) ListByProvider(ctx context.Context, providerID string, from, to time.Time) ([]model.Appointment, error) {
	rows, err := r.pool.Query(ctx, appointmentSelect+`
		WHERE provider_id = $1
			AND start_time < $3
			AND end_time > $2
		ORDER BY start_time ASC
	`, providerID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	appts, err := scanAppointments(rows)
	if err != nil {
		return nil, err
	}
	return appts, r.loadAddOnsInto(ctx, appts)
}

func (r *AppointmentRepository) ListByClient(ctx context.Context, clientID string) ([]model.Appointment, error) {
	rows, err := r.pool.Query(ctx, appointmentSelect+`
		WHERE client_id = $1
		ORDER BY start_time DESC
	`, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	appts, err := scanAppointments(rows)
	if err != nil {
		return nil, err
	}
	return appts, r.loadAddOnsInto(ctx, appts)
}

// ListBookedIntervals returns the blocked ranges used to trim the advisory
// slot list for a day window.
func (r *AppointmentRepository) ListBookedIntervals(ctx context.Context, providerID string, start, end time.Time) ([]model.Appointment, error) {
	rows, err := r.pool.Query(ctx, appointmentSelect+`
		WHERE provider_id = $1
			AND status NOT IN ('cancelled', 'missed', 'failed', 'expired')
			AND start_time < $3
			AND blocked_until > $2
		ORDER BY start_time ASC
	`, providerID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAppointments(rows)
}

const appointmentSelect = `
	SELECT id::text, provider_id::text, service_id::text, subject_kind,
		COALESCE(client_id::text, ''), COALESCE(guest_name, ''), COALESCE(guest_email, ''), COALESCE(guest_phone, ''),
		start_time, end_time, blocked_until, status, payment_status, payment_mode,
		base_price_cents, addon_total_cents, total_cents, platform_fee_cents, provider_payout_cents,
		COALESCE(notes, ''), cancelled_at, COALESCE(cancellation_reason, ''), created_at, updated_at
	FROM appointments`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAppointment(row rowScanner) (model.Appointment, error) {
	var a model.Appointment
	var cancelledAt *time.Time
	err := row.Scan(
		&a.ID,
		&a.ProviderID,
		&a.ServiceID,
		&a.Subject.Kind,
		&a.Subject.ClientID,
		&a.Subject.GuestName,
		&a.Subject.GuestEmail,
		&a.Subject.GuestPhone,
		&a.StartTime,
		&a.EndTime,
		&a.BlockedUntil,
		&a.Status,
		&a.PaymentStatus,
		&a.PaymentMode,
		&a.BasePriceCents,
		&a.AddOnTotalCents,
		&a.TotalCents,
		&a.PlatformFeeCents,
		&a.ProviderPayoutCents,
		&a.Notes,
		&cancelledAt,
		&a.CancelReason,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return model.Appointment{}, err
	}
	a.CancelledAt = cancelledAt
	return a, nil
}

func scanAppointments(rows pgx.Rows) ([]model.Appointment, error) {
	var appts []model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, a)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}

func (r *AppointmentRepository) loadAddOnsInto(ctx context.Context, appts []model.Appointment) error {
	ptrs := make([]*model.Appointment, len(appts))
	for i := range appts {
		ptrs[i] = &appts[i]
	}
	return r.loadAddOns(ctx, ptrs)
}

func (r *AppointmentRepository) loadAddOns(ctx context.Context, appts []*model.Appointment) error {
	if len(appts) == 0 {
		return nil
	}
	ids := make([]string, 0, len(appts))
	byID := make(map[string]*model.Appointment, len(appts))
	for _, a := range appts {
		ids = append(ids, a.ID)
		byID[a.ID] = a
	}

	rows, err := r.pool.Query(ctx, `
		SELECT appointment_id::text, add_on_id::text, name, price_cents
		FROM appointment_add_ons
		WHERE appointment_id = ANY($1)
		ORDER BY name ASC
	`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var apptID string
		var ao model.AppointmentAddOn
		if err := rows.Scan(&apptID, &ao.AddOnID, &ao.Name, &ao.PriceCents); err != nil {
			return err
		}
		if a, ok := byID[apptID]; ok {
			a.AddOns = append(a.AddOns, ao)
		}
	}
	return rows.Err()
}

func isExclusionViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23P01"
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const slotColumns = `id, provider_id, description, start_time, end_time, status, created_at, updated_at`
const appointmentColumns = `id, slot_id, consumer_id, status, created_at, updated_at`

// Helpers

func scanSlot(row pgx.Row) (*Slot, error) {
	var s Slot

	err := row.Scan(
		&s.ID,
		&s.ProviderID,
		&s.Description,
		&s.StartTime,
		&s.EndTime,
		&s.Status,
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
		&a.SlotID,
		&a.ConsumerID,
		&a.Status,
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

func scanAppointmentDetail(row pgx.Row) (*AppointmentDetail, error) {
	var d AppointmentDetail
	var s Slot

	err := row.Scan(
		&d.ID,
		&d.SlotID,
		&d.ConsumerID,
		&d.Status,
		&d.CreatedAt,
		&d.UpdatedAt,
		&s.ID,
		&s.ProviderID,
		&s.Description,
		&s.StartTime,
		&s.EndTime,
		&s.Status,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	d.Slot = &s
	return &d, nil
}

func collectSlots(rows pgx.Rows) ([]Slot, error) {
	defer rows.Close()

	var result []Slot
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

func collectAppointmentDetails(rows pgx.Rows) ([]AppointmentDetail, error) {
	defer rows.Close()

	var result []AppointmentDetail
	for rows.Next() {
		d, err := scanAppointmentDetail(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Slots

func (r *PgRepository) CreateSlot(ctx context.Context, s *Slot) (*Slot, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO slots (id, provider_id, description, start_time, end_time, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		RETURNING `+slotColumns+`
	`, s.ID, s.ProviderID, s.Description, s.StartTime, s.EndTime, s.Status)
	return scanSlot(row)
}

func (r *PgRepository) GetSlotByID(ctx context.Context, id uuid.UUID) (*Slot, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+slotColumns+`
		FROM slots
		WHERE id = $1
	`, id)
	return scanSlot(row)
}

func (r *PgRepository) UpdateSlotSchedule(ctx context.Context, id uuid.UUID, start, end time.Time, description string) (*Slot, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE slots
		SET start_time = $2,
		    end_time = $3,
		    description = $4,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+slotColumns+`
	`, id, start, end, description)
	return scanSlot(row)
}

func (r *PgRepository) UpdateSlotStatus(ctx context.Context, id uuid.UUID, from, to SlotStatus) (*Slot, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE slots
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+slotColumns+`
	`, id, to, from)
	return scanSlot(row)
}

func (r *PgRepository) DeleteSlot(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM slots WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotNotFound
	}
	return nil
}

func (r *PgRepository) ListSlotsByProvider(ctx context.Context, providerID uuid.UUID) ([]Slot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+slotColumns+`
		FROM slots
		WHERE provider_id = $1
		ORDER BY start_time
	`, providerID)
	if err != nil {
		return nil, err
	}
	return collectSlots(rows)
}

func (r *PgRepository) ListAllSlots(ctx context.Context) ([]Slot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+slotColumns+`
		FROM slots
		ORDER BY start_time
	`)
	if err != nil {
		return nil, err
	}
	return collectSlots(rows)
}

func (r *PgRepository) FindSlotsEndedBefore(ctx context.Context, t time.Time, status SlotStatus) ([]Slot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+slotColumns+`
		FROM slots
		WHERE status = $1
		  AND end_time < $2
	`, status, t)
	if err != nil {
		return nil, err
	}
	return collectSlots(rows)
}

// Appointments

func (r *PgRepository) CreateAppointment(ctx context.Context, a *Appointment) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (id, slot_id, consumer_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		RETURNING `+appointmentColumns+`
	`, a.ID, a.SlotID, a.ConsumerID, a.Status)
	return scanAppointment(row)
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) GetBookedAppointmentForSlot(ctx context.Context, slotID uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE slot_id = $1 AND status = 'booked'
	`, slotID)
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
	return scanAppointment(row)
}

func (r *PgRepository) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

const appointmentDetailQuery = `
	SELECT a.id, a.slot_id, a.consumer_id, a.status, a.created_at, a.updated_at,
	       s.id, s.provider_id, s.description, s.start_time, s.end_time, s.status, s.created_at, s.updated_at
	FROM appointments a
	JOIN slots s ON s.id = a.slot_id
`

func (r *PgRepository) ListAppointmentsByConsumer(ctx context.Context, consumerID uuid.UUID) ([]AppointmentDetail, error) {
	rows, err := r.pool.Query(ctx, appointmentDetailQuery+`
		WHERE a.consumer_id = $1
		ORDER BY s.start_time
	`, consumerID)
	if err != nil {
		return nil, err
	}
	return collectAppointmentDetails(rows)
}

func (r *PgRepository) ListAppointmentsByProvider(ctx context.Context, providerID uuid.UUID) ([]AppointmentDetail, error) {
	rows, err := r.pool.Query(ctx, appointmentDetailQuery+`
		WHERE s.provider_id = $1
		ORDER BY s.start_time
	`, providerID)
	if err != nil {
		return nil, err
	}
	return collectAppointmentDetails(rows)
}

func (r *PgRepository) FindBookedEndedBefore(ctx context.Context, t time.Time) ([]AppointmentDetail, error) {
	rows, err := r.pool.Query(ctx, appointmentDetailQuery+`
		WHERE a.status = 'booked'
		  AND s.end_time < $1
	`, t)
	if err != nil {
		return nil, err
	}
	return collectAppointmentDetails(rows)
}

func (r *PgRepository) FindBookedStartingBetween(ctx context.Context, from, to time.Time) ([]AppointmentDetail, error) {
	rows, err := r.pool.Query(ctx, appointmentDetailQuery+`
		WHERE a.status = 'booked'
		  AND s.start_time > $1
		  AND s.start_time < $2
	`, from, to)
	if err != nil {
		return nil, err
	}
	return collectAppointmentDetails(rows)
}

// Audit

func (r *PgRepository) InsertCancellationLog(ctx context.Context, cl CancellationLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO cancellation_logs (appointment_id, slot_id, provider_id, consumer_id, cancelled_at)
		VALUES ($1, $2, $3, $4, $5)
	`, cl.AppointmentID, cl.SlotID, cl.ProviderID, cl.ConsumerID, cl.CancelledAt)
	if err != nil {
		return fmt.Errorf("insert cancellation log: %w", err)
	}
	return nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, slot_id, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, now()))
	`, ev.EventType, ev.SlotID, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
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

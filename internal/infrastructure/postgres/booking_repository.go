package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Whoagir/Afisha/internal/domain/booking"
	"github.com/Whoagir/Afisha/internal/domain/transaction"
)

const bookingColumns = `id, event_id, attendee_id, seats, status, created_at, cancelled_at, updated_at`

type bookingRow struct {
	ID          string     `db:"id"`
	EventID     string     `db:"event_id"`
	AttendeeID  string     `db:"attendee_id"`
	Seats       int        `db:"seats"`
	Status      string     `db:"status"`
	CreatedAt   time.Time  `db:"created_at"`
	CancelledAt *time.Time `db:"cancelled_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
}

func (r *bookingRow) toEntity() *booking.Booking {
	return &booking.Booking{
		ID:          r.ID,
		EventID:     r.EventID,
		AttendeeID:  r.AttendeeID,
		Seats:       r.Seats,
		Status:      booking.Status(r.Status),
		CreatedAt:   r.CreatedAt,
		CancelledAt: r.CancelledAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func toBookings(rows []bookingRow) []*booking.Booking {
	result := make([]*booking.Booking, len(rows))
	for i := range rows {
		result[i] = rows[i].toEntity()
	}
	return result
}

type BookingRepository struct{ db *sqlx.DB }

func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

func (r *BookingRepository) Create(ctx context.Context, tx transaction.Tx, b *booking.Booking) error {
	t, err := mustTx(tx)
	if err != nil {
		return err
	}
	query := `INSERT INTO bookings (event_id, attendee_id, seats, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
	if err := t.QueryRowContext(ctx, query, b.EventID, b.AttendeeID, b.Seats, string(b.Status), b.CreatedAt, b.UpdatedAt).Scan(&b.ID); err != nil {
		return fmt.Errorf("予約作成に失敗: %w", err)
	}
	return nil
}

func (r *BookingRepository) GetByID(ctx context.Context, id string) (*booking.Booking, error) {
	return r.get(ctx, r.db, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
}

func (r *BookingRepository) GetForUpdate(ctx context.Context, tx transaction.Tx, id string) (*booking.Booking, error) {
	t, err := mustTx(tx)
	if err != nil {
		return nil, err
	}
	return r.get(ctx, t, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, id)
}

func (r *BookingRepository) get(ctx context.Context, q sqlx.QueryerContext, query, id string) (*booking.Booking, error) {
	var row bookingRow
	if err := sqlx.GetContext(ctx, q, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidTextRepresentation(err) {
			return nil, booking.ErrBookingNotFound
		}
		return nil, fmt.Errorf("予約取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

func (r *BookingRepository) ListByAttendee(ctx context.Context, attendeeID string, limit, offset int) ([]*booking.Booking, error) {
	var rows []bookingRow
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE attendee_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	if err := r.db.SelectContext(ctx, &rows, query, attendeeID, limit, offset); err != nil {
		return nil, fmt.Errorf("予約一覧取得に失敗: %w", err)
	}
	return toBookings(rows), nil
}

func (r *BookingRepository) ListConfirmedByEvent(ctx context.Context, eventID string) ([]*booking.Booking, error) {
	var rows []bookingRow
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE event_id = $1 AND status = 'confirmed' ORDER BY created_at`
	if err := r.db.SelectContext(ctx, &rows, query, eventID); err != nil {
		return nil, fmt.Errorf("確定予約取得に失敗: %w", err)
	}
	return toBookings(rows), nil
}

func (r *BookingRepository) ExistsConfirmed(ctx context.Context, eventID, attendeeID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM bookings WHERE event_id = $1 AND attendee_id = $2 AND status = 'confirmed')`
	if err := r.db.GetContext(ctx, &exists, query, eventID, attendeeID); err != nil {
		return false, fmt.Errorf("予約の確認に失敗: %w", err)
	}
	return exists, nil
}

func (r *BookingRepository) UpdateStatus(ctx context.Context, tx transaction.Tx, b *booking.Booking) error {
	t, err := mustTx(tx)
	if err != nil {
		return err
	}
	query := `UPDATE bookings SET status = $1, cancelled_at = $2, updated_at = $3 WHERE id = $4`
	result, err := t.ExecContext(ctx, query, string(b.Status), b.CancelledAt, b.UpdatedAt, b.ID)
	if err != nil {
		return fmt.Errorf("予約更新に失敗: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return booking.ErrBookingNotFound
	}
	return nil
}

// CancelConfirmedByEvent はイベントの確定予約をまとめてキャンセルし、キャンセルした予約を返す
func (r *BookingRepository) CancelConfirmedByEvent(ctx context.Context, tx transaction.Tx, eventID string, now time.Time) ([]*booking.Booking, error) {
	t, err := mustTx(tx)
	if err != nil {
		return nil, err
	}
	query := `
		UPDATE bookings SET status = 'cancelled', cancelled_at = $2, updated_at = $2
		WHERE event_id = $1 AND status = 'confirmed'
		RETURNING ` + bookingColumns
	var rows []bookingRow
	if err := t.SelectContext(ctx, &rows, query, eventID, now); err != nil {
		return nil, fmt.Errorf("予約の一括キャンセルに失敗: %w", err)
	}
	return toBookings(rows), nil
}

func (r *BookingRepository) DeleteByEvent(ctx context.Context, tx transaction.Tx, eventID string) error {
	t, err := mustTx(tx)
	if err != nil {
		return err
	}
	if _, err := t.ExecContext(ctx, `DELETE FROM bookings WHERE event_id = $1`, eventID); err != nil {
		return fmt.Errorf("予約削除に失敗: %w", err)
	}
	return nil
}

var _ booking.Repository = (*BookingRepository)(nil)

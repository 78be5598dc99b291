package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/Whoagir/Afisha/internal/domain/notification"
	"github.com/Whoagir/Afisha/internal/domain/transaction"
)

const intentColumns = `id, kind, recipient_id, event_id, booking_id, related_id, scheduled_for, state, attempts, next_attempt_at, last_error, created_at, updated_at, delivered_at`

type intentRow struct {
	ID            string     `db:"id"`
	Kind          string     `db:"kind"`
	RecipientID   string     `db:"recipient_id"`
	EventID       string     `db:"event_id"`
	BookingID     *string    `db:"booking_id"`
	RelatedID     *string    `db:"related_id"`
	ScheduledFor  *time.Time `db:"scheduled_for"`
	State         string     `db:"state"`
	Attempts      int        `db:"attempts"`
	NextAttemptAt time.Time  `db:"next_attempt_at"`
	LastError     string     `db:"last_error"`
	CreatedAt     time.Time  `db:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"`
	DeliveredAt   *time.Time `db:"delivered_at"`
}

func (r *intentRow) toEntity() *notification.Intent {
	return &notification.Intent{
		ID:            r.ID,
		Kind:          notification.Kind(r.Kind),
		RecipientID:   r.RecipientID,
		EventID:       r.EventID,
		BookingID:     r.BookingID,
		RelatedID:     r.RelatedID,
		ScheduledFor:  r.ScheduledFor,
		State:         notification.State(r.State),
		Attempts:      r.Attempts,
		NextAttemptAt: r.NextAttemptAt,
		LastError:     r.LastError,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
		DeliveredAt:   r.DeliveredAt,
	}
}

func toIntents(rows []intentRow) []*notification.Intent {
	result := make([]*notification.Intent, len(rows))
	for i := range rows {
		result[i] = rows[i].toEntity()
	}
	return result
}

// NotificationRepository は通知キューのPostgreSQL実装
type NotificationRepository struct{ db *sqlx.DB }

func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

const insertIntent = `
	INSERT INTO notification_intents (kind, recipient_id, event_id, booking_id, related_id, scheduled_for, state, attempts, next_attempt_at, last_error, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

func intentArgs(in *notification.Intent) []any {
	return []any{
		string(in.Kind), in.RecipientID, in.EventID, in.BookingID, in.RelatedID, in.ScheduledFor,
		string(in.State), in.Attempts, in.NextAttemptAt, in.LastError, in.CreatedAt, in.UpdatedAt,
	}
}

// Create は通知を保存する。tx を渡すと呼び出し元の更新と同時にコミットされる
func (r *NotificationRepository) Create(ctx context.Context, tx transaction.Tx, in *notification.Intent) error {
	if err := conn(r.db, tx).QueryRowxContext(ctx, insertIntent+` RETURNING id`, intentArgs(in)...).Scan(&in.ID); err != nil {
		return fmt.Errorf("通知作成に失敗: %w", err)
	}
	return nil
}

// CreateReminder は (event_id, recipient_id) の部分一意インデックスで重複を防ぐ
func (r *NotificationRepository) CreateReminder(ctx context.Context, in *notification.Intent) (bool, error) {
	query := insertIntent + `
		ON CONFLICT (event_id, recipient_id) WHERE kind = 'reminder' DO NOTHING
		RETURNING id`
	if err := r.db.QueryRowxContext(ctx, query, intentArgs(in)...).Scan(&in.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("リマインダー作成に失敗: %w", err)
	}
	return true, nil
}

// ClaimDue は期限の来た通知を IN_FLIGHT にして返す。
// SKIP LOCKED により複数のワーカーが同じ通知を取得することはない
func (r *NotificationRepository) ClaimDue(ctx context.Context, now time.Time, limit int) (claimed []*notification.Intent, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("通知取得のトランザクション開始に失敗: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query := `
		SELECT ` + intentColumns + ` FROM notification_intents
		WHERE state = 'pending' AND next_attempt_at <= $1
		ORDER BY next_attempt_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED`
	var rows []intentRow
	if err = tx.SelectContext(ctx, &rows, query, now, limit); err != nil {
		return nil, fmt.Errorf("通知の取得に失敗: %w", err)
	}
	if len(rows) == 0 {
		return []*notification.Intent{}, tx.Commit()
	}

	claimed = toIntents(rows)
	ids := make([]string, len(claimed))
	attempts := make([]int64, len(claimed))
	for i, in := range claimed {
		in.BeginAttempt(now)
		ids[i] = in.ID
		attempts[i] = int64(in.Attempts)
	}

	update := `
		UPDATE notification_intents n
		SET state = $1, attempts = u.attempts, updated_at = $2
		FROM unnest(CAST($3 AS uuid[]), CAST($4 AS int[])) AS u(id, attempts)
		WHERE n.id = u.id`
	if _, err = tx.ExecContext(ctx, update, string(notification.StateInFlight), now, pq.Array(ids), pq.Array(attempts)); err != nil {
		return nil, fmt.Errorf("通知の状態更新に失敗: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("通知取得のコミットに失敗: %w", err)
	}
	return claimed, nil
}

func (r *NotificationRepository) Update(ctx context.Context, in *notification.Intent) error {
	query := `
		UPDATE notification_intents
		SET state = $1, attempts = $2, next_attempt_at = $3, last_error = $4, delivered_at = $5, updated_at = $6
		WHERE id = $7`
	result, err := r.db.ExecContext(ctx, query,
		string(in.State), in.Attempts, in.NextAttemptAt, in.LastError, in.DeliveredAt, in.UpdatedAt, in.ID)
	if err != nil {
		return fmt.Errorf("通知更新に失敗: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return notification.ErrIntentNotFound
	}
	return nil
}

func (r *NotificationRepository) ListByEvent(ctx context.Context, eventID string) ([]*notification.Intent, error) {
	var rows []intentRow
	query := `SELECT ` + intentColumns + ` FROM notification_intents WHERE event_id = $1 ORDER BY created_at, id`
	if err := r.db.SelectContext(ctx, &rows, query, eventID); err != nil {
		return nil, fmt.Errorf("通知一覧取得に失敗: %w", err)
	}
	return toIntents(rows), nil
}

func (r *NotificationRepository) RequeueStale(ctx context.Context, before, now time.Time) (int, error) {
	query := `
		UPDATE notification_intents SET state = 'pending', next_attempt_at = $2, updated_at = $2
		WHERE state = 'in_flight' AND updated_at < $1`
	result, err := r.db.ExecContext(ctx, query, before, now)
	if err != nil {
		return 0, fmt.Errorf("滞留通知の再投入に失敗: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("更新結果の確認に失敗: %w", err)
	}
	return int(rows), nil
}

var _ notification.Repository = (*NotificationRepository)(nil)

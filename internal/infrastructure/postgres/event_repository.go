package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Whoagir/Afisha/internal/domain/event"
	"github.com/Whoagir/Afisha/internal/domain/transaction"
)

const eventColumns = `id, organizer_id, title, description, city, start_at, capacity, booked_seats, status, created_at, updated_at`

// eventRow はDBの行を表す構造体
type eventRow struct {
	ID          string    `db:"id"`
	OrganizerID string    `db:"organizer_id"`
	Title       string    `db:"title"`
	Description string    `db:"description"`
	City        string    `db:"city"`
	StartAt     time.Time `db:"start_at"`
	Capacity    int       `db:"capacity"`
	BookedSeats int       `db:"booked_seats"`
	Status      string    `db:"status"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// toEntity は行をエンティティに変換する。未知の状態は読み込まない
func (r *eventRow) toEntity() (*event.Event, error) {
	status := event.Status(r.Status)
	if !status.IsValid() {
		return nil, fmt.Errorf("イベント %s: %w: %q", r.ID, event.ErrInvalidStatus, r.Status)
	}
	return &event.Event{
		ID:          r.ID,
		OrganizerID: r.OrganizerID,
		Title:       r.Title,
		Description: r.Description,
		City:        r.City,
		StartAt:     r.StartAt,
		Capacity:    r.Capacity,
		BookedSeats: r.BookedSeats,
		Status:      status,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}, nil
}

func toEvents(rows []eventRow) ([]*event.Event, error) {
	events := make([]*event.Event, len(rows))
	for i := range rows {
		e, err := rows[i].toEntity()
		if err != nil {
			return nil, err
		}
		events[i] = e
	}
	return events, nil
}

// EventRepository はイベントリポジトリのPostgreSQL実装
type EventRepository struct {
	db *sqlx.DB
}

// NewEventRepository はEventRepositoryを作成する
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Create は新しいイベントを作成する
func (r *EventRepository) Create(ctx context.Context, e *event.Event) error {
	query := `
		INSERT INTO events (organizer_id, title, description, city, start_at, capacity, booked_seats, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query,
		e.OrganizerID, e.Title, e.Description, e.City, e.StartAt, e.Capacity, e.BookedSeats, string(e.Status), e.CreatedAt, e.UpdatedAt,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("イベント作成に失敗しました: %w", err)
	}
	return nil
}

// GetByID はIDからイベントを取得する
func (r *EventRepository) GetByID(ctx context.Context, id string) (*event.Event, error) {
	return r.get(ctx, r.db, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id)
}

// GetForUpdate はイベント行を FOR UPDATE でロックして取得する。
// 同一イベントへの予約・キャンセルはこの行ロックで直列化される
func (r *EventRepository) GetForUpdate(ctx context.Context, tx transaction.Tx, id string) (*event.Event, error) {
	t, err := mustTx(tx)
	if err != nil {
		return nil, err
	}
	return r.get(ctx, t, `SELECT `+eventColumns+` FROM events WHERE id = $1 FOR UPDATE`, id)
}

func (r *EventRepository) get(ctx context.Context, q sqlx.QueryerContext, query, id string) (*event.Event, error) {
	var row eventRow
	if err := sqlx.GetContext(ctx, q, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidTextRepresentation(err) {
			return nil, event.ErrEventNotFound
		}
		return nil, fmt.Errorf("イベント取得に失敗しました: %w", err)
	}
	return row.toEntity()
}

// listQuery は未指定の条件を読み飛ばす固定クエリ
const listQuery = `
	SELECT ` + eventColumns + ` FROM events e
	WHERE ($1 = '' OR lower(e.city) = lower($1))
	  AND ($2 = '' OR e.organizer_id = $2)
	  AND ($3 = '' OR e.status = $3)
	  AND ($4 = '' OR e.title ILIKE $4 OR e.description ILIKE $4)
	  AND (CAST($5 AS timestamptz) IS NULL OR e.start_at >= $5)
	  AND (CAST($6 AS timestamptz) IS NULL OR e.start_at <= $6)
	  AND (NOT CAST($7 AS boolean) OR e.booked_seats < e.capacity)
	  AND (CAST($8 AS float8) = 0 OR (
		SELECT AVG(r.score) FROM ratings r WHERE r.event_id = e.id
	  ) >= $8)
	ORDER BY e.start_at ASC, e.id
	LIMIT $9 OFFSET $10
`

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// List は条件に合うイベントを開始時刻順に取得する
func (r *EventRepository) List(ctx context.Context, f event.ListFilter) ([]*event.Event, error) {
	search := ""
	if f.Search != "" {
		search = "%" + likeEscaper.Replace(f.Search) + "%"
	}

	var rows []eventRow
	err := r.db.SelectContext(ctx, &rows, listQuery,
		f.City, f.OrganizerID, string(f.Status), search,
		f.StartFrom, f.StartTo, f.HasSeats, f.MinRating,
		f.Limit, f.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("イベント一覧取得に失敗しました: %w", err)
	}
	return toEvents(rows)
}

// ListUpcomingByAttendee は参加者が確定予約を持つ開催前のイベントを取得する
func (r *EventRepository) ListUpcomingByAttendee(ctx context.Context, attendeeID string, now time.Time) ([]*event.Event, error) {
	query := `
		SELECT ` + eventColumns + ` FROM events e
		WHERE e.start_at > $2
		  AND e.status IN ('draft', 'published')
		  AND EXISTS (
			SELECT 1 FROM bookings b
			WHERE b.event_id = e.id AND b.attendee_id = $1 AND b.status = 'confirmed'
		  )
		ORDER BY e.start_at ASC
	`
	var rows []eventRow
	if err := r.db.SelectContext(ctx, &rows, query, attendeeID, now); err != nil {
		return nil, fmt.Errorf("参加予定イベント取得に失敗しました: %w", err)
	}
	return toEvents(rows)
}

// ListAdvanceable は now 時点で状態が進むべきイベントを取得する
func (r *EventRepository) ListAdvanceable(ctx context.Context, now time.Time, limit int) ([]*event.Event, error) {
	query := `
		SELECT ` + eventColumns + ` FROM events
		WHERE (status IN ('draft', 'published') AND start_at <= $1)
		   OR (status = 'ongoing' AND start_at <= $2)
		ORDER BY start_at ASC
		LIMIT $3
	`
	var rows []eventRow
	if err := r.db.SelectContext(ctx, &rows, query, now, now.Add(-event.CompletionDelay), limit); err != nil {
		return nil, fmt.Errorf("状態更新対象イベント取得に失敗しました: %w", err)
	}
	return toEvents(rows)
}

// ListStartingBetween は指定状態で開始時刻が (from, to] のイベントを取得する
func (r *EventRepository) ListStartingBetween(ctx context.Context, status event.Status, from, to time.Time) ([]*event.Event, error) {
	query := `
		SELECT ` + eventColumns + ` FROM events
		WHERE status = $1 AND start_at > $2 AND start_at <= $3
		ORDER BY start_at ASC
	`
	var rows []eventRow
	if err := r.db.SelectContext(ctx, &rows, query, string(status), from, to); err != nil {
		return nil, fmt.Errorf("開始予定イベント取得に失敗しました: %w", err)
	}
	return toEvents(rows)
}

// UpdateStatus は現在の状態が from の場合のみ状態を更新する。更新されなければ false
func (r *EventRepository) UpdateStatus(ctx context.Context, tx transaction.Tx, e *event.Event, from event.Status) (bool, error) {
	query := `UPDATE events SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`

	result, err := conn(r.db, tx).ExecContext(ctx, query, string(e.Status), e.UpdatedAt, e.ID, string(from))
	if err != nil {
		return false, fmt.Errorf("イベント状態更新に失敗しました: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("更新結果の確認に失敗しました: %w", err)
	}
	return rows == 1, nil
}

// UpdateBookedSeats は確定席数を更新する
func (r *EventRepository) UpdateBookedSeats(ctx context.Context, tx transaction.Tx, e *event.Event) error {
	t, err := mustTx(tx)
	if err != nil {
		return err
	}
	query := `UPDATE events SET booked_seats = $1, updated_at = $2 WHERE id = $3`
	result, err := t.ExecContext(ctx, query, e.BookedSeats, e.UpdatedAt, e.ID)
	if err != nil {
		return fmt.Errorf("確定席数の更新に失敗しました: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return event.ErrEventNotFound
	}
	return nil
}

// Delete はイベントを削除する。予約と評価は外部キーで連鎖削除される
func (r *EventRepository) Delete(ctx context.Context, tx transaction.Tx, id string) error {
	t, err := mustTx(tx)
	if err != nil {
		return err
	}
	result, err := t.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("イベント削除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除結果の確認に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return event.ErrEventNotFound
	}
	return nil
}

// インターフェースを満たしているか確認
var _ event.Repository = (*EventRepository)(nil)

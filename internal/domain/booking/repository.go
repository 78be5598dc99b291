package booking

import (
	"context"
	"time"

	"github.com/Whoagir/Afisha/internal/domain/transaction"
)

// Repository は予約リポジトリのインターフェース
type Repository interface {
	// Create は新しい予約を作成する（トランザクション必須）
	Create(ctx context.Context, tx transaction.Tx, booking *Booking) error

	// GetByID はIDから予約を取得する
	GetByID(ctx context.Context, id string) (*Booking, error)

	// GetForUpdate は予約行をロックして取得する（トランザクション必須）
	GetForUpdate(ctx context.Context, tx transaction.Tx, id string) (*Booking, error)

	// ListByAttendee は参加者の予約一覧を取得する
	ListByAttendee(ctx context.Context, attendeeID string, limit, offset int) ([]*Booking, error)

	// ListConfirmedByEvent はイベントの確定済み予約を取得する
	ListConfirmedByEvent(ctx context.Context, eventID string) ([]*Booking, error)

	// ExistsConfirmed は参加者がイベントに確定済み予約を持つかを返す
	ExistsConfirmed(ctx context.Context, eventID, attendeeID string) (bool, error)

	// UpdateStatus は予約の状態を更新する（トランザクション必須）
	UpdateStatus(ctx context.Context, tx transaction.Tx, booking *Booking) error

	// CancelConfirmedByEvent はイベントの確定済み予約をすべてキャンセルし、対象を返す（トランザクション必須）
	CancelConfirmedByEvent(ctx context.Context, tx transaction.Tx, eventID string, now time.Time) ([]*Booking, error)

	// DeleteByEvent はイベントの予約をすべて削除する（トランザクション必須）
	DeleteByEvent(ctx context.Context, tx transaction.Tx, eventID string) error
}

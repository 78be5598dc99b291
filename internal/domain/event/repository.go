package event

import (
	"context"
	"time"

	"github.com/Whoagir/Afisha/internal/domain/transaction"
)

// Repository はイベントリポジトリのインターフェース
type Repository interface {
	// Create は新しいイベントを作成する
	Create(ctx context.Context, event *Event) error

	// GetByID はIDからイベントを取得する
	GetByID(ctx context.Context, id string) (*Event, error)

	// GetForUpdate はイベント行をロックして取得する（トランザクション必須）
	GetForUpdate(ctx context.Context, tx transaction.Tx, id string) (*Event, error)

	// List は条件に合うイベントを開始時刻順に取得する
	List(ctx context.Context, filter ListFilter) ([]*Event, error)

	// ListUpcomingByAttendee は参加者が確定予約を持つ開催前のイベントを取得する
	ListUpcomingByAttendee(ctx context.Context, attendeeID string, now time.Time) ([]*Event, error)

	// ListAdvanceable は開始時刻を過ぎた未終了のイベントを取得する
	ListAdvanceable(ctx context.Context, now time.Time, limit int) ([]*Event, error)

	// ListStartingBetween は指定状態で開始時刻が (from, to] のイベントを取得する
	ListStartingBetween(ctx context.Context, status Status, from, to time.Time) ([]*Event, error)

	// UpdateStatus は現在の状態が from の場合のみ状態を更新する（tx は nil 可）
	UpdateStatus(ctx context.Context, tx transaction.Tx, event *Event, from Status) (bool, error)

	// UpdateBookedSeats は確定席数を更新する（トランザクション必須）
	UpdateBookedSeats(ctx context.Context, tx transaction.Tx, event *Event) error

	// Delete はイベントを削除する（トランザクション必須）
	Delete(ctx context.Context, tx transaction.Tx, id string) error
}

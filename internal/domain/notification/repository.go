package notification

import (
	"context"
	"time"

	"github.com/Whoagir/Afisha/internal/domain/transaction"
)

// Repository は通知リポジトリのインターフェース
type Repository interface {
	// Create は通知を PENDING で保存する（tx は nil 可）
	Create(ctx context.Context, tx transaction.Tx, intent *Intent) error

	// CreateReminder はリマインダーを保存する。(event, recipient) が既に存在する場合は false
	CreateReminder(ctx context.Context, intent *Intent) (bool, error)

	// ClaimDue は配送期限が来た PENDING の通知を IN_FLIGHT にして取得する（試行回数を加算）
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]*Intent, error)

	// Update は配送結果を保存する
	Update(ctx context.Context, intent *Intent) error

	// ListByEvent はイベントの通知を作成順に取得する
	ListByEvent(ctx context.Context, eventID string) ([]*Intent, error)

	// RequeueStale は before より前から IN_FLIGHT のままの通知を PENDING に戻し件数を返す
	RequeueStale(ctx context.Context, before, now time.Time) (int, error)
}

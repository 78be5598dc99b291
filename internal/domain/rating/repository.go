package rating

import "context"

// Repository は評価リポジトリのインターフェース
type Repository interface {
	// Create は評価を作成する。(event, attendee) が重複する場合は ErrDuplicateRating
	Create(ctx context.Context, rating *Rating) error

	// Exists は (event, attendee) の評価が存在するかを返す
	Exists(ctx context.Context, eventID, attendeeID string) (bool, error)

	// Summary はイベントの平均評価と件数を返す
	Summary(ctx context.Context, eventID string) (*Summary, error)
}

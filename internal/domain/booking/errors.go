package booking

import "errors"

// Booking ドメインのエラー定義
var (
	ErrBookingNotFound    = errors.New("予約が見つかりません")
	ErrEventIDRequired    = errors.New("イベントIDは必須です")
	ErrAttendeeIDRequired = errors.New("参加者IDは必須です")
	ErrInvalidSeats       = errors.New("座席数は1以上である必要があります")
	ErrPermissionDenied   = errors.New("予約を操作する権限がありません")
	ErrAlreadyCancelled   = errors.New("予約は既にキャンセルされています")
	ErrTooLateToCancel    = errors.New("キャンセル期限を過ぎています")
)

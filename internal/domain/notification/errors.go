package notification

import "errors"

// Notification ドメインのエラー定義
var (
	ErrIntentNotFound    = errors.New("通知が見つかりません")
	ErrInvalidKind       = errors.New("不正な通知種別です")
	ErrRecipientRequired = errors.New("宛先は必須です")
	ErrScheduleRequired  = errors.New("リマインダーには配送予定時刻が必要です")
	ErrTransientDelivery = errors.New("通知の配送に一時的に失敗しました")
	ErrPermanentDelivery = errors.New("通知の配送に恒久的に失敗しました")
)

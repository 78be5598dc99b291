package application

import "errors"

var (
	// ErrEventBusy は同じイベントの予約処理が混み合っている場合に返す
	ErrEventBusy = errors.New("イベントが他の予約を処理中です。しばらくしてから再試行してください")
)

package event

import "errors"

// Event ドメインのエラー定義
var (
	ErrEventNotFound         = errors.New("イベントが見つかりません")
	ErrEventTitleRequired    = errors.New("イベント名は必須です")
	ErrOrganizerRequired     = errors.New("主催者IDは必須です")
	ErrInvalidCapacity       = errors.New("定員は0以上である必要があります")
	ErrInvalidStartTime      = errors.New("開始時刻は現在より後である必要があります")
	ErrInvalidSeats          = errors.New("座席数は1以上である必要があります")
	ErrPermissionDenied      = errors.New("イベントを操作する権限がありません")
	ErrInvalidTransition     = errors.New("この状態からは遷移できません")
	ErrDeletionWindowExpired = errors.New("作成から1時間を過ぎたイベントは削除できません")
	ErrCapacityExceeded      = errors.New("空席が不足しています")
	ErrEventNotBookable      = errors.New("イベントは予約を受け付けていません")
	ErrInvalidStatus         = errors.New("不明なイベント状態です")
	ErrInvalidFilter         = errors.New("検索条件が不正です")
)

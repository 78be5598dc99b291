package rating

import "errors"

// Rating ドメインのエラー定義
var (
	ErrNotEligible     = errors.New("このイベントを評価する資格がありません")
	ErrDuplicateRating = errors.New("このイベントは既に評価済みです")
	ErrInvalidScore    = errors.New("評価は1から5の範囲で指定してください")
)

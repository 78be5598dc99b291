package event

import (
	"strings"
	"time"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// ListFilter はイベント一覧の絞り込み条件。ゼロ値の項目は条件に含めない
type ListFilter struct {
	// City は大文字小文字を区別せず一致させる
	City        string
	OrganizerID string
	Status      Status
	// Search はタイトルと説明の部分一致
	Search string
	// StartFrom と StartTo は開始時刻の範囲（両端を含む）
	StartFrom *time.Time
	StartTo   *time.Time
	// HasSeats が true なら空席のあるイベントのみ
	HasSeats bool
	// MinRating は平均評価の下限。評価のないイベントは除外される
	MinRating float64

	Limit  int
	Offset int
}

// Normalize は件数と開始位置を許容範囲に収めた条件を返す
func (f ListFilter) Normalize() ListFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	f.City = strings.TrimSpace(f.City)
	f.Search = strings.TrimSpace(f.Search)
	return f
}

// Validate は矛盾した条件を拒否する
func (f ListFilter) Validate() error {
	if f.Status != "" && !f.Status.IsValid() {
		return ErrInvalidFilter
	}
	if f.StartFrom != nil && f.StartTo != nil && f.StartTo.Before(*f.StartFrom) {
		return ErrInvalidFilter
	}
	if f.MinRating < 0 || f.MinRating > 5 {
		return ErrInvalidFilter
	}
	return nil
}

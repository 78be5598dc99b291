package rating

import (
	"strings"
	"time"
)

const (
	MinScore = 1
	MaxScore = 5
)

// Rating はイベント評価エンティティを表す
type Rating struct {
	ID         string
	EventID    string
	AttendeeID string
	Score      int
	Comment    string
	CreatedAt  time.Time
}

// NewRating は評価を作成する
func NewRating(eventID, attendeeID string, score int, comment string, now time.Time) *Rating {
	return &Rating{
		EventID:    eventID,
		AttendeeID: attendeeID,
		Score:      score,
		Comment:    strings.TrimSpace(comment),
		CreatedAt:  now,
	}
}

// Validate は評価の検証を行う
func (r *Rating) Validate() error {
	if r.Score < MinScore || r.Score > MaxScore {
		return ErrInvalidScore
	}
	return nil
}

// Summary はイベントの評価集計
type Summary struct {
	EventID string
	Average float64
	Count   int
}

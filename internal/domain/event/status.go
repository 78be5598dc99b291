package event

import "time"

// CompletionDelay は開始から完了扱いになるまでの時間
const CompletionDelay = 2 * time.Hour

// Status はイベントの状態を表す
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusOngoing   Status = "ongoing"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// rank は前進方向の順序。キャンセルは順序の外にある
var rank = map[Status]int{
	StatusDraft:     1,
	StatusPublished: 2,
	StatusOngoing:   3,
	StatusCompleted: 4,
}

// IsValid は定義済みの状態かを返す
func (s Status) IsValid() bool {
	_, ok := rank[s]
	return ok || s == StatusCancelled
}

// IsTerminal は COMPLETED または CANCELLED かを返す
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// ImpliedStatus は now 時点で開始時刻から導かれる状態を返す。開始前は空文字
func ImpliedStatus(startAt, now time.Time) Status {
	switch {
	case !now.Before(startAt.Add(CompletionDelay)):
		return StatusCompleted
	case !now.Before(startAt):
		return StatusOngoing
	default:
		return ""
	}
}

// Cascade はイベントキャンセル時に確定済み予約をすべて取り消す指示
type Cascade struct {
	EventID string
}

// Advance は now から導かれる状態が現在より先であれば遷移する。
// 遷移した場合 true を返す。何度呼んでも後退しない
func (e *Event) Advance(now time.Time) bool {
	if e.Status.IsTerminal() {
		return false
	}
	next := ImpliedStatus(e.StartAt, now)
	if next == "" || rank[next] <= rank[e.Status] {
		return false
	}
	e.Status = next
	e.UpdatedAt = now
	return true
}

// Publish は下書きを公開する
func (e *Event) Publish(actorID string, now time.Time) error {
	if !e.IsOrganizer(actorID) {
		return ErrPermissionDenied
	}
	if e.Status != StatusDraft {
		return ErrInvalidTransition
	}
	e.Status = StatusPublished
	e.UpdatedAt = now
	return nil
}

// Cancel はイベントをキャンセルし、予約の一括取消指示を返す
func (e *Event) Cancel(actorID string, now time.Time) (*Cascade, error) {
	if !e.IsOrganizer(actorID) {
		return nil, ErrPermissionDenied
	}
	if e.Status.IsTerminal() {
		return nil, ErrInvalidTransition
	}
	e.Status = StatusCancelled
	e.UpdatedAt = now
	return &Cascade{EventID: e.ID}, nil
}

package event

import (
	"strings"
	"time"
)

// DeletionWindow はイベント作成後に削除が許される期間
const DeletionWindow = 1 * time.Hour

// Event はイベントエンティティを表す
type Event struct {
	ID          string
	OrganizerID string
	Title       string
	Description string
	City        string
	StartAt     time.Time
	Capacity    int
	BookedSeats int // 確定済み予約の座席合計（台帳）
	Status      Status
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewEvent は新しいイベントを作成する。publish が true の場合は公開状態で作成する
func NewEvent(organizerID, title, description, city string, startAt time.Time, capacity int, publish bool, now time.Time) *Event {
	status := StatusDraft
	if publish {
		status = StatusPublished
	}
	return &Event{
		OrganizerID: organizerID,
		Title:       strings.TrimSpace(title),
		Description: description,
		City:        city,
		StartAt:     startAt,
		Capacity:    capacity,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Validate はイベントの検証を行う
func (e *Event) Validate(now time.Time) error {
	if e.OrganizerID == "" {
		return ErrOrganizerRequired
	}
	if e.Title == "" {
		return ErrEventTitleRequired
	}
	if e.Capacity < 0 {
		return ErrInvalidCapacity
	}
	if !e.StartAt.After(now) {
		return ErrInvalidStartTime
	}
	return nil
}

// IsOrganizer は actorID がイベントの主催者かを返す
func (e *Event) IsOrganizer(actorID string) bool {
	return actorID != "" && e.OrganizerID == actorID
}

// AvailableSeats は残席数を返す
func (e *Event) AvailableSeats() int {
	if left := e.Capacity - e.BookedSeats; left > 0 {
		return left
	}
	return 0
}

// Reserve は確定席数に seats を加算する。定員を超える場合は ErrCapacityExceeded
func (e *Event) Reserve(seats int) error {
	if seats < 1 {
		return ErrInvalidSeats
	}
	if e.BookedSeats+seats > e.Capacity {
		return ErrCapacityExceeded
	}
	e.BookedSeats += seats
	return nil
}

// Release は確定席数から seats を減算する（0未満にはならない）
func (e *Event) Release(seats int) {
	if seats < 0 {
		return
	}
	e.BookedSeats -= seats
	if e.BookedSeats < 0 {
		e.BookedSeats = 0
	}
}

// CheckDelete は actorID が now 時点でイベントを削除できるかを検証する
func (e *Event) CheckDelete(actorID string, now time.Time) error {
	if !e.IsOrganizer(actorID) {
		return ErrPermissionDenied
	}
	if now.Sub(e.CreatedAt) > DeletionWindow {
		return ErrDeletionWindowExpired
	}
	return nil
}

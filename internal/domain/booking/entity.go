package booking

import "time"

// Status は予約の状態を表す
type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// Booking は予約エンティティを表す
type Booking struct {
	ID          string
	EventID     string
	AttendeeID  string
	Seats       int
	Status      Status
	CreatedAt   time.Time
	CancelledAt *time.Time
	UpdatedAt   time.Time
}

// NewBooking は確定済みの予約を作成する
func NewBooking(eventID, attendeeID string, seats int, now time.Time) *Booking {
	return &Booking{
		EventID:    eventID,
		AttendeeID: attendeeID,
		Seats:      seats,
		Status:     StatusConfirmed,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Validate は予約の検証を行う
func (b *Booking) Validate() error {
	if b.EventID == "" {
		return ErrEventIDRequired
	}
	if b.AttendeeID == "" {
		return ErrAttendeeIDRequired
	}
	if b.Seats < 1 {
		return ErrInvalidSeats
	}
	return nil
}

// IsActive は予約が確定状態かを返す
func (b *Booking) IsActive() bool {
	return b.Status == StatusConfirmed
}

// CheckCancel は actorID がこの予約をキャンセルできるかを検証する
func (b *Booking) CheckCancel(actorID string) error {
	if actorID == "" || b.AttendeeID != actorID {
		return ErrPermissionDenied
	}
	if b.Status == StatusCancelled {
		return ErrAlreadyCancelled
	}
	return nil
}

// MarkCancelled は予約をキャンセル状態にする。キャンセル済みなら false
func (b *Booking) MarkCancelled(now time.Time) bool {
	if b.Status == StatusCancelled {
		return false
	}
	b.Status = StatusCancelled
	b.CancelledAt = &now
	b.UpdatedAt = now
	return true
}

// TotalSeats は確定済み予約の座席合計を返す
func TotalSeats(bookings []*Booking) int {
	var total int
	for _, b := range bookings {
		if b.IsActive() {
			total += b.Seats
		}
	}
	return total
}

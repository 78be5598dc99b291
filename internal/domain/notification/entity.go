package notification

import (
	"errors"
	"time"
)

// Kind は通知の種類
type Kind string

const (
	KindBookingConfirmed Kind = "booking_confirmed"
	KindBookingCancelled Kind = "booking_cancelled"
	KindReminder         Kind = "reminder"
	KindEventCancelled   Kind = "event_cancelled"
	KindFailureReport    Kind = "failure_report"
)

// State は配送状態
type State string

const (
	StatePending   State = "pending"
	StateInFlight  State = "in_flight"
	StateDelivered State = "delivered"
	StateFailed    State = "failed"
)

// ReasonEventNotUpcoming はリマインダー配送時にイベントが公開中でなかった場合の理由
const ReasonEventNotUpcoming = "event no longer upcoming"

// Intent は配送待ちの通知を表す。削除されず監査ログとして残る
type Intent struct {
	ID            string
	Kind          Kind
	RecipientID   string
	EventID       string
	BookingID     *string
	RelatedID     *string // FAILURE_REPORT の場合、失敗した通知のID
	ScheduledFor  *time.Time
	State         State
	Attempts      int
	NextAttemptAt time.Time
	LastError     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	DeliveredAt   *time.Time
}

// NewIntent は PENDING の通知を作成する
func NewIntent(kind Kind, recipientID, eventID string, bookingID *string, now time.Time) *Intent {
	return &Intent{
		Kind:          kind,
		RecipientID:   recipientID,
		EventID:       eventID,
		BookingID:     bookingID,
		State:         StatePending,
		NextAttemptAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// NewReminder は scheduledFor に配送予定のリマインダーを作成する
func NewReminder(recipientID, eventID string, scheduledFor, now time.Time) *Intent {
	in := NewIntent(KindReminder, recipientID, eventID, nil, now)
	in.ScheduledFor = &scheduledFor
	if scheduledFor.After(now) {
		in.NextAttemptAt = scheduledFor
	}
	return in
}

// NewFailureReport は failed の終端失敗をオペレーターに知らせる通知を作成する
func NewFailureReport(operatorID string, failed *Intent, now time.Time) *Intent {
	in := NewIntent(KindFailureReport, operatorID, failed.EventID, failed.BookingID, now)
	id := failed.ID
	in.RelatedID = &id
	return in
}

// Validate は通知の検証を行う
func (i *Intent) Validate() error {
	switch i.Kind {
	case KindBookingConfirmed, KindBookingCancelled, KindReminder, KindEventCancelled, KindFailureReport:
	default:
		return ErrInvalidKind
	}
	if i.RecipientID == "" {
		return ErrRecipientRequired
	}
	if i.Kind == KindReminder && i.ScheduledFor == nil {
		return ErrScheduleRequired
	}
	return nil
}

// IsTerminal は DELIVERED または FAILED かを返す
func (i *Intent) IsTerminal() bool {
	return i.State == StateDelivered || i.State == StateFailed
}

// BeginAttempt は IN_FLIGHT に遷移し試行回数を加算する
func (i *Intent) BeginAttempt(now time.Time) {
	i.State = StateInFlight
	i.Attempts++
	i.UpdatedAt = now
}

// MarkDelivered は配送成功を記録する
func (i *Intent) MarkDelivered(now time.Time) {
	i.State = StateDelivered
	i.LastError = ""
	i.DeliveredAt = &now
	i.UpdatedAt = now
}

// MarkFailed は終端の失敗を記録する
func (i *Intent) MarkFailed(reason string, now time.Time) {
	i.State = StateFailed
	i.LastError = reason
	i.UpdatedAt = now
}

// RecordFailure は配送失敗を記録する。恒久的な失敗または試行回数が上限に達した場合は FAILED にし true を返す。
// それ以外は PENDING に戻しバックオフ後に再試行する
func (i *Intent) RecordFailure(cause error, policy RetryPolicy, now time.Time) bool {
	reason := ""
	if cause != nil {
		reason = cause.Error()
	}
	if errors.Is(cause, ErrPermanentDelivery) || i.Attempts >= policy.MaxAttempts {
		i.MarkFailed(reason, now)
		return true
	}
	i.State = StatePending
	i.LastError = reason
	i.NextAttemptAt = now.Add(policy.Backoff(i.Attempts))
	i.UpdatedAt = now
	return false
}

// Exhausted は試行回数が上限を超えているかを返す（配送前の確認用）
func (i *Intent) Exhausted(policy RetryPolicy) bool {
	return i.Attempts > policy.MaxAttempts
}

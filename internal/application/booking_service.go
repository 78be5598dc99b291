package application

import (
	"context"
	"errors"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/Whoagir/Afisha/internal/domain/booking"
	"github.com/Whoagir/Afisha/internal/domain/event"
	"github.com/Whoagir/Afisha/internal/domain/notification"
	"github.com/Whoagir/Afisha/internal/domain/transaction"
	redisinfra "github.com/Whoagir/Afisha/internal/infrastructure/redis"
	"github.com/Whoagir/Afisha/internal/pkg/logger"
	"github.com/Whoagir/Afisha/internal/pkg/metrics"
)

const (
	lockRetries        = 3
	lockRetryInterval  = 100 * time.Millisecond
	lockReleaseTimeout = 2 * time.Second
)

// BookingPolicy は予約の受付・キャンセル方針
type BookingPolicy struct {
	// BookableStatuses は予約を受け付けるイベント状態
	BookableStatuses []event.Status
	// CancellationCutoff は開始時刻のどれだけ前までキャンセルできるか
	CancellationCutoff time.Duration
	// LockTTL は分散ロックの有効期限
	LockTTL time.Duration
	// CascadeLockTTL はイベント中止の一括キャンセル中に延長するロック期限
	CascadeLockTTL time.Duration
}

func DefaultBookingPolicy() BookingPolicy {
	return BookingPolicy{
		BookableStatuses: []event.Status{event.StatusPublished},
		LockTTL:          10 * time.Second,
		CascadeLockTTL:   time.Minute,
	}
}

// IntentEnqueuer は通知をキューに積む
type IntentEnqueuer interface {
	Enqueue(ctx context.Context, tx transaction.Tx, intent *notification.Intent) error
}

type BookingService struct {
	txManager   transaction.Manager
	bookingRepo booking.Repository
	ledger      *CapacityLedger
	intents     IntentEnqueuer
	lockManager redisinfra.LockManagerInterface
	cache       redisinfra.AvailabilityCacheInterface
	clock       clock.Clock
	policy      BookingPolicy
}

// NewBookingService は BookingService を作成する。lockManager と cache は nil 可
func NewBookingService(
	txManager transaction.Manager,
	eventRepo event.Repository,
	bookingRepo booking.Repository,
	intents IntentEnqueuer,
	lockManager redisinfra.LockManagerInterface,
	cache redisinfra.AvailabilityCacheInterface,
	clk clock.Clock,
	policy BookingPolicy,
) *BookingService {
	// 負の猶予は開始後や終了後のキャンセルを許してしまう
	if policy.CancellationCutoff < 0 {
		logger.Warn("負のキャンセル期限は 0 として扱います", zap.Duration("cutoff", policy.CancellationCutoff))
		policy.CancellationCutoff = 0
	}
	return &BookingService{
		txManager:   txManager,
		bookingRepo: bookingRepo,
		ledger:      NewCapacityLedger(eventRepo),
		intents:     intents,
		lockManager: lockManager,
		cache:       cache,
		clock:       clk,
		policy:      policy,
	}
}

type CreateBookingInput struct {
	EventID    string
	AttendeeID string
	Seats      int
}

// CreateBooking は空席があれば確定予約を作成し、確認通知をキューに積む
func (s *BookingService) CreateBooking(ctx context.Context, input CreateBookingInput) (*booking.Booking, error) {
	now := s.clock.Now()
	b := booking.NewBooking(input.EventID, input.AttendeeID, input.Seats, now)
	if err := b.Validate(); err != nil {
		return nil, err
	}

	lock, err := s.acquireEventLock(ctx, input.EventID)
	if err != nil {
		metrics.RecordBooking("create", "lock_failed")
		return nil, err
	}
	defer lock.release(ctx)

	err = transaction.Run(ctx, s.txManager, func(tx transaction.Tx) error {
		ev, err := s.ledger.Lock(ctx, tx, input.EventID)
		if err != nil {
			return err
		}
		if !s.isBookable(ev, now) {
			return event.ErrEventNotBookable
		}
		if err := s.ledger.Reserve(ctx, tx, ev, b.Seats, now); err != nil {
			return err
		}
		if err := s.bookingRepo.Create(ctx, tx, b); err != nil {
			return err
		}
		bookingID := b.ID
		return s.intents.Enqueue(ctx, tx, notification.NewIntent(notification.KindBookingConfirmed, b.AttendeeID, b.EventID, &bookingID, now))
	})
	metrics.RecordBooking("create", bookingResult(err))
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, input.EventID)
	logger.Info("予約を確定",
		zap.String("booking_id", b.ID),
		zap.String("event_id", b.EventID),
		zap.Int("seats", b.Seats),
	)
	return b, nil
}

type CancelBookingInput struct {
	BookingID string
	ActorID   string
}

// CancelBooking は参加者本人の予約をキャンセルし、席を台帳に戻す
func (s *BookingService) CancelBooking(ctx context.Context, input CancelBookingInput) (*booking.Booking, error) {
	current, err := s.bookingRepo.GetByID(ctx, input.BookingID)
	if err != nil {
		return nil, err
	}
	if err := current.CheckCancel(input.ActorID); err != nil {
		metrics.RecordBooking("cancel", bookingResult(err))
		return nil, err
	}

	lock, err := s.acquireEventLock(ctx, current.EventID)
	if err != nil {
		metrics.RecordBooking("cancel", "lock_failed")
		return nil, err
	}
	defer lock.release(ctx)

	now := s.clock.Now()
	var cancelled *booking.Booking
	err = transaction.Run(ctx, s.txManager, func(tx transaction.Tx) error {
		// ロック順序: イベント行 → 予約行
		ev, err := s.ledger.Lock(ctx, tx, current.EventID)
		if err != nil {
			return err
		}
		b, err := s.bookingRepo.GetForUpdate(ctx, tx, input.BookingID)
		if err != nil {
			return err
		}
		if err := b.CheckCancel(input.ActorID); err != nil {
			return err
		}
		if !now.Before(ev.StartAt.Add(-s.policy.CancellationCutoff)) {
			return booking.ErrTooLateToCancel
		}

		b.MarkCancelled(now)
		if err := s.ledger.Release(ctx, tx, ev, b.Seats, now); err != nil {
			return err
		}
		if err := s.bookingRepo.UpdateStatus(ctx, tx, b); err != nil {
			return err
		}
		bookingID := b.ID
		if err := s.intents.Enqueue(ctx, tx, notification.NewIntent(notification.KindBookingCancelled, b.AttendeeID, b.EventID, &bookingID, now)); err != nil {
			return err
		}
		cancelled = b
		return nil
	})
	metrics.RecordBooking("cancel", bookingResult(err))
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, cancelled.EventID)
	logger.Info("予約をキャンセル",
		zap.String("booking_id", cancelled.ID),
		zap.String("event_id", cancelled.EventID),
		zap.Int("seats", cancelled.Seats),
	)
	return cancelled, nil
}

// ApplyCancellationCascade はイベントキャンセル時に確定予約をすべて取り消す。
// ev は呼び出し側の tx でロック済みであること
func (s *BookingService) ApplyCancellationCascade(ctx context.Context, tx transaction.Tx, ev *event.Event, cascade *event.Cascade) (int, error) {
	now := s.clock.Now()
	cancelled, err := s.bookingRepo.CancelConfirmedByEvent(ctx, tx, cascade.EventID, now)
	if err != nil {
		return 0, err
	}

	var seats int
	for _, b := range cancelled {
		seats += b.Seats
	}
	if err := s.ledger.Release(ctx, tx, ev, seats, now); err != nil {
		return 0, err
	}

	for _, b := range cancelled {
		bookingID := b.ID
		if err := s.intents.Enqueue(ctx, tx, notification.NewIntent(notification.KindEventCancelled, b.AttendeeID, b.EventID, &bookingID, now)); err != nil {
			return 0, err
		}
	}
	return len(cancelled), nil
}

func (s *BookingService) GetBooking(ctx context.Context, id, actorID string) (*booking.Booking, error) {
	b, err := s.bookingRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.AttendeeID != actorID {
		return nil, booking.ErrPermissionDenied
	}
	return b, nil
}

func (s *BookingService) ListMyBookings(ctx context.Context, attendeeID string, limit, offset int) ([]*booking.Booking, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.bookingRepo.ListByAttendee(ctx, attendeeID, limit, offset)
}

func (s *BookingService) isBookable(ev *event.Event, now time.Time) bool {
	if !ev.StartAt.After(now) {
		return false
	}
	for _, st := range s.policy.BookableStatuses {
		if ev.Status == st {
			return true
		}
	}
	return false
}

// eventLock は取得済みの分散ロック。lock が nil なら行ロックのみで動く
type eventLock struct {
	lock    redisinfra.Lock
	eventID string
}

// extend はロックの有効期限を ttl に延ばす。失敗しても行ロックで整合性は保たれる
func (l *eventLock) extend(ctx context.Context, ttl time.Duration) {
	if l.lock == nil || ttl <= 0 {
		return
	}
	if err := l.lock.Extend(ctx, ttl); err != nil {
		logger.Warn("分散ロックの延長に失敗", zap.String("event_id", l.eventID), zap.Error(err))
	}
}

// release はロックを解放する。リクエストがキャンセル済みでも解放できるよう元の ctx のキャンセルを引き継がない
func (l *eventLock) release(ctx context.Context) {
	if l.lock == nil {
		return
	}
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lockReleaseTimeout)
	defer cancel()
	if err := l.lock.Release(releaseCtx); err != nil {
		logger.Warn("分散ロックの解放に失敗", zap.String("event_id", l.eventID), zap.Error(err))
	}
}

// acquireEventLock は Redis の分散ロックを取得する。
// Redis 障害時は行ロックのみで処理を続ける
func (s *BookingService) acquireEventLock(ctx context.Context, eventID string) (*eventLock, error) {
	held := &eventLock{eventID: eventID}
	if s.lockManager == nil {
		return held, nil
	}
	lock, err := s.lockManager.AcquireLockWithRetry(ctx, redisinfra.EventLockKey(eventID), s.policy.LockTTL, lockRetries, lockRetryInterval)
	if err != nil {
		if errors.Is(err, redisinfra.ErrLockNotAcquired) {
			return nil, ErrEventBusy
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		logger.Warn("分散ロックを取得できないため行ロックのみで処理します", zap.String("event_id", eventID), zap.Error(err))
		return held, nil
	}
	held.lock = lock
	return held, nil
}

func (s *BookingService) invalidate(ctx context.Context, eventID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, eventID); err != nil {
		logger.Warn("残席キャッシュの無効化に失敗", zap.String("event_id", eventID), zap.Error(err))
	}
}

func bookingResult(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, event.ErrCapacityExceeded):
		return "capacity_exceeded"
	case errors.Is(err, event.ErrEventNotBookable):
		return "not_bookable"
	case errors.Is(err, booking.ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, booking.ErrAlreadyCancelled):
		return "already_cancelled"
	case errors.Is(err, booking.ErrTooLateToCancel):
		return "too_late"
	default:
		return "error"
	}
}

package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/Whoagir/Afisha/internal/domain/booking"
	"github.com/Whoagir/Afisha/internal/domain/event"
	"github.com/Whoagir/Afisha/internal/domain/notification"
	"github.com/Whoagir/Afisha/internal/domain/transaction"
	"github.com/Whoagir/Afisha/internal/domain/user"
	redisinfra "github.com/Whoagir/Afisha/internal/infrastructure/redis"
	"github.com/Whoagir/Afisha/internal/pkg/logger"
)

const defaultAvailabilityTTL = 30 * time.Second

type EventService struct {
	txManager       transaction.Manager
	eventRepo       event.Repository
	bookingRepo     booking.Repository
	intentRepo      notification.Repository
	bookings        *BookingService
	cache           redisinfra.AvailabilityCacheInterface
	clock           clock.Clock
	availabilityTTL time.Duration
}

// NewEventService は EventService を作成する。cache は nil 可
func NewEventService(
	txManager transaction.Manager,
	eventRepo event.Repository,
	bookingRepo booking.Repository,
	intentRepo notification.Repository,
	bookings *BookingService,
	cache redisinfra.AvailabilityCacheInterface,
	clk clock.Clock,
) *EventService {
	return &EventService{
		txManager:       txManager,
		eventRepo:       eventRepo,
		bookingRepo:     bookingRepo,
		intentRepo:      intentRepo,
		bookings:        bookings,
		cache:           cache,
		clock:           clk,
		availabilityTTL: defaultAvailabilityTTL,
	}
}

// WithAvailabilityTTL は残席キャッシュの有効期限を設定する
func (s *EventService) WithAvailabilityTTL(ttl time.Duration) *EventService {
	if ttl > 0 {
		s.availabilityTTL = ttl
	}
	return s
}

type CreateEventInput struct {
	Title       string
	Description string
	City        string
	StartAt     time.Time
	Capacity    int
	Publish     bool
}

// CreateEvent は主催者ロールの利用者のみ実行できる
func (s *EventService) CreateEvent(ctx context.Context, actor *user.Principal, input CreateEventInput) (*event.Event, error) {
	if !actor.IsOrganizer() {
		return nil, user.ErrOrganizerOnly
	}
	now := s.clock.Now()
	e := event.NewEvent(actor.ID, input.Title, input.Description, input.City, input.StartAt, input.Capacity, input.Publish, now)
	if err := e.Validate(now); err != nil {
		return nil, fmt.Errorf("バリデーションエラー: %w", err)
	}
	if err := s.eventRepo.Create(ctx, e); err != nil {
		return nil, fmt.Errorf("イベント作成に失敗しました: %w", err)
	}
	return e, nil
}

func (s *EventService) GetEvent(ctx context.Context, id string) (*event.Event, error) {
	return s.eventRepo.GetByID(ctx, id)
}

// ListEvents は条件に合うイベントを開始時刻順に返す
func (s *EventService) ListEvents(ctx context.Context, filter event.ListFilter) ([]*event.Event, error) {
	filter = filter.Normalize()
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	return s.eventRepo.List(ctx, filter)
}

// ListUpcomingForAttendee は参加者が確定予約を持つ開催前のイベントを返す
func (s *EventService) ListUpcomingForAttendee(ctx context.Context, attendeeID string) ([]*event.Event, error) {
	return s.eventRepo.ListUpcomingByAttendee(ctx, attendeeID, s.clock.Now())
}

// Publish は下書きのイベントを公開する
func (s *EventService) Publish(ctx context.Context, eventID, actorID string) (*event.Event, error) {
	var published *event.Event
	err := transaction.Run(ctx, s.txManager, func(tx transaction.Tx) error {
		ev, err := s.eventRepo.GetForUpdate(ctx, tx, eventID)
		if err != nil {
			return err
		}
		from := ev.Status
		if err := ev.Publish(actorID, s.clock.Now()); err != nil {
			return err
		}
		ok, err := s.eventRepo.UpdateStatus(ctx, tx, ev, from)
		if err != nil {
			return err
		}
		if !ok {
			return event.ErrInvalidTransition
		}
		published = ev
		return nil
	})
	if err != nil {
		return nil, err
	}
	return published, nil
}

// CancelEvent はイベントをキャンセルし、同じトランザクションで確定予約をすべて取り消す
func (s *EventService) CancelEvent(ctx context.Context, eventID, actorID string) (*event.Event, error) {
	lock, err := s.bookings.acquireEventLock(ctx, eventID)
	if err != nil {
		return nil, err
	}
	defer lock.release(ctx)
	// 一括キャンセルが終わるまで予約を止めておく
	lock.extend(ctx, s.bookings.policy.CascadeLockTTL)

	var (
		cancelled *event.Event
		count     int
	)
	err = transaction.Run(ctx, s.txManager, func(tx transaction.Tx) error {
		ev, err := s.eventRepo.GetForUpdate(ctx, tx, eventID)
		if err != nil {
			return err
		}
		from := ev.Status
		cascade, err := ev.Cancel(actorID, s.clock.Now())
		if err != nil {
			return err
		}
		ok, err := s.eventRepo.UpdateStatus(ctx, tx, ev, from)
		if err != nil {
			return err
		}
		if !ok {
			return event.ErrInvalidTransition
		}
		count, err = s.bookings.ApplyCancellationCascade(ctx, tx, ev, cascade)
		if err != nil {
			return fmt.Errorf("予約の一括キャンセルに失敗: %w", err)
		}
		cancelled = ev
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, eventID)
	logger.Info("イベントをキャンセル",
		zap.String("event_id", eventID),
		zap.Int("cancelled_bookings", count),
	)
	return cancelled, nil
}

// DeleteEvent は作成から1時間以内に限り主催者がイベントを削除する。
// 予約と評価も削除されるが、通知は監査用に残る
func (s *EventService) DeleteEvent(ctx context.Context, eventID, actorID string) error {
	err := transaction.Run(ctx, s.txManager, func(tx transaction.Tx) error {
		ev, err := s.eventRepo.GetForUpdate(ctx, tx, eventID)
		if err != nil {
			return err
		}
		if err := ev.CheckDelete(actorID, s.clock.Now()); err != nil {
			return err
		}
		if err := s.bookingRepo.DeleteByEvent(ctx, tx, eventID); err != nil {
			return err
		}
		return s.eventRepo.Delete(ctx, tx, eventID)
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, eventID)
	logger.Info("イベントを削除", zap.String("event_id", eventID))
	return nil
}

// Availability はイベントの残席情報
type Availability struct {
	EventID   string
	Available int
	Cached    bool
}

// GetAvailability は残席数を返す。キャッシュがあればそれを使う
func (s *EventService) GetAvailability(ctx context.Context, eventID string) (*Availability, error) {
	if s.cache != nil {
		n, err := s.cache.Get(ctx, eventID)
		if err == nil {
			return &Availability{EventID: eventID, Available: n, Cached: true}, nil
		}
		if !errors.Is(err, redisinfra.ErrCacheMiss) {
			logger.Warn("残席キャッシュの取得に失敗", zap.String("event_id", eventID), zap.Error(err))
		}
	}

	ev, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	available := ev.AvailableSeats()
	if s.cache != nil {
		if err := s.cache.Set(ctx, eventID, available, s.availabilityTTL); err != nil {
			logger.Warn("残席キャッシュの保存に失敗", zap.String("event_id", eventID), zap.Error(err))
		}
	}
	return &Availability{EventID: eventID, Available: available}, nil
}

// ListNotifications はイベントの通知履歴を主催者に返す
func (s *EventService) ListNotifications(ctx context.Context, eventID, actorID string) ([]*notification.Intent, error) {
	ev, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !ev.IsOrganizer(actorID) {
		return nil, event.ErrPermissionDenied
	}
	return s.intentRepo.ListByEvent(ctx, eventID)
}

func (s *EventService) invalidate(ctx context.Context, eventID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, eventID); err != nil {
		logger.Warn("残席キャッシュの無効化に失敗", zap.String("event_id", eventID), zap.Error(err))
	}
}

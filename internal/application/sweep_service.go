package application

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/Whoagir/Afisha/internal/domain/booking"
	"github.com/Whoagir/Afisha/internal/domain/event"
	"github.com/Whoagir/Afisha/internal/domain/notification"
	"github.com/Whoagir/Afisha/internal/pkg/logger"
	"github.com/Whoagir/Afisha/internal/pkg/metrics"
)

// AdvanceResult は状態遷移スイープの結果
type AdvanceResult struct {
	Scanned  int
	Advanced int
	Skipped  int
	Failed   int
}

// ReminderResult はリマインダースイープの結果
type ReminderResult struct {
	Events    int
	Created   int
	Duplicate int
	Failed    int
}

// SweepService は時刻に応じたイベントの状態遷移とリマインダー作成を行う
type SweepService struct {
	eventRepo    event.Repository
	bookingRepo  booking.Repository
	intentRepo   notification.Repository
	clock        clock.Clock
	reminderLead time.Duration
	batchSize    int
}

func NewSweepService(
	eventRepo event.Repository,
	bookingRepo booking.Repository,
	intentRepo notification.Repository,
	clk clock.Clock,
	reminderLead time.Duration,
	batchSize int,
) *SweepService {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &SweepService{
		eventRepo:    eventRepo,
		bookingRepo:  bookingRepo,
		intentRepo:   intentRepo,
		clock:        clk,
		reminderLead: reminderLead,
		batchSize:    batchSize,
	}
}

// AdvanceEvents は開始時刻を過ぎたイベントを ONGOING / COMPLETED に進める。
// 1件の失敗は他のイベントに影響しない
func (s *SweepService) AdvanceEvents(ctx context.Context) (*AdvanceResult, error) {
	start := time.Now()
	defer func() { metrics.RecordSweep("advance", time.Since(start).Seconds()) }()

	now := s.clock.Now()
	events, err := s.eventRepo.ListAdvanceable(ctx, now, s.batchSize)
	if err != nil {
		return nil, fmt.Errorf("遷移対象イベントの取得に失敗: %w", err)
	}

	res := &AdvanceResult{Scanned: len(events)}
	for _, ev := range events {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		from := ev.Status
		if !ev.Advance(now) {
			res.Skipped++
			continue
		}
		ok, err := s.eventRepo.UpdateStatus(ctx, nil, ev, from)
		if err != nil {
			res.Failed++
			logger.Error("イベントの状態遷移に失敗",
				zap.String("event_id", ev.ID),
				zap.String("from", string(from)),
				zap.String("to", string(ev.Status)),
				zap.Error(err),
			)
			continue
		}
		if !ok {
			// 別の処理（キャンセル等）が先に状態を変えた
			res.Skipped++
			continue
		}
		res.Advanced++
		logger.Debug("イベントの状態を更新",
			zap.String("event_id", ev.ID),
			zap.String("from", string(from)),
			zap.String("to", string(ev.Status)),
		)
	}

	metrics.RecordSweepItems("advance", "advanced", res.Advanced)
	metrics.RecordSweepItems("advance", "skipped", res.Skipped)
	metrics.RecordSweepItems("advance", "failed", res.Failed)
	return res, nil
}

// ScheduleReminders は開始まで reminderLead 以内の公開イベントの参加者にリマインダーを作成する。
// 同じイベント・参加者への作成は1回だけ
func (s *SweepService) ScheduleReminders(ctx context.Context) (*ReminderResult, error) {
	start := time.Now()
	defer func() { metrics.RecordSweep("reminder", time.Since(start).Seconds()) }()

	now := s.clock.Now()
	events, err := s.eventRepo.ListStartingBetween(ctx, event.StatusPublished, now, now.Add(s.reminderLead))
	if err != nil {
		return nil, fmt.Errorf("リマインダー対象イベントの取得に失敗: %w", err)
	}

	res := &ReminderResult{Events: len(events)}
	for _, ev := range events {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		bookings, err := s.bookingRepo.ListConfirmedByEvent(ctx, ev.ID)
		if err != nil {
			res.Failed++
			logger.Error("確定予約の取得に失敗", zap.String("event_id", ev.ID), zap.Error(err))
			continue
		}

		scheduledFor := ev.StartAt.Add(-s.reminderLead)
		seen := make(map[string]struct{}, len(bookings))
		for _, b := range bookings {
			if _, ok := seen[b.AttendeeID]; ok {
				continue
			}
			seen[b.AttendeeID] = struct{}{}

			created, err := s.intentRepo.CreateReminder(ctx, notification.NewReminder(b.AttendeeID, ev.ID, scheduledFor, now))
			switch {
			case err != nil:
				res.Failed++
				logger.Error("リマインダーの作成に失敗",
					zap.String("event_id", ev.ID),
					zap.String("attendee_id", b.AttendeeID),
					zap.Error(err),
				)
			case created:
				res.Created++
			default:
				res.Duplicate++
			}
		}
	}

	metrics.RecordSweepItems("reminder", "created", res.Created)
	metrics.RecordSweepItems("reminder", "duplicate", res.Duplicate)
	metrics.RecordSweepItems("reminder", "failed", res.Failed)
	return res, nil
}

package application

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Whoagir/Afisha/internal/domain/event"
	"github.com/Whoagir/Afisha/internal/domain/notification"
	"github.com/Whoagir/Afisha/internal/domain/transaction"
	"github.com/Whoagir/Afisha/internal/pkg/logger"
	"github.com/Whoagir/Afisha/internal/pkg/metrics"
)

// DispatchConfig は配送パイプラインの設定
type DispatchConfig struct {
	Retry      notification.RetryPolicy
	BatchSize  int
	Workers    int
	Timeout    time.Duration
	StaleAfter time.Duration
	// OperatorID は終端失敗の報告先。空なら報告しない
	OperatorID string
}

func DefaultDispatchConfig() DispatchConfig {
	return DispatchConfig{
		Retry:      notification.DefaultRetryPolicy(),
		BatchSize:  50,
		Workers:    8,
		Timeout:    5 * time.Second,
		StaleAfter: 5 * time.Minute,
	}
}

// Outcome は1件の配送結果
type Outcome string

const (
	OutcomeDelivered  Outcome = "delivered"
	OutcomeRetry      Outcome = "retry"
	OutcomeFailed     Outcome = "failed"
	OutcomeSuppressed Outcome = "suppressed"
	OutcomeError      Outcome = "error"
)

// DispatchStats は DeliverDue の集計
type DispatchStats struct {
	Claimed    int
	Delivered  int
	Retried    int
	Failed     int
	Suppressed int
}

// NotificationService は通知をキューに積み、期限の来たものを配送する
type NotificationService struct {
	intentRepo notification.Repository
	eventRepo  event.Repository
	transport  notification.Transport
	clock      clock.Clock
	cfg        DispatchConfig
}

var _ IntentEnqueuer = (*NotificationService)(nil)

// NewNotificationService は NotificationService を作成する。transport は配送しないプロセスでは nil 可
func NewNotificationService(intentRepo notification.Repository, eventRepo event.Repository, transport notification.Transport, clk clock.Clock, cfg DispatchConfig) *NotificationService {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &NotificationService{
		intentRepo: intentRepo,
		eventRepo:  eventRepo,
		transport:  transport,
		clock:      clk,
		cfg:        cfg,
	}
}

// Enqueue は通知を PENDING で保存する。tx を渡すと呼び出し側の変更と同時にコミットされる
func (s *NotificationService) Enqueue(ctx context.Context, tx transaction.Tx, intent *notification.Intent) error {
	if err := intent.Validate(); err != nil {
		return err
	}
	if err := s.intentRepo.Create(ctx, tx, intent); err != nil {
		return fmt.Errorf("通知の登録に失敗: %w", err)
	}
	return nil
}

// DeliverDue は配送期限の来た通知を取得して並行に配送する
func (s *NotificationService) DeliverDue(ctx context.Context) (*DispatchStats, error) {
	if s.transport == nil {
		return nil, errors.New("配送トランスポートが設定されていません")
	}
	intents, err := s.intentRepo.ClaimDue(ctx, s.clock.Now(), s.cfg.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("配送対象の取得に失敗: %w", err)
	}

	stats := &DispatchStats{Claimed: len(intents)}
	if len(intents) == 0 {
		return stats, nil
	}

	var delivered, retried, failed, suppressed int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for _, in := range intents {
		g.Go(func() error {
			switch s.Deliver(gctx, in) {
			case OutcomeDelivered:
				atomic.AddInt64(&delivered, 1)
			case OutcomeRetry:
				atomic.AddInt64(&retried, 1)
			case OutcomeFailed:
				atomic.AddInt64(&failed, 1)
			case OutcomeSuppressed:
				atomic.AddInt64(&suppressed, 1)
			}
			return nil
		})
	}
	_ = g.Wait()

	stats.Delivered = int(delivered)
	stats.Retried = int(retried)
	stats.Failed = int(failed)
	stats.Suppressed = int(suppressed)
	return stats, nil
}

// Deliver は IN_FLIGHT の通知1件を配送し、結果を保存する
func (s *NotificationService) Deliver(ctx context.Context, in *notification.Intent) Outcome {
	now := s.clock.Now()
	log := logger.With(
		zap.String("intent_id", in.ID),
		zap.String("kind", string(in.Kind)),
		zap.Int("attempts", in.Attempts),
	)

	if in.Exhausted(s.cfg.Retry) {
		in.MarkFailed("retry budget exhausted", now)
		return s.finishFailed(ctx, in, log)
	}

	ev, err := s.eventRepo.GetByID(ctx, in.EventID)
	if err != nil && !errors.Is(err, event.ErrEventNotFound) {
		// 読み込みに失敗した場合は配送せず次回に回す
		log.Warn("イベントの取得に失敗", zap.Error(err))
		in.RecordFailure(fmt.Errorf("%w: %v", notification.ErrTransientDelivery, err), s.cfg.Retry, now)
		if in.IsTerminal() {
			return s.finishFailed(ctx, in, log)
		}
		return s.save(ctx, in, OutcomeRetry, log)
	}
	if err != nil {
		ev = nil
	}

	if in.Kind == notification.KindReminder && (ev == nil || ev.Status != event.StatusPublished) {
		in.MarkFailed(notification.ReasonEventNotUpcoming, now)
		metrics.RecordDelivery(string(in.Kind), string(OutcomeSuppressed))
		log.Info("開催予定でないイベントのリマインダーを抑止")
		return s.save(ctx, in, OutcomeSuppressed, log)
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	sendErr := s.transport.Send(sendCtx, buildMessage(in, ev))
	cancel()

	now = s.clock.Now()
	if sendErr == nil {
		in.MarkDelivered(now)
		metrics.RecordDelivery(string(in.Kind), string(OutcomeDelivered))
		return s.save(ctx, in, OutcomeDelivered, log)
	}

	if terminal := in.RecordFailure(sendErr, s.cfg.Retry, now); terminal {
		return s.finishFailed(ctx, in, log)
	}
	metrics.RecordDelivery(string(in.Kind), string(OutcomeRetry))
	log.Warn("通知の配送に失敗、再試行します",
		zap.Time("next_attempt_at", in.NextAttemptAt),
		zap.Error(sendErr),
	)
	return s.save(ctx, in, OutcomeRetry, log)
}

// RequeueStale はワーカー停止などで IN_FLIGHT のまま残った通知を PENDING に戻す
func (s *NotificationService) RequeueStale(ctx context.Context) (int, error) {
	now := s.clock.Now()
	return s.intentRepo.RequeueStale(ctx, now.Add(-s.cfg.StaleAfter), now)
}

func (s *NotificationService) finishFailed(ctx context.Context, in *notification.Intent, log *zap.Logger) Outcome {
	metrics.RecordDelivery(string(in.Kind), string(OutcomeFailed))
	log.Error("通知の配送に失敗しました",
		zap.String("recipient_id", in.RecipientID),
		zap.String("event_id", in.EventID),
		zap.String("last_error", in.LastError),
	)
	outcome := s.save(ctx, in, OutcomeFailed, log)
	if outcome == OutcomeError {
		return outcome
	}

	// 失敗報告自体の失敗は報告しない
	if in.Kind == notification.KindFailureReport || s.cfg.OperatorID == "" {
		return outcome
	}
	report := notification.NewFailureReport(s.cfg.OperatorID, in, s.clock.Now())
	if err := s.Enqueue(ctx, nil, report); err != nil {
		log.Error("失敗報告の登録に失敗", zap.Error(err))
	}
	return outcome
}

func (s *NotificationService) save(ctx context.Context, in *notification.Intent, outcome Outcome, log *zap.Logger) Outcome {
	if err := s.intentRepo.Update(ctx, in); err != nil {
		// 保存できなかった通知は IN_FLIGHT のまま残り、RequeueStale で回収される
		log.Error("配送結果の保存に失敗", zap.Error(err))
		return OutcomeError
	}
	return outcome
}

func buildMessage(in *notification.Intent, ev *event.Event) notification.Message {
	params := map[string]string{
		"intent_id": in.ID,
		"attempt":   fmt.Sprint(in.Attempts),
	}
	if ev != nil {
		params["event_title"] = ev.Title
		params["event_start_at"] = ev.StartAt.UTC().Format(time.RFC3339)
		params["event_city"] = ev.City
	}
	if in.RelatedID != nil {
		params["failed_intent_id"] = *in.RelatedID
	}
	msg := notification.Message{
		Kind:               in.Kind,
		RecipientAddress:   in.RecipientID,
		EventID:            in.EventID,
		TemplateParameters: params,
	}
	if in.BookingID != nil {
		msg.BookingID = *in.BookingID
	}
	return msg
}

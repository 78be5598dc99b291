package worker

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/Whoagir/Afisha/internal/application"
	"github.com/Whoagir/Afisha/internal/pkg/logger"
)

// Deliverer は期限の来た通知を配送するインターフェース
type Deliverer interface {
	DeliverDue(ctx context.Context) (*application.DispatchStats, error)
	RequeueStale(ctx context.Context) (int, error)
}

// NotificationDispatcher は通知キューをポーリングして配送するワーカー
type NotificationDispatcher struct {
	deliverer Deliverer
	clock     clock.Clock
	interval  time.Duration
	stopCh    chan struct{}
	doneCh    chan struct{}
}

func NewNotificationDispatcher(deliverer Deliverer, clk clock.Clock, interval time.Duration) *NotificationDispatcher {
	return &NotificationDispatcher{
		deliverer: deliverer,
		clock:     clk,
		interval:  interval,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

func (d *NotificationDispatcher) Start(ctx context.Context) {
	logger.Info("通知ディスパッチャ開始", zap.Duration("interval", d.interval))

	ticker := d.clock.Ticker(d.interval)
	defer ticker.Stop()
	defer close(d.doneCh)

	d.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			logger.Info("通知ディスパッチャ停止（コンテキストキャンセル）")
			return
		case <-d.stopCh:
			logger.Info("通知ディスパッチャ停止（シグナル受信）")
			return
		case <-ticker.C:
			d.poll(ctx)
		}
	}
}

func (d *NotificationDispatcher) Stop() {
	close(d.stopCh)
	<-d.doneCh
}

func (d *NotificationDispatcher) poll(ctx context.Context) {
	log := logger.Get()

	if n, err := d.deliverer.RequeueStale(ctx); err != nil {
		log.Error("滞留通知の再投入に失敗", zap.Error(err))
	} else if n > 0 {
		log.Warn("滞留していた通知を再投入", zap.Int("count", n))
	}

	stats, err := d.deliverer.DeliverDue(ctx)
	if err != nil {
		log.Error("通知配送に失敗", zap.Error(err))
		return
	}
	if stats.Claimed == 0 {
		return
	}
	log.Info("通知を配送",
		zap.Int("claimed", stats.Claimed),
		zap.Int("delivered", stats.Delivered),
		zap.Int("retried", stats.Retried),
		zap.Int("failed", stats.Failed),
		zap.Int("suppressed", stats.Suppressed),
	)
}

package worker

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/Whoagir/Afisha/internal/application"
	"github.com/Whoagir/Afisha/internal/pkg/logger"
)

// LifecycleSweeper はイベントの状態遷移とリマインダー作成を行うインターフェース
type LifecycleSweeper interface {
	AdvanceEvents(ctx context.Context) (*application.AdvanceResult, error)
	ScheduleReminders(ctx context.Context) (*application.ReminderResult, error)
}

// LifecycleScheduler は一定間隔でスイープを実行するワーカー。
// 複数インスタンスで動かしても状態遷移は CAS、リマインダーは一意制約で重複しない
type LifecycleScheduler struct {
	sweeper  LifecycleSweeper
	clock    clock.Clock
	interval time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func NewLifecycleScheduler(sweeper LifecycleSweeper, clk clock.Clock, interval time.Duration) *LifecycleScheduler {
	return &LifecycleScheduler{
		sweeper:  sweeper,
		clock:    clk,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start はスケジューラを開始する。起動直後に1回実行し、その後 interval ごとに実行する
func (s *LifecycleScheduler) Start(ctx context.Context) {
	logger.Info("ライフサイクルスケジューラ開始", zap.Duration("interval", s.interval))

	ticker := s.clock.Ticker(s.interval)
	defer ticker.Stop()
	defer close(s.doneCh)

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			logger.Info("ライフサイクルスケジューラ停止（コンテキストキャンセル）")
			return
		case <-s.stopCh:
			logger.Info("ライフサイクルスケジューラ停止（シグナル受信）")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// Stop はスケジューラを停止し、実行中のスイープの終了を待つ
func (s *LifecycleScheduler) Stop() {
	close(s.stopCh)
	<-s.doneCh
}

// tick は2つのスイープを順に実行する。片方が失敗してももう片方は実行する
func (s *LifecycleScheduler) tick(ctx context.Context) {
	log := logger.Get()

	adv, err := s.sweeper.AdvanceEvents(ctx)
	if err != nil {
		log.Error("状態遷移スイープに失敗", zap.Error(err))
	} else if adv.Advanced > 0 || adv.Failed > 0 {
		log.Info("イベントの状態を更新",
			zap.Int("advanced", adv.Advanced),
			zap.Int("failed", adv.Failed),
		)
	}

	rem, err := s.sweeper.ScheduleReminders(ctx)
	if err != nil {
		log.Error("リマインダースイープに失敗", zap.Error(err))
		return
	}
	if rem.Created > 0 || rem.Failed > 0 {
		log.Info("リマインダーを作成",
			zap.Int("created", rem.Created),
			zap.Int("failed", rem.Failed),
		)
	} else {
		log.Debug("作成するリマインダーなし")
	}
}

package main

import (
	"github.com/benbjohnson/clock"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Whoagir/Afisha/internal/application"
	"github.com/Whoagir/Afisha/internal/infrastructure/postgres"
	"github.com/Whoagir/Afisha/internal/pkg/logger"
	"github.com/Whoagir/Afisha/internal/worker"
)

func schedulerCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "scheduler",
		Short: "イベント状態の自動遷移とリマインダー作成を定期実行する",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := bootstrap(ctx, false)
			if err != nil {
				return err
			}
			defer rt.close()

			sc := rt.cfg.Scheduler
			clk := clock.New()
			sweeps := application.NewSweepService(
				postgres.NewEventRepository(rt.db),
				postgres.NewBookingRepository(rt.db),
				postgres.NewNotificationRepository(rt.db),
				clk,
				sc.ReminderLead,
				sc.BatchSize,
			)
			scheduler := worker.NewLifecycleScheduler(sweeps, clk, sc.Interval)

			logger.Info("スケジューラーを起動します",
				zap.Duration("interval", sc.Interval),
				zap.Duration("reminder_lead", sc.ReminderLead),
			)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				// Start は gctx が終わるまで戻らない
				scheduler.Start(gctx)
				return nil
			})
			g.Go(func() error { return rt.serveOps(gctx) })
			return g.Wait()
		},
	}
}

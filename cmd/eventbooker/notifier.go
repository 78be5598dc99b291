package main

import (
	"github.com/benbjohnson/clock"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Whoagir/Afisha/internal/application"
	"github.com/Whoagir/Afisha/internal/domain/notification"
	"github.com/Whoagir/Afisha/internal/infrastructure/notifier"
	"github.com/Whoagir/Afisha/internal/infrastructure/postgres"
	"github.com/Whoagir/Afisha/internal/pkg/logger"
	"github.com/Whoagir/Afisha/internal/worker"
)

// dispatchConfig は設定値から配送パイプラインの設定を組み立てる
func dispatchConfig(rt *deps) application.DispatchConfig {
	nc := rt.cfg.Notification
	cfg := application.DefaultDispatchConfig()
	cfg.Retry = notification.RetryPolicy{
		MaxAttempts: nc.MaxAttempts,
		BaseDelay:   nc.BaseBackoff,
		MaxDelay:    nc.MaxBackoff,
	}
	cfg.BatchSize = nc.BatchSize
	cfg.Workers = nc.Workers
	cfg.Timeout = nc.Timeout
	cfg.StaleAfter = nc.StaleAfter
	cfg.OperatorID = nc.OperatorID
	return cfg
}

func notifierCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "notifier",
		Short: "期限の来た通知を配送サービスへ送る",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := bootstrap(ctx, false)
			if err != nil {
				return err
			}
			defer rt.close()

			nc := rt.cfg.Notification
			transport, err := notifier.Dial(nc.GRPCAddr, rt.log.Named("notifier"))
			if err != nil {
				return err
			}
			defer transport.Close()

			clk := clock.New()
			service := application.NewNotificationService(
				postgres.NewNotificationRepository(rt.db),
				postgres.NewEventRepository(rt.db),
				transport,
				clk,
				dispatchConfig(rt),
			)
			dispatcher := worker.NewNotificationDispatcher(service, clk, nc.PollInterval)

			logger.Info("通知ディスパッチャーを起動します",
				zap.String("addr", nc.GRPCAddr),
				zap.Int("workers", nc.Workers),
				zap.Int("max_attempts", nc.MaxAttempts),
			)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				// Start は gctx が終わるまで戻らない
				dispatcher.Start(gctx)
				return nil
			})
			g.Go(func() error { return rt.serveOps(gctx) })
			return g.Wait()
		},
	}
}

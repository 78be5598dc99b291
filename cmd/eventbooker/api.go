package main

import (
	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/Whoagir/Afisha/internal/api/handler"
	"github.com/Whoagir/Afisha/internal/api/router"
	"github.com/Whoagir/Afisha/internal/application"
	"github.com/Whoagir/Afisha/internal/infrastructure/postgres"
	redisinfra "github.com/Whoagir/Afisha/internal/infrastructure/redis"
)

func apiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "api",
		Short: "HTTP API サーバーを起動する",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := bootstrap(ctx, true)
			if err != nil {
				return err
			}
			defer rt.close()

			if rt.cfg.Server.AutoMigrate {
				if err := postgres.RunMigrations(rt.db.DB, rt.cfg.Database.MigrationsPath); err != nil {
					return err
				}
			}

			// Redis 無効時はインターフェースに型付き nil を入れない
			var (
				lockManager redisinfra.LockManagerInterface
				cache       redisinfra.AvailabilityCacheInterface
			)
			if rt.redis != nil {
				lockManager = redisinfra.NewLockManager(rt.redis)
				cache = redisinfra.NewAvailabilityCache(rt.redis)
			}

			clk := clock.New()
			txManager := postgres.NewTxManager(rt.db)
			eventRepo := postgres.NewEventRepository(rt.db)
			bookingRepo := postgres.NewBookingRepository(rt.db)
			ratingRepo := postgres.NewRatingRepository(rt.db)
			intentRepo := postgres.NewNotificationRepository(rt.db)

			// API プロセスは通知を積むだけで配送はしない
			notifications := application.NewNotificationService(intentRepo, eventRepo, nil, clk, dispatchConfig(rt))

			policy := application.DefaultBookingPolicy()
			policy.CancellationCutoff = rt.cfg.Booking.CancellationCutoff
			if rt.cfg.Booking.LockTTL > 0 {
				policy.LockTTL = rt.cfg.Booking.LockTTL
			}
			if rt.cfg.Booking.CascadeLockTTL > 0 {
				policy.CascadeLockTTL = rt.cfg.Booking.CascadeLockTTL
			}
			bookingService := application.NewBookingService(txManager, eventRepo, bookingRepo, notifications, lockManager, cache, clk, policy)
			eventService := application.NewEventService(txManager, eventRepo, bookingRepo, intentRepo, bookingService, cache, clk).
				WithAvailabilityTTL(rt.cfg.Booking.AvailabilityTTL)
			ratingService := application.NewRatingService(eventRepo, bookingRepo, ratingRepo, clk)

			e := router.New(router.Handlers{
				Event:   handler.NewEventHandler(eventService),
				Booking: handler.NewBookingHandler(bookingService),
				Rating:  handler.NewRatingHandler(ratingService),
				Health:  handler.NewHealthHandler(rt.healthChecks()),
			}, router.Options{
				Metrics:     rt.metrics,
				Gatherer:    prometheus.DefaultGatherer,
				MetricsUser: rt.cfg.Server.MetricsUser,
				MetricsPass: rt.cfg.Server.MetricsPass,
			})

			return serveEcho(ctx, e, rt.cfg.Server)
		},
	}
}

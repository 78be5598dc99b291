package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Whoagir/Afisha/internal/api/handler"
	"github.com/Whoagir/Afisha/internal/api/middleware"
	"github.com/Whoagir/Afisha/internal/config"
	"github.com/Whoagir/Afisha/internal/infrastructure/postgres"
	redisinfra "github.com/Whoagir/Afisha/internal/infrastructure/redis"
	"github.com/Whoagir/Afisha/internal/pkg/logger"
	"github.com/Whoagir/Afisha/internal/pkg/metrics"
)

const shutdownTimeout = 10 * time.Second

// deps はプロセス共通の依存
type deps struct {
	cfg     *config.Config
	log     *zap.Logger
	metrics *metrics.Metrics
	db      *sqlx.DB
	redis   *goredis.Client
}

// bootstrap は設定・ロガー・メトリクス・DB を初期化する
func bootstrap(ctx context.Context, withRedis bool) (*deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := logger.Init(cfg.Log.Env, cfg.Log.Level)
	rt := &deps{cfg: cfg, log: log, metrics: metrics.Init()}

	db, err := postgres.NewConnection(&cfg.Database)
	if err != nil {
		return nil, err
	}
	rt.db = db

	if withRedis && cfg.Redis.Enabled {
		rc, err := redisinfra.NewClient(ctx, &cfg.Redis)
		if err != nil {
			// Redis 無しでも行ロックだけで整合性は保てる
			log.Warn("Redisに接続できないため分散ロックとキャッシュを無効化します", zap.Error(err))
		} else {
			rt.redis = rc
		}
	}
	return rt, nil
}

func (rt *deps) close() {
	if rt.redis != nil {
		rt.redis.Close()
	}
	if rt.db != nil {
		rt.db.Close()
	}
	logger.Sync()
}

// healthChecks はヘルスチェック対象の依存を返す
func (rt *deps) healthChecks() map[string]handler.Pinger {
	checks := map[string]handler.Pinger{
		"postgres": func(ctx context.Context) error { return postgres.Ping(ctx, rt.db) },
	}
	if rt.redis != nil {
		checks["redis"] = func(ctx context.Context) error { return redisinfra.Ping(ctx, rt.redis) }
	}
	return checks
}

// serveOps はワーカープロセス用に /metrics と /health だけを公開する
func (rt *deps) serveOps(ctx context.Context) error {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.GET("/health", handler.NewHealthHandler(rt.healthChecks()).Check)
	e.GET("/metrics",
		echo.WrapHandler(promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{})),
		middleware.MetricsBasicAuth(rt.cfg.Server.MetricsUser, rt.cfg.Server.MetricsPass),
	)
	return serveEcho(ctx, e, rt.cfg.Server)
}

// serveEcho は ctx がキャンセルされるまで e を提供し、その後グレースフルに停止する
func serveEcho(ctx context.Context, e *echo.Echo, cfg config.ServerConfig) error {
	e.Server.ReadTimeout = cfg.ReadTimeout
	e.Server.WriteTimeout = cfg.WriteTimeout

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTPサーバーを起動します", zap.String("port", cfg.Port))
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("サーバー起動エラー: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("サーバーをシャットダウンしています...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("サーバーシャットダウンエラー: %w", err)
	}
	logger.Info("サーバーが正常にシャットダウンしました")
	return nil
}

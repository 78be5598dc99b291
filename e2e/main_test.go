package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/Whoagir/Afisha/internal/api/handler"
	"github.com/Whoagir/Afisha/internal/api/middleware"
	"github.com/Whoagir/Afisha/internal/api/router"
	"github.com/Whoagir/Afisha/internal/application"
	"github.com/Whoagir/Afisha/internal/config"
	"github.com/Whoagir/Afisha/internal/infrastructure/postgres"
	redisinfra "github.com/Whoagir/Afisha/internal/infrastructure/redis"
)

// TestServer はE2Eテスト用のサーバー
type TestServer struct {
	Echo   *echo.Echo
	Clock  *clock.Mock
	Sweeps *application.SweepService
}

var (
	testServer  *TestServer
	testDB      *sqlx.DB
	redisClient *redis.Client
)

// TestMain はE2Eテストのエントリポイント
// パッケージ全体で1回だけサーバーを組み立てる
func TestMain(m *testing.M) {
	cfg, err := config.Load()
	if err != nil {
		os.Exit(0)
	}

	db, err := postgres.NewConnection(&cfg.Database)
	if err != nil {
		os.Exit(0) // DB未起動時はスキップ
	}
	testDB = db
	if err := postgres.RunMigrations(db.DB, migrationsPath()); err != nil {
		db.Close()
		os.Exit(0)
	}

	// Redis は任意。未起動なら行ロックだけで動かす
	var (
		lockManager redisinfra.LockManagerInterface
		cache       redisinfra.AvailabilityCacheInterface
	)
	if rc, err := redisinfra.NewClient(context.Background(), &cfg.Redis); err == nil {
		redisClient = rc
		lockManager = redisinfra.NewLockManager(rc)
		cache = redisinfra.NewAvailabilityCache(rc)
	}

	clk := clock.NewMock()
	clk.Set(time.Now().UTC().Truncate(time.Second))

	txManager := postgres.NewTxManager(db)
	eventRepo := postgres.NewEventRepository(db)
	bookingRepo := postgres.NewBookingRepository(db)
	ratingRepo := postgres.NewRatingRepository(db)
	intentRepo := postgres.NewNotificationRepository(db)

	notifications := application.NewNotificationService(intentRepo, eventRepo, nil, clk, application.DefaultDispatchConfig())
	bookingService := application.NewBookingService(txManager, eventRepo, bookingRepo, notifications, lockManager, cache, clk, application.DefaultBookingPolicy())
	eventService := application.NewEventService(txManager, eventRepo, bookingRepo, intentRepo, bookingService, cache, clk)
	ratingService := application.NewRatingService(eventRepo, bookingRepo, ratingRepo, clk)

	e := router.New(router.Handlers{
		Event:   handler.NewEventHandler(eventService),
		Booking: handler.NewBookingHandler(bookingService),
		Rating:  handler.NewRatingHandler(ratingService),
		Health:  handler.NewHealthHandler(nil),
	}, router.Options{})

	testServer = &TestServer{
		Echo:   e,
		Clock:  clk,
		Sweeps: application.NewSweepService(eventRepo, bookingRepo, intentRepo, clk, time.Hour, 100),
	}

	code := m.Run()

	cleanupTables()
	if redisClient != nil {
		redisClient.FlushDB(context.Background())
		redisClient.Close()
	}
	db.Close()

	os.Exit(code)
}

func migrationsPath() string {
	if p := os.Getenv("MIGRATIONS_PATH"); p != "" {
		return p
	}
	return "../migrations"
}

// cleanupTables はテーブルをクリーンアップ
func cleanupTables() {
	testDB.Exec("TRUNCATE TABLE notification_intents, ratings, bookings, events CASCADE")
}

// getTestServer は共有サーバーを取得（テスト前にテーブルをクリーンアップ）
func getTestServer(t *testing.T) *TestServer {
	t.Helper()
	if testServer == nil {
		t.Skip("テスト環境が利用できません")
	}
	cleanupTables()
	if redisClient != nil {
		redisClient.FlushDB(context.Background())
	}
	return testServer
}

// Request は userID と role をヘッダーに付けてリクエストを実行する。userID が空なら匿名
func (s *TestServer) Request(method, path string, body interface{}, userID, role string) *httptest.ResponseRecorder {
	var reqBody []byte
	if body != nil {
		reqBody, _ = json.Marshal(body)
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set(middleware.HeaderUserID, userID)
		req.Header.Set(middleware.HeaderUserRole, role)
	}

	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)
	return rec
}

// decode はレスポンスボディを v に読み込む
func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("レスポンスの解析に失敗: %v (%s)", err, rec.Body.String())
	}
}

// createEvent は公開済みイベントを作成して ID を返す
func (s *TestServer) createEvent(t *testing.T, organizerID string, capacity int, startIn time.Duration) string {
	t.Helper()
	rec := s.Request(http.MethodPost, "/api/v1/events", map[string]interface{}{
		"title":    "武道館ライブ",
		"city":     "東京",
		"start_at": s.Clock.Now().Add(startIn).Format(time.RFC3339),
		"capacity": capacity,
		"publish":  true,
	}, organizerID, "organizer")
	if rec.Code != http.StatusCreated {
		t.Fatalf("イベント作成に失敗: %d %s", rec.Code, rec.Body.String())
	}
	var resp handler.EventResponse
	decode(t, rec, &resp)
	return resp.ID
}

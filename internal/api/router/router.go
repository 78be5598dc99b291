package router

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Whoagir/Afisha/internal/api"
	"github.com/Whoagir/Afisha/internal/api/handler"
	"github.com/Whoagir/Afisha/internal/api/middleware"
	"github.com/Whoagir/Afisha/internal/pkg/metrics"
)

// Handlers はルーティング対象のハンドラー
type Handlers struct {
	Event   *handler.EventHandler
	Booking *handler.BookingHandler
	Rating  *handler.RatingHandler
	Health  *handler.HealthHandler
}

// Options は /metrics の公開設定
type Options struct {
	Metrics     *metrics.Metrics
	Gatherer    prometheus.Gatherer
	MetricsUser string
	MetricsPass string
}

// New は全ルートを登録した Echo を返す
func New(h Handlers, opts Options) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler

	middleware.SetupMiddleware(e)
	e.Use(middleware.PrometheusMiddleware(opts.Metrics))

	if opts.Gatherer != nil {
		e.GET("/metrics",
			echo.WrapHandler(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})),
			middleware.MetricsBasicAuth(opts.MetricsUser, opts.MetricsPass),
		)
	}

	Register(e.Group("/api/v1"), h)
	return e
}

// Register は /api/v1 配下のルートを登録する
func Register(v1 *echo.Group, h Handlers) {
	v1.GET("/health", h.Health.Check)

	v1.POST("/events", h.Event.Create)
	v1.GET("/events", h.Event.List)
	v1.GET("/events/:id", h.Event.GetByID)
	v1.DELETE("/events/:id", h.Event.Delete)
	v1.GET("/events/:id/availability", h.Event.Availability)
	v1.POST("/events/:id/publish", h.Event.Publish)
	v1.POST("/events/:id/cancel", h.Event.Cancel)
	v1.GET("/events/:id/notifications", h.Event.Notifications)

	v1.POST("/events/:id/bookings", h.Booking.Create)
	v1.GET("/bookings", h.Booking.ListMine)
	v1.GET("/bookings/:id", h.Booking.GetByID)
	v1.POST("/bookings/:id/cancel", h.Booking.Cancel)

	v1.GET("/events/:id/rating-eligibility", h.Rating.Eligibility)
	v1.POST("/events/:id/ratings", h.Rating.Submit)
	v1.GET("/events/:id/ratings/summary", h.Rating.Summary)

	v1.GET("/me/upcoming-events", h.Event.MyUpcoming)
}

package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/Whoagir/Afisha/internal/application"
	"github.com/Whoagir/Afisha/internal/domain/booking"
	"github.com/Whoagir/Afisha/internal/domain/event"
	"github.com/Whoagir/Afisha/internal/domain/rating"
	"github.com/Whoagir/Afisha/internal/domain/user"
	"github.com/Whoagir/Afisha/internal/pkg/logger"
)

// ErrorResponse はエラーレスポンスの統一フォーマット
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// ドメインエラーと HTTP ステータスの対応
var statusByError = []struct {
	err    error
	status int
}{
	{user.ErrUnauthenticated, http.StatusUnauthorized},
	{user.ErrInvalidRole, http.StatusUnauthorized},
	{user.ErrOrganizerOnly, http.StatusForbidden},

	{event.ErrEventNotFound, http.StatusNotFound},
	{booking.ErrBookingNotFound, http.StatusNotFound},

	{event.ErrPermissionDenied, http.StatusForbidden},
	{booking.ErrPermissionDenied, http.StatusForbidden},
	{rating.ErrNotEligible, http.StatusForbidden},

	{event.ErrInvalidTransition, http.StatusConflict},
	{event.ErrDeletionWindowExpired, http.StatusConflict},
	{event.ErrCapacityExceeded, http.StatusConflict},
	{event.ErrEventNotBookable, http.StatusConflict},
	{booking.ErrAlreadyCancelled, http.StatusConflict},
	{booking.ErrTooLateToCancel, http.StatusConflict},
	{rating.ErrDuplicateRating, http.StatusConflict},

	{application.ErrEventBusy, http.StatusServiceUnavailable},

	{event.ErrEventTitleRequired, http.StatusBadRequest},
	{event.ErrOrganizerRequired, http.StatusBadRequest},
	{event.ErrInvalidCapacity, http.StatusBadRequest},
	{event.ErrInvalidStartTime, http.StatusBadRequest},
	{event.ErrInvalidSeats, http.StatusBadRequest},
	{event.ErrInvalidFilter, http.StatusBadRequest},
	{booking.ErrEventIDRequired, http.StatusBadRequest},
	{booking.ErrAttendeeIDRequired, http.StatusBadRequest},
	{booking.ErrInvalidSeats, http.StatusBadRequest},
	{rating.ErrInvalidScore, http.StatusBadRequest},
}

// StatusFor はエラーに対応する HTTP ステータスを返す。未知のエラーは 500
func StatusFor(err error) int {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	for _, m := range statusByError {
		if errors.Is(err, m.err) {
			return m.status
		}
	}
	return http.StatusInternalServerError
}

// CustomHTTPErrorHandler はカスタムエラーハンドラー
func CustomHTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := StatusFor(err)
	message := "内部サーバーエラー"

	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		if m, ok := he.Message.(string); ok {
			message = m
		} else {
			message = http.StatusText(code)
		}
	case code < http.StatusInternalServerError:
		message = err.Error()
	}

	if code >= 500 {
		logger.Error("サーバーエラー",
			zap.Int("status", code),
			zap.String("path", c.Request().URL.Path),
			zap.Error(err),
		)
	}
	if errors.Is(err, application.ErrEventBusy) {
		message = err.Error()
		c.Response().Header().Set("Retry-After", "1")
	}

	if err := c.JSON(code, ErrorResponse{
		Error: message,
		Code:  code,
	}); err != nil {
		logger.Error("エラーレスポンス送信失敗", zap.Error(err))
	}
}

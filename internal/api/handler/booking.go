package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Whoagir/Afisha/internal/api/middleware"
	"github.com/Whoagir/Afisha/internal/application"
	"github.com/Whoagir/Afisha/internal/domain/booking"
)

type BookingHandler struct {
	bookingService BookingServiceInterface
}

func NewBookingHandler(bookingService BookingServiceInterface) *BookingHandler {
	return &BookingHandler{bookingService: bookingService}
}

type CreateBookingRequest struct {
	Seats int `json:"seats" validate:"required,gte=1" example:"2"`
}

type BookingResponse struct {
	ID          string  `json:"id"`
	EventID     string  `json:"event_id"`
	AttendeeID  string  `json:"attendee_id"`
	Seats       int     `json:"seats"`
	Status      string  `json:"status"`
	CreatedAt   string  `json:"created_at"`
	CancelledAt *string `json:"cancelled_at,omitempty"`
}

func toBookingResponse(b *booking.Booking) *BookingResponse {
	resp := &BookingResponse{
		ID:         b.ID,
		EventID:    b.EventID,
		AttendeeID: b.AttendeeID,
		Seats:      b.Seats,
		Status:     string(b.Status),
		CreatedAt:  b.CreatedAt.Format(time.RFC3339),
	}
	if b.CancelledAt != nil {
		s := b.CancelledAt.Format(time.RFC3339)
		resp.CancelledAt = &s
	}
	return resp
}

// Create godoc
// @Summary 予約を作成
// @Description 空席がある場合に確定予約を作成します
// @Tags bookings
// @Accept json
// @Produce json
// @Param id path string true "イベントID"
// @Param request body CreateBookingRequest true "座席数"
// @Success 201 {object} BookingResponse
// @Failure 409 {object} api.ErrorResponse
// @Failure 503 {object} api.ErrorResponse
// @Router /events/{id}/bookings [post]
func (h *BookingHandler) Create(c echo.Context) error {
	actor, err := middleware.CurrentPrincipal(c)
	if err != nil {
		return err
	}

	var req CreateBookingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "リクエストの形式が不正です")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	b, err := h.bookingService.CreateBooking(c.Request().Context(), application.CreateBookingInput{
		EventID:    c.Param("id"),
		AttendeeID: actor.ID,
		Seats:      req.Seats,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toBookingResponse(b))
}

// Cancel godoc
// @Summary 予約をキャンセル
// @Tags bookings
// @Param id path string true "予約ID"
// @Success 200 {object} BookingResponse
// @Failure 403 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse
// @Router /bookings/{id}/cancel [post]
func (h *BookingHandler) Cancel(c echo.Context) error {
	actor, err := middleware.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	b, err := h.bookingService.CancelBooking(c.Request().Context(), application.CancelBookingInput{
		BookingID: c.Param("id"),
		ActorID:   actor.ID,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toBookingResponse(b))
}

// GetByID は本人の予約を返す
func (h *BookingHandler) GetByID(c echo.Context) error {
	actor, err := middleware.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	b, err := h.bookingService.GetBooking(c.Request().Context(), c.Param("id"), actor.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toBookingResponse(b))
}

// ListMine godoc
// @Summary 自分の予約一覧
// @Tags bookings
// @Param limit query int false "取得件数" default(20)
// @Param offset query int false "オフセット" default(0)
// @Success 200 {array} BookingResponse
// @Router /bookings [get]
func (h *BookingHandler) ListMine(c echo.Context) error {
	actor, err := middleware.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))

	bookings, err := h.bookingService.ListMyBookings(c.Request().Context(), actor.ID, limit, offset)
	if err != nil {
		return err
	}
	responses := make([]*BookingResponse, len(bookings))
	for i, b := range bookings {
		responses[i] = toBookingResponse(b)
	}
	return c.JSON(http.StatusOK, responses)
}

package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Whoagir/Afisha/internal/api/middleware"
	"github.com/Whoagir/Afisha/internal/application"
	"github.com/Whoagir/Afisha/internal/domain/event"
	"github.com/Whoagir/Afisha/internal/domain/notification"
)

type EventHandler struct {
	eventService EventServiceInterface
}

func NewEventHandler(eventService EventServiceInterface) *EventHandler {
	return &EventHandler{eventService: eventService}
}

type CreateEventRequest struct {
	Title       string `json:"title" validate:"required,max=200" example:"ジャズナイト"`
	Description string `json:"description" example:"夏のジャズライブ"`
	City        string `json:"city" example:"東京"`
	StartAt     string `json:"start_at" validate:"required,datetime=2006-01-02T15:04:05Z07:00" example:"2026-12-31T18:00:00+09:00"`
	Capacity    int    `json:"capacity" validate:"gte=0" example:"120"`
	Publish     bool   `json:"publish" example:"true"`
}

type EventResponse struct {
	ID             string `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	OrganizerID    string `json:"organizer_id"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	City           string `json:"city"`
	StartAt        string `json:"start_at"`
	Capacity       int    `json:"capacity"`
	BookedSeats    int    `json:"booked_seats"`
	AvailableSeats int    `json:"available_seats"`
	Status         string `json:"status"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

func toEventResponse(e *event.Event) *EventResponse {
	return &EventResponse{
		ID:             e.ID,
		OrganizerID:    e.OrganizerID,
		Title:          e.Title,
		Description:    e.Description,
		City:           e.City,
		StartAt:        e.StartAt.Format(time.RFC3339),
		Capacity:       e.Capacity,
		BookedSeats:    e.BookedSeats,
		AvailableSeats: e.AvailableSeats(),
		Status:         string(e.Status),
		CreatedAt:      e.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      e.UpdatedAt.Format(time.RFC3339),
	}
}

func toEventResponses(events []*event.Event) []*EventResponse {
	responses := make([]*EventResponse, len(events))
	for i, e := range events {
		responses[i] = toEventResponse(e)
	}
	return responses
}

type AvailabilityResponse struct {
	EventID   string `json:"event_id"`
	Available int    `json:"available"`
}

type NotificationResponse struct {
	ID            string  `json:"id"`
	Kind          string  `json:"kind"`
	RecipientID   string  `json:"recipient_id"`
	BookingID     *string `json:"booking_id,omitempty"`
	State         string  `json:"state"`
	Attempts      int     `json:"attempts"`
	LastError     string  `json:"last_error,omitempty"`
	NextAttemptAt string  `json:"next_attempt_at"`
	CreatedAt     string  `json:"created_at"`
	DeliveredAt   *string `json:"delivered_at,omitempty"`
}

func toNotificationResponse(in *notification.Intent) *NotificationResponse {
	resp := &NotificationResponse{
		ID:            in.ID,
		Kind:          string(in.Kind),
		RecipientID:   in.RecipientID,
		BookingID:     in.BookingID,
		State:         string(in.State),
		Attempts:      in.Attempts,
		LastError:     in.LastError,
		NextAttemptAt: in.NextAttemptAt.Format(time.RFC3339),
		CreatedAt:     in.CreatedAt.Format(time.RFC3339),
	}
	if in.DeliveredAt != nil {
		s := in.DeliveredAt.Format(time.RFC3339)
		resp.DeliveredAt = &s
	}
	return resp
}

// Create godoc
// @Summary イベントを作成
// @Description 主催者が新しいイベントを作成します
// @Tags events
// @Accept json
// @Produce json
// @Param request body CreateEventRequest true "イベント情報"
// @Success 201 {object} EventResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 403 {object} api.ErrorResponse
// @Router /events [post]
func (h *EventHandler) Create(c echo.Context) error {
	actor, err := middleware.CurrentPrincipal(c)
	if err != nil {
		return err
	}

	var req CreateEventRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "リクエストの形式が不正です")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	startAt, err := time.Parse(time.RFC3339, req.StartAt)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "開始時刻の形式が不正です")
	}

	e, err := h.eventService.CreateEvent(c.Request().Context(), actor, application.CreateEventInput{
		Title:       req.Title,
		Description: req.Description,
		City:        req.City,
		StartAt:     startAt,
		Capacity:    req.Capacity,
		Publish:     req.Publish,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toEventResponse(e))
}

// GetByID godoc
// @Summary イベントを取得
// @Tags events
// @Produce json
// @Param id path string true "イベントID"
// @Success 200 {object} EventResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /events/{id} [get]
func (h *EventHandler) GetByID(c echo.Context) error {
	e, err := h.eventService.GetEvent(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toEventResponse(e))
}

// List godoc
// @Summary イベント一覧を取得
// @Tags events
// @Produce json
// @Param city query string false "都市（大文字小文字を区別しない）"
// @Param organizer_id query string false "主催者ID"
// @Param status query string false "状態"
// @Param search query string false "タイトルと説明のキーワード"
// @Param start_from query string false "開始時刻の下限 (RFC3339)"
// @Param start_to query string false "開始時刻の上限 (RFC3339)"
// @Param has_seats query bool false "空席のあるイベントのみ"
// @Param min_rating query number false "平均評価の下限"
// @Param limit query int false "取得件数" default(20)
// @Param offset query int false "オフセット" default(0)
// @Success 200 {array} EventResponse
// @Failure 400 {object} api.ErrorResponse
// @Router /events [get]
func (h *EventHandler) List(c echo.Context) error {
	filter, err := bindListFilter(c)
	if err != nil {
		return err
	}

	events, err := h.eventService.ListEvents(c.Request().Context(), filter)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toEventResponses(events))
}

func bindListFilter(c echo.Context) (event.ListFilter, error) {
	var (
		f        event.ListFilter
		status   string
		from, to time.Time
	)
	err := echo.QueryParamsBinder(c).
		String("city", &f.City).
		String("organizer_id", &f.OrganizerID).
		String("status", &status).
		String("search", &f.Search).
		Time("start_from", &from, time.RFC3339).
		Time("start_to", &to, time.RFC3339).
		Bool("has_seats", &f.HasSeats).
		Float64("min_rating", &f.MinRating).
		Int("limit", &f.Limit).
		Int("offset", &f.Offset).
		BindError()
	if err != nil {
		return f, echo.NewHTTPError(http.StatusBadRequest, "検索条件の形式が不正です")
	}
	f.Status = event.Status(status)
	if !from.IsZero() {
		f.StartFrom = &from
	}
	if !to.IsZero() {
		f.StartTo = &to
	}
	return f, nil
}

// Availability は残席数を返す
func (h *EventHandler) Availability(c echo.Context) error {
	a, err := h.eventService.GetAvailability(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, AvailabilityResponse{EventID: a.EventID, Available: a.Available})
}

// Publish godoc
// @Summary イベントを公開
// @Tags events
// @Param id path string true "イベントID"
// @Success 200 {object} EventResponse
// @Failure 403 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse
// @Router /events/{id}/publish [post]
func (h *EventHandler) Publish(c echo.Context) error {
	actor, err := middleware.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	e, err := h.eventService.Publish(c.Request().Context(), c.Param("id"), actor.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toEventResponse(e))
}

// Cancel godoc
// @Summary イベントをキャンセル
// @Description イベントをキャンセルし、確定済みの予約をすべて取り消します
// @Tags events
// @Param id path string true "イベントID"
// @Success 200 {object} EventResponse
// @Failure 403 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse
// @Router /events/{id}/cancel [post]
func (h *EventHandler) Cancel(c echo.Context) error {
	actor, err := middleware.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	e, err := h.eventService.CancelEvent(c.Request().Context(), c.Param("id"), actor.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toEventResponse(e))
}

// Delete godoc
// @Summary イベントを削除
// @Description 作成から1時間以内のイベントを削除します
// @Tags events
// @Param id path string true "イベントID"
// @Success 204
// @Failure 404 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse
// @Router /events/{id} [delete]
func (h *EventHandler) Delete(c echo.Context) error {
	actor, err := middleware.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	if err := h.eventService.DeleteEvent(c.Request().Context(), c.Param("id"), actor.ID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// MyUpcoming は利用者が予約している開催前のイベントを返す
func (h *EventHandler) MyUpcoming(c echo.Context) error {
	actor, err := middleware.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	events, err := h.eventService.ListUpcomingForAttendee(c.Request().Context(), actor.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toEventResponses(events))
}

// Notifications はイベントの通知履歴を主催者に返す
func (h *EventHandler) Notifications(c echo.Context) error {
	actor, err := middleware.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	intents, err := h.eventService.ListNotifications(c.Request().Context(), c.Param("id"), actor.ID)
	if err != nil {
		return err
	}
	responses := make([]*NotificationResponse, len(intents))
	for i, in := range intents {
		responses[i] = toNotificationResponse(in)
	}
	return c.JSON(http.StatusOK, responses)
}

package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Whoagir/Afisha/internal/api/middleware"
	"github.com/Whoagir/Afisha/internal/application"
)

type RatingHandler struct {
	ratingService RatingServiceInterface
}

func NewRatingHandler(ratingService RatingServiceInterface) *RatingHandler {
	return &RatingHandler{ratingService: ratingService}
}

type SubmitRatingRequest struct {
	Score   int    `json:"score" validate:"required,min=1,max=5" example:"5"`
	Comment string `json:"comment" validate:"max=2000" example:"最高の夜でした"`
}

type RatingResponse struct {
	ID         string `json:"id"`
	EventID    string `json:"event_id"`
	AttendeeID string `json:"attendee_id"`
	Score      int    `json:"score"`
	Comment    string `json:"comment,omitempty"`
}

type EligibilityResponse struct {
	EventID string `json:"event_id"`
	CanRate bool   `json:"can_rate"`
}

type RatingSummaryResponse struct {
	EventID string  `json:"event_id"`
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

// Eligibility は利用者がイベントを評価できるかを返す
func (h *RatingHandler) Eligibility(c echo.Context) error {
	actor, err := middleware.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	ok, err := h.ratingService.CanRate(c.Request().Context(), c.Param("id"), actor.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, EligibilityResponse{EventID: c.Param("id"), CanRate: ok})
}

// Submit godoc
// @Summary イベントを評価
// @Description 完了したイベントに参加した利用者が1回だけ評価できます
// @Tags ratings
// @Accept json
// @Produce json
// @Param id path string true "イベントID"
// @Param request body SubmitRatingRequest true "評価"
// @Success 201 {object} RatingResponse
// @Failure 403 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse
// @Router /events/{id}/ratings [post]
func (h *RatingHandler) Submit(c echo.Context) error {
	actor, err := middleware.CurrentPrincipal(c)
	if err != nil {
		return err
	}

	var req SubmitRatingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "リクエストの形式が不正です")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	r, err := h.ratingService.SubmitRating(c.Request().Context(), application.SubmitRatingInput{
		EventID:    c.Param("id"),
		AttendeeID: actor.ID,
		Score:      req.Score,
		Comment:    req.Comment,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, RatingResponse{
		ID:         r.ID,
		EventID:    r.EventID,
		AttendeeID: r.AttendeeID,
		Score:      r.Score,
		Comment:    r.Comment,
	})
}

// Summary は平均評価と件数を返す
func (h *RatingHandler) Summary(c echo.Context) error {
	s, err := h.ratingService.Summary(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, RatingSummaryResponse{EventID: s.EventID, Average: s.Average, Count: s.Count})
}

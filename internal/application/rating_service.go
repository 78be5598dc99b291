package application

import (
	"context"

	"github.com/benbjohnson/clock"

	"github.com/Whoagir/Afisha/internal/domain/booking"
	"github.com/Whoagir/Afisha/internal/domain/event"
	"github.com/Whoagir/Afisha/internal/domain/rating"
)

// RatingService は評価の受付可否を判定し、評価を保存する
type RatingService struct {
	eventRepo   event.Repository
	bookingRepo booking.Repository
	ratingRepo  rating.Repository
	clock       clock.Clock
}

func NewRatingService(eventRepo event.Repository, bookingRepo booking.Repository, ratingRepo rating.Repository, clk clock.Clock) *RatingService {
	return &RatingService{eventRepo: eventRepo, bookingRepo: bookingRepo, ratingRepo: ratingRepo, clock: clk}
}

// CanRate はイベントが完了済みで、参加者が確定予約を持っている場合に true
func (s *RatingService) CanRate(ctx context.Context, eventID, attendeeID string) (bool, error) {
	ev, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return false, err
	}
	if ev.Status != event.StatusCompleted {
		return false, nil
	}
	return s.bookingRepo.ExistsConfirmed(ctx, eventID, attendeeID)
}

type SubmitRatingInput struct {
	EventID    string
	AttendeeID string
	Score      int
	Comment    string
}

func (s *RatingService) SubmitRating(ctx context.Context, input SubmitRatingInput) (*rating.Rating, error) {
	r := rating.NewRating(input.EventID, input.AttendeeID, input.Score, input.Comment, s.clock.Now())
	if err := r.Validate(); err != nil {
		return nil, err
	}

	ok, err := s.CanRate(ctx, input.EventID, input.AttendeeID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, rating.ErrNotEligible
	}

	exists, err := s.ratingRepo.Exists(ctx, input.EventID, input.AttendeeID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, rating.ErrDuplicateRating
	}
	// 同時送信は一意制約で ErrDuplicateRating になる
	if err := s.ratingRepo.Create(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *RatingService) Summary(ctx context.Context, eventID string) (*rating.Summary, error) {
	if _, err := s.eventRepo.GetByID(ctx, eventID); err != nil {
		return nil, err
	}
	return s.ratingRepo.Summary(ctx, eventID)
}

package handler

import (
	"context"

	"github.com/Whoagir/Afisha/internal/application"
	"github.com/Whoagir/Afisha/internal/domain/booking"
	"github.com/Whoagir/Afisha/internal/domain/event"
	"github.com/Whoagir/Afisha/internal/domain/notification"
	"github.com/Whoagir/Afisha/internal/domain/rating"
	"github.com/Whoagir/Afisha/internal/domain/user"
)

// EventServiceInterface はイベントサービスのインターフェース
type EventServiceInterface interface {
	CreateEvent(ctx context.Context, actor *user.Principal, input application.CreateEventInput) (*event.Event, error)
	GetEvent(ctx context.Context, id string) (*event.Event, error)
	ListEvents(ctx context.Context, filter event.ListFilter) ([]*event.Event, error)
	ListUpcomingForAttendee(ctx context.Context, attendeeID string) ([]*event.Event, error)
	Publish(ctx context.Context, eventID, actorID string) (*event.Event, error)
	CancelEvent(ctx context.Context, eventID, actorID string) (*event.Event, error)
	DeleteEvent(ctx context.Context, eventID, actorID string) error
	GetAvailability(ctx context.Context, eventID string) (*application.Availability, error)
	ListNotifications(ctx context.Context, eventID, actorID string) ([]*notification.Intent, error)
}

// BookingServiceInterface は予約サービスのインターフェース
type BookingServiceInterface interface {
	CreateBooking(ctx context.Context, input application.CreateBookingInput) (*booking.Booking, error)
	CancelBooking(ctx context.Context, input application.CancelBookingInput) (*booking.Booking, error)
	GetBooking(ctx context.Context, id, actorID string) (*booking.Booking, error)
	ListMyBookings(ctx context.Context, attendeeID string, limit, offset int) ([]*booking.Booking, error)
}

// RatingServiceInterface は評価サービスのインターフェース
type RatingServiceInterface interface {
	CanRate(ctx context.Context, eventID, attendeeID string) (bool, error)
	SubmitRating(ctx context.Context, input application.SubmitRatingInput) (*rating.Rating, error)
	Summary(ctx context.Context, eventID string) (*rating.Summary, error)
}

var (
	_ EventServiceInterface   = (*application.EventService)(nil)
	_ BookingServiceInterface = (*application.BookingService)(nil)
	_ RatingServiceInterface  = (*application.RatingService)(nil)
)

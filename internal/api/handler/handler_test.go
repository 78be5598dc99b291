package handler

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/mock"

	"github.com/Whoagir/Afisha/internal/api/middleware"
	"github.com/Whoagir/Afisha/internal/application"
	"github.com/Whoagir/Afisha/internal/domain/booking"
	"github.com/Whoagir/Afisha/internal/domain/event"
	"github.com/Whoagir/Afisha/internal/domain/notification"
	"github.com/Whoagir/Afisha/internal/domain/rating"
	"github.com/Whoagir/Afisha/internal/domain/user"
)

// MockEventService はEventServiceInterfaceのモック
type MockEventService struct {
	mock.Mock
}

func (m *MockEventService) CreateEvent(ctx context.Context, actor *user.Principal, input application.CreateEventInput) (*event.Event, error) {
	args := m.Called(ctx, actor, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*event.Event), args.Error(1)
}

func (m *MockEventService) GetEvent(ctx context.Context, id string) (*event.Event, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*event.Event), args.Error(1)
}

func (m *MockEventService) ListEvents(ctx context.Context, filter event.ListFilter) ([]*event.Event, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*event.Event), args.Error(1)
}

func (m *MockEventService) ListUpcomingForAttendee(ctx context.Context, attendeeID string) ([]*event.Event, error) {
	args := m.Called(ctx, attendeeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*event.Event), args.Error(1)
}

func (m *MockEventService) Publish(ctx context.Context, eventID, actorID string) (*event.Event, error) {
	args := m.Called(ctx, eventID, actorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*event.Event), args.Error(1)
}

func (m *MockEventService) CancelEvent(ctx context.Context, eventID, actorID string) (*event.Event, error) {
	args := m.Called(ctx, eventID, actorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*event.Event), args.Error(1)
}

func (m *MockEventService) DeleteEvent(ctx context.Context, eventID, actorID string) error {
	args := m.Called(ctx, eventID, actorID)
	return args.Error(0)
}

func (m *MockEventService) GetAvailability(ctx context.Context, eventID string) (*application.Availability, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*application.Availability), args.Error(1)
}

func (m *MockEventService) ListNotifications(ctx context.Context, eventID, actorID string) ([]*notification.Intent, error) {
	args := m.Called(ctx, eventID, actorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*notification.Intent), args.Error(1)
}

// MockBookingService はBookingServiceInterfaceのモック
type MockBookingService struct {
	mock.Mock
}

func (m *MockBookingService) CreateBooking(ctx context.Context, input application.CreateBookingInput) (*booking.Booking, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.Booking), args.Error(1)
}

func (m *MockBookingService) CancelBooking(ctx context.Context, input application.CancelBookingInput) (*booking.Booking, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.Booking), args.Error(1)
}

func (m *MockBookingService) GetBooking(ctx context.Context, id, actorID string) (*booking.Booking, error) {
	args := m.Called(ctx, id, actorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.Booking), args.Error(1)
}

func (m *MockBookingService) ListMyBookings(ctx context.Context, attendeeID string, limit, offset int) ([]*booking.Booking, error) {
	args := m.Called(ctx, attendeeID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*booking.Booking), args.Error(1)
}

// MockRatingService はRatingServiceInterfaceのモック
type MockRatingService struct {
	mock.Mock
}

func (m *MockRatingService) CanRate(ctx context.Context, eventID, attendeeID string) (bool, error) {
	args := m.Called(ctx, eventID, attendeeID)
	return args.Bool(0), args.Error(1)
}

func (m *MockRatingService) SubmitRating(ctx context.Context, input application.SubmitRatingInput) (*rating.Rating, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*rating.Rating), args.Error(1)
}

func (m *MockRatingService) Summary(ctx context.Context, eventID string) (*rating.Summary, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*rating.Summary), args.Error(1)
}

// testRequest は1件のリクエストを組み立てる
type testRequest struct {
	method string
	route  string
	path   string
	body   string
	userID string
	role   user.Role
}

// serve は route に h を登録した Echo でリクエストを処理する
func serve(tr testRequest, h echo.HandlerFunc) *httptest.ResponseRecorder {
	e := NewTestEcho()
	e.Use(middleware.Principal())
	e.Add(tr.method, tr.route, h)

	var body io.Reader
	if tr.body != "" {
		body = strings.NewReader(tr.body)
	}
	req := httptest.NewRequest(tr.method, tr.path, body)
	if tr.body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if tr.userID != "" {
		req.Header.Set(middleware.HeaderUserID, tr.userID)
		req.Header.Set(middleware.HeaderUserRole, string(tr.role))
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}


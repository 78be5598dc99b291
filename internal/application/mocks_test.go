package application

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Whoagir/Afisha/internal/domain/event"
	"github.com/Whoagir/Afisha/internal/domain/notification"
	"github.com/Whoagir/Afisha/internal/domain/transaction"
	"github.com/Whoagir/Afisha/internal/domain/user"
	redisinfra "github.com/Whoagir/Afisha/internal/infrastructure/redis"
)

// === Mock implementations ===

// MockTxManager implements transaction.Manager
type MockTxManager struct {
	mock.Mock
}

func (m *MockTxManager) Begin(ctx context.Context) (transaction.Tx, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(transaction.Tx), args.Error(1)
}

// MockLockManager implements redisinfra.LockManagerInterface
type MockLockManager struct {
	mock.Mock
}

func (m *MockLockManager) AcquireLock(ctx context.Context, key string, ttl time.Duration) (redisinfra.Lock, error) {
	args := m.Called(ctx, key, ttl)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(redisinfra.Lock), args.Error(1)
}

func (m *MockLockManager) AcquireLockWithRetry(ctx context.Context, key string, ttl time.Duration, maxRetries int, retryInterval time.Duration) (redisinfra.Lock, error) {
	args := m.Called(ctx, key, ttl, maxRetries, retryInterval)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(redisinfra.Lock), args.Error(1)
}

// MockLock implements redisinfra.Lock
type MockLock struct {
	mock.Mock
}

func (m *MockLock) Release(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockLock) Extend(ctx context.Context, ttl time.Duration) error {
	args := m.Called(ctx, ttl)
	return args.Error(0)
}

// MockAvailabilityCache implements redisinfra.AvailabilityCacheInterface
type MockAvailabilityCache struct {
	mock.Mock
}

func (m *MockAvailabilityCache) Get(ctx context.Context, eventID string) (int, error) {
	args := m.Called(ctx, eventID)
	return args.Int(0), args.Error(1)
}

func (m *MockAvailabilityCache) Set(ctx context.Context, eventID string, available int, ttl time.Duration) error {
	args := m.Called(ctx, eventID, available, ttl)
	return args.Error(0)
}

func (m *MockAvailabilityCache) Invalidate(ctx context.Context, eventID string) error {
	args := m.Called(ctx, eventID)
	return args.Error(0)
}

// MockTransport implements notification.Transport
type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) Send(ctx context.Context, msg notification.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// === Test helper ===

var t0 = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

const operatorID = "operator-1"

type testEnv struct {
	store         *memStore
	clock         *clock.Mock
	transport     *MockTransport
	eventRepo     *memEventRepo
	bookingRepo   *memBookingRepo
	intentRepo    *memIntentRepo
	events        *EventService
	bookings      *BookingService
	ratings       *RatingService
	sweeps        *SweepService
	notifications *NotificationService
}

type envOption func(*envConfig)

type envConfig struct {
	policy      BookingPolicy
	lockManager redisinfra.LockManagerInterface
	cache       redisinfra.AvailabilityCacheInterface
	dispatch    DispatchConfig
}

func withPolicy(p BookingPolicy) envOption {
	return func(c *envConfig) { c.policy = p }
}

func withLockManager(lm redisinfra.LockManagerInterface) envOption {
	return func(c *envConfig) { c.lockManager = lm }
}

func withCache(cache redisinfra.AvailabilityCacheInterface) envOption {
	return func(c *envConfig) { c.cache = cache }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	cfg := envConfig{policy: DefaultBookingPolicy(), dispatch: DefaultDispatchConfig()}
	cfg.dispatch.OperatorID = operatorID
	for _, opt := range opts {
		opt(&cfg)
	}

	clk := clock.NewMock()
	clk.Set(t0)

	store := newMemStore()
	txm := &memTxManager{store: store}
	eventRepo := &memEventRepo{s: store}
	bookingRepo := &memBookingRepo{s: store}
	ratingRepo := &memRatingRepo{s: store}
	intentRepo := &memIntentRepo{s: store}
	transport := new(MockTransport)

	notifications := NewNotificationService(intentRepo, eventRepo, transport, clk, cfg.dispatch)
	bookings := NewBookingService(txm, eventRepo, bookingRepo, notifications, cfg.lockManager, cfg.cache, clk, cfg.policy)

	return &testEnv{
		store:         store,
		clock:         clk,
		transport:     transport,
		eventRepo:     eventRepo,
		bookingRepo:   bookingRepo,
		intentRepo:    intentRepo,
		events:        NewEventService(txm, eventRepo, bookingRepo, intentRepo, bookings, cfg.cache, clk),
		bookings:      bookings,
		ratings:       NewRatingService(eventRepo, bookingRepo, ratingRepo, clk),
		sweeps:        NewSweepService(eventRepo, bookingRepo, intentRepo, clk, time.Hour, 100),
		notifications: notifications,
	}
}

func organizer(id string) *user.Principal {
	return &user.Principal{ID: id, Role: user.RoleOrganizer}
}

// publishedEvent は t0 から startIn 後に開始する公開イベントを作成する
func (e *testEnv) publishedEvent(t *testing.T, capacity int, startIn time.Duration) *event.Event {
	t.Helper()
	ev, err := e.events.CreateEvent(context.Background(), organizer("org-1"), CreateEventInput{
		Title:    "ジャズナイト",
		City:     "東京",
		StartAt:  e.clock.Now().Add(startIn),
		Capacity: capacity,
		Publish:  true,
	})
	require.NoError(t, err)
	return ev
}

func (e *testEnv) book(t *testing.T, eventID, attendeeID string, seats int) error {
	t.Helper()
	_, err := e.bookings.CreateBooking(context.Background(), CreateBookingInput{
		EventID:    eventID,
		AttendeeID: attendeeID,
		Seats:      seats,
	})
	return err
}

func (e *testEnv) bookedSeats(t *testing.T, eventID string) int {
	t.Helper()
	ev, err := e.eventRepo.GetByID(context.Background(), eventID)
	require.NoError(t, err)
	return ev.BookedSeats
}

package application

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Whoagir/Afisha/internal/domain/booking"
	"github.com/Whoagir/Afisha/internal/domain/event"
	"github.com/Whoagir/Afisha/internal/domain/notification"
	"github.com/Whoagir/Afisha/internal/domain/rating"
	"github.com/Whoagir/Afisha/internal/domain/transaction"
)

// memStore はテスト用のインメモリストア。
// GetForUpdate は行ごとの mutex をトランザクション終了まで保持する
type memStore struct {
	mu       sync.Mutex
	events   map[string]*event.Event
	bookings map[string]*booking.Booking
	ratings  map[string]*rating.Rating
	intents  map[string]*notification.Intent
	order    []string // intents の作成順
	rowLocks map[string]*sync.Mutex
}

var errTxRequired = errors.New("トランザクションが必要です")

func newMemStore() *memStore {
	return &memStore{
		events:   make(map[string]*event.Event),
		bookings: make(map[string]*booking.Booking),
		ratings:  make(map[string]*rating.Rating),
		intents:  make(map[string]*notification.Intent),
		rowLocks: make(map[string]*sync.Mutex),
	}
}

func (s *memStore) rowLock(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.rowLocks[key]
	if !ok {
		m = &sync.Mutex{}
		s.rowLocks[key] = m
	}
	return m
}

// memTx は取り消し用の操作を積み、Rollback で逆順に実行する
type memTx struct {
	store  *memStore
	undo   []func()
	held   []*sync.Mutex
	closed bool
}

func (t *memTx) Commit() error {
	if t.closed {
		return errors.New("トランザクションは終了しています")
	}
	t.undo = nil
	t.finish()
	return nil
}

func (t *memTx) Rollback() error {
	if t.closed {
		return nil
	}
	t.store.mu.Lock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.store.mu.Unlock()
	t.undo = nil
	t.finish()
	return nil
}

func (t *memTx) finish() {
	t.closed = true
	for i := len(t.held) - 1; i >= 0; i-- {
		t.held[i].Unlock()
	}
	t.held = nil
}

func (t *memTx) lock(key string) {
	m := t.store.rowLock(key)
	m.Lock()
	t.held = append(t.held, m)
}

// record は s.mu を保持した状態で呼ぶ
func record(tx transaction.Tx, fn func()) {
	if mt, ok := tx.(*memTx); ok && mt != nil {
		mt.undo = append(mt.undo, fn)
	}
}

func asMemTx(tx transaction.Tx) (*memTx, error) {
	mt, ok := tx.(*memTx)
	if !ok || mt == nil {
		return nil, errTxRequired
	}
	return mt, nil
}

type memTxManager struct {
	store *memStore
}

func (m *memTxManager) Begin(ctx context.Context) (transaction.Tx, error) {
	return &memTx{store: m.store}, nil
}

func cloneEvent(e *event.Event) *event.Event {
	c := *e
	return &c
}

func cloneBooking(b *booking.Booking) *booking.Booking {
	c := *b
	return &c
}

func cloneIntent(in *notification.Intent) *notification.Intent {
	c := *in
	return &c
}

// === event.Repository ===

type memEventRepo struct{ s *memStore }

var _ event.Repository = (*memEventRepo)(nil)

func (r *memEventRepo) Create(ctx context.Context, e *event.Event) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	r.s.events[e.ID] = cloneEvent(e)
	return nil
}

func (r *memEventRepo) GetByID(ctx context.Context, id string) (*event.Event, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.events[id]
	if !ok {
		return nil, event.ErrEventNotFound
	}
	return cloneEvent(e), nil
}

func (r *memEventRepo) GetForUpdate(ctx context.Context, tx transaction.Tx, id string) (*event.Event, error) {
	mt, err := asMemTx(tx)
	if err != nil {
		return nil, err
	}
	mt.lock("event:" + id)
	return r.GetByID(ctx, id)
}

func (r *memEventRepo) List(ctx context.Context, f event.ListFilter) ([]*event.Event, error) {
	r.s.mu.Lock()
	all := make([]*event.Event, 0, len(r.s.events))
	for _, e := range r.s.events {
		if r.s.matches(e, f) {
			all = append(all, cloneEvent(e))
		}
	}
	r.s.mu.Unlock()
	sort.Slice(all, func(i, j int) bool { return all[i].StartAt.Before(all[j].StartAt) })
	if f.Offset >= len(all) {
		return []*event.Event{}, nil
	}
	all = all[f.Offset:]
	if len(all) > f.Limit {
		all = all[:f.Limit]
	}
	return all, nil
}

// matches は mu を保持した状態で呼ぶ
func (s *memStore) matches(e *event.Event, f event.ListFilter) bool {
	contains := func(v string) bool { return strings.Contains(strings.ToLower(v), strings.ToLower(f.Search)) }
	switch {
	case f.City != "" && !strings.EqualFold(e.City, f.City):
		return false
	case f.OrganizerID != "" && e.OrganizerID != f.OrganizerID:
		return false
	case f.Status != "" && e.Status != f.Status:
		return false
	case f.Search != "" && !contains(e.Title) && !contains(e.Description):
		return false
	case f.StartFrom != nil && e.StartAt.Before(*f.StartFrom):
		return false
	case f.StartTo != nil && e.StartAt.After(*f.StartTo):
		return false
	case f.HasSeats && e.AvailableSeats() <= 0:
		return false
	}
	if f.MinRating > 0 {
		sum, n := 0, 0
		for _, rt := range s.ratings {
			if rt.EventID == e.ID {
				sum += rt.Score
				n++
			}
		}
		if n == 0 || float64(sum)/float64(n) < f.MinRating {
			return false
		}
	}
	return true
}

func (r *memEventRepo) ListUpcomingByAttendee(ctx context.Context, attendeeID string, now time.Time) ([]*event.Event, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	seen := map[string]bool{}
	var out []*event.Event
	for _, b := range r.s.bookings {
		if b.AttendeeID != attendeeID || !b.IsActive() || seen[b.EventID] {
			continue
		}
		e, ok := r.s.events[b.EventID]
		if !ok || !e.StartAt.After(now) || e.Status == event.StatusCancelled {
			continue
		}
		seen[b.EventID] = true
		out = append(out, cloneEvent(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.Before(out[j].StartAt) })
	return out, nil
}

func (r *memEventRepo) ListAdvanceable(ctx context.Context, now time.Time, limit int) ([]*event.Event, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*event.Event
	for _, e := range r.s.events {
		switch e.Status {
		case event.StatusDraft, event.StatusPublished:
			if e.StartAt.After(now) {
				continue
			}
		case event.StatusOngoing:
			if e.StartAt.After(now.Add(-event.CompletionDelay)) {
				continue
			}
		default:
			continue
		}
		out = append(out, cloneEvent(e))
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *memEventRepo) ListStartingBetween(ctx context.Context, status event.Status, from, to time.Time) ([]*event.Event, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*event.Event
	for _, e := range r.s.events {
		if e.Status == status && e.StartAt.After(from) && !e.StartAt.After(to) {
			out = append(out, cloneEvent(e))
		}
	}
	return out, nil
}

func (r *memEventRepo) UpdateStatus(ctx context.Context, tx transaction.Tx, e *event.Event, from event.Status) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.events[e.ID]
	if !ok || stored.Status != from {
		return false, nil
	}
	prev := *stored
	stored.Status = e.Status
	stored.UpdatedAt = e.UpdatedAt
	record(tx, func() { *stored = prev })
	return true, nil
}

func (r *memEventRepo) UpdateBookedSeats(ctx context.Context, tx transaction.Tx, e *event.Event) error {
	if _, err := asMemTx(tx); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.events[e.ID]
	if !ok {
		return event.ErrEventNotFound
	}
	if e.BookedSeats < 0 || e.BookedSeats > stored.Capacity {
		return errors.New("booked_seats の制約違反")
	}
	prev := stored.BookedSeats
	stored.BookedSeats = e.BookedSeats
	record(tx, func() { stored.BookedSeats = prev })
	return nil
}

func (r *memEventRepo) Delete(ctx context.Context, tx transaction.Tx, id string) error {
	if _, err := asMemTx(tx); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.events[id]
	if !ok {
		return event.ErrEventNotFound
	}
	delete(r.s.events, id)
	removed := map[string]*rating.Rating{}
	for k, rt := range r.s.ratings {
		if rt.EventID == id {
			removed[k] = rt
			delete(r.s.ratings, k)
		}
	}
	record(tx, func() {
		r.s.events[id] = e
		for k, rt := range removed {
			r.s.ratings[k] = rt
		}
	})
	return nil
}

// === booking.Repository ===

type memBookingRepo struct{ s *memStore }

var _ booking.Repository = (*memBookingRepo)(nil)

func (r *memBookingRepo) Create(ctx context.Context, tx transaction.Tx, b *booking.Booking) error {
	if _, err := asMemTx(tx); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	r.s.bookings[b.ID] = cloneBooking(b)
	id := b.ID
	record(tx, func() { delete(r.s.bookings, id) })
	return nil
}

func (r *memBookingRepo) GetByID(ctx context.Context, id string) (*booking.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.bookings[id]
	if !ok {
		return nil, booking.ErrBookingNotFound
	}
	return cloneBooking(b), nil
}

func (r *memBookingRepo) GetForUpdate(ctx context.Context, tx transaction.Tx, id string) (*booking.Booking, error) {
	mt, err := asMemTx(tx)
	if err != nil {
		return nil, err
	}
	mt.lock("booking:" + id)
	return r.GetByID(ctx, id)
}

func (r *memBookingRepo) ListByAttendee(ctx context.Context, attendeeID string, limit, offset int) ([]*booking.Booking, error) {
	r.s.mu.Lock()
	var out []*booking.Booking
	for _, b := range r.s.bookings {
		if b.AttendeeID == attendeeID {
			out = append(out, cloneBooking(b))
		}
	}
	r.s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return []*booking.Booking{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memBookingRepo) ListConfirmedByEvent(ctx context.Context, eventID string) ([]*booking.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*booking.Booking
	for _, b := range r.s.bookings {
		if b.EventID == eventID && b.IsActive() {
			out = append(out, cloneBooking(b))
		}
	}
	return out, nil
}

func (r *memBookingRepo) ExistsConfirmed(ctx context.Context, eventID, attendeeID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, b := range r.s.bookings {
		if b.EventID == eventID && b.AttendeeID == attendeeID && b.IsActive() {
			return true, nil
		}
	}
	return false, nil
}

func (r *memBookingRepo) UpdateStatus(ctx context.Context, tx transaction.Tx, b *booking.Booking) error {
	if _, err := asMemTx(tx); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.bookings[b.ID]
	if !ok {
		return booking.ErrBookingNotFound
	}
	prev := *stored
	*stored = *cloneBooking(b)
	record(tx, func() { *stored = prev })
	return nil
}

func (r *memBookingRepo) CancelConfirmedByEvent(ctx context.Context, tx transaction.Tx, eventID string, now time.Time) ([]*booking.Booking, error) {
	if _, err := asMemTx(tx); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*booking.Booking
	for _, b := range r.s.bookings {
		if b.EventID != eventID || !b.IsActive() {
			continue
		}
		prev := *b
		stored := b
		b.MarkCancelled(now)
		record(tx, func() { *stored = prev })
		out = append(out, cloneBooking(b))
	}
	return out, nil
}

func (r *memBookingRepo) DeleteByEvent(ctx context.Context, tx transaction.Tx, eventID string) error {
	if _, err := asMemTx(tx); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, b := range r.s.bookings {
		if b.EventID == eventID {
			removed := b
			delete(r.s.bookings, id)
			record(tx, func() { r.s.bookings[removed.ID] = removed })
		}
	}
	return nil
}

// === rating.Repository ===

type memRatingRepo struct{ s *memStore }

var _ rating.Repository = (*memRatingRepo)(nil)

func ratingKey(eventID, attendeeID string) string { return eventID + "/" + attendeeID }

func (r *memRatingRepo) Create(ctx context.Context, rt *rating.Rating) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := ratingKey(rt.EventID, rt.AttendeeID)
	if _, ok := r.s.ratings[key]; ok {
		return rating.ErrDuplicateRating
	}
	if rt.ID == "" {
		rt.ID = uuid.NewString()
	}
	c := *rt
	r.s.ratings[key] = &c
	return nil
}

func (r *memRatingRepo) Exists(ctx context.Context, eventID, attendeeID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	_, ok := r.s.ratings[ratingKey(eventID, attendeeID)]
	return ok, nil
}

func (r *memRatingRepo) Summary(ctx context.Context, eventID string) (*rating.Summary, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sum := &rating.Summary{EventID: eventID}
	var total int
	for _, rt := range r.s.ratings {
		if rt.EventID == eventID {
			total += rt.Score
			sum.Count++
		}
	}
	if sum.Count > 0 {
		sum.Average = float64(total) / float64(sum.Count)
	}
	return sum, nil
}

// === notification.Repository ===

type memIntentRepo struct{ s *memStore }

var _ notification.Repository = (*memIntentRepo)(nil)

func (r *memIntentRepo) Create(ctx context.Context, tx transaction.Tx, in *notification.Intent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.insert(tx, in)
	return nil
}

func (r *memIntentRepo) insert(tx transaction.Tx, in *notification.Intent) {
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	r.s.intents[in.ID] = cloneIntent(in)
	r.s.order = append(r.s.order, in.ID)
	id := in.ID
	record(tx, func() {
		delete(r.s.intents, id)
		for i, v := range r.s.order {
			if v == id {
				r.s.order = append(r.s.order[:i], r.s.order[i+1:]...)
				break
			}
		}
	})
}

func (r *memIntentRepo) CreateReminder(ctx context.Context, in *notification.Intent) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.intents {
		if existing.Kind == notification.KindReminder && existing.EventID == in.EventID && existing.RecipientID == in.RecipientID {
			return false, nil
		}
	}
	r.insert(nil, in)
	return true, nil
}

func (r *memIntentRepo) ClaimDue(ctx context.Context, now time.Time, limit int) ([]*notification.Intent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*notification.Intent
	for _, id := range r.s.order {
		in, ok := r.s.intents[id]
		if !ok || in.State != notification.StatePending || in.NextAttemptAt.After(now) {
			continue
		}
		in.BeginAttempt(now)
		out = append(out, cloneIntent(in))
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *memIntentRepo) Update(ctx context.Context, in *notification.Intent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.intents[in.ID]; !ok {
		return notification.ErrIntentNotFound
	}
	r.s.intents[in.ID] = cloneIntent(in)
	return nil
}

func (r *memIntentRepo) ListByEvent(ctx context.Context, eventID string) ([]*notification.Intent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*notification.Intent
	for _, id := range r.s.order {
		if in, ok := r.s.intents[id]; ok && in.EventID == eventID {
			out = append(out, cloneIntent(in))
		}
	}
	return out, nil
}

func (r *memIntentRepo) RequeueStale(ctx context.Context, before, now time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int
	for _, in := range r.s.intents {
		if in.State == notification.StateInFlight && in.UpdatedAt.Before(before) {
			in.State = notification.StatePending
			in.NextAttemptAt = now
			in.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

// intentsOf は kind の通知を作成順に返す
func (s *memStore) intentsOf(kind notification.Kind) []*notification.Intent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*notification.Intent
	for _, id := range s.order {
		if in, ok := s.intents[id]; ok && in.Kind == kind {
			out = append(out, cloneIntent(in))
		}
	}
	return out
}

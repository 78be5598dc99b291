package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImpliedStatus(t *testing.T) {
	start := baseTime

	assert.Equal(t, Status(""), ImpliedStatus(start, start.Add(-time.Minute)))
	assert.Equal(t, StatusOngoing, ImpliedStatus(start, start))
	assert.Equal(t, StatusOngoing, ImpliedStatus(start, start.Add(119*time.Minute)))
	assert.Equal(t, StatusCompleted, ImpliedStatus(start, start.Add(2*time.Hour)))
}

func TestEvent_Advance(t *testing.T) {
	tests := []struct {
		name     string
		status   Status
		now      time.Time
		want     Status
		advanced bool
	}{
		{"開始前は変化しない", StatusPublished, baseTime.Add(-time.Minute), StatusPublished, false},
		{"開始時刻で進行中", StatusPublished, baseTime, StatusOngoing, true},
		{"2時間後に完了", StatusOngoing, baseTime.Add(2*time.Hour + time.Minute), StatusCompleted, true},
		{"公開中から一気に完了", StatusPublished, baseTime.Add(3 * time.Hour), StatusCompleted, true},
		{"下書きも時刻に従う", StatusDraft, baseTime, StatusOngoing, true},
		{"完了済みは変化しない", StatusCompleted, baseTime.Add(5 * time.Hour), StatusCompleted, false},
		{"キャンセル済みは変化しない", StatusCancelled, baseTime.Add(5 * time.Hour), StatusCancelled, false},
		{"進行中は開始直後に再評価しても変化しない", StatusOngoing, baseTime.Add(time.Minute), StatusOngoing, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &Event{StartAt: baseTime, Status: tt.status}
			assert.Equal(t, tt.advanced, e.Advance(tt.now))
			assert.Equal(t, tt.want, e.Status)
		})
	}
}

func TestEvent_Advance_Idempotent(t *testing.T) {
	once := &Event{StartAt: baseTime, Status: StatusPublished}
	once.Advance(baseTime.Add(4 * time.Hour))

	many := &Event{StartAt: baseTime, Status: StatusPublished}
	now := baseTime.Add(-time.Hour)
	for i := 0; i < 60; i++ {
		before := rank[many.Status]
		many.Advance(now)
		many.Advance(now)
		assert.GreaterOrEqual(t, rank[many.Status], before)
		now = now.Add(5 * time.Minute)
	}

	assert.Equal(t, once.Status, many.Status)
	assert.Equal(t, StatusCompleted, many.Status)
}

func TestEvent_Cancel(t *testing.T) {
	t.Run("主催者は公開中のイベントをキャンセルできる", func(t *testing.T) {
		e := &Event{ID: "ev-1", OrganizerID: "org-1", Status: StatusPublished}
		cascade, err := e.Cancel("org-1", baseTime)
		require.NoError(t, err)
		assert.Equal(t, StatusCancelled, e.Status)
		assert.Equal(t, "ev-1", cascade.EventID)
	})

	t.Run("主催者以外は拒否", func(t *testing.T) {
		e := &Event{OrganizerID: "org-1", Status: StatusPublished}
		_, err := e.Cancel("user-1", baseTime)
		assert.ErrorIs(t, err, ErrPermissionDenied)
		assert.Equal(t, StatusPublished, e.Status)
	})

	for _, st := range []Status{StatusCompleted, StatusCancelled} {
		t.Run("終了状態からは遷移できない: "+string(st), func(t *testing.T) {
			e := &Event{OrganizerID: "org-1", Status: st}
			_, err := e.Cancel("org-1", baseTime)
			assert.ErrorIs(t, err, ErrInvalidTransition)
		})
	}

	for _, st := range []Status{StatusDraft, StatusOngoing} {
		t.Run("非終了状態からキャンセルできる: "+string(st), func(t *testing.T) {
			e := &Event{OrganizerID: "org-1", Status: st}
			_, err := e.Cancel("org-1", baseTime)
			require.NoError(t, err)
		})
	}
}

func TestEvent_Publish(t *testing.T) {
	e := &Event{OrganizerID: "org-1", Status: StatusDraft}
	assert.ErrorIs(t, e.Publish("user-1", baseTime), ErrPermissionDenied)
	require.NoError(t, e.Publish("org-1", baseTime))
	assert.Equal(t, StatusPublished, e.Status)
	assert.ErrorIs(t, e.Publish("org-1", baseTime), ErrInvalidTransition)
}

func TestStatus_IsValid(t *testing.T) {
	for _, s := range []Status{StatusDraft, StatusPublished, StatusOngoing, StatusCompleted, StatusCancelled} {
		assert.True(t, s.IsValid(), s)
	}
	assert.False(t, Status("").IsValid())
	assert.False(t, Status("archived").IsValid())
}

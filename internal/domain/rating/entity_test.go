package rating

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRating_Validate(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		score   int
		wantErr error
	}{
		{name: "最小値", score: 1},
		{name: "最大値", score: 5},
		{name: "0は不正", score: 0, wantErr: ErrInvalidScore},
		{name: "6は不正", score: 6, wantErr: ErrInvalidScore},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRating("ev-1", "user-1", tt.score, "  良かった ", now)
			err := r.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, "良かった", r.Comment)
		})
	}
}

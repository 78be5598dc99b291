package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/Whoagir/Afisha/internal/domain/rating"
)

type RatingRepository struct{ db *sqlx.DB }

func NewRatingRepository(db *sqlx.DB) *RatingRepository {
	return &RatingRepository{db: db}
}

// Create は評価を作成する。(event_id, attendee_id) の一意制約違反は ErrDuplicateRating
func (r *RatingRepository) Create(ctx context.Context, rt *rating.Rating) error {
	query := `INSERT INTO ratings (event_id, attendee_id, score, comment, created_at) VALUES ($1, $2, $3, $4, $5) RETURNING id`
	if err := r.db.QueryRowContext(ctx, query, rt.EventID, rt.AttendeeID, rt.Score, rt.Comment, rt.CreatedAt).Scan(&rt.ID); err != nil {
		if isUniqueViolation(err) {
			return rating.ErrDuplicateRating
		}
		return fmt.Errorf("評価作成に失敗: %w", err)
	}
	return nil
}

func (r *RatingRepository) Exists(ctx context.Context, eventID, attendeeID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM ratings WHERE event_id = $1 AND attendee_id = $2)`
	if err := r.db.GetContext(ctx, &exists, query, eventID, attendeeID); err != nil {
		return false, fmt.Errorf("評価の確認に失敗: %w", err)
	}
	return exists, nil
}

func (r *RatingRepository) Summary(ctx context.Context, eventID string) (*rating.Summary, error) {
	var row struct {
		Average float64 `db:"average"`
		Count   int     `db:"count"`
	}
	query := `SELECT COALESCE(AVG(score), 0)::float8 AS average, COUNT(*) AS count FROM ratings WHERE event_id = $1`
	if err := r.db.GetContext(ctx, &row, query, eventID); err != nil {
		return nil, fmt.Errorf("評価集計に失敗: %w", err)
	}
	return &rating.Summary{EventID: eventID, Average: row.Average, Count: row.Count}, nil
}

var _ rating.Repository = (*RatingRepository)(nil)

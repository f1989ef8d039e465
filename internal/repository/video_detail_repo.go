package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/miprootsaysak/yt-loader/internal/model"
)

// VideoDetailRepo is the sole writer of the video_details dimension.
type VideoDetailRepo struct {
	pool *pgxpool.Pool
}

func NewVideoDetailRepo(pool *pgxpool.Pool) *VideoDetailRepo {
	return &VideoDetailRepo{pool: pool}
}

// UpsertBatch applies the SCD write protocol per yt_video_id, one
// transaction per natural key.
func (r *VideoDetailRepo) UpsertBatch(ctx context.Context, drafts []model.VideoDetailDraft) (LoadStats, error) {
	var stats LoadStats
	for _, d := range drafts {
		if err := r.upsertOne(ctx, d, &stats); err != nil {
			return stats, fmt.Errorf("load video detail %s: %w", d.YTVideoID, err)
		}
	}
	return stats, nil
}

func (r *VideoDetailRepo) upsertOne(ctx context.Context, d model.VideoDetailDraft, stats *LoadStats) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	existing, err := currentVideoDetail(ctx, tx, d.YTVideoID)
	if err != nil {
		return err
	}

	switch DecideVideoDetail(existing, d) {
	case ActionNone:
		stats.Unchanged++
		return tx.Commit(ctx)

	case ActionSupersede:
		_, err = tx.Exec(ctx, `
			UPDATE video_details SET is_current = FALSE, expired_at = NOW()
			WHERE id = $1`, existing.ID)
		if err != nil {
			return err
		}
		stats.Superseded++

	case ActionInsert:
		stats.Inserted++
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO video_details (yt_video_id, video_title, description, duration, published_at)
		VALUES ($1, $2, $3, $4, $5)`,
		d.YTVideoID, d.VideoTitle, d.Description, d.Duration, d.PublishedAt)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// CurrentByNaturalKey returns the current row for a video, or nil.
func (r *VideoDetailRepo) CurrentByNaturalKey(ctx context.Context, ytVideoID string) (*model.VideoDetailRecord, error) {
	return currentVideoDetail(ctx, r.pool, ytVideoID)
}

func currentVideoDetail(ctx context.Context, q querier, ytVideoID string) (*model.VideoDetailRecord, error) {
	var v model.VideoDetailRecord
	err := q.QueryRow(ctx, `
		SELECT id, yt_video_id, video_title, description, duration, published_at,
		       is_current, is_deleted, created_at, expired_at
		FROM video_details
		WHERE yt_video_id = $1 AND is_current AND NOT is_deleted
		FOR UPDATE`, ytVideoID).Scan(
		&v.ID, &v.YTVideoID, &v.VideoTitle, &v.Description, &v.Duration, &v.PublishedAt,
		&v.IsCurrent, &v.IsDeleted, &v.CreatedAt, &v.ExpiredAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/miprootsaysak/yt-loader/internal/model"
)

// VideoFactRepo is the sole writer of the video fact table. Facts are
// keyed by (channel_id, video_id, title_id): the same video surfaced by
// two title queries carries two independent fact histories.
type VideoFactRepo struct {
	pool *pgxpool.Pool
}

func NewVideoFactRepo(pool *pgxpool.Pool) *VideoFactRepo {
	return &VideoFactRepo{pool: pool}
}

// UpsertBatch applies the SCD write protocol per natural key. A draft
// whose parent channel or video detail has no current row is counted as
// skipped rather than violating referential integrity.
func (r *VideoFactRepo) UpsertBatch(ctx context.Context, drafts []model.VideoFactDraft) (LoadStats, error) {
	var stats LoadStats
	for _, d := range drafts {
		if err := r.upsertOne(ctx, d, &stats); err != nil {
			return stats, fmt.Errorf("load fact %s/%s/%d: %w", d.ChannelID, d.VideoID, d.TitleID, err)
		}
	}
	return stats, nil
}

func (r *VideoFactRepo) upsertOne(ctx context.Context, d model.VideoFactDraft, stats *LoadStats) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var parentsExist bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM channel
		               WHERE yt_channel_id = $1 AND is_current AND NOT is_deleted)
		   AND EXISTS (SELECT 1 FROM video_details
		               WHERE yt_video_id = $2 AND is_current AND NOT is_deleted)`,
		d.ChannelID, d.VideoID).Scan(&parentsExist)
	if err != nil {
		return err
	}
	if !parentsExist {
		stats.Skipped++
		return tx.Commit(ctx)
	}

	existing, err := currentVideoFact(ctx, tx, d.ChannelID, d.VideoID, d.TitleID)
	if err != nil {
		return err
	}

	switch DecideVideoFact(existing, d) {
	case ActionNone:
		stats.Unchanged++
		return tx.Commit(ctx)

	case ActionSupersede:
		_, err = tx.Exec(ctx, `
			UPDATE video SET is_current = FALSE, expired_at = NOW()
			WHERE id = $1`, existing.ID)
		if err != nil {
			return err
		}
		stats.Superseded++

	case ActionInsert:
		stats.Inserted++
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO video (channel_id, video_id, view_count, like_count, comment_count, title_id)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		d.ChannelID, d.VideoID, d.ViewCount, d.LikeCount, d.CommentCount, d.TitleID)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// CurrentByNaturalKey returns the current fact row, or nil.
func (r *VideoFactRepo) CurrentByNaturalKey(ctx context.Context, channelID, videoID string, titleID int) (*model.VideoFactRecord, error) {
	return currentVideoFact(ctx, r.pool, channelID, videoID, titleID)
}

func currentVideoFact(ctx context.Context, q querier, channelID, videoID string, titleID int) (*model.VideoFactRecord, error) {
	var f model.VideoFactRecord
	err := q.QueryRow(ctx, `
		SELECT id, channel_id, video_id, view_count, like_count, comment_count, title_id,
		       is_current, is_deleted, created_at, expired_at
		FROM video
		WHERE channel_id = $1 AND video_id = $2 AND title_id = $3
		  AND is_current AND NOT is_deleted
		FOR UPDATE`, channelID, videoID, titleID).Scan(
		&f.ID, &f.ChannelID, &f.VideoID, &f.ViewCount, &f.LikeCount, &f.CommentCount, &f.TitleID,
		&f.IsCurrent, &f.IsDeleted, &f.CreatedAt, &f.ExpiredAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/miprootsaysak/yt-loader/internal/model"
)

// ChannelRepo is the sole writer of the channel dimension.
type ChannelRepo struct {
	pool *pgxpool.Pool
}

func NewChannelRepo(pool *pgxpool.Pool) *ChannelRepo {
	return &ChannelRepo{pool: pool}
}

// UpsertBatch applies the SCD write protocol to each draft: insert when
// no current row exists, supersede when fields changed, no-op when
// identical. Each natural key gets its own transaction, so a failure
// mid-batch never leaves a key with two current rows.
func (r *ChannelRepo) UpsertBatch(ctx context.Context, drafts []model.ChannelDraft) (LoadStats, error) {
	var stats LoadStats
	for _, d := range drafts {
		if err := r.upsertOne(ctx, d, &stats); err != nil {
			return stats, fmt.Errorf("load channel %s: %w", d.YTChannelID, err)
		}
	}
	return stats, nil
}

func (r *ChannelRepo) upsertOne(ctx context.Context, d model.ChannelDraft, stats *LoadStats) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	existing, err := currentChannel(ctx, tx, d.YTChannelID)
	if err != nil {
		return err
	}

	switch DecideChannel(existing, d) {
	case ActionNone:
		stats.Unchanged++
		return tx.Commit(ctx)

	case ActionSupersede:
		_, err = tx.Exec(ctx, `
			UPDATE channel SET is_current = FALSE, expired_at = NOW()
			WHERE id = $1`, existing.ID)
		if err != nil {
			return err
		}
		stats.Superseded++

	case ActionInsert:
		stats.Inserted++
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO channel (yt_channel_id, channel_title, subscribers_count, videos_count)
		VALUES ($1, $2, $3, $4)`,
		d.YTChannelID, d.ChannelTitle, d.SubscribersCount, d.VideosCount)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// CurrentByNaturalKey returns the current row for a channel, or nil.
func (r *ChannelRepo) CurrentByNaturalKey(ctx context.Context, ytChannelID string) (*model.ChannelRecord, error) {
	return currentChannel(ctx, r.pool, ytChannelID)
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func currentChannel(ctx context.Context, q querier, ytChannelID string) (*model.ChannelRecord, error) {
	var ch model.ChannelRecord
	err := q.QueryRow(ctx, `
		SELECT id, yt_channel_id, channel_title, subscribers_count, videos_count,
		       is_current, is_deleted, created_at, expired_at
		FROM channel
		WHERE yt_channel_id = $1 AND is_current AND NOT is_deleted
		FOR UPDATE`, ytChannelID).Scan(
		&ch.ID, &ch.YTChannelID, &ch.ChannelTitle, &ch.SubscribersCount, &ch.VideosCount,
		&ch.IsCurrent, &ch.IsDeleted, &ch.CreatedAt, &ch.ExpiredAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

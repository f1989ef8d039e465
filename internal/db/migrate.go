package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Warehouse schema. Natural keys are looked up by the loaders at write
// time, so only the surrogate ids carry constraints; the single-current
// invariant is enforced by partial unique indexes.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS title (
		id          SERIAL PRIMARY KEY,
		by_title    VARCHAR(50) NOT NULL,
		is_current  BOOLEAN NOT NULL DEFAULT TRUE,
		is_deleted  BOOLEAN NOT NULL DEFAULT FALSE,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		expired_at  TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS channel (
		id                SERIAL PRIMARY KEY,
		channel_title     VARCHAR(150),
		yt_channel_id     VARCHAR(24) NOT NULL,
		subscribers_count BIGINT NOT NULL DEFAULT 0,
		videos_count      BIGINT NOT NULL DEFAULT 0,
		is_current        BOOLEAN NOT NULL DEFAULT TRUE,
		is_deleted        BOOLEAN NOT NULL DEFAULT FALSE,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		expired_at        TIMESTAMPTZ
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS channel_current_key
		ON channel (yt_channel_id) WHERE is_current AND NOT is_deleted`,
	`CREATE TABLE IF NOT EXISTS video_details (
		id           SERIAL PRIMARY KEY,
		yt_video_id  VARCHAR(15) NOT NULL,
		video_title  VARCHAR(150),
		description  VARCHAR(5000),
		duration     BIGINT NOT NULL DEFAULT 0,
		published_at TIMESTAMPTZ,
		is_current   BOOLEAN NOT NULL DEFAULT TRUE,
		is_deleted   BOOLEAN NOT NULL DEFAULT FALSE,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		expired_at   TIMESTAMPTZ
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS video_details_current_key
		ON video_details (yt_video_id) WHERE is_current AND NOT is_deleted`,
	`CREATE TABLE IF NOT EXISTS video (
		id            SERIAL PRIMARY KEY,
		channel_id    VARCHAR(24) NOT NULL,
		video_id      VARCHAR(15) NOT NULL,
		view_count    BIGINT NOT NULL DEFAULT 0,
		like_count    BIGINT NOT NULL DEFAULT 0,
		comment_count BIGINT NOT NULL DEFAULT 0,
		title_id      INTEGER NOT NULL REFERENCES title (id),
		is_current    BOOLEAN NOT NULL DEFAULT TRUE,
		is_deleted    BOOLEAN NOT NULL DEFAULT FALSE,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		expired_at    TIMESTAMPTZ
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS video_current_key
		ON video (channel_id, video_id, title_id) WHERE is_current AND NOT is_deleted`,
}

// Migrate creates the warehouse tables if they do not exist yet.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range migrations {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

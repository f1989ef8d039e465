package model

import "time"

// MaxDescriptionLen is the description column width; longer API
// descriptions are truncated before staging.
const MaxDescriptionLen = 5000

// RawSearchHit is one search.list result: a video id plus the rough
// title reported by the search endpoint.
type RawSearchHit struct {
	VideoID string
	Title   string
}

// VideoStat is the per-video slice of a videos.list response, enriched
// with the fields the pipeline extracts. Ephemeral.
type VideoStat struct {
	VideoID         string
	ChannelID       string
	ChannelTitle    string
	ViewCount       int64
	LikeCount       int64
	CommentCount    int64
	DurationSeconds int64
	Description     string
	PublishedAt     time.Time
	Title           string
}

// VideoDetailDraft is a staged video_details dimension row.
type VideoDetailDraft struct {
	YTVideoID   string    `json:"yt_video_id"`
	VideoTitle  string    `json:"video_title"`
	Description string    `json:"description"`
	Duration    int64     `json:"duration"`
	PublishedAt time.Time `json:"published_at"`
}

// VideoDetailRecord is a versioned row of the video_details dimension.
// Exactly one current row exists per yt_video_id.
type VideoDetailRecord struct {
	ID          int64      `json:"id"`
	YTVideoID   string     `json:"yt_video_id"`
	VideoTitle  string     `json:"video_title"`
	Description string     `json:"description"`
	Duration    int64      `json:"duration"`
	PublishedAt time.Time  `json:"published_at"`
	IsCurrent   bool       `json:"is_current"`
	IsDeleted   bool       `json:"is_deleted"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiredAt   *time.Time `json:"expired_at,omitempty"`
}

// VideoFactDraft is a staged video fact row. TitleID carries the seed
// that surfaced the video, so one video searched under two titles
// yields two independent facts.
type VideoFactDraft struct {
	ChannelID    string `json:"channel_id"`
	VideoID      string `json:"video_id"`
	ViewCount    int64  `json:"view_count"`
	LikeCount    int64  `json:"like_count"`
	CommentCount int64  `json:"comment_count"`
	TitleID      int    `json:"title_id"`
}

// VideoFactRecord is a versioned row of the video fact table. Exactly
// one current row exists per (channel_id, video_id, title_id).
type VideoFactRecord struct {
	ID           int64      `json:"id"`
	ChannelID    string     `json:"channel_id"`
	VideoID      string     `json:"video_id"`
	ViewCount    int64      `json:"view_count"`
	LikeCount    int64      `json:"like_count"`
	CommentCount int64      `json:"comment_count"`
	TitleID      int        `json:"title_id"`
	IsCurrent    bool       `json:"is_current"`
	IsDeleted    bool       `json:"is_deleted"`
	CreatedAt    time.Time  `json:"created_at"`
	ExpiredAt    *time.Time `json:"expired_at,omitempty"`
}

// Batch bundles the three staged draft sets produced by one
// fetch_and_aggregate run.
type Batch struct {
	Channels []ChannelDraft     `json:"channels"`
	Details  []VideoDetailDraft `json:"details"`
	Facts    []VideoFactDraft   `json:"facts"`
}

package model

import "time"

// ChannelStat is the per-channel slice of a channels.list response.
// It lives only within a single pipeline run.
type ChannelStat struct {
	ChannelID       string
	ChannelTitle    string
	SubscriberCount int64
	VideoCount      int64
}

// ChannelDraft is a staged channel dimension row, not yet versioned.
type ChannelDraft struct {
	YTChannelID      string `json:"yt_channel_id"`
	ChannelTitle     string `json:"channel_title"`
	SubscribersCount int64  `json:"subscribers_count"`
	VideosCount      int64  `json:"videos_count"`
}

// ChannelRecord is a versioned row of the channel dimension.
// Exactly one current row exists per yt_channel_id.
type ChannelRecord struct {
	ID               int64      `json:"id"`
	YTChannelID      string     `json:"yt_channel_id"`
	ChannelTitle     string     `json:"channel_title"`
	SubscribersCount int64      `json:"subscribers_count"`
	VideosCount      int64      `json:"videos_count"`
	IsCurrent        bool       `json:"is_current"`
	IsDeleted        bool       `json:"is_deleted"`
	CreatedAt        time.Time  `json:"created_at"`
	ExpiredAt        *time.Time `json:"expired_at,omitempty"`
}

package repository

import "github.com/miprootsaysak/yt-loader/internal/model"

// Action is the outcome of comparing an incoming draft against the
// current row for its natural key.
type Action int

const (
	// ActionInsert — no current row exists; insert a new current one.
	ActionInsert Action = iota
	// ActionSupersede — the current row differs; expire it and insert.
	ActionSupersede
	// ActionNone — the current row is identical; loading is a no-op.
	ActionNone
)

// LoadStats counts per-batch load outcomes.
type LoadStats struct {
	Inserted   int
	Superseded int
	Unchanged  int
	Skipped    int
}

func (s LoadStats) Total() int {
	return s.Inserted + s.Superseded + s.Unchanged + s.Skipped
}

// DecideChannel compares a channel draft with its current row.
func DecideChannel(existing *model.ChannelRecord, draft model.ChannelDraft) Action {
	if existing == nil {
		return ActionInsert
	}
	if existing.ChannelTitle == draft.ChannelTitle &&
		existing.SubscribersCount == draft.SubscribersCount &&
		existing.VideosCount == draft.VideosCount {
		return ActionNone
	}
	return ActionSupersede
}

// DecideVideoDetail compares a video detail draft with its current row.
func DecideVideoDetail(existing *model.VideoDetailRecord, draft model.VideoDetailDraft) Action {
	if existing == nil {
		return ActionInsert
	}
	if existing.VideoTitle == draft.VideoTitle &&
		existing.Description == draft.Description &&
		existing.Duration == draft.Duration &&
		existing.PublishedAt.Equal(draft.PublishedAt) {
		return ActionNone
	}
	return ActionSupersede
}

// DecideVideoFact compares a fact draft with its current row.
func DecideVideoFact(existing *model.VideoFactRecord, draft model.VideoFactDraft) Action {
	if existing == nil {
		return ActionInsert
	}
	if existing.ViewCount == draft.ViewCount &&
		existing.LikeCount == draft.LikeCount &&
		existing.CommentCount == draft.CommentCount {
		return ActionNone
	}
	return ActionSupersede
}

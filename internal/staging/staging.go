// Package staging is the durable hand-off between the fetch/aggregate
// stage and the load stages. A load-stage retry replays staged data
// instead of re-querying the API, and each load target reads its batch
// independently. Most recent write wins; there is no retention beyond
// that.
package staging

import "context"

// Stage keys for the three draft batches.
const (
	StageChannels     = "channel_drafts"
	StageVideoDetails = "video_detail_drafts"
	StageVideoFacts   = "video_fact_drafts"
)

// Store persists one batch per stage key. Read on a never-written stage
// returns found=false, not an error: the loader treats it as nothing to
// load.
type Store interface {
	Write(ctx context.Context, stage string, v any) error
	Read(ctx context.Context, stage string, out any) (found bool, err error)
	Clear(ctx context.Context, stage string) error
}

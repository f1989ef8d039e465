package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/miprootsaysak/yt-loader/internal/model"
	"github.com/miprootsaysak/yt-loader/internal/staging"
	"github.com/miprootsaysak/yt-loader/internal/youtube"
)

// StatsAPI is the slice of the YouTube client the aggregator consumes.
type StatsAPI interface {
	Search(ctx context.Context, query string) ([]model.RawSearchHit, error)
	VideoStats(ctx context.Context, videoID string) (*model.VideoStat, error)
	ChannelStats(ctx context.Context, channelID string) (*model.ChannelStat, error)
}

// IngestStats summarizes one fetch_and_aggregate stage.
type IngestStats struct {
	Titles           int `json:"titles"`
	Hits             int `json:"hits"`
	Filtered         int `json:"filtered"`
	SkippedNotFound  int `json:"skipped_not_found"`
	SkippedMalformed int `json:"skipped_malformed"`
	StagedChannels   int `json:"staged_channels"`
	StagedDetails    int `json:"staged_details"`
	StagedFacts      int `json:"staged_facts"`
}

// IngestService runs the fetch_and_aggregate stage: for every title
// seed it searches the platform, joins per-video and per-channel
// statistics into draft triples, drops channels below the popularity
// threshold and stages the surviving batches.
//
// Per-item failures (a video deleted between search and stats fetch, an
// unparseable duration) are absorbed here; quota exhaustion cancels all
// in-flight title fetches and fails the stage.
type IngestService struct {
	api       StatsAPI
	store     staging.Store
	threshold int64
	workers   int
}

func NewIngestService(api StatsAPI, store staging.Store, threshold int64, workers int) *IngestService {
	if workers <= 0 {
		workers = 4
	}
	return &IngestService{api: api, store: store, threshold: threshold, workers: workers}
}

type titleResult struct {
	batch model.Batch
	stats IngestStats
	err   error
}

// Run aggregates all titles with a bounded worker pool and stages the
// three draft batches. Title fetches are independent; results are
// reassembled in seed order so staged output is deterministic.
func (s *IngestService) Run(ctx context.Context, titles []model.Title) (*IngestStats, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]titleResult, len(titles))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for range s.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				res := &results[i]
				res.batch, res.stats, res.err = s.aggregateTitle(runCtx, titles[i])
				if res.err != nil {
					// One failed title fails the stage; stop burning
					// quota on the rest.
					cancel()
				}
			}
		}()
	}

feed:
	for i := range titles {
		select {
		case jobs <- i:
		case <-runCtx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	// Report the first real failure in seed order. Titles cancelled
	// because a sibling failed carry context.Canceled; don't let those
	// mask the root cause.
	var firstErr error
	for i := range results {
		err := results[i].err
		if err == nil {
			continue
		}
		if firstErr == nil {
			firstErr = fmt.Errorf("title %q: %w", titles[i].ByTitle, err)
		}
		if !errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("title %q: %w", titles[i].ByTitle, err)
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	total := IngestStats{Titles: len(titles)}
	var batch model.Batch
	for i := range results {
		st := results[i].stats
		total.Hits += st.Hits
		total.Filtered += st.Filtered
		total.SkippedNotFound += st.SkippedNotFound
		total.SkippedMalformed += st.SkippedMalformed

		batch.Channels = append(batch.Channels, results[i].batch.Channels...)
		batch.Details = append(batch.Details, results[i].batch.Details...)
		batch.Facts = append(batch.Facts, results[i].batch.Facts...)
	}

	if err := s.store.Write(ctx, staging.StageChannels, batch.Channels); err != nil {
		return nil, err
	}
	if err := s.store.Write(ctx, staging.StageVideoDetails, batch.Details); err != nil {
		return nil, err
	}
	if err := s.store.Write(ctx, staging.StageVideoFacts, batch.Facts); err != nil {
		return nil, err
	}

	total.StagedChannels = len(batch.Channels)
	total.StagedDetails = len(batch.Details)
	total.StagedFacts = len(batch.Facts)

	log.Printf("ingest: %d titles, %d hits — staged %d channels, %d details, %d facts (%d filtered, %d not found, %d malformed)",
		total.Titles, total.Hits, total.StagedChannels, total.StagedDetails, total.StagedFacts,
		total.Filtered, total.SkippedNotFound, total.SkippedMalformed)

	return &total, nil
}

// aggregateTitle joins one title's search hits with video and channel
// statistics, in the API's relevance order.
func (s *IngestService) aggregateTitle(ctx context.Context, title model.Title) (model.Batch, IngestStats, error) {
	var batch model.Batch
	var stats IngestStats

	hits, err := s.api.Search(ctx, title.ByTitle)
	if err != nil {
		return batch, stats, err
	}
	stats.Hits = len(hits)

	for _, hit := range hits {
		video, err := s.api.VideoStats(ctx, hit.VideoID)
		if skipped := s.absorb(&stats, "video", hit.VideoID, err); skipped {
			continue
		} else if err != nil {
			return batch, stats, err
		}

		channel, err := s.api.ChannelStats(ctx, video.ChannelID)
		if skipped := s.absorb(&stats, "channel", video.ChannelID, err); skipped {
			continue
		} else if err != nil {
			return batch, stats, err
		}

		if channel.SubscriberCount < s.threshold {
			stats.Filtered++
			continue
		}

		description := video.Description
		if len(description) > model.MaxDescriptionLen {
			description = description[:model.MaxDescriptionLen]
		}

		batch.Channels = append(batch.Channels, model.ChannelDraft{
			YTChannelID:      channel.ChannelID,
			ChannelTitle:     channel.ChannelTitle,
			SubscribersCount: channel.SubscriberCount,
			VideosCount:      channel.VideoCount,
		})
		batch.Details = append(batch.Details, model.VideoDetailDraft{
			YTVideoID:   video.VideoID,
			VideoTitle:  video.Title,
			Description: description,
			Duration:    video.DurationSeconds,
			PublishedAt: video.PublishedAt,
		})
		batch.Facts = append(batch.Facts, model.VideoFactDraft{
			ChannelID:    channel.ChannelID,
			VideoID:      video.VideoID,
			ViewCount:    video.ViewCount,
			LikeCount:    video.LikeCount,
			CommentCount: video.CommentCount,
			TitleID:      title.ID,
		})
	}

	return batch, stats, nil
}

// absorb handles per-item errors: not-found and malformed items are
// logged and skipped, everything else propagates to fail the stage.
func (s *IngestService) absorb(stats *IngestStats, kind, id string, err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, youtube.ErrNotFound):
		stats.SkippedNotFound++
		log.Printf("ingest: %s %s disappeared, skipping", kind, id)
		return true
	case youtube.IsMalformed(err):
		stats.SkippedMalformed++
		log.Printf("ingest: skipping %s %s: %v", kind, id, err)
		return true
	default:
		return false
	}
}

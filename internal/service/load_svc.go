package service

import (
	"context"
	"log"

	"github.com/miprootsaysak/yt-loader/internal/model"
	"github.com/miprootsaysak/yt-loader/internal/repository"
	"github.com/miprootsaysak/yt-loader/internal/staging"
)

// Dimension writer seams, satisfied by the repositories.
type ChannelWriter interface {
	UpsertBatch(ctx context.Context, drafts []model.ChannelDraft) (repository.LoadStats, error)
}

type VideoDetailWriter interface {
	UpsertBatch(ctx context.Context, drafts []model.VideoDetailDraft) (repository.LoadStats, error)
}

type VideoFactWriter interface {
	UpsertBatch(ctx context.Context, drafts []model.VideoFactDraft) (repository.LoadStats, error)
}

// LoadService runs the three load stages: staged drafts in, versioned
// warehouse rows out. An empty or never-written stage is nothing to
// load, not a failure — the node succeeds with a warning so a re-run
// after a partial load does not abort.
type LoadService struct {
	store    staging.Store
	channels ChannelWriter
	details  VideoDetailWriter
	facts    VideoFactWriter
}

func NewLoadService(store staging.Store, channels ChannelWriter, details VideoDetailWriter, facts VideoFactWriter) *LoadService {
	return &LoadService{store: store, channels: channels, details: details, facts: facts}
}

func (s *LoadService) LoadChannels(ctx context.Context) (repository.LoadStats, error) {
	var drafts []model.ChannelDraft
	found, err := s.store.Read(ctx, staging.StageChannels, &drafts)
	if err != nil {
		return repository.LoadStats{}, err
	}
	if !found || len(drafts) == 0 {
		log.Printf("load channels: no staged data")
		return repository.LoadStats{}, nil
	}

	stats, err := s.channels.UpsertBatch(ctx, drafts)
	logLoad("channel", stats, err)
	return stats, err
}

func (s *LoadService) LoadVideoDetails(ctx context.Context) (repository.LoadStats, error) {
	var drafts []model.VideoDetailDraft
	found, err := s.store.Read(ctx, staging.StageVideoDetails, &drafts)
	if err != nil {
		return repository.LoadStats{}, err
	}
	if !found || len(drafts) == 0 {
		log.Printf("load video details: no staged data")
		return repository.LoadStats{}, nil
	}

	stats, err := s.details.UpsertBatch(ctx, drafts)
	logLoad("video_details", stats, err)
	return stats, err
}

func (s *LoadService) LoadVideoFacts(ctx context.Context) (repository.LoadStats, error) {
	var drafts []model.VideoFactDraft
	found, err := s.store.Read(ctx, staging.StageVideoFacts, &drafts)
	if err != nil {
		return repository.LoadStats{}, err
	}
	if !found || len(drafts) == 0 {
		log.Printf("load video facts: no staged data")
		return repository.LoadStats{}, nil
	}

	stats, err := s.facts.UpsertBatch(ctx, drafts)
	logLoad("video", stats, err)
	return stats, err
}

func logLoad(table string, stats repository.LoadStats, err error) {
	if err != nil {
		log.Printf("load %s: failed after %d rows: %v", table, stats.Total(), err)
		return
	}
	log.Printf("load %s: %d inserted, %d superseded, %d unchanged, %d skipped",
		table, stats.Inserted, stats.Superseded, stats.Unchanged, stats.Skipped)
}

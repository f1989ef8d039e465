package service

import (
	"context"
	"testing"

	"github.com/miprootsaysak/yt-loader/internal/model"
	"github.com/miprootsaysak/yt-loader/internal/staging"
)

func TestLoad_EmptyStageIsSuccess(t *testing.T) {
	store, err := staging.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	mem := &memChannelRepo{}
	svc := NewLoadService(store, mem, &memDetailRepo{}, &memFactRepo{})

	stats, err := svc.LoadChannels(context.Background())
	if err != nil {
		t.Fatalf("LoadChannels on empty stage: %v", err)
	}
	if stats.Total() != 0 {
		t.Errorf("stats.Total() = %d, want 0", stats.Total())
	}
	if len(mem.rows) != 0 {
		t.Errorf("rows written = %d, want 0", len(mem.rows))
	}
}

func TestLoad_StagedChannelsLoaded(t *testing.T) {
	store, err := staging.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	drafts := []model.ChannelDraft{
		{YTChannelID: chanA, ChannelTitle: "a channel", SubscribersCount: 5000, VideosCount: 12},
		{YTChannelID: chanA, ChannelTitle: "a channel", SubscribersCount: 5000, VideosCount: 12},
	}
	if err := store.Write(context.Background(), staging.StageChannels, drafts); err != nil {
		t.Fatalf("Write: %v", err)
	}

	mem := &memChannelRepo{}
	svc := NewLoadService(store, mem, &memDetailRepo{}, &memFactRepo{})

	stats, err := svc.LoadChannels(context.Background())
	if err != nil {
		t.Fatalf("LoadChannels: %v", err)
	}
	// The duplicate draft within the batch collapses to a no-op.
	if stats.Inserted != 1 || stats.Unchanged != 1 {
		t.Errorf("stats = %+v, want Inserted=1 Unchanged=1", stats)
	}
	if len(mem.rows) != 1 {
		t.Errorf("rows = %d, want 1", len(mem.rows))
	}
}

package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/miprootsaysak/yt-loader/internal/model"
	"github.com/miprootsaysak/yt-loader/internal/staging"
	"github.com/miprootsaysak/yt-loader/internal/youtube"
)

const (
	vidA  = "dQw4w9WgXcQ"
	vidB  = "9bZkp7q19f0"
	chanA = "UCuAXFkgsw1L7xaCfnd5JJOw"
	chanB = "UCBR8-60-B28hp2BmDPdntcQ"
)

var publishedAt = time.Date(2024, 2, 1, 10, 30, 0, 0, time.UTC)

// fakeAPI serves canned search/videos/channels responses.
type fakeAPI struct {
	searches  map[string][]model.RawSearchHit
	videos    map[string]*model.VideoStat
	channels  map[string]*model.ChannelStat
	searchErr error
	videoErrs map[string]error
	chanErrs  map[string]error
}

func (f *fakeAPI) Search(ctx context.Context, query string) ([]model.RawSearchHit, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.searches[query], nil
}

func (f *fakeAPI) VideoStats(ctx context.Context, videoID string) (*model.VideoStat, error) {
	if err := f.videoErrs[videoID]; err != nil {
		return nil, err
	}
	v, ok := f.videos[videoID]
	if !ok {
		return nil, youtube.ErrNotFound
	}
	return v, nil
}

func (f *fakeAPI) ChannelStats(ctx context.Context, channelID string) (*model.ChannelStat, error) {
	if err := f.chanErrs[channelID]; err != nil {
		return nil, err
	}
	c, ok := f.channels[channelID]
	if !ok {
		return nil, youtube.ErrNotFound
	}
	return c, nil
}

func videoStat(videoID, channelID string, views int64) *model.VideoStat {
	return &model.VideoStat{
		VideoID:         videoID,
		ChannelID:       channelID,
		ViewCount:       views,
		LikeCount:       10,
		CommentCount:    5,
		DurationSeconds: 253,
		Description:     "about things",
		PublishedAt:     publishedAt,
		Title:           "a video",
	}
}

func oneVideoAPI(subscribers int64) *fakeAPI {
	return &fakeAPI{
		searches: map[string][]model.RawSearchHit{
			"test channel": {{VideoID: vidA, Title: "a video"}},
		},
		videos: map[string]*model.VideoStat{
			vidA: videoStat(vidA, chanA, 100),
		},
		channels: map[string]*model.ChannelStat{
			chanA: {ChannelID: chanA, ChannelTitle: "a channel", SubscriberCount: subscribers, VideoCount: 12},
		},
	}
}

func newIngest(t *testing.T, api StatsAPI) (*IngestService, staging.Store) {
	t.Helper()
	store, err := staging.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return NewIngestService(api, store, 1000, 2), store
}

func readFacts(t *testing.T, store staging.Store) []model.VideoFactDraft {
	t.Helper()
	var facts []model.VideoFactDraft
	if _, err := store.Read(context.Background(), staging.StageVideoFacts, &facts); err != nil {
		t.Fatalf("read staged facts: %v", err)
	}
	return facts
}

func TestIngest_QualifyingVideoIsStaged(t *testing.T) {
	svc, store := newIngest(t, oneVideoAPI(5000))

	stats, err := svc.Run(context.Background(), []model.Title{{ID: 1, ByTitle: "test channel"}})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if stats.StagedChannels != 1 || stats.StagedDetails != 1 || stats.StagedFacts != 1 {
		t.Errorf("staged %d/%d/%d, want 1/1/1", stats.StagedChannels, stats.StagedDetails, stats.StagedFacts)
	}

	facts := readFacts(t, store)
	if len(facts) != 1 {
		t.Fatalf("staged %d facts, want 1", len(facts))
	}
	f := facts[0]
	if f.ChannelID == "" || f.VideoID == "" {
		t.Error("fact draft has empty natural key fields")
	}
	if f.TitleID != 1 {
		t.Errorf("TitleID = %d, want the seeding title id 1", f.TitleID)
	}
	if f.ViewCount != 100 {
		t.Errorf("ViewCount = %d, want 100", f.ViewCount)
	}
}

func TestIngest_BelowThresholdNeverStaged(t *testing.T) {
	svc, store := newIngest(t, oneVideoAPI(500))

	stats, err := svc.Run(context.Background(), []model.Title{{ID: 1, ByTitle: "test channel"}})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if stats.Filtered != 1 {
		t.Errorf("Filtered = %d, want 1", stats.Filtered)
	}
	if got := readFacts(t, store); len(got) != 0 {
		t.Errorf("staged %d facts, want 0 (subscriber count below threshold)", len(got))
	}

	var channels []model.ChannelDraft
	store.Read(context.Background(), staging.StageChannels, &channels)
	if len(channels) != 0 {
		t.Errorf("staged %d channels, want 0", len(channels))
	}
}

func TestIngest_ThresholdBoundaryIsInclusive(t *testing.T) {
	svc, store := newIngest(t, oneVideoAPI(1000))

	if _, err := svc.Run(context.Background(), []model.Title{{ID: 1, ByTitle: "test channel"}}); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if got := readFacts(t, store); len(got) != 1 {
		t.Errorf("staged %d facts, want 1 (threshold is >=)", len(got))
	}
}

func TestIngest_DescriptionTruncated(t *testing.T) {
	api := oneVideoAPI(5000)
	api.videos[vidA].Description = strings.Repeat("x", model.MaxDescriptionLen+100)
	svc, store := newIngest(t, api)

	if _, err := svc.Run(context.Background(), []model.Title{{ID: 1, ByTitle: "test channel"}}); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	var details []model.VideoDetailDraft
	store.Read(context.Background(), staging.StageVideoDetails, &details)
	if len(details) != 1 {
		t.Fatalf("staged %d details, want 1", len(details))
	}
	if len(details[0].Description) != model.MaxDescriptionLen {
		t.Errorf("description length = %d, want %d", len(details[0].Description), model.MaxDescriptionLen)
	}
}

func TestIngest_NotFoundItemSkipped(t *testing.T) {
	api := oneVideoAPI(5000)
	api.searches["test channel"] = append(api.searches["test channel"],
		model.RawSearchHit{VideoID: vidB, Title: "deleted video"})
	// vidB has no stats entry: it vanished between search and fetch.
	svc, store := newIngest(t, api)

	stats, err := svc.Run(context.Background(), []model.Title{{ID: 1, ByTitle: "test channel"}})
	if err != nil {
		t.Fatalf("Run error: %v (missing item must not fail the batch)", err)
	}
	if stats.SkippedNotFound != 1 {
		t.Errorf("SkippedNotFound = %d, want 1", stats.SkippedNotFound)
	}
	if got := readFacts(t, store); len(got) != 1 {
		t.Errorf("staged %d facts, want 1 (the surviving video)", len(got))
	}
}

func TestIngest_MalformedItemSkipped(t *testing.T) {
	api := oneVideoAPI(5000)
	api.searches["test channel"] = append(api.searches["test channel"],
		model.RawSearchHit{VideoID: vidB, Title: "broken video"})
	api.videoErrs = map[string]error{
		vidB: &youtube.MalformedError{ID: vidB, Field: "duration", Err: errors.New("bad format")},
	}
	svc, store := newIngest(t, api)

	stats, err := svc.Run(context.Background(), []model.Title{{ID: 1, ByTitle: "test channel"}})
	if err != nil {
		t.Fatalf("Run error: %v (malformed item must not fail the batch)", err)
	}
	if stats.SkippedMalformed != 1 {
		t.Errorf("SkippedMalformed = %d, want 1", stats.SkippedMalformed)
	}
	if got := readFacts(t, store); len(got) != 1 {
		t.Errorf("staged %d facts, want 1", len(got))
	}
}

func TestIngest_QuotaFailsStageAndStagesNothing(t *testing.T) {
	api := oneVideoAPI(5000)
	api.searchErr = youtube.ErrQuotaExceeded
	svc, store := newIngest(t, api)

	_, err := svc.Run(context.Background(), []model.Title{{ID: 1, ByTitle: "test channel"}})
	if !errors.Is(err, youtube.ErrQuotaExceeded) {
		t.Fatalf("err = %v, want ErrQuotaExceeded", err)
	}

	found, err := store.Read(context.Background(), staging.StageVideoFacts, &[]model.VideoFactDraft{})
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}
	if found {
		t.Error("facts were staged despite quota failure")
	}
}

func TestIngest_CrossTitleDuplicatesKept(t *testing.T) {
	// The same video surfaced by two title queries yields two facts with
	// different title ids. That is multi-attribution, not a bug.
	api := oneVideoAPI(5000)
	api.searches["other title"] = api.searches["test channel"]
	svc, store := newIngest(t, api)

	titles := []model.Title{
		{ID: 1, ByTitle: "test channel"},
		{ID: 2, ByTitle: "other title"},
	}
	if _, err := svc.Run(context.Background(), titles); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	facts := readFacts(t, store)
	if len(facts) != 2 {
		t.Fatalf("staged %d facts, want 2", len(facts))
	}
	// Seed order is preserved regardless of worker scheduling.
	if facts[0].TitleID != 1 || facts[1].TitleID != 2 {
		t.Errorf("title ids = %d,%d, want 1,2", facts[0].TitleID, facts[1].TitleID)
	}
}

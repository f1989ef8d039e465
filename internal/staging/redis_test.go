package staging

import (
	"strings"
	"testing"

	"github.com/miprootsaysak/yt-loader/internal/model"
)

var _ Store = (*RedisStore)(nil)

func TestStageKey_Namespaced(t *testing.T) {
	cases := map[string]string{
		StageChannels:     "staging:channel_drafts",
		StageVideoDetails: "staging:video_detail_drafts",
		StageVideoFacts:   "staging:video_fact_drafts",
	}
	for stage, want := range cases {
		if got := stageKey(stage); got != want {
			t.Errorf("stageKey(%s) = %s, want %s", stage, got, want)
		}
	}
}

func TestStageEnvelope_RoundTrip(t *testing.T) {
	in := []model.VideoFactDraft{
		{ChannelID: "UCuAXFkgsw1L7xaCfnd5JJOw", VideoID: "dQw4w9WgXcQ", ViewCount: 100, LikeCount: 10, CommentCount: 5, TitleID: 1},
	}
	data, err := marshalStage(StageVideoFacts, in)
	if err != nil {
		t.Fatalf("marshalStage error: %v", err)
	}

	var out []model.VideoFactDraft
	if err := unmarshalStage(StageVideoFacts, data, &out); err != nil {
		t.Fatalf("unmarshalStage error: %v", err)
	}
	if len(out) != 1 || out[0] != in[0] {
		t.Errorf("round trip mismatch: got %+v, want %+v", out, in)
	}
}

func TestStageEnvelope_CorruptPayload(t *testing.T) {
	var out []model.ChannelDraft
	err := unmarshalStage(StageChannels, []byte("{not json"), &out)
	if err == nil {
		t.Fatal("expected error for corrupt payload")
	}
	if !strings.Contains(err.Error(), StageChannels) {
		t.Errorf("error %q does not name the stage", err)
	}
}

func TestNewRedisStore_InvalidURL(t *testing.T) {
	if _, err := NewRedisStore("not-a-redis-url"); err == nil {
		t.Error("expected error for invalid redis url")
	}
}

package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sosodev/duration"

	"github.com/miprootsaysak/yt-loader/internal/model"
	"github.com/miprootsaysak/yt-loader/pkg/ytid"
)

const (
	defaultBaseURL = "https://www.googleapis.com/youtube/v3"

	endpointSearch   = "search"
	endpointVideos   = "videos"
	endpointChannels = "channels"
)

// Config controls a Client. Zero values fall back to production defaults.
type Config struct {
	APIKey         string
	BaseURL        string
	PageSize       int
	Timeout        time.Duration // per-call; a timeout is a transient failure
	CallsPerMinute int
	MaxRetries     int

	// OnCall, when set, observes every attempted API call with an
	// outcome of "ok", "transient", "quota", "not_found" or "error".
	OnCall func(endpoint, outcome string)
}

// Client wraps the three Data API v3 endpoints the pipeline consumes:
// search.list, videos.list and channels.list. Transient failures are
// retried internally with exponential backoff; quota exhaustion is
// surfaced immediately as ErrQuotaExceeded.
type Client struct {
	http       *http.Client
	apiKey     string
	baseURL    string
	pageSize   int
	timeout    time.Duration
	maxRetries uint64
	retryWait  time.Duration
	limiter    *Limiter
	onCall     func(endpoint, outcome string)
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 50
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.CallsPerMinute <= 0 {
		cfg.CallsPerMinute = 300
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}

	return &Client{
		http:       &http.Client{},
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		pageSize:   cfg.PageSize,
		timeout:    cfg.Timeout,
		maxRetries: uint64(cfg.MaxRetries),
		retryWait:  500 * time.Millisecond,
		limiter:    NewLimiter(cfg.CallsPerMinute, time.Minute),
		onCall:     cfg.OnCall,
	}
}

// --- Data API v3 response shapes (counts arrive as strings) ---

type apiErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Errors  []struct {
			Reason string `json:"reason"`
		} `json:"errors"`
	} `json:"error"`
}

type searchResponse struct {
	Items []struct {
		ID struct {
			Kind    string `json:"kind"`
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			Title string `json:"title"`
		} `json:"snippet"`
	} `json:"items"`
}

type videosResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title        string `json:"title"`
			Description  string `json:"description"`
			ChannelID    string `json:"channelId"`
			ChannelTitle string `json:"channelTitle"`
			PublishedAt  string `json:"publishedAt"`
		} `json:"snippet"`
		Statistics struct {
			ViewCount    string `json:"viewCount"`
			LikeCount    string `json:"likeCount"`
			CommentCount string `json:"commentCount"`
		} `json:"statistics"`
		ContentDetails struct {
			Duration string `json:"duration"`
		} `json:"contentDetails"`
	} `json:"items"`
}

type channelsResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title string `json:"title"`
		} `json:"snippet"`
		Statistics struct {
			SubscriberCount string `json:"subscriberCount"`
			VideoCount      string `json:"videoCount"`
		} `json:"statistics"`
	} `json:"items"`
}

// Search runs one search.list page for query, relevance-ordered and
// capped at the configured page size. Non-video results are dropped.
func (c *Client) Search(ctx context.Context, query string) ([]model.RawSearchHit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("youtube: empty search query")
	}

	params := url.Values{}
	params.Set("part", "id,snippet")
	params.Set("type", "video")
	params.Set("order", "relevance")
	params.Set("maxResults", strconv.Itoa(c.pageSize))
	params.Set("q", query)

	var resp searchResponse
	if err := c.getJSON(ctx, endpointSearch, params, &resp); err != nil {
		return nil, err
	}

	hits := make([]model.RawSearchHit, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.ID.Kind != "youtube#video" || !ytid.ValidVideoID(item.ID.VideoID) {
			continue
		}
		hits = append(hits, model.RawSearchHit{
			VideoID: item.ID.VideoID,
			Title:   item.Snippet.Title,
		})
	}
	return hits, nil
}

// VideoStats fetches statistics, snippet and contentDetails for one
// video. A video with no likeCount or commentCount yields zero for that
// field; an unparseable duration or publish time fails only this item.
func (c *Client) VideoStats(ctx context.Context, videoID string) (*model.VideoStat, error) {
	if !ytid.ValidVideoID(videoID) {
		return nil, fmt.Errorf("youtube: invalid video id %q", videoID)
	}

	params := url.Values{}
	params.Set("part", "statistics,snippet,contentDetails")
	params.Set("id", videoID)

	var resp videosResponse
	if err := c.getJSON(ctx, endpointVideos, params, &resp); err != nil {
		return nil, err
	}
	if len(resp.Items) == 0 {
		return nil, fmt.Errorf("video %s: %w", videoID, ErrNotFound)
	}
	item := resp.Items[0]

	viewCount, err := parseCount(videoID, "viewCount", item.Statistics.ViewCount)
	if err != nil {
		return nil, err
	}
	// Missing likeCount means likes are hidden; missing commentCount
	// means comments are disabled. Neither is an error.
	likeCount, err := parseCount(videoID, "likeCount", item.Statistics.LikeCount)
	if err != nil {
		return nil, err
	}
	commentCount, err := parseCount(videoID, "commentCount", item.Statistics.CommentCount)
	if err != nil {
		return nil, err
	}

	seconds, err := parseISODuration(videoID, item.ContentDetails.Duration)
	if err != nil {
		return nil, err
	}

	publishedAt, err := time.Parse(time.RFC3339, item.Snippet.PublishedAt)
	if err != nil {
		return nil, &MalformedError{ID: videoID, Field: "publishedAt", Err: err}
	}

	return &model.VideoStat{
		VideoID:         videoID,
		ChannelID:       item.Snippet.ChannelID,
		ChannelTitle:    item.Snippet.ChannelTitle,
		ViewCount:       viewCount,
		LikeCount:       likeCount,
		CommentCount:    commentCount,
		DurationSeconds: seconds,
		Description:     item.Snippet.Description,
		PublishedAt:     publishedAt,
		Title:           item.Snippet.Title,
	}, nil
}

// ChannelStats fetches subscriber and video counts for one channel.
func (c *Client) ChannelStats(ctx context.Context, channelID string) (*model.ChannelStat, error) {
	if !ytid.ValidChannelID(channelID) {
		return nil, fmt.Errorf("youtube: invalid channel id %q", channelID)
	}

	params := url.Values{}
	params.Set("part", "statistics,snippet")
	params.Set("id", channelID)

	var resp channelsResponse
	if err := c.getJSON(ctx, endpointChannels, params, &resp); err != nil {
		return nil, err
	}
	if len(resp.Items) == 0 {
		return nil, fmt.Errorf("channel %s: %w", channelID, ErrNotFound)
	}
	item := resp.Items[0]

	subscribers, err := parseCount(channelID, "subscriberCount", item.Statistics.SubscriberCount)
	if err != nil {
		return nil, err
	}
	videos, err := parseCount(channelID, "videoCount", item.Statistics.VideoCount)
	if err != nil {
		return nil, err
	}

	return &model.ChannelStat{
		ChannelID:       channelID,
		ChannelTitle:    item.Snippet.Title,
		SubscriberCount: subscribers,
		VideoCount:      videos,
	}, nil
}

// getJSON performs one rate-limited GET with retry on transient
// failures. Quota exhaustion and not-found are never retried.
func (c *Client) getJSON(ctx context.Context, endpoint string, params url.Values, out any) error {
	params.Set("key", c.apiKey)
	reqURL := c.baseURL + "/" + endpoint + "?" + params.Encode()

	op := func() error {
		// Every attempt reserves call budget; retries must not slip
		// past the per-endpoint limit.
		if err := c.limiter.Wait(ctx, endpoint); err != nil {
			return backoff.Permanent(err)
		}
		err := c.doGet(ctx, endpoint, reqURL, out)
		c.observe(endpoint, err)
		if err == nil {
			return nil
		}
		var te *TransientError
		if errors.As(err, &te) {
			return err
		}
		return backoff.Permanent(err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.retryWait
	bo.MaxElapsedTime = 0

	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, c.maxRetries), ctx))
}

func (c *Client) observe(endpoint string, err error) {
	if c.onCall == nil {
		return
	}
	var te *TransientError
	switch {
	case err == nil:
		c.onCall(endpoint, "ok")
	case errors.Is(err, ErrQuotaExceeded):
		c.onCall(endpoint, "quota")
	case errors.Is(err, ErrNotFound):
		c.onCall(endpoint, "not_found")
	case errors.As(err, &te):
		c.onCall(endpoint, "transient")
	default:
		c.onCall(endpoint, "error")
	}
}

func (c *Client) doGet(ctx context.Context, endpoint, reqURL string, out any) error {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// Timeouts and connection failures are transient.
		return &TransientError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return json.NewDecoder(resp.Body).Decode(out)
	case resp.StatusCode == http.StatusForbidden:
		return classifyForbidden(endpoint, resp.Body)
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		io.Copy(io.Discard, resp.Body)
		return &TransientError{Endpoint: endpoint, Status: resp.StatusCode}
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("youtube: %s returned status %d: %s", endpoint, resp.StatusCode, body)
	}
}

// classifyForbidden splits 403 responses into fatal quota exhaustion
// versus retryable per-minute rate limiting, by API error reason.
func classifyForbidden(endpoint string, body io.Reader) error {
	var apiErr apiErrorResponse
	if err := json.NewDecoder(body).Decode(&apiErr); err != nil {
		return fmt.Errorf("youtube: %s returned status 403", endpoint)
	}

	for _, e := range apiErr.Error.Errors {
		switch e.Reason {
		case "quotaExceeded", "dailyLimitExceeded":
			return ErrQuotaExceeded
		case "rateLimitExceeded", "userRateLimitExceeded":
			return &TransientError{Endpoint: endpoint, Status: http.StatusForbidden}
		}
	}
	return fmt.Errorf("youtube: %s forbidden: %s", endpoint, apiErr.Error.Message)
}

// parseCount parses a string-encoded count. Absent fields parse to zero.
func parseCount(id, field, raw string) (int64, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, &MalformedError{ID: id, Field: field, Err: err}
	}
	return n, nil
}

// parseISODuration converts an ISO-8601 duration (e.g. "PT4M13S") to
// whole seconds.
func parseISODuration(id, raw string) (int64, error) {
	d, err := duration.Parse(raw)
	if err != nil {
		return 0, &MalformedError{ID: id, Field: "duration", Err: err}
	}
	return int64(d.ToTimeDuration() / time.Second), nil
}

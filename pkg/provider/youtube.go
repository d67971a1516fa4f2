package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

const (
	ytAPIBase     = "https://www.googleapis.com/youtube/v3"
	ytUploadsFeed = "https://www.youtube.com/feeds/videos.xml?channel_id=%s"
)

// YouTube fetches channel metadata via the YouTube Data API v3 and the
// public channel uploads feed.
type YouTube struct {
	client     *http.Client
	parser     *gofeed.Parser
	apiKey     string
	maxResults int
}

// NewYouTube creates a new YouTube metadata provider.
func NewYouTube(apiKey string, maxResults int) *YouTube {
	if maxResults <= 0 || maxResults > 50 {
		maxResults = 25
	}
	return &YouTube{
		client:     &http.Client{Timeout: 30 * time.Second},
		parser:     gofeed.NewParser(),
		apiKey:     apiKey,
		maxResults: maxResults,
	}
}

func (y *YouTube) Name() string { return "youtube" }

// Search expands a keyword into candidate channel refs and reports the
// total result density for the keyword.
func (y *YouTube) Search(ctx context.Context, keyword string, limit int) (*SearchResult, error) {
	if limit <= 0 || limit > y.maxResults {
		limit = y.maxResults
	}

	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("q", keyword)
	params.Set("type", "channel")
	params.Set("maxResults", fmt.Sprintf("%d", limit))
	params.Set("key", y.apiKey)

	var result ytSearchResponse
	if err := y.getJSON(ctx, "/search", params, &result); err != nil {
		return nil, err
	}

	res := &SearchResult{
		Keyword:      keyword,
		TotalResults: result.PageInfo.TotalResults,
	}
	for _, item := range result.Items {
		if item.Snippet.ChannelID == "" {
			continue
		}
		res.Refs = append(res.Refs, CandidateRef{
			Raw:  item.Snippet.ChannelID,
			Kind: RefChannelID,
		})
	}
	return res, nil
}

// Fetch retrieves channel statistics and recent-upload activity for a
// single resolved candidate ref.
func (y *YouTube) Fetch(ctx context.Context, ref CandidateRef) (*ChannelMetadata, error) {
	params := url.Values{}
	params.Set("part", "snippet,statistics")
	params.Set("key", y.apiKey)

	switch ref.Kind {
	case RefChannelID:
		params.Set("id", ref.Raw)
	default:
		// The API accepts handles with or without the @ prefix, so a
		// bare name passes through as a literal handle.
		params.Set("forHandle", ref.Raw)
	}

	var result ytChannelResponse
	if err := y.getJSON(ctx, "/channels", params, &result); err != nil {
		return nil, err
	}
	if len(result.Items) == 0 {
		return nil, ErrNotFound
	}

	ch := result.Items[0]
	meta := &ChannelMetadata{
		ChannelID:   ch.ID,
		Handle:      strings.TrimPrefix(ch.Snippet.CustomURL, "@"),
		Title:       ch.Snippet.Title,
		Description: truncate(ch.Snippet.Description, 500),
		Subscribers: ch.Statistics.SubscriberCount,
		TotalViews:  ch.Statistics.ViewCount,
		VideoCount:  ch.Statistics.VideoCount,
		FetchedAt:   time.Now().UTC(),
	}

	// Recent uploads come from the public feed; losing them degrades
	// confidence but is not a fetch failure.
	if uploads, err := y.recentUploads(ctx, ch.ID); err == nil {
		meta.RecentUploads = uploads
	}

	if len(meta.RecentUploads) > 0 {
		y.enrichWithVideoStats(ctx, meta)
	}

	return meta, nil
}

// recentUploads parses the channel's uploads feed (newest first, up to
// 15 entries).
func (y *YouTube) recentUploads(ctx context.Context, channelID string) ([]Upload, error) {
	feedURL := fmt.Sprintf(ytUploadsFeed, channelID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create uploads request: %w", err)
	}
	req.Header.Set("User-Agent", "nicheradar/1.0")

	resp, err := y.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch uploads feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("uploads feed status %d", resp.StatusCode)
	}

	parsed, err := y.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse uploads feed: %w", ErrParse)
	}

	var uploads []Upload
	for _, entry := range parsed.Items {
		published := time.Now().UTC()
		if entry.PublishedParsed != nil {
			published = entry.PublishedParsed.UTC()
		}
		videoID := strings.TrimPrefix(entry.GUID, "yt:video:")
		uploads = append(uploads, Upload{
			VideoID:     videoID,
			Title:       entry.Title,
			PublishedAt: published,
		})
	}
	return uploads, nil
}

// enrichWithVideoStats fills average recent views and engagement rate
// from the statistics of the channel's recent uploads.
func (y *YouTube) enrichWithVideoStats(ctx context.Context, meta *ChannelMetadata) {
	var ids []string
	for _, u := range meta.RecentUploads {
		if u.VideoID != "" {
			ids = append(ids, u.VideoID)
		}
	}
	if len(ids) == 0 {
		return
	}
	if len(ids) > 50 {
		ids = ids[:50]
	}

	params := url.Values{}
	params.Set("part", "statistics")
	params.Set("id", strings.Join(ids, ","))
	params.Set("key", y.apiKey)

	var result ytVideoResponse
	if err := y.getJSON(ctx, "/videos", params, &result); err != nil {
		return
	}

	var views, likes, comments int64
	for _, v := range result.Items {
		views += v.Statistics.ViewCount
		likes += v.Statistics.LikeCount
		comments += v.Statistics.CommentCount
	}
	if len(result.Items) > 0 {
		meta.AvgRecentViews = float64(views) / float64(len(result.Items))
	}
	if views > 0 {
		meta.EngagementRate = float64(likes+comments) / float64(views)
	}
}

// getJSON performs an API GET and maps transport and status failures
// onto the provider error taxonomy.
func (y *YouTube) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	reqURL := ytAPIBase + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("create youtube request: %w", err)
	}

	resp, err := y.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrTimeout
		}
		return fmt.Errorf("fetch youtube %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests:
		// Quota exhaustion surfaces as 403 on this API.
		return ErrRateLimited
	default:
		return fmt.Errorf("youtube %s status %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode youtube %s: %w", path, ErrParse)
	}
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

type ytSearchResponse struct {
	PageInfo struct {
		TotalResults int64 `json:"totalResults"`
	} `json:"pageInfo"`
	Items []struct {
		Snippet struct {
			ChannelID    string `json:"channelId"`
			ChannelTitle string `json:"channelTitle"`
		} `json:"snippet"`
	} `json:"items"`
}

type ytChannelResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			CustomURL   string `json:"customUrl"`
		} `json:"snippet"`
		Statistics struct {
			SubscriberCount int64 `json:"subscriberCount,string"`
			ViewCount       int64 `json:"viewCount,string"`
			VideoCount      int64 `json:"videoCount,string"`
		} `json:"statistics"`
	} `json:"items"`
}

type ytVideoResponse struct {
	Items []struct {
		ID         string `json:"id"`
		Statistics struct {
			ViewCount    int64 `json:"viewCount,string"`
			LikeCount    int64 `json:"likeCount,string"`
			CommentCount int64 `json:"commentCount,string"`
		} `json:"statistics"`
	} `json:"items"`
}

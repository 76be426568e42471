package service

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/timmy/sportsclips/internal/config"
	"github.com/timmy/sportsclips/internal/domain"
)

const (
	defaultYouTubeBaseURL = "https://www.googleapis.com/youtube/v3"
	maxSearchPageSize     = 50
)

// SearchRequest describes one video search.
type SearchRequest struct {
	Query          string
	PublishedAfter time.Time
	ChannelID      string
	MaxResults     int
}

// VideoSearcher finds videos and returns their full metadata.
type VideoSearcher interface {
	Search(ctx context.Context, req SearchRequest) ([]domain.Video, error)
}

// YouTubeClient implements VideoSearcher with the YouTube Data API v3.
type YouTubeClient struct {
	client  *resty.Client
	baseURL string
	apiKey  string
}

// NewYouTubeClient creates a YouTubeClient.
func NewYouTubeClient(cfg *config.YouTubeConfig) *YouTubeClient {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultYouTubeBaseURL
	}
	client := resty.New()
	client.SetTimeout(externalCallTimeout)
	return &YouTubeClient{client: client, baseURL: baseURL, apiKey: cfg.APIKey}
}

type youtubeError struct {
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type youtubeSearchResponse struct {
	youtubeError
	NextPageToken string `json:"nextPageToken"`
	Items         []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
	} `json:"items"`
}

type youtubeVideosResponse struct {
	youtubeError
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title        string    `json:"title"`
			Description  string    `json:"description"`
			ChannelID    string    `json:"channelId"`
			ChannelTitle string    `json:"channelTitle"`
			PublishedAt  time.Time `json:"publishedAt"`
			Thumbnails   map[string]struct {
				URL string `json:"url"`
			} `json:"thumbnails"`
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

// Search runs search.list, paging until MaxResults ids are collected, then loads
// snippet, statistics and duration with videos.list.
func (c *YouTubeClient) Search(ctx context.Context, req SearchRequest) ([]domain.Video, error) {
	limit := req.MaxResults
	if limit <= 0 {
		limit = maxSearchPageSize
	}

	var ids []string
	pageToken := ""
	for len(ids) < limit {
		pageSize := limit - len(ids)
		if pageSize > maxSearchPageSize {
			pageSize = maxSearchPageSize
		}
		params := map[string]string{
			"part":       "id",
			"type":       "video",
			"order":      "relevance",
			"q":          req.Query,
			"maxResults": strconv.Itoa(pageSize),
			"key":        c.apiKey,
		}
		if !req.PublishedAfter.IsZero() {
			params["publishedAfter"] = req.PublishedAfter.UTC().Format(time.RFC3339)
		}
		if req.ChannelID != "" {
			params["channelId"] = req.ChannelID
		}
		if pageToken != "" {
			params["pageToken"] = pageToken
		}

		var resp youtubeSearchResponse
		if err := c.get(ctx, "/search", params, &resp); err != nil {
			return nil, fmt.Errorf("youtube search failed: %w", err)
		}
		for _, item := range resp.Items {
			if item.ID.VideoID != "" {
				ids = append(ids, item.ID.VideoID)
			}
		}
		if resp.NextPageToken == "" || len(resp.Items) == 0 {
			break
		}
		pageToken = resp.NextPageToken
	}
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return c.videos(ctx, ids)
}

func (c *YouTubeClient) videos(ctx context.Context, ids []string) ([]domain.Video, error) {
	var out []domain.Video
	for start := 0; start < len(ids); start += maxSearchPageSize {
		end := start + maxSearchPageSize
		if end > len(ids) {
			end = len(ids)
		}
		var resp youtubeVideosResponse
		err := c.get(ctx, "/videos", map[string]string{
			"part": "snippet,statistics,contentDetails",
			"id":   strings.Join(ids[start:end], ","),
			"key":  c.apiKey,
		}, &resp)
		if err != nil {
			return nil, fmt.Errorf("youtube videos lookup failed: %w", err)
		}
		for _, item := range resp.Items {
			v := domain.Video{
				YouTubeID:       item.ID,
				Title:           item.Snippet.Title,
				Description:     item.Snippet.Description,
				ChannelID:       item.Snippet.ChannelID,
				ChannelTitle:    item.Snippet.ChannelTitle,
				PublishedAt:     item.Snippet.PublishedAt.UTC(),
				DurationSeconds: ParseISODuration(item.ContentDetails.Duration),
				ViewCount:       parseCount(item.Statistics.ViewCount),
				LikeCount:       parseCount(item.Statistics.LikeCount),
				CommentCount:    parseCount(item.Statistics.CommentCount),
			}
			for _, size := range []string{"high", "medium", "default"} {
				if t, ok := item.Snippet.Thumbnails[size]; ok && t.URL != "" {
					v.ThumbnailURL = t.URL
					break
				}
			}
			out = append(out, v)
		}
	}
	return out, nil
}

func (c *YouTubeClient) get(ctx context.Context, path string, params map[string]string, result interface{}) error {
	var apiErr youtubeError
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(result).
		SetError(&apiErr).
		Get(c.baseURL + path)
	if err != nil {
		return err
	}
	if resp.IsError() {
		if apiErr.Error != nil {
			return fmt.Errorf("HTTP %d: %s", resp.StatusCode(), apiErr.Error.Message)
		}
		return fmt.Errorf("HTTP %d", resp.StatusCode())
	}
	return nil
}

func parseCount(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

var isoDuration = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// ParseISODuration converts an ISO-8601 duration such as PT1H2M3S to seconds.
// Unparseable input yields 0.
func ParseISODuration(s string) int {
	m := isoDuration.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	multipliers := []int{86400, 3600, 60, 1}
	total := 0
	for i, mult := range multipliers {
		if m[i+1] == "" {
			continue
		}
		n, _ := strconv.Atoi(m[i+1])
		total += n * mult
	}
	return total
}

// BuildSearchQuery joins the sport and keywords, quoting multi-word keywords.
func BuildSearchQuery(sport string, keywords []string) string {
	parts := make([]string, 0, len(keywords)+1)
	if s := strings.TrimSpace(sport); s != "" {
		parts = append(parts, s)
	}
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		if strings.Contains(kw, " ") {
			kw = `"` + strings.Trim(kw, `"`) + `"`
		}
		parts = append(parts, kw)
	}
	return strings.Join(parts, " ")
}

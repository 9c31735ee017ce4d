package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"kplays-api/internal/cache"
	"kplays-api/internal/model"

	"github.com/mmcdole/gofeed"
	"github.com/tidwall/gjson"
)

// ShortMaxDuration is the length below which an upload counts as a short.
const ShortMaxDuration = 60

// YouTubeConfig configures the gallery source.
type YouTubeConfig struct {
	APIKey       string
	ChannelQuery string
	ChannelID    string
	BaseURL      string
	FeedURL      string
	CacheTTL     time.Duration
}

// YouTubeService builds the video gallery of the channel. With an API key
// it walks the Data API; otherwise it reads the channel's public feed.
type YouTubeService struct {
	cfg    YouTubeConfig
	cache  cache.Cache
	client *http.Client
	parser *gofeed.Parser
	now    func() time.Time
}

// NewYouTubeService creates the gallery service. client may be nil.
func NewYouTubeService(cfg YouTubeConfig, c cache.Cache, client *http.Client) *YouTubeService {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://www.googleapis.com/youtube/v3"
	}
	if cfg.FeedURL == "" {
		cfg.FeedURL = "https://www.youtube.com/feeds/videos.xml"
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 30 * time.Minute
	}
	parser := gofeed.NewParser()
	parser.Client = client
	return &YouTubeService{cfg: cfg, cache: c, client: client, parser: parser, now: time.Now}
}

// Gallery returns the cached gallery, fetching it on a miss.
func (s *YouTubeService) Gallery(ctx context.Context) (*model.Gallery, error) {
	return cache.GetOrLoad(ctx, s.cache, KeyYouTubeGallery, s.cfg.CacheTTL, s.fetch)
}

// Refresh fetches the gallery and replaces the cached copy.
func (s *YouTubeService) Refresh(ctx context.Context) (*model.Gallery, error) {
	g, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}
	if err := cache.SetJSON(ctx, s.cache, KeyYouTubeGallery, g, s.cfg.CacheTTL); err != nil {
		slog.Warn("failed to cache gallery", "error", err)
	}
	return g, nil
}

func (s *YouTubeService) fetch(ctx context.Context) (*model.Gallery, error) {
	switch {
	case s.cfg.APIKey != "":
		return s.fetchAPI(ctx)
	case s.cfg.ChannelID != "":
		return s.fetchFeed(ctx)
	}
	return nil, fmt.Errorf("%w: youtube api key or channel id required", ErrNotConfigured)
}

func (s *YouTubeService) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	params.Set("key", s.cfg.APIKey)
	u := strings.TrimRight(s.cfg.BaseURL, "/") + "/" + endpoint + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("youtube %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("youtube %s: %w", endpoint, err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := gjson.GetBytes(body, "error.message").String()
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("youtube %s: %d %s", endpoint, resp.StatusCode, msg)
	}
	return body, nil
}

func (s *YouTubeService) channelID(ctx context.Context) (string, error) {
	if s.cfg.ChannelID != "" {
		return s.cfg.ChannelID, nil
	}
	body, err := s.get(ctx, "search", url.Values{
		"part":       {"snippet"},
		"type":       {"channel"},
		"q":          {s.cfg.ChannelQuery},
		"maxResults": {"1"},
	})
	if err != nil {
		return "", err
	}
	id := gjson.GetBytes(body, "items.0.snippet.channelId").String()
	if id == "" {
		return "", fmt.Errorf("youtube channel %q not found", s.cfg.ChannelQuery)
	}
	return id, nil
}

func (s *YouTubeService) fetchAPI(ctx context.Context) (*model.Gallery, error) {
	channelID, err := s.channelID(ctx)
	if err != nil {
		return nil, err
	}

	body, err := s.get(ctx, "channels", url.Values{"part": {"snippet,contentDetails"}, "id": {channelID}})
	if err != nil {
		return nil, err
	}
	uploads := gjson.GetBytes(body, "items.0.contentDetails.relatedPlaylists.uploads").String()
	if uploads == "" {
		return nil, fmt.Errorf("youtube channel %s has no uploads playlist", channelID)
	}

	body, err = s.get(ctx, "playlistItems", url.Values{
		"part":       {"snippet"},
		"playlistId": {uploads},
		"maxResults": {"50"},
	})
	if err != nil {
		return nil, err
	}

	var videos []model.Video
	var ids []string
	gjson.GetBytes(body, "items").ForEach(func(_, item gjson.Result) bool {
		sn := item.Get("snippet")
		id := sn.Get("resourceId.videoId").String()
		if id == "" {
			return true
		}
		v := model.Video{
			ID:        id,
			Title:     sn.Get("title").String(),
			Thumbnail: thumbnail(sn.Get("thumbnails")),
			URL:       "https://www.youtube.com/watch?v=" + id,
		}
		if t, err := time.Parse(time.RFC3339, sn.Get("publishedAt").String()); err == nil {
			v.PublishedAt = t
		}
		videos = append(videos, v)
		ids = append(ids, id)
		return true
	})

	if len(ids) > 0 {
		body, err = s.get(ctx, "videos", url.Values{
			"part": {"contentDetails,statistics"},
			"id":   {strings.Join(ids, ",")},
		})
		if err != nil {
			return nil, err
		}
		type detail struct {
			duration int
			views    int64
		}
		details := make(map[string]detail, len(ids))
		gjson.GetBytes(body, "items").ForEach(func(_, item gjson.Result) bool {
			details[item.Get("id").String()] = detail{
				duration: ParseDuration(item.Get("contentDetails.duration").String()),
				views:    item.Get("statistics.viewCount").Int(),
			}
			return true
		})
		for i := range videos {
			d := details[videos[i].ID]
			videos[i].Duration = d.duration
			videos[i].Views = d.views
		}
	}

	g := &model.Gallery{Videos: []model.Video{}, Shorts: []model.Video{}, Source: "api", FetchedAt: s.now().UTC()}
	for _, v := range videos {
		if v.Duration < ShortMaxDuration {
			g.Shorts = append(g.Shorts, v)
		} else {
			g.Videos = append(g.Videos, v)
		}
	}
	slog.Info("youtube gallery fetched", "source", g.Source, "videos", len(g.Videos), "shorts", len(g.Shorts))
	return g, nil
}

func thumbnail(t gjson.Result) string {
	for _, size := range []string{"high", "medium", "default"} {
		if u := t.Get(size + ".url").String(); u != "" {
			return u
		}
	}
	return ""
}

func (s *YouTubeService) fetchFeed(ctx context.Context) (*model.Gallery, error) {
	feedURL := s.cfg.FeedURL + "?channel_id=" + url.QueryEscape(s.cfg.ChannelID)
	feed, err := s.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse youtube feed: %w", err)
	}

	g := &model.Gallery{Videos: []model.Video{}, Shorts: []model.Video{}, Source: "feed", FetchedAt: s.now().UTC()}
	for _, item := range feed.Items {
		v := model.Video{
			ID:    feedVideoID(item),
			Title: item.Title,
			URL:   item.Link,
		}
		if item.PublishedParsed != nil {
			v.PublishedAt = *item.PublishedParsed
		}
		if item.Image != nil {
			v.Thumbnail = item.Image.URL
		}
		if v.Thumbnail == "" && v.ID != "" {
			v.Thumbnail = "https://i.ytimg.com/vi/" + v.ID + "/hqdefault.jpg"
		}
		if strings.Contains(item.Link, "/shorts/") {
			g.Shorts = append(g.Shorts, v)
		} else {
			g.Videos = append(g.Videos, v)
		}
	}
	slog.Info("youtube gallery fetched", "source", g.Source, "videos", len(g.Videos), "shorts", len(g.Shorts))
	return g, nil
}

func feedVideoID(item *gofeed.Item) string {
	if yt, ok := item.Extensions["yt"]; ok {
		if ids := yt["videoId"]; len(ids) > 0 {
			return ids[0].Value
		}
	}
	return strings.TrimPrefix(item.GUID, "yt:video:")
}

var durationPattern = regexp.MustCompile(`PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?`)

// ParseDuration converts an ISO-8601 duration such as PT1H2M3S to seconds.
// Anything it cannot read is 0.
func ParseDuration(d string) int {
	m := durationPattern.FindStringSubmatch(d)
	if m == nil {
		return 0
	}
	total := 0
	for i, mult := range []int{3600, 60, 1} {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return 0
		}
		total += n * mult
	}
	return total
}

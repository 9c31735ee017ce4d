package service

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"kplays-api/internal/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"PT1H2M3S", 3723},
		{"PT45S", 45},
		{"PT4M", 240},
		{"PT1H", 3600},
		{"", 0},
		{"garbage", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseDuration(tt.in), tt.in)
	}
}

func fakeYouTubeAPI(t *testing.T, calls *int32) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		assert.Equal(t, "kushwant20", r.URL.Query().Get("q"))
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		fmt.Fprint(w, `{"items":[{"snippet":{"channelId":"UC123"}}]}`)
	})
	mux.HandleFunc("/channels", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "UC123", r.URL.Query().Get("id"))
		fmt.Fprint(w, `{"items":[{"contentDetails":{"relatedPlaylists":{"uploads":"UU123"}}}]}`)
	})
	mux.HandleFunc("/playlistItems", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "UU123", r.URL.Query().Get("playlistId"))
		fmt.Fprint(w, `{"items":[
			{"snippet":{"title":"Long play","publishedAt":"2024-05-01T10:00:00Z",
				"resourceId":{"videoId":"v1"},"thumbnails":{"high":{"url":"https://img/v1.jpg"}}}},
			{"snippet":{"title":"Quick tip","publishedAt":"2024-05-02T10:00:00Z",
				"resourceId":{"videoId":"v2"},"thumbnails":{"default":{"url":"https://img/v2.jpg"}}}}
		]}`)
	})
	mux.HandleFunc("/videos", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "v1,v2", r.URL.Query().Get("id"))
		// details deliberately out of order
		fmt.Fprint(w, `{"items":[
			{"id":"v2","contentDetails":{"duration":"PT35S"},"statistics":{"viewCount":"12"}},
			{"id":"v1","contentDetails":{"duration":"PT12M5S"},"statistics":{"viewCount":"3400"}}
		]}`)
	})
	return httptest.NewServer(mux)
}

func TestGalleryFromAPI(t *testing.T) {
	var calls int32
	srv := fakeYouTubeAPI(t, &calls)
	defer srv.Close()

	svc := NewYouTubeService(YouTubeConfig{
		APIKey:       "test-key",
		ChannelQuery: "kushwant20",
		BaseURL:      srv.URL,
	}, cache.NewMemoryCache(), srv.Client())

	g, err := svc.Gallery(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "api", g.Source)

	require.Len(t, g.Videos, 1)
	assert.Equal(t, "v1", g.Videos[0].ID)
	assert.Equal(t, 725, g.Videos[0].Duration)
	assert.Equal(t, int64(3400), g.Videos[0].Views)
	assert.Equal(t, "https://img/v1.jpg", g.Videos[0].Thumbnail)

	require.Len(t, g.Shorts, 1)
	assert.Equal(t, "v2", g.Shorts[0].ID)
	assert.Equal(t, "https://img/v2.jpg", g.Shorts[0].Thumbnail)

	_, err = svc.Gallery(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "second call served from cache")
}

func TestGalleryAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error":{"message":"quota exceeded"}}`)
	}))
	defer srv.Close()

	svc := NewYouTubeService(YouTubeConfig{APIKey: "k", ChannelID: "UC1", BaseURL: srv.URL}, cache.NewMemoryCache(), srv.Client())
	_, err := svc.Gallery(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

const channelFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns:yt="http://www.youtube.com/xml/schemas/2015" xmlns:media="http://search.yahoo.com/mrss/" xmlns="http://www.w3.org/2005/Atom">
 <title>kushwant20</title>
 <entry>
  <id>yt:video:abc</id>
  <yt:videoId>abc</yt:videoId>
  <title>Full walkthrough</title>
  <link rel="alternate" href="https://www.youtube.com/watch?v=abc"/>
  <published>2024-04-01T10:00:00+00:00</published>
 </entry>
 <entry>
  <id>yt:video:def</id>
  <yt:videoId>def</yt:videoId>
  <title>Short clip</title>
  <link rel="alternate" href="https://www.youtube.com/shorts/def"/>
  <published>2024-04-02T10:00:00+00:00</published>
 </entry>
</feed>`

func TestGalleryFromFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "UC999", r.URL.Query().Get("channel_id"))
		w.Header().Set("Content-Type", "application/atom+xml")
		fmt.Fprint(w, channelFeed)
	}))
	defer srv.Close()

	svc := NewYouTubeService(YouTubeConfig{ChannelID: "UC999", FeedURL: srv.URL}, cache.NewMemoryCache(), srv.Client())
	g, err := svc.Refresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "feed", g.Source)
	require.Len(t, g.Videos, 1)
	assert.Equal(t, "abc", g.Videos[0].ID)
	assert.Equal(t, "https://i.ytimg.com/vi/abc/hqdefault.jpg", g.Videos[0].Thumbnail)
	require.Len(t, g.Shorts, 1)
	assert.Equal(t, "def", g.Shorts[0].ID)
}

func TestGalleryNotConfigured(t *testing.T) {
	svc := NewYouTubeService(YouTubeConfig{}, cache.NewMemoryCache(), nil)
	_, err := svc.Gallery(context.Background())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

package handler

import (
	"errors"
	"net/http"
	"strings"

	"kplays-api/internal/service"
	"kplays-api/pkg/apierror"
	"kplays-api/pkg/response"
)

// StatsHandler serves the public stats page and the video gallery.
type StatsHandler struct {
	stats   *service.StatsService
	youtube *service.YouTubeService
}

// NewStatsHandler creates a new stats handler. youtube may be nil.
func NewStatsHandler(stats *service.StatsService, youtube *service.YouTubeService) *StatsHandler {
	return &StatsHandler{stats: stats, youtube: youtube}
}

// Dashboard handles GET /api/v1/stats?search=&category=&sort=views&order=desc
func (h *StatsHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	category, ok := parseCategory(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	dash, err := h.stats.Dashboard(r.Context(), service.DashboardQuery{
		Search:   q.Get("search"),
		Category: category,
		Sort:     q.Get("sort"),
		Desc:     !strings.EqualFold(q.Get("order"), "asc"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.OK(w, dash)
}

// YouTube handles GET /api/v1/youtube
func (h *StatsHandler) YouTube(w http.ResponseWriter, r *http.Request) {
	if h.youtube == nil {
		response.Error(w, apierror.ServiceUnavailable("Video gallery is not configured"))
		return
	}

	gallery, err := h.youtube.Gallery(r.Context())
	if err != nil {
		if errors.Is(err, service.ErrNotConfigured) {
			response.Error(w, apierror.ServiceUnavailable("Video gallery is not configured"))
			return
		}
		response.Error(w, apierror.ServiceUnavailable("Video gallery is temporarily unavailable").WithCause(err))
		return
	}
	response.Cached(w, r, gallery)
}

package handler

import (
	"net/http"

	"kplays-api/internal/model"
	"kplays-api/internal/service"
	"kplays-api/pkg/response"
)

// AnalyticsHandler collects client performance and click samples.
type AnalyticsHandler struct {
	analytics *service.AnalyticsService
}

// NewAnalyticsHandler creates a new analytics handler.
func NewAnalyticsHandler(analytics *service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

// RecordPerformance handles POST /api/v1/analytics/performance
func (h *AnalyticsHandler) RecordPerformance(w http.ResponseWriter, r *http.Request) {
	var sample model.PerformanceSample
	if !decodeJSON(w, r, &sample) {
		return
	}
	if sample.UserAgent == "" {
		sample.UserAgent = r.UserAgent()
	}
	h.analytics.RecordPerformance(sample)
	w.WriteHeader(http.StatusAccepted)
}

// RecordClick handles POST /api/v1/analytics/clicks
func (h *AnalyticsHandler) RecordClick(w http.ResponseWriter, r *http.Request) {
	var sample model.ClickSample
	if !decodeJSON(w, r, &sample) {
		return
	}
	h.analytics.RecordClick(sample)
	w.WriteHeader(http.StatusAccepted)
}

// Report handles GET /api/v1/admin/performance
func (h *AnalyticsHandler) Report(w http.ResponseWriter, r *http.Request) {
	response.OK(w, h.analytics.Report())
}

// Clear handles DELETE /api/v1/admin/performance
func (h *AnalyticsHandler) Clear(w http.ResponseWriter, r *http.Request) {
	writeStatus(w, r, http.StatusOK, h.analytics.Clear(), nil)
}

package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"kplays-api/internal/cache"
	"kplays-api/internal/middleware"
	"kplays-api/internal/model"
	"kplays-api/internal/search"
	"kplays-api/internal/service"
	"kplays-api/pkg/apierror"
	"kplays-api/pkg/response"

	"github.com/go-chi/chi/v5"
)

// StatsProvider reports backend statistics. repository.Store satisfies it.
type StatsProvider interface {
	GetStats(ctx context.Context) (map[string]interface{}, error)
}

// AdminHandler handles the admin dashboard endpoints.
type AdminHandler struct {
	admin       *service.AdminService
	maintenance *service.MaintenanceService
	store       StatsProvider
	buffer      *cache.CounterBuffer
	index       *search.Index
	dbType      string
	cacheType   string
	startTime   time.Time
}

// AdminHandlerConfig holds the admin handler dependencies. Buffer and
// Index may be nil.
type AdminHandlerConfig struct {
	Admin       *service.AdminService
	Maintenance *service.MaintenanceService
	Store       StatsProvider
	Buffer      *cache.CounterBuffer
	Index       *search.Index
	DBType      string
	CacheType   string
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(cfg AdminHandlerConfig) *AdminHandler {
	return &AdminHandler{
		admin:       cfg.Admin,
		maintenance: cfg.Maintenance,
		store:       cfg.Store,
		buffer:      cfg.Buffer,
		index:       cfg.Index,
		dbType:      cfg.DBType,
		cacheType:   cfg.CacheType,
		startTime:   time.Now(),
	}
}

// Games handles GET /api/v1/admin/games
func (h *AdminHandler) Games(w http.ResponseWriter, r *http.Request) {
	games, err := h.admin.Games(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.OK(w, games)
}

// CreateGame handles POST /api/v1/admin/games
func (h *AdminHandler) CreateGame(w http.ResponseWriter, r *http.Request) {
	var g model.Game
	if !decodeJSON(w, r, &g) {
		return
	}

	created, st := h.admin.CreateGame(r.Context(), g)
	writeStatus(w, r, http.StatusCreated, st, created)
}

// BulkCreate handles POST /api/v1/admin/games/bulk with a JSON array body.
func (h *AdminHandler) BulkCreate(w http.ResponseWriter, r *http.Request) {
	var games []model.Game
	if !decodeJSON(w, r, &games) {
		return
	}

	created, st := h.admin.BulkCreate(r.Context(), games)
	writeStatus(w, r, http.StatusCreated, st, created)
}

// UpdateGame handles PUT /api/v1/admin/games/{id}
func (h *AdminHandler) UpdateGame(w http.ResponseWriter, r *http.Request) {
	var u model.GameUpdate
	if !decodeJSON(w, r, &u) {
		return
	}

	st := h.admin.UpdateGame(r.Context(), chi.URLParam(r, "id"), u)
	writeStatus(w, r, http.StatusOK, st, nil)
}

// PriorityRequest is the body of a priority change.
type PriorityRequest struct {
	Priority *int `json:"priority"`
}

// UpdatePriority handles PUT /api/v1/admin/games/{id}/priority
func (h *AdminHandler) UpdatePriority(w http.ResponseWriter, r *http.Request) {
	var req PriorityRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Priority == nil {
		response.Error(w, apierror.ValidationError("priority is required",
			apierror.FieldError{Field: "priority", Message: "required"}))
		return
	}

	st := h.admin.UpdatePriority(r.Context(), chi.URLParam(r, "id"), *req.Priority)
	writeStatus(w, r, http.StatusOK, st, nil)
}

// DeleteGame handles DELETE /api/v1/admin/games/{id}
func (h *AdminHandler) DeleteGame(w http.ResponseWriter, r *http.Request) {
	st := h.admin.DeleteGame(r.Context(), chi.URLParam(r, "id"))
	writeStatus(w, r, http.StatusOK, st, nil)
}

// ReorderRequest moves the game at From to position To.
type ReorderRequest struct {
	From *int `json:"from"`
	To   *int `json:"to"`
}

// Reorder handles POST /api/v1/admin/games/reorder. When some priorities
// could not be saved the new order is still returned, with 207.
func (h *AdminHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	var req ReorderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.From == nil || req.To == nil {
		response.Error(w, apierror.BadRequest("from and to are required"))
		return
	}

	games, st := h.admin.Reorder(r.Context(), *req.From, *req.To)
	if !st.OK && games != nil {
		middleware.Logger(r.Context()).Warn("reorder partially saved", "error", st.Err)
		response.JSON(w, http.StatusMultiStatus, StatusResult{Status: st, Data: games})
		return
	}
	writeStatus(w, r, http.StatusOK, st, games)
}

// Overview handles GET /api/v1/admin/overview
func (h *AdminHandler) Overview(w http.ResponseWriter, r *http.Request) {
	ov, err := h.admin.Overview(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.OK(w, ov)
}

// Requests handles GET /api/v1/admin/requests?page=&limit=
func (h *AdminHandler) Requests(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	if page < 1 {
		page = 1
	}
	limit := queryInt(r, "limit", 20)
	if limit < 1 || limit > 100 {
		limit = 20
	}

	reqs, total, err := h.admin.Requests(r.Context(), page, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if reqs == nil {
		reqs = []model.GameRequest{}
	}
	response.JSONWithMeta(w, http.StatusOK, reqs, page, limit, total)
}

// InvalidateRequest names the cache entries to drop.
type InvalidateRequest struct {
	Pattern string `json:"pattern"`
}

// InvalidateCache handles POST /api/v1/admin/cache/invalidate. An empty
// body drops the game entries.
func (h *AdminHandler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	var req InvalidateRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}

	removed, st := h.admin.InvalidateCache(r.Context(), req.Pattern)
	writeStatus(w, r, http.StatusOK, st, map[string]int{"removed": removed})
}

// FixPriorities handles POST /api/v1/admin/maintenance/fix-priorities
func (h *AdminHandler) FixPriorities(w http.ResponseWriter, r *http.Request) {
	h.runMaintenance(w, r, h.maintenance.FixPriorities)
}

// ArrangeByCreation handles POST /api/v1/admin/maintenance/arrange
func (h *AdminHandler) ArrangeByCreation(w http.ResponseWriter, r *http.Request) {
	h.runMaintenance(w, r, h.maintenance.ArrangeByCreation)
}

func (h *AdminHandler) runMaintenance(w http.ResponseWriter, r *http.Request, run func(context.Context) (service.MaintenanceResult, error)) {
	if h.maintenance == nil {
		response.Error(w, apierror.ServiceUnavailable("Maintenance is not available"))
		return
	}

	res, err := run(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	// The dashboard snapshot no longer matches the store.
	if _, err := h.admin.Games(r.Context()); err != nil {
		middleware.Logger(r.Context()).Warn("failed to reload admin snapshot", "error", err)
	}

	st := res.Status()
	if !st.OK {
		response.JSON(w, http.StatusMultiStatus, StatusResult{Status: st, Data: res})
		return
	}
	writeStatus(w, r, http.StatusOK, st, res)
}

// System handles GET /api/v1/admin/system
func (h *AdminHandler) System(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats := make(map[string]interface{})

	// System info
	stats["uptime_seconds"] = int64(time.Since(h.startTime).Seconds())
	stats["uptime_human"] = time.Since(h.startTime).Round(time.Second).String()
	stats["server_time"] = time.Now().Format(time.RFC3339)
	stats["db_type"] = h.dbType
	stats["cache_type"] = h.cacheType

	// Memory stats
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	stats["memory"] = map[string]interface{}{
		"alloc_mb":      float64(memStats.Alloc) / 1024 / 1024,
		"sys_mb":        float64(memStats.Sys) / 1024 / 1024,
		"heap_inuse_mb": float64(memStats.HeapInuse) / 1024 / 1024,
		"num_gc":        memStats.NumGC,
		"goroutines":    runtime.NumGoroutine(),
	}

	// Counter buffer
	if h.buffer != nil {
		count, err := h.buffer.Count(ctx)
		if err == nil {
			stats["counter_buffer"] = map[string]interface{}{
				"pending_games": count,
				"status":        "connected",
			}
		} else {
			stats["counter_buffer"] = map[string]interface{}{
				"status": "error",
				"error":  err.Error(),
			}
		}
	} else {
		stats["counter_buffer"] = map[string]interface{}{"status": "not_configured"}
	}

	// Database
	if h.store != nil {
		dbStats, err := h.store.GetStats(ctx)
		if err == nil {
			dbStats["status"] = "connected"
			stats["database"] = dbStats
		} else {
			stats["database"] = map[string]interface{}{
				"status": "error",
				"error":  err.Error(),
			}
		}
	}

	// Search index
	if h.index != nil {
		if n, err := h.index.Count(); err == nil {
			stats["search_index"] = map[string]interface{}{"documents": n, "status": "ok"}
		} else {
			stats["search_index"] = map[string]interface{}{"status": "error", "error": err.Error()}
		}
	} else {
		stats["search_index"] = map[string]interface{}{"status": "disabled"}
	}

	stats["runtime"] = map[string]interface{}{
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"cpus":       runtime.NumCPU(),
	}

	response.OK(w, stats)
}

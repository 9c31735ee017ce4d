package handler

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"kplays-api/internal/events"
	"kplays-api/internal/model"
	"kplays-api/internal/service"
	"kplays-api/pkg/apierror"
	"kplays-api/pkg/response"
	"kplays-api/pkg/uid"

	"github.com/go-chi/chi/v5"
)

const (
	// ViewerHeader identifies a viewer for view de-duplication.
	ViewerHeader = "X-Viewer-ID"
	// ViewerCookie holds a generated viewer id for browsers.
	ViewerCookie = "kp_viewer"

	defaultSearchLimit = 20
	maxSearchLimit     = 100
)

// GameHandler handles the public catalogue endpoints.
type GameHandler struct {
	games  *service.GameService
	broker events.Broker

	closeOnce sync.Once
	closing   chan struct{}
}

// NewGameHandler creates a new game handler. broker may be nil, which
// disables the event streams.
func NewGameHandler(games *service.GameService, broker events.Broker) *GameHandler {
	return &GameHandler{games: games, broker: broker, closing: make(chan struct{})}
}

// CloseStreams ends every open event stream. Server shutdown waits for
// active handlers, so it is registered as a shutdown hook.
func (h *GameHandler) CloseStreams() {
	h.closeOnce.Do(func() { close(h.closing) })
}

func parseCategory(w http.ResponseWriter, r *http.Request) (model.Category, bool) {
	raw := r.URL.Query().Get("category")
	if raw == "" {
		raw = r.URL.Query().Get("type")
	}
	c, ok := model.ParseCategory(raw)
	if !ok {
		response.Error(w, apierror.BadRequest("category must be all, pc or android"))
		return "", false
	}
	return c, true
}

// List handles GET /api/v1/games
func (h *GameHandler) List(w http.ResponseWriter, r *http.Request) {
	category, ok := parseCategory(w, r)
	if !ok {
		return
	}

	games, err := h.games.List(r.Context(), service.ListFilter{
		Search:   r.URL.Query().Get("search"),
		Category: category,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.Cached(w, r, games)
}

// Search handles GET /api/v1/games/search?q=
func (h *GameHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		response.Error(w, apierror.BadRequest("q is required"))
		return
	}
	category, ok := parseCategory(w, r)
	if !ok {
		return
	}

	limit := queryInt(r, "limit", defaultSearchLimit)
	if limit <= 0 || limit > maxSearchLimit {
		limit = defaultSearchLimit
	}

	games, err := h.games.Search(r.Context(), q, category, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.OK(w, games)
}

// Get handles GET /api/v1/games/{id}
func (h *GameHandler) Get(w http.ResponseWriter, r *http.Request) {
	game, err := h.games.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.OK(w, game)
}

// maxViewerIDLength bounds client supplied viewer ids.
const maxViewerIDLength = 64

// validViewerID accepts short ids made of letters, digits, '-' and '_'.
func validViewerID(id string) bool {
	if id == "" || len(id) > maxViewerIDLength {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}

// viewerID returns the caller's viewer id, issuing a cookie when the
// caller has none. A malformed header is ignored.
func viewerID(w http.ResponseWriter, r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(ViewerHeader)); validViewerID(id) {
		return id
	}
	if c, err := r.Cookie(ViewerCookie); err == nil && uid.IsValid(c.Value) {
		return c.Value
	}

	id := uid.New()
	http.SetCookie(w, &http.Cookie{
		Name:     ViewerCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int((365 * 24 * time.Hour).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

// ViewResponse reports whether a view was counted.
type ViewResponse struct {
	Counted bool `json:"counted"`
}

// View handles POST /api/v1/games/{id}/view
func (h *GameHandler) View(w http.ResponseWriter, r *http.Request) {
	counted, err := h.games.TrackView(r.Context(), viewerID(w, r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.OK(w, ViewResponse{Counted: counted})
}

// Download handles GET /api/v1/games/{id}/download
func (h *GameHandler) Download(w http.ResponseWriter, r *http.Request) {
	link, err := h.games.TrackDownload(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	http.Redirect(w, r, link, http.StatusFound)
}

// Comments handles GET /api/v1/games/{id}/comments
func (h *GameHandler) Comments(w http.ResponseWriter, r *http.Request) {
	comments, err := h.games.Comments(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if comments == nil {
		comments = []model.Comment{}
	}
	response.OK(w, comments)
}

// CommentRequest is the body of a new comment.
type CommentRequest struct {
	Username string `json:"username"`
	Text     string `json:"text"`
}

// AddComment handles POST /api/v1/games/{id}/comments
func (h *GameHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	var req CommentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	comment, err := h.games.AddComment(r.Context(), chi.URLParam(r, "id"), req.Username, req.Text)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.Created(w, comment)
}

// Events handles GET /api/v1/games/events
func (h *GameHandler) Events(w http.ResponseWriter, r *http.Request) {
	streamEvents(w, r, h.broker, events.TopicGames, h.closing)
}

// GameEvents handles GET /api/v1/games/{id}/events
func (h *GameHandler) GameEvents(w http.ResponseWriter, r *http.Request) {
	streamEvents(w, r, h.broker, events.GameTopic(chi.URLParam(r, "id")), h.closing)
}

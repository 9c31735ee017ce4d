package handler

import (
	"net/http"

	"kplays-api/internal/model"
	"kplays-api/internal/service"
	"kplays-api/pkg/response"
)

// RequestHandler accepts game requests from visitors.
type RequestHandler struct {
	requests *service.RequestService
}

// NewRequestHandler creates a new request handler.
func NewRequestHandler(requests *service.RequestService) *RequestHandler {
	return &RequestHandler{requests: requests}
}

// Submit handles POST /api/v1/requests
func (h *RequestHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req model.GameRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	stored, err := h.requests.Submit(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.Created(w, stored)
}

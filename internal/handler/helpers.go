package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"kplays-api/internal/middleware"
	"kplays-api/internal/repository"
	"kplays-api/internal/service"
	"kplays-api/pkg/apierror"
	"kplays-api/pkg/response"
)

// maxBodyBytes bounds JSON request bodies; bulk imports are the largest.
const maxBodyBytes = 2 << 20

// decodeJSON reads a JSON body into dst, writing a 400 or 413 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	defer r.Body.Close()

	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			response.Error(w, apierror.PayloadTooLarge(""))
		case errors.Is(err, io.EOF):
			response.Error(w, apierror.BadRequest("request body is required"))
		default:
			response.Error(w, apierror.BadRequest("invalid request body"))
		}
		return false
	}
	return true
}

// toAPIError maps service and repository errors onto HTTP errors. message
// replaces the error text when given.
func toAPIError(err error, message string) *apierror.Error {
	msg := func(fallback string) string {
		if message != "" {
			return message
		}
		return fallback
	}

	var apiErr *apierror.Error
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.Is(err, repository.ErrNotFound):
		return apierror.NotFound(msg("Game not found"))
	case errors.Is(err, service.ErrNoDownload):
		return apierror.NotFound(msg("No download link available"))
	case errors.Is(err, service.ErrEmptyComment),
		errors.Is(err, service.ErrInvalidCategory),
		errors.Is(err, service.ErrInvalidInput):
		return apierror.BadRequest(msg(err.Error()))
	case errors.Is(err, service.ErrDuplicatePriority),
		errors.Is(err, repository.ErrDuplicate):
		return apierror.Conflict(msg(err.Error()))
	case errors.Is(err, service.ErrUnauthorized),
		errors.Is(err, service.ErrInvalidCredentials):
		return apierror.Unauthorized(msg(err.Error()))
	case errors.Is(err, service.ErrNotConfigured):
		return apierror.ServiceUnavailable(msg(""))
	default:
		return apierror.InternalError(msg("")).WithCause(err)
	}
}

// writeError renders err, logging anything that maps to a server error.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := toAPIError(err, "")
	if apiErr.StatusCode >= http.StatusInternalServerError {
		middleware.Logger(r.Context()).Error("request failed", "path", r.URL.Path, "error", err)
	}
	response.Error(w, apiErr)
}

// StatusResult is the body of an admin mutation response.
type StatusResult struct {
	Status service.Status `json:"status"`
	Data   interface{}    `json:"result,omitempty"`
}

// writeStatus renders an admin operation outcome. Failures carry the
// glyph-prefixed status line as the error message.
func writeStatus(w http.ResponseWriter, r *http.Request, successCode int, st service.Status, data interface{}) {
	if !st.OK {
		apiErr := toAPIError(st.Err, st.String())
		if apiErr.StatusCode >= http.StatusInternalServerError {
			middleware.Logger(r.Context()).Error("admin operation failed", "path", r.URL.Path, "error", st.Err)
		}
		response.Error(w, apiErr)
		return
	}
	response.JSON(w, successCode, StatusResult{Status: st, Data: data})
}

func queryInt(r *http.Request, name string, fallback int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return fallback
	}
	return v
}

package handler

import (
	"errors"
	"net/http"
	"time"

	"kplays-api/internal/middleware"
	"kplays-api/internal/model"
	"kplays-api/internal/repository"
	"kplays-api/internal/service"
	"kplays-api/pkg/apierror"
	"kplays-api/pkg/response"
)

// AuthHandler handles dashboard sign-up, sign-in and session endpoints.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// CredentialsRequest is the body of sign-up and sign-in.
type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse is returned by sign-in and refresh.
type TokenResponse struct {
	Token     string    `json:"token,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
	ExpiresIn int       `json:"expires_in"`
	Email     string    `json:"email"`
	IsAdmin   bool      `json:"is_admin"`
}

func (h *AuthHandler) tokenResponse(token string, sess *model.Session) TokenResponse {
	return TokenResponse{
		Token:     token,
		ExpiresAt: sess.ExpiresAt,
		ExpiresIn: int(time.Until(sess.ExpiresAt).Seconds()),
		Email:     sess.Email,
		IsAdmin:   h.auth.IsAdmin(sess),
	}
}

// SignUp handles POST /api/v1/auth/signup
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.auth.SignUp(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			response.Error(w, apierror.Conflict("An account with this email already exists"))
			return
		}
		writeError(w, r, err)
		return
	}
	response.Created(w, user)
}

// SignIn handles POST /api/v1/auth/signin
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	token, sess, err := h.auth.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.OK(w, h.tokenResponse(token, sess))
}

// SignOut handles POST /api/v1/auth/signout
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	token := middleware.TokenFromRequest(r)
	if token == "" {
		response.Error(w, apierror.BadRequest("session token required"))
		return
	}

	if err := h.auth.SignOut(r.Context(), token); err != nil {
		response.Error(w, apierror.InternalError("failed to sign out").WithCause(err))
		return
	}
	response.OK(w, map[string]string{"status": "signed_out"})
}

// Refresh handles POST /api/v1/auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	token := middleware.TokenFromRequest(r)
	if token == "" {
		response.Error(w, apierror.BadRequest("session token required"))
		return
	}

	sess, err := h.auth.Refresh(r.Context(), token)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.OK(w, h.tokenResponse("", sess))
}

// SessionResponse describes the caller's session state.
type SessionResponse struct {
	Authenticated bool       `json:"authenticated"`
	Email         string     `json:"email,omitempty"`
	IsAdmin       bool       `json:"is_admin"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

// Session handles GET /api/v1/auth/session. It never fails: a missing or
// expired token reports an anonymous session.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r.Context())
	if sess == nil {
		response.OK(w, SessionResponse{})
		return
	}
	expires := sess.ExpiresAt
	response.OK(w, SessionResponse{
		Authenticated: true,
		Email:         sess.Email,
		IsAdmin:       h.auth.IsAdmin(sess),
		ExpiresAt:     &expires,
	})
}

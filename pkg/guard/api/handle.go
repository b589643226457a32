// Package api exposes the session guard over HTTP for the web
// dashboard and mobile clients. Callers identify their device through
// request headers; the guard decides whether the session proceeds, is
// blocked, or should be retried.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/trackora/workforce-idm/pkg/authn"
	"github.com/trackora/workforce-idm/pkg/deviceid"
	"github.com/trackora/workforce-idm/pkg/guard"
	"github.com/trackora/workforce-idm/pkg/ratelimit"
)

// Device identity headers sent by API clients.
const (
	HeaderDeviceID       = "X-Device-ID"
	HeaderDeviceModel    = "X-Device-Model"
	HeaderDevicePlatform = "X-Device-Platform"
)

// GuardHandler handles HTTP requests for guarded sign-in and session
// checks.
type GuardHandler struct {
	guard    *guard.SessionGuard
	attempts *ratelimit.AttemptLimiter
}

// NewGuardHandler creates a new guard handler. The limiter is
// optional; when set, login throttles per client IP and a successful
// login refunds the client's attempt budget.
func NewGuardHandler(g *guard.SessionGuard, attempts *ratelimit.AttemptLimiter) *GuardHandler {
	return &GuardHandler{
		guard:    g,
		attempts: attempts,
	}
}

// LoginRequest represents the request body for a guarded login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// CheckRequest represents the request body for a session device check
type CheckRequest struct {
	AfterSignup bool `json:"after_signup,omitempty"`
}

// EntryResponse represents the guard's decision for a session
type EntryResponse struct {
	Status  string `json:"status"`
	State   string `json:"state"`
	Route   string `json:"route,omitempty"`
	Outcome string `json:"outcome,omitempty"`
	Role    string `json:"role,omitempty"`
	Token   string `json:"token,omitempty"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// Login authenticates credentials and runs the device check in one
// round trip.
func (h *GuardHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Failed to decode request body", "error", err)
		renderErrorResponse(w, r, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if req.Email == "" || req.Password == "" {
		renderErrorResponse(w, r, http.StatusBadRequest, "Missing required field", "email and password are required")
		return
	}

	identity, ok := deviceIdentityFromRequest(r)
	if !ok {
		renderErrorResponse(w, r, http.StatusBadRequest, "Missing required header", "X-Device-ID is required")
		return
	}

	entry, err := h.guard.LoginWithIdentity(r.Context(), authn.Credentials{
		Email:    req.Email,
		Password: req.Password,
	}, identity)
	if err != nil {
		if authn.IsCredentialError(err) {
			renderErrorResponse(w, r, http.StatusUnauthorized, "Invalid credentials", "")
			return
		}
		renderEntry(w, r, entry, err)
		return
	}

	if h.attempts != nil && entry.State == guard.StateProceed {
		h.attempts.Reset(ratelimit.ClientIP(r))
	}
	renderEntry(w, r, entry, nil)
}

// Check runs the device check for the authenticated session. The
// account comes from the verified token, the device from headers.
func (h *GuardHandler) Check(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFromToken(r)
	if !ok {
		renderErrorResponse(w, r, http.StatusUnauthorized, "Authentication required", "")
		return
	}

	identity, ok := deviceIdentityFromRequest(r)
	if !ok {
		renderErrorResponse(w, r, http.StatusBadRequest, "Missing required header", "X-Device-ID is required")
		return
	}

	var req CheckRequest
	if r.Body != nil && r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			slog.Error("Failed to decode request body", "error", err)
			renderErrorResponse(w, r, http.StatusBadRequest, "Invalid request body", err.Error())
			return
		}
	}

	entry, err := h.guard.CheckDevice(r.Context(), principal, identity, req.AfterSignup)
	renderEntry(w, r, entry, err)
}

// Handler returns a http.Handler for the guard API. The check route
// requires a verified session token; login does not, but is throttled
// when the handler carries an attempt limiter.
func Handler(h *GuardHandler, auth *jwtauth.JWTAuth) http.Handler {
	r := chi.NewRouter()

	if h.attempts != nil {
		limited := ratelimit.NewMiddleware(h.attempts)
		r.With(limited.Handler).Post("/login", h.Login)
	} else {
		r.Post("/login", h.Login)
	}

	r.Group(func(r chi.Router) {
		r.Use(jwtauth.Verifier(auth))
		r.Use(jwtauth.Authenticator(auth))
		r.Post("/check", h.Check)
	})

	return r
}

func deviceIdentityFromRequest(r *http.Request) (deviceid.Identity, bool) {
	identifier := r.Header.Get(HeaderDeviceID)
	if identifier == "" {
		return deviceid.Identity{}, false
	}
	model := r.Header.Get(HeaderDeviceModel)
	return deviceid.Identity{
		Identifier:  identifier,
		DisplayName: model,
		Platform:    r.Header.Get(HeaderDevicePlatform),
		ModelName:   model,
	}, true
}

func principalFromToken(r *http.Request) (authn.Principal, bool) {
	_, claims, err := jwtauth.FromContext(r.Context())
	if err != nil {
		return authn.Principal{}, false
	}
	sub, ok := claims["sub"].(string)
	if !ok {
		return authn.Principal{}, false
	}
	accountID, err := uuid.Parse(sub)
	if err != nil {
		return authn.Principal{}, false
	}

	token := jwtauth.TokenFromHeader(r)
	return authn.Principal{AccountID: accountID, Token: token}, true
}

// renderEntry maps a guard entry and its optional error to the wire
// response. Policy blocks render as 403, retryable failures as 503.
func renderEntry(w http.ResponseWriter, r *http.Request, entry guard.Entry, err error) {
	response := EntryResponse{
		State:   string(entry.State),
		Route:   entry.Route,
		Outcome: string(entry.Outcome),
		Role:    string(entry.Role),
		Message: entry.Reason,
	}

	switch entry.State {
	case guard.StateProceed:
		response.Status = "success"
		response.Token = entry.Principal.Token
		render.Status(r, http.StatusOK)
	case guard.StateBlocked:
		response.Status = "denied"
		render.Status(r, http.StatusForbidden)
	default:
		response.Status = "retry"
		if err != nil {
			slog.Error("Device check did not complete", "error", err)
		}
		render.Status(r, http.StatusServiceUnavailable)
	}

	render.JSON(w, r, response)
}

// renderErrorResponse renders an error response with the given status code and message
func renderErrorResponse(w http.ResponseWriter, r *http.Request, statusCode int, message, errorDetail string) {
	response := ErrorResponse{
		Status:  "error",
		Message: message,
	}

	if errorDetail != "" {
		response.Error = errorDetail
	}

	render.Status(r, statusCode)
	render.JSON(w, r, response)
}

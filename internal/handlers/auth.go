package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"inkpress/internal/middleware"
	"inkpress/internal/models"
	"inkpress/internal/service"
	"inkpress/internal/session"
)

// Auth groups login, session and social login handlers.
type Auth struct {
	auth *service.AuthService
}

// NewAuth creates a new Auth handler group.
func NewAuth(auth *service.AuthService) *Auth {
	return &Auth{auth: auth}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Device   string `json:"device"`
	Code     string `json:"code"`
}

// Login exchanges credentials (and a TOTP code when 2FA is on) for a
// bearer token.
func (h *Auth) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.auth.Login(r.Context(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
		Code:     req.Code,
		Meta:     requestMeta(r, req.Device),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeLogin(w, res)
}

// Logout revokes the session behind the current token.
func (h *Auth) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Logout(r.Context(), middleware.IdentityFromCtx(r.Context())); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "logged out", "", nil)
}

// Sessions lists the caller's active sessions. The one used for this
// request is flagged as current.
func (h *Auth) Sessions(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromCtx(r.Context())
	list, err := h.auth.Sessions(r.Context(), id.User.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	type sessionView struct {
		*models.Session
		Current bool `json:"current"`
	}
	views := make([]sessionView, len(list))
	for i := range list {
		views[i] = sessionView{Session: &list[i], Current: list[i].ID == id.Session.ID}
	}
	writeJSON(w, http.StatusOK, envelope{"sessions": views})
}

// RevokeSession signs out one of the caller's sessions.
func (h *Auth) RevokeSession(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuidParam(r, "id", "session")
	if err != nil {
		writeError(w, r, err)
		return
	}
	user := middleware.UserFromCtx(r.Context())
	if err := h.auth.RevokeSession(r.Context(), user.ID, sessionID); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "session revoked", "", nil)
}

// SocialLogin redirects the browser to the provider's consent page.
func (h *Auth) SocialLogin(w http.ResponseWriter, r *http.Request) {
	url, err := h.auth.BeginSocialLogin(r.Context(), chi.URLParam(r, "provider"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}

// SocialCallback completes the provider round trip and issues a token.
func (h *Auth) SocialCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := h.auth.CompleteSocialLogin(r.Context(),
		chi.URLParam(r, "provider"), q.Get("code"), q.Get("state"), requestMeta(r, ""))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeLogin(w, res)
}

func writeLogin(w http.ResponseWriter, res *service.LoginResult) {
	writeJSON(w, http.StatusOK, envelope{
		"message": "logged in",
		"token":   res.Token,
		"user":    res.User,
	})
}

// requestMeta describes the client a session is opened for. Without an
// explicit device name the user agent stands in.
func requestMeta(r *http.Request, device string) session.Meta {
	ua := r.UserAgent()
	if device == "" {
		device = ua
	}
	return session.Meta{
		Device:    device,
		IP:        middleware.ClientIP(r),
		UserAgent: ua,
	}
}

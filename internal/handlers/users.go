package handlers

import (
	"net/http"

	"inkpress/internal/middleware"
	"inkpress/internal/service"
)

// Users groups account registration and profile handlers.
type Users struct {
	users *service.UserService
}

// NewUsers creates a new Users handler group.
func NewUsers(users *service.UserService) *Users {
	return &Users{users: users}
}

type registerRequest struct {
	Email       string `json:"email"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

// Register creates an account and sends the verification email.
func (h *Users) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := h.users.Register(r.Context(), service.RegisterInput{
		Email:       req.Email,
		Username:    req.Username,
		Password:    req.Password,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeMessage(w, http.StatusCreated, "account created, check your email to verify it", "user", user)
}

// Verify consumes an email verification token from the query string.
func (h *Users) Verify(w http.ResponseWriter, r *http.Request) {
	if err := h.users.VerifyEmail(r.Context(), r.URL.Query().Get("token")); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "email verified", "", nil)
}

type emailRequest struct {
	Email string `json:"email"`
}

// ResendVerification answers the same way whether or not the address
// belongs to an unverified account.
func (h *Users) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.users.ResendVerification(r.Context(), req.Email); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "if the account exists and is unverified, a new email has been sent", "", nil)
}

// ForgotPassword starts a password reset without revealing whether the
// address is registered.
func (h *Users) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.users.ForgotPassword(r.Context(), req.Email); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "if the account exists, a reset email has been sent", "", nil)
}

type resetRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// ResetPassword sets a new password and signs the user out everywhere.
func (h *Users) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.users.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "password updated, please sign in again", "", nil)
}

// Me returns the authenticated user.
func (h *Users) Me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, envelope{"user": middleware.UserFromCtx(r.Context())})
}

type profileRequest struct {
	DisplayName *string `json:"displayName"`
	Bio         *string `json:"bio"`
	AvatarURL   *string `json:"avatarUrl"`
}

// UpdateProfile applies a partial profile update.
func (h *Users) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := h.users.UpdateProfile(r.Context(), middleware.UserFromCtx(r.Context()), service.ProfileInput{
		DisplayName: req.DisplayName,
		Bio:         req.Bio,
		AvatarURL:   req.AvatarURL,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "profile updated", "user", user)
}

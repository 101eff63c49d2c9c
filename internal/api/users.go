package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ernie/pitchside/internal/auth"
	"github.com/ernie/pitchside/internal/storage"
)

// ChangePasswordRequest is the request body for password change
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// CreateUserRequest is the request body for creating an admin account
type CreateUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	IsAdmin  bool   `json:"is_admin"`
}

// ResetPasswordRequest sets a temporary password on another account
type ResetPasswordRequest struct {
	NewPassword string `json:"new_password"`
}

// UserResponse is an account without its password hash
type UserResponse struct {
	ID                     int64      `json:"id"`
	Username               string     `json:"username"`
	IsAdmin                bool       `json:"is_admin"`
	PasswordChangeRequired bool       `json:"password_change_required"`
	CreatedAt              time.Time  `json:"created_at"`
	LastLogin              *time.Time `json:"last_login,omitempty"`
}

func userView(u storage.User) UserResponse {
	return UserResponse{
		ID:                     u.ID,
		Username:               u.Username,
		IsAdmin:                u.IsAdmin,
		PasswordChangeRequired: u.PasswordChangeRequired,
		CreatedAt:              u.CreatedAt,
		LastLogin:              u.LastLogin,
	}
}

// newPasswordHash applies the password policy and hashes pw. On failure the
// response has been written.
func newPasswordHash(w http.ResponseWriter, pw string) (string, bool) {
	if err := auth.ValidatePassword(pw); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	hash, err := auth.HashPassword(pw)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to hash password")
		return "", false
	}
	return hash, true
}

// handleChangePassword replaces the caller's password and issues a token
// without the change-required flag
func (r *Router) handleChangePassword(w http.ResponseWriter, req *http.Request) {
	claims := r.getAuthClaims(req)
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var body ChangePasswordRequest
	if err := decodeBody(w, req, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := r.store.GetUserByID(req.Context(), claims.UserID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusUnauthorized, "account no longer exists")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "failed to get user")
		return
	}
	if !auth.CheckPassword(body.CurrentPassword, user.PasswordHash) {
		writeError(w, http.StatusUnauthorized, "current password is incorrect")
		return
	}

	hash, ok := newPasswordHash(w, body.NewPassword)
	if !ok {
		return
	}
	if err := r.store.UpdateUserPassword(req.Context(), user.ID, hash); err != nil {
		zerolog.Ctx(req.Context()).Error().Err(err).Str("user", user.Username).Msg("Password update failed")
		writeError(w, http.StatusInternalServerError, "failed to update password")
		return
	}

	token, err := r.auth.GenerateToken(user.ID, user.Username, user.IsAdmin, false)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate new token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "password changed",
		"token":   token,
	})
}

// handleListUsers lists every account
func (r *Router) handleListUsers(w http.ResponseWriter, req *http.Request) {
	users, err := r.store.ListUsers(req.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	out := make([]UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, userView(u))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleCreateUser adds an account; the new password must be changed on
// first login
func (r *Router) handleCreateUser(w http.ResponseWriter, req *http.Request) {
	var body CreateUserRequest
	if err := decodeBody(w, req, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !validateUsername(body.Username) {
		writeError(w, http.StatusBadRequest, "username must be 3-32 letters, digits, '.', '_' or '-'")
		return
	}

	hash, ok := newPasswordHash(w, body.Password)
	if !ok {
		return
	}
	err := r.store.CreateUser(req.Context(), body.Username, hash, body.IsAdmin)
	switch {
	case err != nil && strings.Contains(err.Error(), "UNIQUE constraint"):
		writeError(w, http.StatusConflict, "username already exists")
	case err != nil:
		zerolog.Ctx(req.Context()).Error().Err(err).Str("user", body.Username).Msg("Create user failed")
		writeError(w, http.StatusInternalServerError, "failed to create user")
	default:
		zerolog.Ctx(req.Context()).Info().Str("user", body.Username).Bool("admin", body.IsAdmin).Msg("User created")
		writeJSON(w, http.StatusCreated, map[string]string{"message": "user created"})
	}
}

// handleDeleteUser removes an account other than the caller's
func (r *Router) handleDeleteUser(w http.ResponseWriter, req *http.Request) {
	username := req.PathValue("username")
	if claims := r.getAuthClaims(req); claims != nil && strings.EqualFold(claims.Username, username) {
		writeError(w, http.StatusForbidden, "cannot delete yourself")
		return
	}

	err := r.store.DeleteUser(req.Context(), username)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "user not found")
	case err != nil:
		writeError(w, http.StatusInternalServerError, "failed to delete user")
	default:
		writeJSON(w, http.StatusOK, map[string]string{"message": "user deleted"})
	}
}

// handleResetUserPassword sets a temporary password on an account
func (r *Router) handleResetUserPassword(w http.ResponseWriter, req *http.Request) {
	userID, err := parseID(req, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	var body ResetPasswordRequest
	if err := decodeBody(w, req, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if _, err := r.store.GetUserByID(req.Context(), userID); err != nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	hash, ok := newPasswordHash(w, body.NewPassword)
	if !ok {
		return
	}
	if err := r.store.ResetUserPassword(req.Context(), userID, hash); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to reset password")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "password reset"})
}

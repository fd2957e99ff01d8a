package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/aerocall/backend/internal/auth"
	"github.com/aerocall/backend/internal/storage"
	"github.com/aerocall/backend/internal/types"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// RequireAdmin rejects requests whose claims do not carry the admin role
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.GetUserFromContext(r.Context())
		if !ok || !auth.HasRole(claims, auth.RoleAdmin) {
			writeError(w, http.StatusForbidden, "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// AdminHandler manages team member provisioning: extensions and the caller
// IDs each member may dial from
type AdminHandler struct {
	store  storage.Store
	logger zerolog.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(store storage.Store, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		store:  store,
		logger: logger.With().Str("component", "admin_handler").Logger(),
	}
}

// GetUser handles GET /api/admin/users/{uid}
func (h *AdminHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")

	user, err := h.store.GetUser(r.Context(), uid)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		h.logger.Error().Err(err).Str("user_id", uid).Msg("failed to get user")
		writeError(w, http.StatusInternalServerError, "failed to retrieve user")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// PutUser handles PUT /api/admin/users/{uid}
func (h *AdminHandler) PutUser(w http.ResponseWriter, r *http.Request) {
	var user types.UserProfile
	if err := json.NewDecoder(r.Body).Decode(&user); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	user.UserID = chi.URLParam(r, "uid")

	if msg := validateProfile(&user); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	if err := h.store.PutUser(r.Context(), user); err != nil {
		h.logger.Error().Err(err).Str("user_id", user.UserID).Msg("failed to save user")
		writeError(w, http.StatusInternalServerError, "failed to save user")
		return
	}

	h.logger.Info().
		Str("user_id", user.UserID).
		Str("extension_id", user.ExtensionID).
		Int("caller_ids", len(user.AssignedPhoneNumbers)).
		Msg("user provisioned")

	writeJSON(w, http.StatusOK, user)
}

// validateProfile checks an admin-submitted profile and returns a message
// for the first problem found
func validateProfile(u *types.UserProfile) string {
	u.Email = strings.TrimSpace(u.Email)
	u.Name = strings.TrimSpace(u.Name)

	switch {
	case u.UserID == "":
		return "uid is required"
	case u.Email == "":
		return "email is required"
	case u.Name == "":
		return "name is required"
	case u.Role != types.RoleAdmin && u.Role != types.RoleAgent:
		return `role must be "Admin" or "Agent"`
	}

	for _, n := range u.AssignedPhoneNumbers {
		if !strings.HasPrefix(n, "+") || len(n) < 8 {
			return "assigned phone numbers must be in E.164 format"
		}
	}
	return ""
}

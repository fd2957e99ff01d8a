package api

import (
	"errors"
	"net/http"

	"github.com/aerocall/backend/internal/auth"
	"github.com/aerocall/backend/internal/storage"
	"github.com/aerocall/backend/internal/types"
	"github.com/rs/zerolog"
)

// UsersHandler serves the signed-in user's profile and team
type UsersHandler struct {
	store  storage.Store
	logger zerolog.Logger
}

// NewUsersHandler creates a new UsersHandler
func NewUsersHandler(store storage.Store, logger zerolog.Logger) *UsersHandler {
	return &UsersHandler{
		store:  store,
		logger: logger.With().Str("component", "users_handler").Logger(),
	}
}

// GetMe handles GET /api/me
func (h *UsersHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	user, ok := h.current(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// GetTeam handles GET /api/team and lists the members of the caller's team
func (h *UsersHandler) GetTeam(w http.ResponseWriter, r *http.Request) {
	user, ok := h.current(w, r)
	if !ok {
		return
	}

	if user.TeamID == "" {
		writeJSON(w, http.StatusOK, []types.UserProfile{*user})
		return
	}

	team, err := h.store.ListTeam(r.Context(), user.TeamID)
	if err != nil {
		h.logger.Error().Err(err).Str("team_id", user.TeamID).Msg("failed to list team")
		writeError(w, http.StatusInternalServerError, "failed to retrieve team")
		return
	}

	writeJSON(w, http.StatusOK, team)
}

func (h *UsersHandler) current(w http.ResponseWriter, r *http.Request) (*types.UserProfile, bool) {
	claims, ok := auth.GetUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized: Missing or invalid token")
		return nil, false
	}

	user, err := storage.Resolve(r.Context(), h.store, claims.Subject, claims.Email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "User not found in database")
			return nil, false
		}
		h.logger.Error().Err(err).Str("subject", claims.Subject).Msg("failed to resolve user")
		writeError(w, http.StatusInternalServerError, "failed to retrieve user")
		return nil, false
	}
	return user, true
}

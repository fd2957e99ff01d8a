package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aerocall/backend/internal/auth"
	"github.com/aerocall/backend/internal/dialer"
	"github.com/rs/zerolog"
)

// RingOuter places calls for the signed-in user
type RingOuter interface {
	RingOut(ctx context.Context, claims *auth.Claims, req dialer.Request) (*dialer.Result, error)
}

// DialerHandler serves the click-to-call endpoint
type DialerHandler struct {
	dialer RingOuter
	logger zerolog.Logger
}

// NewDialerHandler creates a new DialerHandler
func NewDialerHandler(d RingOuter, logger zerolog.Logger) *DialerHandler {
	return &DialerHandler{
		dialer: d,
		logger: logger.With().Str("component", "dialer_handler").Logger(),
	}
}

// RingOut handles POST /api/calls/ringout
func (h *DialerHandler) RingOut(w http.ResponseWriter, r *http.Request) {
	var req dialer.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	claims, _ := auth.GetUserFromContext(r.Context())

	res, err := h.dialer.RingOut(r.Context(), claims, req)
	if err != nil {
		var dErr *dialer.Error
		if errors.As(err, &dErr) {
			writeJSON(w, dErr.Status, errorBody{Error: dErr.Message, Details: dErr.Details})
			return
		}
		h.logger.Error().Err(err).Msg("unexpected dialer error")
		writeError(w, http.StatusInternalServerError, dialer.MsgInitiateFailed)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

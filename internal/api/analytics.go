package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/aerocall/backend/internal/analytics"
	"github.com/aerocall/backend/internal/types"
	"github.com/rs/zerolog"
)

// CallData is the call-log pipeline as seen by the HTTP layer
type CallData interface {
	Snapshot(ctx context.Context) (*types.AnalyticsSnapshot, error)
	RecentCalls(ctx context.Context) ([]types.CallView, error)
	Voicemails(ctx context.Context) ([]types.CallView, error)
}

// AnalyticsHandler serves the analytics snapshot and call lists. Every
// response is either {"data": ...} or {"error": "..."}.
type AnalyticsHandler struct {
	calls  CallData
	logger zerolog.Logger
}

// NewAnalyticsHandler creates a new AnalyticsHandler
func NewAnalyticsHandler(calls CallData, logger zerolog.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		calls:  calls,
		logger: logger.With().Str("component", "analytics_handler").Logger(),
	}
}

// GetAnalytics handles GET /api/analytics
func (h *AnalyticsHandler) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	snap, err := h.calls.Snapshot(r.Context())
	if err != nil {
		h.fail(w, err, analytics.MsgAnalyticsFailed)
		return
	}
	writeJSON(w, http.StatusOK, dataBody{Data: snap})
}

// GetRecentCalls handles GET /api/calls/recent
func (h *AnalyticsHandler) GetRecentCalls(w http.ResponseWriter, r *http.Request) {
	calls, err := h.calls.RecentCalls(r.Context())
	if err != nil {
		h.fail(w, err, analytics.MsgRecentFailed)
		return
	}
	writeJSON(w, http.StatusOK, dataBody{Data: calls})
}

// GetVoicemails handles GET /api/voicemails
func (h *AnalyticsHandler) GetVoicemails(w http.ResponseWriter, r *http.Request) {
	calls, err := h.calls.Voicemails(r.Context())
	if err != nil {
		h.fail(w, err, analytics.MsgVoicemailFailed)
		return
	}
	writeJSON(w, http.StatusOK, dataBody{Data: calls})
}

// fail writes the pipeline's user-facing message. Errors that did not come
// from the pipeline get the view's generic message.
func (h *AnalyticsHandler) fail(w http.ResponseWriter, err error, fallback string) {
	var aErr *analytics.Error
	if errors.As(err, &aErr) {
		writeError(w, aErr.Status, aErr.Message)
		return
	}
	h.logger.Error().Err(err).Msg("unexpected call data error")
	writeError(w, http.StatusBadGateway, fallback)
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aerocall/backend/internal/insights"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Insighter runs the AI flows
type Insighter interface {
	AnalyzeCallLogs(ctx context.Context, in insights.CallLogInput) (*insights.CallLogInsights, error)
	SummarizeCall(ctx context.Context, callID, recordingURL string) (*insights.CallSummary, error)
}

type summaryRequest struct {
	RecordingURL string `json:"recordingUrl"`
}

// InsightsHandler serves AI insights over call logs and recordings
type InsightsHandler struct {
	insights Insighter
	logger   zerolog.Logger
}

// NewInsightsHandler creates a new InsightsHandler
func NewInsightsHandler(i Insighter, logger zerolog.Logger) *InsightsHandler {
	return &InsightsHandler{
		insights: i,
		logger:   logger.With().Str("component", "insights_handler").Logger(),
	}
}

// AnalyzeCallLogs handles POST /api/insights/call-logs
func (h *InsightsHandler) AnalyzeCallLogs(w http.ResponseWriter, r *http.Request) {
	var in insights.CallLogInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	out, err := h.insights.AnalyzeCallLogs(r.Context(), in)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// SummarizeCall handles POST /api/calls/{callId}/summary
func (h *InsightsHandler) SummarizeCall(w http.ResponseWriter, r *http.Request) {
	var req summaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	out, err := h.insights.SummarizeCall(r.Context(), chi.URLParam(r, "callId"), req.RecordingURL)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *InsightsHandler) fail(w http.ResponseWriter, err error) {
	var iErr *insights.Error
	if errors.As(err, &iErr) {
		writeError(w, iErr.Status, iErr.Message)
		return
	}
	h.logger.Error().Err(err).Msg("unexpected insights error")
	writeError(w, http.StatusInternalServerError, "An unknown error occurred while generating insights.")
}

// Package insights produces AI summaries of call activity: trends across a
// call log and a transcript-based summary of a single recorded call.
package insights

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aerocall/backend/internal/metrics"
	"github.com/aerocall/backend/internal/provider"
	"github.com/rs/zerolog"
)

// User-facing failure messages
const (
	MsgNotConfigured       = "AI features are not configured on the server."
	MsgMissingCallLogs     = `Missing "callLogs" in request body`
	MsgMissingRecording    = `Missing "recordingUrl" in request body`
	MsgInvalidRecording    = "Recording URL is not served by the calling integration."
	MsgAnalyzeFailed       = "Failed to analyze call logs."
	MsgRecordingFailed     = "Failed to fetch the call recording."
	MsgRecordingsNotServed = "Recordings are not available from the calling integration."
	MsgTranscribeFailed    = "Failed to transcribe the audio."
	MsgSummaryFailed       = "Failed to analyze the transcript."
)

// Sentiments a call summary may carry
const (
	SentimentPositive = "Positive"
	SentimentNeutral  = "Neutral"
	SentimentNegative = "Negative"
)

// Prompt is one request to the language model
type Prompt struct {
	System      string
	Text        string
	Audio       *provider.Recording
	JSON        bool
	Temperature float32
}

// Model generates text. VertexModel is the production implementation.
type Model interface {
	Generate(ctx context.Context, p Prompt) (string, error)
}

// CallLogInput carries call logs and optional history as JSON documents
type CallLogInput struct {
	CallLogs       string `json:"callLogs"`
	HistoricalData string `json:"historicalData,omitempty"`
}

// CallLogInsights is the analysis of a call log
type CallLogInsights struct {
	Insights      string `json:"insights"`
	Reminders     string `json:"reminders,omitempty"`
	Notifications string `json:"notifications,omitempty"`
}

// CallSummary is the analysis of one recorded call
type CallSummary struct {
	Summary        string   `json:"summary"`
	ActionItems    []string `json:"actionItems"`
	Sentiment      string   `json:"sentiment"`
	FullTranscript string   `json:"fullTranscript"`
}

// Error is an insights failure with the message safe to show users
type Error struct {
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

const (
	kindCallLogs = "call_logs"
	kindSummary  = "call_summary"
)

const callLogsPrompt = `Analyze the following call logs:
%s

Here is some optional historical data about the user:
%s

Based on this information, generate actionable insights, tailored reminders, and high-priority notifications that will help the user optimize their operational flow. The output should be concise, clear, and directly applicable to the user's daily tasks.

Respond with a JSON object with string fields "insights", "reminders" and "notifications".`

const summaryPrompt = `Analyze the following call transcript and provide a concise summary, a list of action items, and the overall sentiment of the call.

Transcript:
%s

Respond with a JSON object: {"summary": string, "actionItems": [string], "sentiment": "Positive" | "Neutral" | "Negative"}.`

// Service runs the insight flows. A nil model means AI is not configured.
type Service struct {
	model      Model
	recordings provider.RecordingFetcher
	metrics    *metrics.Metrics
	logger     zerolog.Logger
}

// NewService creates a Service. model and recordings may be nil.
func NewService(model Model, recordings provider.RecordingFetcher, logger zerolog.Logger) *Service {
	return &Service{
		model:      model,
		recordings: recordings,
		metrics:    metrics.Get(),
		logger:     logger.With().Str("component", "insights").Logger(),
	}
}

// Enabled reports whether a model is configured
func (s *Service) Enabled() bool {
	return s.model != nil
}

// AnalyzeCallLogs derives trends, reminders and notifications from call logs
func (s *Service) AnalyzeCallLogs(ctx context.Context, in CallLogInput) (*CallLogInsights, error) {
	if s.model == nil {
		return nil, &Error{Status: http.StatusServiceUnavailable, Message: MsgNotConfigured}
	}
	if strings.TrimSpace(in.CallLogs) == "" {
		return nil, &Error{Status: http.StatusBadRequest, Message: MsgMissingCallLogs}
	}

	text, err := s.model.Generate(ctx, Prompt{
		System:      "You are an AI assistant designed to analyze call logs and historical data to identify trends in user behavior and provide tailored recommendations.",
		Text:        fmt.Sprintf(callLogsPrompt, in.CallLogs, in.HistoricalData),
		JSON:        true,
		Temperature: 0.4,
	})
	if err != nil {
		return nil, s.fail(kindCallLogs, MsgAnalyzeFailed, err)
	}

	var out CallLogInsights
	if err := decodeJSON(text, &out); err != nil || out.Insights == "" {
		if err == nil {
			err = errors.New("empty insights")
		}
		return nil, s.fail(kindCallLogs, MsgAnalyzeFailed, err)
	}

	s.metrics.RecordInsightRequest(kindCallLogs, true)
	return &out, nil
}

// SummarizeCall downloads the recording, transcribes it and summarizes the
// transcript
func (s *Service) SummarizeCall(ctx context.Context, callID, recordingURL string) (*CallSummary, error) {
	if s.model == nil {
		return nil, &Error{Status: http.StatusServiceUnavailable, Message: MsgNotConfigured}
	}
	if recordingURL == "" {
		return nil, &Error{Status: http.StatusBadRequest, Message: MsgMissingRecording}
	}
	if s.recordings == nil {
		s.metrics.RecordInsightRequest(kindSummary, false)
		return nil, &Error{Status: http.StatusNotImplemented, Message: MsgRecordingsNotServed, Err: provider.ErrRecordingsUnsupported}
	}

	rec, err := s.recordings.FetchRecording(ctx, recordingURL)
	if err != nil {
		s.metrics.RecordInsightRequest(kindSummary, false)
		s.logger.Error().Err(err).Str("call_id", callID).Msg("recording download failed")
		switch {
		case errors.Is(err, provider.ErrRecordingURLRejected):
			return nil, &Error{Status: http.StatusBadRequest, Message: MsgInvalidRecording, Err: err}
		case errors.Is(err, provider.ErrRecordingsUnsupported):
			return nil, &Error{Status: http.StatusNotImplemented, Message: MsgRecordingsNotServed, Err: err}
		case errors.Is(err, provider.ErrUpstreamUnavailable):
			return nil, &Error{Status: http.StatusServiceUnavailable, Message: MsgRecordingFailed, Err: err}
		}
		return nil, &Error{Status: http.StatusBadGateway, Message: MsgRecordingFailed, Err: err}
	}

	transcript, err := s.model.Generate(ctx, Prompt{
		Text:        "Transcribe this audio recording.",
		Audio:       rec,
		Temperature: 0,
	})
	if err == nil && strings.TrimSpace(transcript) == "" {
		err = errors.New("empty transcript")
	}
	if err != nil {
		return nil, s.fail(kindSummary, MsgTranscribeFailed, err)
	}

	text, err := s.model.Generate(ctx, Prompt{
		System:      "You are an expert call analyst.",
		Text:        fmt.Sprintf(summaryPrompt, transcript),
		JSON:        true,
		Temperature: 0.3,
	})
	if err != nil {
		return nil, s.fail(kindSummary, MsgSummaryFailed, err)
	}

	var out CallSummary
	if err := decodeJSON(text, &out); err != nil {
		return nil, s.fail(kindSummary, MsgSummaryFailed, err)
	}
	out.Sentiment = normalizeSentiment(out.Sentiment)
	if out.ActionItems == nil {
		out.ActionItems = []string{}
	}
	out.FullTranscript = strings.TrimSpace(transcript)

	s.metrics.RecordInsightRequest(kindSummary, true)
	s.logger.Info().
		Str("call_id", callID).
		Int("bytes", len(rec.Data)).
		Str("sentiment", out.Sentiment).
		Msg("call summarized")
	return &out, nil
}

func (s *Service) fail(kind, msg string, err error) error {
	s.metrics.RecordInsightRequest(kind, false)
	s.logger.Error().Err(err).Str("kind", kind).Msg(msg)
	return &Error{Status: http.StatusBadGateway, Message: msg, Err: err}
}

// decodeJSON accepts a bare object or one wrapped in a markdown code fence
func decodeJSON(text string, v any) error {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}
	if err := json.Unmarshal([]byte(text), v); err != nil {
		return fmt.Errorf("failed to decode model output: %w", err)
	}
	return nil
}

func normalizeSentiment(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "positive":
		return SentimentPositive
	case "negative":
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

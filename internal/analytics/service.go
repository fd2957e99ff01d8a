// Package analytics runs the call-log pipeline: fetch from the provider,
// normalize, then aggregate or render for display.
package analytics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/aerocall/backend/internal/aggregator"
	"github.com/aerocall/backend/internal/calllog"
	"github.com/aerocall/backend/internal/metrics"
	"github.com/aerocall/backend/internal/provider"
	"github.com/aerocall/backend/internal/types"
	"github.com/rs/zerolog"
)

// Views label fetches in logs and metrics.
const (
	ViewAnalytics = "analytics"
	ViewRecent    = "recent"
	ViewVoicemail = "voicemail"
)

// User-facing failure messages.
const (
	MsgUnavailable     = "Calling integration is not configured on the server."
	MsgAnalyticsFailed = "Failed to fetch analytics data."
	MsgRecentFailed    = "Failed to fetch recent calls."
	MsgVoicemailFailed = "Failed to fetch voicemails."
)

// Defaults used when Options fields are zero.
const (
	DefaultWindow      = 30 * 24 * time.Hour
	DefaultMaxRecords  = 1000
	DefaultRecentLimit = 25
)

const maxPerPage = 1000

// Options tunes the pipeline.
type Options struct {
	Window      time.Duration
	MaxRecords  int
	RecentLimit int
	Timeout     time.Duration
	Location    *time.Location
}

func (o Options) withDefaults() Options {
	if o.Window <= 0 {
		o.Window = DefaultWindow
	}
	if o.MaxRecords <= 0 {
		o.MaxRecords = DefaultMaxRecords
	}
	if o.RecentLimit <= 0 {
		o.RecentLimit = DefaultRecentLimit
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
	return o
}

// Error is a pipeline failure carrying the message safe to show users and
// the HTTP status it maps to.
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

// Service is safe for concurrent use; each call does one fetch.
type Service struct {
	source     provider.CallLogSource
	aggregator *aggregator.Aggregator
	opts       Options
	metrics    *metrics.Metrics
	logger     zerolog.Logger
	now        func() time.Time
}

// NewService creates the pipeline over source. m may be nil.
func NewService(source provider.CallLogSource, opts Options, m *metrics.Metrics, logger zerolog.Logger) *Service {
	opts = opts.withDefaults()
	if m == nil {
		m = metrics.Get()
	}
	return &Service{
		source:     source,
		aggregator: aggregator.NewAggregator(opts.Location),
		opts:       opts,
		metrics:    m,
		logger:     logger.With().Str("component", "analytics").Logger(),
		now:        time.Now,
	}
}

// Snapshot aggregates the trailing window of call records.
func (s *Service) Snapshot(ctx context.Context) (*types.AnalyticsSnapshot, error) {
	to := s.now()
	from := to.Add(-s.opts.Window)

	calls, err := s.fetch(ctx, ViewAnalytics, provider.CallLogQuery{
		From:       from,
		To:         to,
		MaxRecords: s.opts.MaxRecords,
		PerPage:    min(s.opts.MaxRecords, maxPerPage),
	})
	if err != nil {
		return nil, s.mapError(ViewAnalytics, MsgAnalyticsFailed, err)
	}

	snap := s.aggregator.Aggregate(calls, from, to)
	return &snap, nil
}

// RecentCalls renders the latest calls for the call-log list.
func (s *Service) RecentCalls(ctx context.Context) ([]types.CallView, error) {
	return s.list(ctx, ViewRecent, "", MsgRecentFailed)
}

// Voicemails renders the latest voicemails.
func (s *Service) Voicemails(ctx context.Context) ([]types.CallView, error) {
	return s.list(ctx, ViewVoicemail, provider.CallLogTypeVoicemail, MsgVoicemailFailed)
}

func (s *Service) list(ctx context.Context, view, callType, failMsg string) ([]types.CallView, error) {
	calls, err := s.fetch(ctx, view, provider.CallLogQuery{
		Type:       callType,
		MaxRecords: s.opts.RecentLimit,
		PerPage:    s.opts.RecentLimit,
	})
	if err != nil {
		return nil, s.mapError(view, failMsg, err)
	}

	now := s.now()
	views := make([]types.CallView, 0, len(calls))
	for _, call := range calls {
		views = append(views, calllog.View(call, now))
	}
	return views, nil
}

func (s *Service) fetch(ctx context.Context, view string, q provider.CallLogQuery) ([]types.NormalizedCall, error) {
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	records, err := s.source.FetchCallLog(ctx, q)
	if err != nil {
		return nil, err
	}

	malformed := 0
	for _, rec := range records {
		if calllog.IsMalformed(rec) {
			malformed++
			s.logger.Debug().Str("view", view).Str("record_id", rec.ID).Msg("Malformed call record")
		}
	}

	duration := time.Since(start)
	s.metrics.RecordFetch(view, len(records), malformed, duration)

	s.logger.Debug().
		Str("view", view).
		Int("records", len(records)).
		Int("malformed", malformed).
		Dur("duration", duration).
		Msg("Call log fetched")

	return calllog.NormalizeAll(records), nil
}

func (s *Service) mapError(view, failMsg string, err error) error {
	if errors.Is(err, provider.ErrUpstreamUnavailable) {
		s.metrics.RecordFetchError(view, "unavailable")
		s.logger.Warn().Str("view", view).Msg("Calling credentials are not configured")
		return &Error{Status: http.StatusServiceUnavailable, Message: MsgUnavailable, Err: err}
	}

	reason := "upstream"
	if errors.Is(err, context.DeadlineExceeded) {
		reason = "timeout"
	}
	s.metrics.RecordFetchError(view, reason)
	s.logger.Error().Err(err).Str("view", view).Str("reason", reason).Msg("Call log fetch failed")
	return &Error{Status: http.StatusBadGateway, Message: failMsg, Err: err}
}

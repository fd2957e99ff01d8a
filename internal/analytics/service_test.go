package analytics

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/aerocall/backend/internal/metrics"
	"github.com/aerocall/backend/internal/provider"
	"github.com/aerocall/backend/internal/types"
	"github.com/rs/zerolog"
)

type fakeSource struct {
	records []types.RawCallRecord
	err     error
	queries []provider.CallLogQuery
}

func (f *fakeSource) FetchCallLog(_ context.Context, q provider.CallLogQuery) ([]types.RawCallRecord, error) {
	f.queries = append(f.queries, q)
	return f.records, f.err
}

var testNow = time.Date(2025, 3, 14, 17, 0, 0, 0, time.UTC)

func newTestService(src provider.CallLogSource, m *metrics.Metrics) *Service {
	s := NewService(src, Options{}, m, zerolog.Nop())
	s.now = func() time.Time { return testNow }
	return s
}

func fiveRecords() []types.RawCallRecord {
	jane := &types.ExtensionInfo{ID: "101", Name: "Jane Doe"}
	return []types.RawCallRecord{
		{ID: "1", Direction: "Inbound", Result: "Missed", StartTime: "2025-03-14T09:00:00Z", Extension: jane},
		{ID: "2", Direction: "Inbound", Result: "Call connected", Duration: 330, StartTime: "2025-03-14T10:00:00Z", Extension: jane},
		{ID: "3", Direction: "Outbound", Result: "Call connected", Duration: 120, StartTime: "2025-03-14T11:00:00Z", Extension: jane},
		{ID: "4", Direction: "Inbound", Result: "Voicemail", Type: "VoiceMail", Duration: 40, StartTime: "2025-03-14T12:00:00Z", Extension: jane},
		{ID: "5", Direction: "Outbound", Result: "Missed", StartTime: "2025-03-14T13:00:00Z"},
	}
}

func TestSnapshot(t *testing.T) {
	src := &fakeSource{records: fiveRecords()}
	s := newTestService(src, metrics.New())

	snap, err := s.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := types.CallStats{TotalCalls: 5, MissedCalls: 2, AvgTalkTime: "3m 45s", AnswerRate: "67%"}
	if snap.Stats != want {
		t.Errorf("expected %+v, got %+v", want, snap.Stats)
	}
	if len(snap.CallVolume) != 1 || snap.CallVolume[0] != (types.CallVolumePoint{Date: "Mar 14", Calls: 5}) {
		t.Errorf("unexpected callVolume %+v", snap.CallVolume)
	}
	if len(snap.UserPerformance) != 1 || snap.UserPerformance[0] != (types.UserPerformance{Name: "Jane", Calls: 4}) {
		t.Errorf("unexpected userPerformance %+v", snap.UserPerformance)
	}
}

func TestSnapshotQueryWindow(t *testing.T) {
	src := &fakeSource{}
	s := newTestService(src, metrics.New())

	snap, err := s.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(src.queries) != 1 {
		t.Fatalf("expected exactly one fetch, got %d", len(src.queries))
	}
	q := src.queries[0]
	if !q.To.Equal(testNow) || !q.From.Equal(testNow.Add(-DefaultWindow)) {
		t.Errorf("unexpected window %s - %s", q.From, q.To)
	}
	if q.MaxRecords != DefaultMaxRecords || q.PerPage != DefaultMaxRecords {
		t.Errorf("unexpected paging %+v", q)
	}
	if !snap.Window.From.Equal(q.From) || !snap.Window.To.Equal(q.To) {
		t.Errorf("snapshot window %+v does not match query", snap.Window)
	}
	if snap.Stats.AvgTalkTime != "0m 0s" || snap.Stats.AnswerRate != "0%" {
		t.Errorf("unexpected empty stats %+v", snap.Stats)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		call       func(*Service) error
		wantStatus int
		wantMsg    string
		view       string
		reason     string
	}{
		{
			name:       "analytics unavailable",
			err:        provider.ErrUpstreamUnavailable,
			call:       func(s *Service) error { _, err := s.Snapshot(context.Background()); return err },
			wantStatus: http.StatusServiceUnavailable,
			wantMsg:    MsgUnavailable,
			view:       ViewAnalytics,
			reason:     "unavailable",
		},
		{
			name:       "analytics upstream",
			err:        &provider.UpstreamError{Provider: "ringcentral", Op: "fetch call log", StatusCode: 500},
			call:       func(s *Service) error { _, err := s.Snapshot(context.Background()); return err },
			wantStatus: http.StatusBadGateway,
			wantMsg:    MsgAnalyticsFailed,
			view:       ViewAnalytics,
			reason:     "upstream",
		},
		{
			name:       "recent upstream",
			err:        &provider.UpstreamError{Provider: "ringcentral", Op: "fetch call log", StatusCode: 429},
			call:       func(s *Service) error { _, err := s.RecentCalls(context.Background()); return err },
			wantStatus: http.StatusBadGateway,
			wantMsg:    MsgRecentFailed,
			view:       ViewRecent,
			reason:     "upstream",
		},
		{
			name:       "voicemail unavailable",
			err:        provider.ErrUpstreamUnavailable,
			call:       func(s *Service) error { _, err := s.Voicemails(context.Background()); return err },
			wantStatus: http.StatusServiceUnavailable,
			wantMsg:    MsgUnavailable,
			view:       ViewVoicemail,
			reason:     "unavailable",
		},
		{
			name:       "timeout",
			err:        context.DeadlineExceeded,
			call:       func(s *Service) error { _, err := s.Voicemails(context.Background()); return err },
			wantStatus: http.StatusBadGateway,
			wantMsg:    MsgVoicemailFailed,
			view:       ViewVoicemail,
			reason:     "timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := metrics.New()
			s := newTestService(&fakeSource{err: tt.err}, m)

			err := tt.call(s)

			var aErr *Error
			if !errors.As(err, &aErr) {
				t.Fatalf("expected *Error, got %v", err)
			}
			if aErr.Status != tt.wantStatus || aErr.Message != tt.wantMsg {
				t.Errorf("expected %d %q, got %d %q", tt.wantStatus, tt.wantMsg, aErr.Status, aErr.Message)
			}
			if !errors.Is(err, tt.err) {
				t.Error("expected the provider error to stay reachable")
			}
			if got := m.FetchErrors(tt.view, tt.reason); got != 1 {
				t.Errorf("expected one %s/%s error recorded, got %d", tt.view, tt.reason, got)
			}
		})
	}
}

func TestRecentCalls(t *testing.T) {
	src := &fakeSource{records: []types.RawCallRecord{{
		ID:        "abc",
		Direction: "Inbound",
		Result:    "Call connected",
		Duration:  332,
		StartTime: "2025-03-14T15:00:00Z",
		From:      &types.PartyInfo{PhoneNumber: "+14155550101", Name: "Acme Corp"},
		To:        &types.PartyInfo{PhoneNumber: "+16505550100"},
		Extension: &types.ExtensionInfo{ID: "101", Name: "Jane Doe"},
		Recording: &types.RecordingInfo{ID: "9", ContentURI: "https://media.example.com/9/content"},
	}}}
	s := newTestService(src, metrics.New())

	views, err := s.RecentCalls(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(views) != 1 {
		t.Fatalf("expected 1 view, got %d", len(views))
	}
	v := views[0]
	if v.Duration != "05:32" || v.Timestamp != "2 hours ago" {
		t.Errorf("unexpected rendering %q %q", v.Duration, v.Timestamp)
	}
	if v.Contact.ID != "+16505550100" || v.Contact.Name != "Acme Corp" {
		t.Errorf("unexpected contact %+v", v.Contact)
	}
	if v.RecordingURL != "https://media.example.com/9/content" {
		t.Errorf("unexpected recording URL %q", v.RecordingURL)
	}

	q := src.queries[0]
	if q.MaxRecords != DefaultRecentLimit || q.Type != "" || !q.From.IsZero() {
		t.Errorf("unexpected query %+v", q)
	}
}

func TestVoicemailsQueryType(t *testing.T) {
	src := &fakeSource{}
	s := newTestService(src, metrics.New())

	views, err := s.Voicemails(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if views == nil || len(views) != 0 {
		t.Errorf("expected an empty non-nil list, got %#v", views)
	}
	if src.queries[0].Type != provider.CallLogTypeVoicemail {
		t.Errorf("expected voicemail query, got %+v", src.queries[0])
	}
}

func TestMalformedRecordsCounted(t *testing.T) {
	m := metrics.New()
	src := &fakeSource{records: []types.RawCallRecord{
		{ID: "1", Direction: "Inbound", StartTime: "2025-03-14T09:00:00Z"},
		{ID: "", Direction: "sideways", Duration: -5, StartTime: "yesterday"},
	}}
	s := newTestService(src, m)

	snap, err := s.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("malformed records must not fail the snapshot: %v", err)
	}
	if snap.Stats.TotalCalls != 2 {
		t.Errorf("expected both records counted, got %d", snap.Stats.TotalCalls)
	}
	if got := m.MalformedRecords(); got != 1 {
		t.Errorf("expected 1 malformed record, got %d", got)
	}
}

package twilio

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/aerocall/backend/internal/calllog"
	"github.com/aerocall/backend/internal/provider"
	"github.com/aerocall/backend/internal/types"
	"github.com/rs/zerolog"
	twclient "github.com/twilio/twilio-go/client"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

type fakeCallAPI struct {
	calls      []twilioApi.ApiV2010Call
	err        error
	listParams *twilioApi.ListCallParams
	created    *twilioApi.CreateCallParams
}

// ListCall returns the newest calls first and honours Limit like the real client
func (f *fakeCallAPI) ListCall(params *twilioApi.ListCallParams) ([]twilioApi.ApiV2010Call, error) {
	f.listParams = params
	if f.err != nil {
		return nil, f.err
	}
	calls := f.calls
	if params.Limit != nil && *params.Limit < len(calls) {
		calls = calls[:*params.Limit]
	}
	return calls, nil
}

func (f *fakeCallAPI) CreateCall(params *twilioApi.CreateCallParams) (*twilioApi.ApiV2010Call, error) {
	f.created = params
	if f.err != nil {
		return nil, f.err
	}
	return &twilioApi.ApiV2010Call{Sid: sp("CA123"), Status: sp("queued")}, nil
}

func sp(s string) *string { return &s }

func newFakeClient(api callAPI) *Client {
	return &Client{cfg: Config{PhoneNumber: "+16505550100"}, api: api, logger: zerolog.Nop()}
}

func TestUnconfigured(t *testing.T) {
	c := NewClient(Config{}, zerolog.Nop())

	if _, err := c.FetchCallLog(context.Background(), provider.CallLogQuery{}); !errors.Is(err, provider.ErrUpstreamUnavailable) {
		t.Errorf("expected ErrUpstreamUnavailable, got %v", err)
	}
	if _, err := c.RingOut(context.Background(), provider.RingOutRequest{To: "+1"}); !errors.Is(err, provider.ErrUpstreamUnavailable) {
		t.Errorf("expected ErrUpstreamUnavailable, got %v", err)
	}
}

func TestToRecord(t *testing.T) {
	tests := []struct {
		name       string
		call       twilioApi.ApiV2010Call
		wantStatus types.CallStatus
		wantDir    types.CallDirection
		wantDur    int
	}{
		{
			name:       "completed inbound",
			call:       twilioApi.ApiV2010Call{Sid: sp("CA1"), Direction: sp("inbound"), Status: sp("completed"), Duration: sp("125")},
			wantStatus: types.CallStatusAnswered,
			wantDir:    types.DirectionInbound,
			wantDur:    125,
		},
		{
			name:       "unanswered inbound is missed",
			call:       twilioApi.ApiV2010Call{Sid: sp("CA2"), Direction: sp("inbound"), Status: sp("no-answer"), Duration: sp("0")},
			wantStatus: types.CallStatusMissed,
			wantDir:    types.DirectionInbound,
		},
		{
			name:       "unanswered outbound is not missed",
			call:       twilioApi.ApiV2010Call{Sid: sp("CA3"), Direction: sp("outbound-api"), Status: sp("busy")},
			wantStatus: types.CallStatusAnswered,
			wantDir:    types.DirectionOutbound,
		},
		{
			name:       "answering machine is voicemail",
			call:       twilioApi.ApiV2010Call{Sid: sp("CA4"), Direction: sp("outbound-dial"), Status: sp("completed"), AnsweredBy: sp("machine_end_beep"), Duration: sp("30")},
			wantStatus: types.CallStatusVoicemail,
			wantDir:    types.DirectionOutbound,
			wantDur:    30,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			call := calllog.Normalize(toRecord(tt.call))
			if call.Status != tt.wantStatus {
				t.Errorf("expected status %s, got %s", tt.wantStatus, call.Status)
			}
			if call.Direction != tt.wantDir {
				t.Errorf("expected direction %s, got %s", tt.wantDir, call.Direction)
			}
			if call.DurationSeconds != tt.wantDur {
				t.Errorf("expected duration %d, got %d", tt.wantDur, call.DurationSeconds)
			}
		})
	}
}

func TestToRecordParties(t *testing.T) {
	rec := toRecord(twilioApi.ApiV2010Call{
		Sid:        sp("CA9"),
		Direction:  sp("inbound"),
		Status:     sp("completed"),
		From:       sp("+14155550101"),
		To:         sp("+16505550100"),
		CallerName: sp("ACME CORP"),
		StartTime:  sp("Fri, 14 Mar 2025 09:30:00 +0000"),
	})

	if rec.StartTime != "2025-03-14T09:30:00Z" {
		t.Errorf("unexpected start time %q", rec.StartTime)
	}
	if rec.From.PhoneNumber != "+14155550101" || rec.From.Name != "ACME CORP" {
		t.Errorf("unexpected from %+v", rec.From)
	}
	if rec.To.PhoneNumber != "+16505550100" {
		t.Errorf("unexpected to %+v", rec.To)
	}
	if rec.Extension != nil {
		t.Error("twilio records carry no extension")
	}
}

func TestStartTimeFallsBackToDateCreated(t *testing.T) {
	got := startTime(twilioApi.ApiV2010Call{DateCreated: sp("Fri, 14 Mar 2025 09:30:00 +0000")})
	if got != "2025-03-14T09:30:00Z" {
		t.Errorf("unexpected start time %q", got)
	}
	if got := startTime(twilioApi.ApiV2010Call{StartTime: sp("not a date")}); got != "" {
		t.Errorf("expected empty start time, got %q", got)
	}
}

func TestTitleStatus(t *testing.T) {
	tests := map[string]string{
		"no-answer": "No Answer",
		"busy":      "Busy",
		"canceled":  "Canceled",
	}
	for in, want := range tests {
		if got := titleStatus(in); got != want {
			t.Errorf("titleStatus(%q) = %q, want %q", in, got, want)
		}
	}
}

func answeredCalls(n int) []twilioApi.ApiV2010Call {
	calls := make([]twilioApi.ApiV2010Call, 0, n)
	for i := 0; i < n; i++ {
		calls = append(calls, twilioApi.ApiV2010Call{Sid: sp(fmt.Sprintf("CA-ans-%d", i)), Direction: sp("inbound"), Status: sp("completed")})
	}
	return calls
}

func machineCalls(n int) []twilioApi.ApiV2010Call {
	calls := make([]twilioApi.ApiV2010Call, 0, n)
	for i := 0; i < n; i++ {
		calls = append(calls, twilioApi.ApiV2010Call{Sid: sp(fmt.Sprintf("CA-vm-%d", i)), Direction: sp("outbound-api"), Status: sp("completed"), AnsweredBy: sp("machine_start")})
	}
	return calls
}

func TestFetchCallLogFiltersVoicemail(t *testing.T) {
	tests := []struct {
		name       string
		calls      []twilioApi.ApiV2010Call
		maxRecords int
		wantIDs    []string
	}{
		{
			name:       "voicemails older than the newest calls",
			calls:      append(answeredCalls(30), machineCalls(10)...),
			maxRecords: 25,
			wantIDs:    []string{"CA-vm-0", "CA-vm-1", "CA-vm-2", "CA-vm-3", "CA-vm-4", "CA-vm-5", "CA-vm-6", "CA-vm-7", "CA-vm-8", "CA-vm-9"},
		},
		{
			name:       "cap applies to matches",
			calls:      append(answeredCalls(5), machineCalls(10)...),
			maxRecords: 3,
			wantIDs:    []string{"CA-vm-0", "CA-vm-1", "CA-vm-2"},
		},
		{
			name:       "no voicemails",
			calls:      answeredCalls(8),
			maxRecords: 25,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeCallAPI{calls: tt.calls}
			c := newFakeClient(api)

			records, err := c.FetchCallLog(context.Background(), provider.CallLogQuery{
				Type:       provider.CallLogTypeVoicemail,
				MaxRecords: tt.maxRecords,
				PerPage:    tt.maxRecords,
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			var ids []string
			for _, rec := range records {
				ids = append(ids, rec.ID)
			}
			if strings.Join(ids, ",") != strings.Join(tt.wantIDs, ",") {
				t.Errorf("expected %v, got %v", tt.wantIDs, ids)
			}
			if api.listParams.Limit == nil || *api.listParams.Limit != maxTypedScan {
				t.Errorf("expected typed scan limit %d, got %v", maxTypedScan, api.listParams.Limit)
			}
		})
	}
}

func TestFetchCallLogUntypedKeepsLimit(t *testing.T) {
	api := &fakeCallAPI{calls: append(answeredCalls(30), machineCalls(10)...)}
	c := newFakeClient(api)

	records, err := c.FetchCallLog(context.Background(), provider.CallLogQuery{
		From:       time.Now().Add(-time.Hour),
		MaxRecords: 25,
		PerPage:    25,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 25 {
		t.Errorf("expected 25 records, got %d", len(records))
	}
	if api.listParams.Limit == nil || *api.listParams.Limit != 25 {
		t.Error("expected the record cap to be passed as the list limit")
	}
	if api.listParams.PageSize == nil || *api.listParams.PageSize != 25 {
		t.Errorf("expected page size 25, got %v", api.listParams.PageSize)
	}
	if api.listParams.StartTimeAfter == nil {
		t.Error("expected the window start to be sent")
	}
}

func TestFetchCallLogCanceled(t *testing.T) {
	api := &fakeCallAPI{calls: answeredCalls(3)}
	c := newFakeClient(api)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.FetchCallLog(ctx, provider.CallLogQuery{}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if api.listParams != nil {
		t.Error("expected no Twilio request after cancellation")
	}
}

func TestNewHTTPClientTimeout(t *testing.T) {
	hc := newHTTPClient(Config{AccountSID: "AC123", AuthToken: "token", Timeout: 7 * time.Second})

	if hc.HTTPClient == nil || hc.HTTPClient.Timeout != 7*time.Second {
		t.Errorf("expected 7s HTTP timeout, got %+v", hc.HTTPClient)
	}
	if hc.AccountSid() != "AC123" {
		t.Errorf("expected account SID AC123, got %s", hc.AccountSid())
	}
	if hc.Credentials == nil || hc.Credentials.Username != "AC123" {
		t.Error("expected basic auth credentials for the account")
	}
}

func TestFetchCallLogRestError(t *testing.T) {
	api := &fakeCallAPI{err: &twclient.TwilioRestError{Status: 401, Code: 20003, Message: "Authenticate"}}
	c := newFakeClient(api)

	_, err := c.FetchCallLog(context.Background(), provider.CallLogQuery{})

	var upErr *provider.UpstreamError
	if !errors.As(err, &upErr) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if upErr.StatusCode != 401 || upErr.Message != "Authenticate" || upErr.Provider != Name {
		t.Errorf("unexpected error %+v", upErr)
	}
}

func TestRingOut(t *testing.T) {
	api := &fakeCallAPI{}
	c := newFakeClient(api)

	result, err := c.RingOut(context.Background(), provider.RingOutRequest{To: "+14155550101"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ID != "CA123" || result.CallStatus != "queued" || result.Provider != Name {
		t.Errorf("unexpected result %+v", result)
	}
	if api.created == nil || *api.created.From != "+16505550100" || *api.created.To != "+14155550101" {
		t.Errorf("unexpected create params %+v", api.created)
	}
}

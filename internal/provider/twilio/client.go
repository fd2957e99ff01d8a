// Package twilio implements the provider contracts on top of the Twilio
// Voice API.
package twilio

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aerocall/backend/internal/provider"
	"github.com/aerocall/backend/internal/types"
	"github.com/rs/zerolog"
	"github.com/twilio/twilio-go"
	twclient "github.com/twilio/twilio-go/client"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// Name identifies this provider in errors and logs.
const Name = "twilio"

const (
	defaultPageSize = 100
	maxPageSize     = 1000
	maxTypedScan    = 5000
	connectTwiML    = "<Response><Say>Please hold while we connect your call.</Say></Response>"
)

// Config holds Twilio account credentials. Timeout bounds every HTTP
// request made to the Twilio API.
type Config struct {
	AccountSID  string
	AuthToken   string
	PhoneNumber string
	Timeout     time.Duration
}

// Configured reports whether account credentials are present.
func (c Config) Configured() bool {
	return c.AccountSID != "" && c.AuthToken != ""
}

// callAPI is the subset of the Twilio REST client this package uses.
type callAPI interface {
	ListCall(params *twilioApi.ListCallParams) ([]twilioApi.ApiV2010Call, error)
	CreateCall(params *twilioApi.CreateCallParams) (*twilioApi.ApiV2010Call, error)
}

// Client reads Twilio call history and places calls.
type Client struct {
	cfg    Config
	api    callAPI
	logger zerolog.Logger
}

// NewClient creates a Twilio client. With missing credentials every call
// returns provider.ErrUpstreamUnavailable.
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	c := &Client{
		cfg:    cfg,
		logger: logger.With().Str("component", "twilio").Logger(),
	}
	if cfg.Configured() {
		rest := twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: cfg.AccountSID,
			Password: cfg.AuthToken,
			Client:   newHTTPClient(cfg),
		})
		c.api = rest.Api
	}
	return c
}

// newHTTPClient builds the transport client for the REST API. twilio-go
// takes no context, so the HTTP timeout is what bounds a request.
func newHTTPClient(cfg Config) *twclient.Client {
	hc := &twclient.Client{
		Credentials: twclient.NewCredentials(cfg.AccountSID, cfg.AuthToken),
		HTTPClient:  &http.Client{Timeout: cfg.Timeout},
	}
	hc.SetAccountSid(cfg.AccountSID)
	return hc
}

func (c *Client) Name() string { return Name }

// FetchCallLog lists calls started inside the query window and maps them to
// the call-log record shape.
func (c *Client) FetchCallLog(ctx context.Context, q provider.CallLogQuery) ([]types.RawCallRecord, error) {
	if c.api == nil {
		return nil, provider.ErrUpstreamUnavailable
	}

	pageSize := q.PerPage
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize || q.Type != "" {
		pageSize = maxPageSize
	}

	params := &twilioApi.ListCallParams{}
	params.SetPageSize(pageSize)
	if limit := listLimit(q); limit > 0 {
		params.SetLimit(limit)
	}
	if !q.From.IsZero() {
		params.SetStartTimeAfter(q.From)
	}
	if !q.To.IsZero() {
		params.SetStartTimeBefore(q.To)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	calls, err := c.api.ListCall(params)
	if err != nil {
		return nil, c.upstreamError("list calls", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	records := make([]types.RawCallRecord, 0, len(calls))
	for _, call := range calls {
		rec := toRecord(call)
		if q.Type != "" && rec.Type != q.Type {
			continue
		}
		records = append(records, rec)
		if q.MaxRecords > 0 && len(records) >= q.MaxRecords {
			break
		}
	}

	c.logger.Debug().
		Int("calls", len(calls)).
		Int("records", len(records)).
		Msg("Fetched call log")

	return records, nil
}

// RingOut dials req.To presenting req.From, which must be a Twilio number on
// the account. An empty From falls back to the configured number.
func (c *Client) RingOut(ctx context.Context, req provider.RingOutRequest) (*provider.RingOutResult, error) {
	if c.api == nil {
		return nil, provider.ErrUpstreamUnavailable
	}

	from := req.From
	if from == "" {
		from = c.cfg.PhoneNumber
	}

	params := &twilioApi.CreateCallParams{}
	params.SetTo(req.To)
	params.SetFrom(from)
	params.SetTwiml(connectTwiML)
	params.SetRecord(true)

	call, err := c.api.CreateCall(params)
	if err != nil {
		return nil, c.upstreamError("create call", err)
	}

	result := &provider.RingOutResult{
		ID:         str(call.Sid),
		CallStatus: str(call.Status),
		Provider:   Name,
	}

	c.logger.Info().
		Str("call_sid", result.ID).
		Str("call_status", result.CallStatus).
		Msg("Call created")

	return result, nil
}

// listLimit is the number of calls to request from Twilio. Twilio cannot
// filter by call type, so a typed query scans up to maxTypedScan calls and
// the record cap is applied after the local filter.
func listLimit(q provider.CallLogQuery) int {
	if q.Type != "" {
		return maxTypedScan
	}
	return q.MaxRecords
}

func (c *Client) upstreamError(op string, err error) error {
	upErr := &provider.UpstreamError{Provider: Name, Op: op, Err: err}

	var restErr *twclient.TwilioRestError
	if errors.As(err, &restErr) {
		upErr.StatusCode = restErr.Status
		upErr.Message = restErr.Message
	}

	c.logger.Warn().
		Err(err).
		Str("op", op).
		Int("status", upErr.StatusCode).
		Msg("Twilio request failed")

	return upErr
}

// toRecord maps a Twilio call resource onto the call-log shape. Unanswered
// inbound calls become "Missed"; calls picked up by an answering machine are
// treated as voicemail.
func toRecord(call twilioApi.ApiV2010Call) types.RawCallRecord {
	status := str(call.Status)
	inbound := strings.HasPrefix(str(call.Direction), "inbound")

	rec := types.RawCallRecord{
		ID:        str(call.Sid),
		Direction: "Outbound",
		Result:    resultFor(status, inbound),
		Type:      "Voice",
		StartTime: startTime(call),
		From:      &types.PartyInfo{PhoneNumber: str(call.From)},
		To:        &types.PartyInfo{PhoneNumber: str(call.To)},
	}
	if inbound {
		rec.Direction = "Inbound"
		rec.From.Name = str(call.CallerName)
	}
	if strings.HasPrefix(str(call.AnsweredBy), "machine") {
		rec.Type = types.RawTypeVoicemail
	}
	if d, err := strconv.Atoi(str(call.Duration)); err == nil && d > 0 {
		rec.Duration = d
	}

	return rec
}

func resultFor(status string, inbound bool) string {
	switch status {
	case "completed", "in-progress":
		return "Call connected"
	case "no-answer", "busy", "canceled", "failed":
		if inbound {
			return types.RawResultMissed
		}
		return titleStatus(status)
	case "":
		return "Unknown"
	default:
		return titleStatus(status)
	}
}

// titleStatus turns "no-answer" into "No Answer".
func titleStatus(status string) string {
	parts := strings.Split(status, "-")
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, " ")
}

// startTime converts Twilio's RFC 1123 timestamps to RFC 3339, falling back
// to the creation time for calls that never started.
func startTime(call twilioApi.ApiV2010Call) string {
	for _, v := range []*string{call.StartTime, call.DateCreated} {
		if v == nil || *v == "" {
			continue
		}
		if t, err := time.Parse(time.RFC1123Z, *v); err == nil {
			return t.UTC().Format(time.RFC3339)
		}
	}
	return ""
}

func str[T ~string](p *T) string {
	if p == nil {
		return ""
	}
	return string(*p)
}

var _ provider.Provider = (*Client)(nil)

// Package ringcentral implements the provider contracts against the
// RingCentral REST API.
package ringcentral

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aerocall/backend/internal/provider"
	"github.com/aerocall/backend/internal/types"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

const (
	// Name identifies this provider in errors and logs.
	Name = "ringcentral"

	callLogPath = "/restapi/v1.0/account/~/extension/~/call-log"
	ringOutPath = "/restapi/v1.0/account/~/extension/~/ring-out"

	maxPerPage       = 1000
	defaultPerPage   = 100
	maxErrorBody     = 64 << 10
	maxRecordingSize = 50 << 20
)

var (
	_ provider.Provider         = (*Client)(nil)
	_ provider.RecordingFetcher = (*Client)(nil)
)

// Client talks to one RingCentral account through a lazily created session.
type Client struct {
	cfg     Config
	session *sessionManager
	logger  zerolog.Logger
}

// NewClient creates a client. No network traffic happens until the first
// request. base may be nil.
func NewClient(cfg Config, base *http.Client, logger zerolog.Logger) *Client {
	return &Client{
		cfg:     cfg,
		session: newSessionManager(cfg, base),
		logger:  logger.With().Str("component", "ringcentral").Logger(),
	}
}

func (c *Client) Name() string { return Name }

type callLogPage struct {
	Records    []types.RawCallRecord `json:"records"`
	Navigation struct {
		NextPage *struct {
			URI string `json:"uri"`
		} `json:"nextPage"`
	} `json:"navigation"`
}

// FetchCallLog reads the detailed call log, following pagination until the
// last page or q.MaxRecords records.
func (c *Client) FetchCallLog(ctx context.Context, q provider.CallLogQuery) ([]types.RawCallRecord, error) {
	perPage := q.PerPage
	if perPage <= 0 {
		perPage = defaultPerPage
		if q.MaxRecords > 0 {
			perPage = q.MaxRecords
		}
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}

	params := url.Values{}
	params.Set("view", "Detailed")
	params.Set("perPage", strconv.Itoa(perPage))
	if !q.From.IsZero() {
		params.Set("dateFrom", q.From.UTC().Format(time.RFC3339))
	}
	if !q.To.IsZero() {
		params.Set("dateTo", q.To.UTC().Format(time.RFC3339))
	}
	if q.Type != "" {
		params.Set("type", q.Type)
	}

	var records []types.RawCallRecord
	for page := 1; ; page++ {
		params.Set("page", strconv.Itoa(page))

		var body callLogPage
		if err := c.do(ctx, http.MethodGet, callLogPath+"?"+params.Encode(), nil, &body, "fetch call log"); err != nil {
			return nil, err
		}
		records = append(records, body.Records...)

		if q.MaxRecords > 0 && len(records) >= q.MaxRecords {
			records = records[:q.MaxRecords]
			break
		}
		if body.Navigation.NextPage == nil || len(body.Records) == 0 {
			break
		}
	}

	c.logger.Debug().
		Int("records", len(records)).
		Str("type", q.Type).
		Msg("Fetched call log")

	return records, nil
}

type phoneNumber struct {
	PhoneNumber string `json:"phoneNumber"`
}

type ringOutBody struct {
	From     phoneNumber `json:"from"`
	To       phoneNumber `json:"to"`
	CallerID phoneNumber `json:"callerId"`
	Country  struct {
		ID string `json:"id"`
	} `json:"country"`
	PlayPrompt bool `json:"playPrompt"`
}

type ringOutResponse struct {
	ID     json.Number `json:"id"`
	Status struct {
		CallStatus string `json:"callStatus"`
	} `json:"status"`
}

// RingOut places a two-legged call: RingCentral first rings From, then
// connects it to To, presenting From as caller ID.
func (c *Client) RingOut(ctx context.Context, req provider.RingOutRequest) (*provider.RingOutResult, error) {
	body := ringOutBody{
		From:       phoneNumber{req.From},
		To:         phoneNumber{req.To},
		CallerID:   phoneNumber{req.From},
		PlayPrompt: true,
	}
	body.Country.ID = "1"

	var resp ringOutResponse
	if err := c.do(ctx, http.MethodPost, ringOutPath, body, &resp, "ring out"); err != nil {
		return nil, err
	}

	c.logger.Info().
		Str("ring_out_id", resp.ID.String()).
		Str("call_status", resp.Status.CallStatus).
		Msg("RingOut placed")

	return &provider.RingOutResult{
		ID:         resp.ID.String(),
		CallStatus: resp.Status.CallStatus,
		Provider:   Name,
	}, nil
}

// FetchRecording downloads recording audio. contentURI is either absolute
// (as returned in call records) or relative to the server URL. Absolute URIs
// on any other host fail with provider.ErrRecordingURLRejected.
func (c *Client) FetchRecording(ctx context.Context, contentURI string) (*provider.Recording, error) {
	target, err := c.recordingURL(contentURI)
	if err != nil {
		c.logger.Warn().Str("uri", contentURI).Msg("Refusing recording URL outside RingCentral")
		return nil, err
	}

	client, err := c.session.get()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build recording request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, c.transportError("fetch recording", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.statusError(client, "fetch recording", resp)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxRecordingSize))
	if err != nil {
		return nil, c.transportError("fetch recording", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return &provider.Recording{ContentType: contentType, Data: data}, nil
}

// recordingURL resolves contentURI against the server URL. Only the API
// server itself and the RingCentral media hosts are accepted, since the
// session client attaches the account's bearer token to every request.
func (c *Client) recordingURL(contentURI string) (string, error) {
	server, err := url.Parse(strings.TrimRight(c.cfg.ServerURL, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}
	u, err := server.Parse(contentURI)
	if err != nil || u.User != nil {
		return "", provider.ErrRecordingURLRejected
	}

	switch {
	case u.Scheme == server.Scheme && u.Host == server.Host:
		return u.String(), nil
	case u.Scheme == "https" && u.Port() == "" && isMediaHost(u.Hostname()):
		return u.String(), nil
	}
	return "", provider.ErrRecordingURLRejected
}

// isMediaHost matches media.ringcentral.com and its regional and sandbox
// variants such as media.devtest.ringcentral.com.
func isMediaHost(host string) bool {
	host = strings.ToLower(host)
	return strings.HasPrefix(host, "media.") && strings.HasSuffix(host, ".ringcentral.com")
}

func (c *Client) resolve(path string) string {
	return strings.TrimRight(c.cfg.ServerURL, "/") + path
}

func (c *Client) do(ctx context.Context, method, path string, in, out any, op string) error {
	client, err := c.session.get()
	if err != nil {
		return err
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode %s request: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.resolve(path), body)
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return c.transportError(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.statusError(client, op, resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &provider.UpstreamError{Provider: Name, Op: op, StatusCode: resp.StatusCode, Message: "invalid response body", Err: err}
	}
	return nil
}

type apiError struct {
	Message          string `json:"message"`
	ErrorCode        string `json:"errorCode"`
	ErrorDescription string `json:"error_description"`
}

func (c *Client) statusError(used *http.Client, op string, resp *http.Response) error {
	if resp.StatusCode == http.StatusUnauthorized {
		c.session.invalidate(used)
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var body apiError
	msg := http.StatusText(resp.StatusCode)
	if json.Unmarshal(raw, &body) == nil {
		switch {
		case body.Message != "":
			msg = body.Message
		case body.ErrorDescription != "":
			msg = body.ErrorDescription
		}
	}

	c.logger.Warn().
		Str("op", op).
		Int("status", resp.StatusCode).
		Str("error_code", body.ErrorCode).
		Str("message", msg).
		Msg("RingCentral request failed")

	return &provider.UpstreamError{Provider: Name, Op: op, StatusCode: resp.StatusCode, Message: msg}
}

// transportError maps failures below the HTTP status layer, including a
// rejected login surfaced by the token source.
func (c *Client) transportError(op string, err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		status := 0
		if retrieveErr.Response != nil {
			status = retrieveErr.Response.StatusCode
		}
		msg := retrieveErr.ErrorDescription
		if msg == "" {
			msg = "authentication failed"
		}
		c.logger.Warn().Str("op", op).Int("status", status).Str("message", msg).Msg("RingCentral login failed")
		return &provider.UpstreamError{Provider: Name, Op: "authenticate", StatusCode: status, Message: msg, Err: err}
	}
	return &provider.UpstreamError{Provider: Name, Op: op, Err: err}
}

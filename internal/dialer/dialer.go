// Package dialer places outbound calls on behalf of signed-in team members
// after checking they may use the requested caller ID.
package dialer

import (
	"context"
	"errors"
	"net/http"

	"github.com/aerocall/backend/internal/auth"
	"github.com/aerocall/backend/internal/livecall"
	"github.com/aerocall/backend/internal/metrics"
	"github.com/aerocall/backend/internal/provider"
	"github.com/aerocall/backend/internal/storage"
	"github.com/rs/zerolog"
)

// Failure messages returned to the caller
const (
	MsgMissingTo        = `Missing "toNumber" in request body`
	MsgMissingFrom      = `Missing "fromNumber" (caller ID) in request body`
	MsgUnauthorized     = "Unauthorized: Missing or invalid token"
	MsgUserNotFound     = "User not found in database"
	MsgCallerIDDenied   = "You are not authorized to use this caller ID."
	MsgNotProvisioned   = "User is not provisioned for calling"
	MsgInitiateFailed   = "Failed to initiate call"
	detailUnavailable   = "Calling integration is not configured on the server."
	outcomeSuccess      = "success"
	outcomeRejected     = "rejected"
	outcomeProviderFail = "provider_error"
)

// Request is the body of POST /api/calls/ringout
type Request struct {
	ToNumber   string `json:"toNumber"`
	FromNumber string `json:"fromNumber"`
}

// Result is returned when the provider accepted the call
type Result struct {
	Success   bool                    `json:"success"`
	Details   *provider.RingOutResult `json:"details"`
	SessionID string                  `json:"sessionId"`
}

// Error is a refused or failed call attempt
type Error struct {
	Status  int
	Message string
	Details string
	Err     error
}

func (e *Error) Error() string {
	if e.Details != "" {
		return e.Message + ": " + e.Details
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Sessions opens the live transcript for a placed call
type Sessions interface {
	Start(callID, from, to, userID string) *livecall.Session
}

// Service checks and places calls
type Service struct {
	dialer   provider.Dialer
	users    storage.Lookup
	sessions Sessions
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

// NewService creates a Service. sessions may be nil, in which case no live
// transcript is opened.
func NewService(d provider.Dialer, users storage.Lookup, sessions Sessions, logger zerolog.Logger) *Service {
	return &Service{
		dialer:   d,
		users:    users,
		sessions: sessions,
		metrics:  metrics.Get(),
		logger:   logger.With().Str("component", "dialer").Logger(),
	}
}

// RingOut validates req for the user in claims and asks the provider to
// connect the user's line to the destination.
func (s *Service) RingOut(ctx context.Context, claims *auth.Claims, req Request) (*Result, error) {
	if req.ToNumber == "" {
		return nil, s.reject(http.StatusBadRequest, MsgMissingTo)
	}
	if req.FromNumber == "" {
		return nil, s.reject(http.StatusBadRequest, MsgMissingFrom)
	}
	if claims == nil || (claims.Subject == "" && claims.Email == "") {
		return nil, s.reject(http.StatusUnauthorized, MsgUnauthorized)
	}

	user, err := storage.Resolve(ctx, s.users, claims.Subject, claims.Email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, s.reject(http.StatusNotFound, MsgUserNotFound)
		}
		s.logger.Error().Err(err).Str("subject", claims.Subject).Msg("user lookup failed")
		s.metrics.RecordDialAttempt(outcomeProviderFail)
		return nil, &Error{Status: http.StatusInternalServerError, Message: MsgInitiateFailed, Details: err.Error(), Err: err}
	}

	// Caller ID is checked before provisioning
	if !user.CanUseCallerID(req.FromNumber) {
		s.logger.Warn().
			Str("user_id", user.UserID).
			Str("from", req.FromNumber).
			Msg("caller ID not assigned to user")
		return nil, s.reject(http.StatusForbidden, MsgCallerIDDenied)
	}
	if user.ExtensionID == "" {
		return nil, s.reject(http.StatusForbidden, MsgNotProvisioned)
	}

	res, err := s.dialer.RingOut(ctx, provider.RingOutRequest{From: req.FromNumber, To: req.ToNumber})
	if err != nil {
		detail := provider.Detail(err)
		if errors.Is(err, provider.ErrUpstreamUnavailable) {
			detail = detailUnavailable
		}
		s.metrics.RecordDialAttempt(outcomeProviderFail)
		s.logger.Error().Err(err).Str("user_id", user.UserID).Msg("ring-out failed")
		return nil, &Error{Status: http.StatusInternalServerError, Message: MsgInitiateFailed, Details: detail, Err: err}
	}

	s.metrics.RecordDialAttempt(outcomeSuccess)
	s.logger.Info().
		Str("user_id", user.UserID).
		Str("call_id", res.ID).
		Str("call_status", res.CallStatus).
		Msg("call initiated")

	out := &Result{Success: true, Details: res}
	if s.sessions != nil {
		out.SessionID = s.sessions.Start(res.ID, req.FromNumber, req.ToNumber, user.UserID).ID
	}
	return out, nil
}

func (s *Service) reject(status int, msg string) error {
	s.metrics.RecordDialAttempt(outcomeRejected)
	return &Error{Status: status, Message: msg}
}

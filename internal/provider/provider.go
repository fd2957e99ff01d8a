// Package provider defines the contracts the backend needs from a telephony
// provider and the errors those contracts return.
package provider

import (
	"context"
	"time"

	"github.com/aerocall/backend/internal/types"
)

// CallLogTypeVoicemail restricts a call-log query to voicemail records.
const CallLogTypeVoicemail = types.RawTypeVoicemail

// CallLogQuery describes a call-log fetch. Zero From/To leave that side of the
// window open. MaxRecords <= 0 means no cap.
type CallLogQuery struct {
	From       time.Time
	To         time.Time
	Type       string
	PerPage    int
	MaxRecords int
}

// CallLogSource supplies raw call-log records.
//
// Implementations return ErrUpstreamUnavailable when no session can be
// established and *UpstreamError for any non-success upstream response.
type CallLogSource interface {
	FetchCallLog(ctx context.Context, q CallLogQuery) ([]types.RawCallRecord, error)
}

// RingOutRequest asks the provider to connect From (the caller's own line,
// also used as caller ID) to To.
type RingOutRequest struct {
	From string
	To   string
}

// RingOutResult is the provider's acknowledgement of a placed call.
type RingOutResult struct {
	ID         string `json:"id"`
	CallStatus string `json:"callStatus"`
	Provider   string `json:"provider"`
}

// Dialer places outbound calls.
type Dialer interface {
	RingOut(ctx context.Context, req RingOutRequest) (*RingOutResult, error)
}

// Recording is downloaded call audio.
type Recording struct {
	ContentType string
	Data        []byte
}

// RecordingFetcher downloads recordings referenced by a call record's
// recording URL.
type RecordingFetcher interface {
	FetchRecording(ctx context.Context, contentURI string) (*Recording, error)
}

// Provider is the full surface a configured telephony backend offers.
type Provider interface {
	CallLogSource
	Dialer
	Name() string
}

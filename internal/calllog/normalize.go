// Package calllog turns provider call-log entries into canonical calls.
package calllog

import (
	"strings"
	"time"

	"github.com/aerocall/backend/internal/types"
)

// Normalize maps a raw provider record into a NormalizedCall.
// It never fails: missing or malformed fields fall back to sentinels.
func Normalize(raw types.RawCallRecord) types.NormalizedCall {
	call := types.NormalizedCall{
		ID:              raw.ID,
		Contact:         resolveContact(raw),
		User:            resolveUser(raw),
		Status:          resolveStatus(raw),
		Direction:       resolveDirection(raw.Direction),
		DurationSeconds: raw.Duration,
		StartTime:       ParseStartTime(raw.StartTime),
	}

	if call.DurationSeconds < 0 {
		call.DurationSeconds = 0
	}
	if raw.Recording != nil {
		call.RecordingURL = raw.Recording.ContentURI
	}

	return call
}

// NormalizeAll normalizes a list of records, preserving order
func NormalizeAll(records []types.RawCallRecord) []types.NormalizedCall {
	calls := make([]types.NormalizedCall, 0, len(records))
	for _, r := range records {
		calls = append(calls, Normalize(r))
	}
	return calls
}

// IsMalformed reports whether a record is missing fields the pipeline relies on
func IsMalformed(raw types.RawCallRecord) bool {
	if raw.ID == "" || raw.Duration < 0 {
		return true
	}
	if _, ok := parseDirection(raw.Direction); !ok {
		return true
	}
	return ParseStartTime(raw.StartTime).IsZero()
}

func resolveStatus(raw types.RawCallRecord) types.CallStatus {
	switch {
	case raw.Result == types.RawResultMissed:
		return types.CallStatusMissed
	case raw.Type == types.RawTypeVoicemail:
		return types.CallStatusVoicemail
	default:
		return types.CallStatusAnswered
	}
}

// resolveDirection treats anything that is not recognisably inbound as outbound,
// so a malformed record never inflates the inbound answer rate denominator.
func resolveDirection(direction string) types.CallDirection {
	d, ok := parseDirection(direction)
	if !ok {
		return types.DirectionOutbound
	}
	return d
}

func parseDirection(direction string) (types.CallDirection, bool) {
	switch types.CallDirection(strings.ToLower(strings.TrimSpace(direction))) {
	case types.DirectionInbound:
		return types.DirectionInbound, true
	case types.DirectionOutbound:
		return types.DirectionOutbound, true
	default:
		return "", false
	}
}

// resolveContact prefers the callee, then the caller
func resolveContact(raw types.RawCallRecord) types.ContactRef {
	var contact types.ContactRef

	if raw.To != nil && raw.To.PhoneNumber != "" {
		contact.ID = raw.To.PhoneNumber
	} else if raw.From != nil {
		contact.ID = raw.From.PhoneNumber
	}

	switch {
	case raw.To != nil && raw.To.Name != "":
		contact.Name = raw.To.Name
	case raw.From != nil && raw.From.Name != "":
		contact.Name = raw.From.Name
	default:
		contact.Name = types.UnknownName
	}

	return contact
}

func resolveUser(raw types.RawCallRecord) types.UserRef {
	if raw.Extension == nil || strings.TrimSpace(raw.Extension.Name) == "" {
		return types.UserRef{Name: types.UnknownName}
	}
	return types.UserRef{
		ID:   raw.Extension.ID,
		Name: strings.TrimSpace(raw.Extension.Name),
	}
}

// ParseStartTime parses the provider's ISO-8601 timestamp.
// Unparseable input yields the zero time.
func ParseStartTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05Z0700", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

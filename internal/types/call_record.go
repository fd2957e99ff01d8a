package types

import "time"

// PartyInfo is one side of a call as reported by the provider call log
type PartyInfo struct {
	PhoneNumber     string `json:"phoneNumber,omitempty"`
	ExtensionNumber string `json:"extensionNumber,omitempty"`
	Name            string `json:"name,omitempty"`
}

// ExtensionInfo identifies the extension (team member) that handled a call
type ExtensionInfo struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// RecordingInfo points at a stored call recording
type RecordingInfo struct {
	ID         string `json:"id,omitempty"`
	ContentURI string `json:"contentUri,omitempty"`
}

// RawCallRecord is a call-log entry exactly as the provider returns it.
// Every field is optional on the wire; the normalizer degrades missing values.
type RawCallRecord struct {
	ID        string         `json:"id"`
	Direction string         `json:"direction"`      // Inbound | Outbound
	Result    string         `json:"result"`         // "Missed" is the only significant value
	Type      string         `json:"type,omitempty"` // "VoiceMail" marks a voicemail
	Duration  int            `json:"duration"`       // seconds
	StartTime string         `json:"startTime"`      // ISO-8601
	Extension *ExtensionInfo `json:"extension,omitempty"`
	From      *PartyInfo     `json:"from,omitempty"`
	To        *PartyInfo     `json:"to,omitempty"`
	Recording *RecordingInfo `json:"recording,omitempty"`
}

// Provider literals that decide a call's status. Matching is exact.
const (
	RawResultMissed  = "Missed"
	RawTypeVoicemail = "VoiceMail"
)

// CallStatus is the canonical outcome of a call
type CallStatus string

const (
	CallStatusAnswered  CallStatus = "answered"
	CallStatusMissed    CallStatus = "missed"
	CallStatusVoicemail CallStatus = "voicemail"
)

// CallDirection is the canonical direction of a call
type CallDirection string

const (
	DirectionInbound  CallDirection = "inbound"
	DirectionOutbound CallDirection = "outbound"
)

// UnknownName is the sentinel used when a contact or user cannot be resolved
const UnknownName = "Unknown"

// ContactRef is the display contact of a call
type ContactRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// UserRef is the team member associated with a call
type UserRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// NormalizedCall is the canonical internal shape of a call-log entry
type NormalizedCall struct {
	ID              string        `json:"id"`
	Contact         ContactRef    `json:"contact"`
	User            UserRef       `json:"user"`
	Status          CallStatus    `json:"status"`
	Direction       CallDirection `json:"direction"`
	DurationSeconds int           `json:"durationSeconds"`
	StartTime       time.Time     `json:"startTime"`
	RecordingURL    string        `json:"recordingUrl,omitempty"`
}

// CallView is a NormalizedCall rendered for call-log and voicemail lists
type CallView struct {
	ID           string        `json:"id"`
	Contact      ContactRef    `json:"contact"`
	User         UserRef       `json:"user"`
	Status       CallStatus    `json:"status"`
	Direction    CallDirection `json:"direction"`
	Duration     string        `json:"duration"`  // MM:SS or H:MM:SS
	Timestamp    string        `json:"timestamp"` // relative, e.g. "2 hours ago"
	RecordingURL string        `json:"recordingUrl,omitempty"`
}

package types

import "time"

// TranscriptMessage is pushed to live-call viewers over the websocket
type TranscriptMessage struct {
	Type      string    `json:"type"` // "caption" | "status" | "ended"
	SessionID string    `json:"sessionId"`
	Seq       int       `json:"seq"`
	Text      string    `json:"text,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Transcript message types
const (
	TranscriptCaption = "caption"
	TranscriptStatus  = "status"
	TranscriptEnded   = "ended"
)

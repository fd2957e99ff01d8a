// Package livecall runs the transcript feed of calls placed through the
// dialer. Captions come from a fixed script replayed at a steady interval.
package livecall

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/aerocall/backend/internal/metrics"
	"github.com/aerocall/backend/internal/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// OpeningLine is published as soon as a session starts
const OpeningLine = "Live transcription will begin shortly..."

// DefaultScript is the caption script replayed for every call
var DefaultScript = []string{
	"User: Hello, I'm calling about the load from Chicago to Dallas.",
	"Agent: Yes, I see that one. Are you available for pickup tomorrow?",
	"User: Yes, I can be there by 10 AM. What's the rate?",
	"Agent: The rate is $2,500. It's a full truckload.",
	"User: That works for me. Please send over the rate confirmation.",
	"Agent: Will do. I'm sending it to your email now. Thank you!",
}

// Broadcaster delivers transcript messages to a session's viewers
type Broadcaster interface {
	OpenSession(sessionID string)
	Publish(sessionID string, message []byte)
	EndSession(sessionID string, message []byte)
}

// Session describes a call being transcribed
type Session struct {
	ID        string    `json:"sessionId"`
	CallID    string    `json:"callId"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	UserID    string    `json:"userId"`
	StartedAt time.Time `json:"startedAt"`
}

// Manager starts and tracks live sessions
type Manager struct {
	hub      Broadcaster
	interval time.Duration
	script   []string

	mu       sync.Mutex
	sessions map[string]*Session
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewManager creates a Manager that publishes one caption per interval
func NewManager(hub Broadcaster, interval time.Duration, logger zerolog.Logger) *Manager {
	return &Manager{
		hub:      hub,
		interval: interval,
		script:   DefaultScript,
		sessions: make(map[string]*Session),
		stop:     make(chan struct{}),
		metrics:  metrics.Get(),
		logger:   logger.With().Str("component", "livecall").Logger(),
	}
}

// Start opens a session for a placed call and begins replaying captions
func (m *Manager) Start(callID, from, to, userID string) *Session {
	s := &Session{
		ID:        uuid.New().String(),
		CallID:    callID,
		From:      from,
		To:        to,
		UserID:    userID,
		StartedAt: time.Now().UTC(),
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	m.hub.OpenSession(s.ID)
	m.metrics.RecordLiveSessionStarted()

	m.wg.Add(1)
	go m.replay(s)

	m.logger.Info().
		Str("session_id", s.ID).
		Str("call_id", callID).
		Str("user_id", userID).
		Msg("live session started")
	return s
}

// Get returns a running session
func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	return s, ok
}

// ActiveCount returns the number of sessions still replaying
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Shutdown ends every running session and waits for the replayers to exit
func (m *Manager) Shutdown() {
	m.stopOnce.Do(func() { close(m.stop) })
	m.wg.Wait()
}

func (m *Manager) replay(s *Session) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	seq := 0
	m.publish(s.ID, types.TranscriptStatus, seq, OpeningLine)

	for _, line := range m.script {
		select {
		case <-m.stop:
			m.end(s, seq+1, "Server shutting down")
			return
		case <-ticker.C:
			seq++
			m.publish(s.ID, types.TranscriptCaption, seq, line)
		}
	}

	// Hold the last caption for one interval before ending
	select {
	case <-m.stop:
	case <-ticker.C:
	}
	m.end(s, seq+1, "Call Ended")
}

func (m *Manager) end(s *Session, seq int, text string) {
	data, err := m.encode(s.ID, types.TranscriptEnded, seq, text)
	if err == nil {
		m.hub.EndSession(s.ID, data)
	} else {
		m.hub.EndSession(s.ID, nil)
	}

	m.mu.Lock()
	delete(m.sessions, s.ID)
	m.mu.Unlock()

	m.metrics.RecordLiveSessionEnded()
	m.logger.Info().Str("session_id", s.ID).Int("captions", seq-1).Msg("live session ended")
}

func (m *Manager) publish(sessionID, kind string, seq int, text string) {
	data, err := m.encode(sessionID, kind, seq, text)
	if err != nil {
		return
	}
	m.hub.Publish(sessionID, data)
}

func (m *Manager) encode(sessionID, kind string, seq int, text string) ([]byte, error) {
	data, err := json.Marshal(types.TranscriptMessage{
		Type:      kind,
		SessionID: sessionID,
		Seq:       seq,
		Text:      text,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		m.logger.Error().Err(err).Str("session_id", sessionID).Msg("failed to marshal transcript message")
	}
	return data, err
}

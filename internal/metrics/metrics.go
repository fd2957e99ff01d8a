package metrics

import (
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"
)

// Metrics holds all application metrics
type Metrics struct {
	mu sync.RWMutex

	// Call-log fetch metrics, keyed by view (analytics, recent, voicemail)
	fetchesTotal      map[string]int64
	fetchErrorsTotal  map[string]map[string]int64 // view -> reason -> count
	recordsFetched    int64
	malformedRecords  int64
	lastFetchDuration time.Duration

	// Dialer metrics
	dialAttempts map[string]int64 // outcome -> count

	// Live call metrics
	LiveSessionsStarted int64
	LiveSessionsEnded   int64
	activeLiveSessions  int64

	// WebSocket metrics
	WebSocketConnectionsTotal    int64
	WebSocketDisconnectionsTotal int64
	WebSocketMessagesTotal       int64
	WebSocketErrorsTotal         int64
	activeConnections            int64

	// AI metrics
	insightRequests map[string]map[bool]int64 // kind -> success -> count

	// HTTP metrics
	httpRequestsTotal    map[string]map[int]int64 // endpoint -> status -> count
	httpRequestDurations map[string][]float64     // endpoint -> durations

	startTime time.Time
}

var instance *Metrics
var once sync.Once

// Get returns the singleton metrics instance
func Get() *Metrics {
	once.Do(func() {
		instance = New()
	})
	return instance
}

// New creates an empty metrics set. Most callers want Get.
func New() *Metrics {
	return &Metrics{
		fetchesTotal:         make(map[string]int64),
		fetchErrorsTotal:     make(map[string]map[string]int64),
		dialAttempts:         make(map[string]int64),
		insightRequests:      make(map[string]map[bool]int64),
		httpRequestsTotal:    make(map[string]map[int]int64),
		httpRequestDurations: make(map[string][]float64),
		startTime:            time.Now(),
	}
}

// RecordFetch records a successful call-log fetch for view
func (m *Metrics) RecordFetch(view string, records, malformed int, duration time.Duration) {
	m.mu.Lock()
	m.fetchesTotal[view]++
	m.recordsFetched += int64(records)
	m.malformedRecords += int64(malformed)
	m.lastFetchDuration = duration
	m.mu.Unlock()
}

// RecordFetchError records a failed call-log fetch for view
func (m *Metrics) RecordFetchError(view, reason string) {
	m.mu.Lock()
	if m.fetchErrorsTotal[view] == nil {
		m.fetchErrorsTotal[view] = make(map[string]int64)
	}
	m.fetchErrorsTotal[view][reason]++
	m.mu.Unlock()
}

// FetchErrors returns the error count for view and reason
func (m *Metrics) FetchErrors(view, reason string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fetchErrorsTotal[view][reason]
}

// MalformedRecords returns the number of malformed records seen so far
func (m *Metrics) MalformedRecords() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.malformedRecords
}

// RecordDialAttempt counts a RingOut request by outcome
func (m *Metrics) RecordDialAttempt(outcome string) {
	m.mu.Lock()
	m.dialAttempts[outcome]++
	m.mu.Unlock()
}

// DialAttempts returns the count for outcome
func (m *Metrics) DialAttempts(outcome string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dialAttempts[outcome]
}

// RecordLiveSessionStarted increments live session counters
func (m *Metrics) RecordLiveSessionStarted() {
	m.mu.Lock()
	m.LiveSessionsStarted++
	m.activeLiveSessions++
	m.mu.Unlock()
}

// RecordLiveSessionEnded decrements the active live session gauge
func (m *Metrics) RecordLiveSessionEnded() {
	m.mu.Lock()
	m.LiveSessionsEnded++
	m.activeLiveSessions--
	m.mu.Unlock()
}

// GetActiveLiveSessions returns the number of live sessions in progress
func (m *Metrics) GetActiveLiveSessions() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeLiveSessions
}

// RecordWebSocketConnect increments connection counters
func (m *Metrics) RecordWebSocketConnect() {
	m.mu.Lock()
	m.WebSocketConnectionsTotal++
	m.activeConnections++
	m.mu.Unlock()
}

// RecordWebSocketDisconnect increments disconnection counter
func (m *Metrics) RecordWebSocketDisconnect() {
	m.mu.Lock()
	m.WebSocketDisconnectionsTotal++
	m.activeConnections--
	m.mu.Unlock()
}

// RecordWebSocketMessage increments message counter
func (m *Metrics) RecordWebSocketMessage() {
	m.mu.Lock()
	m.WebSocketMessagesTotal++
	m.mu.Unlock()
}

// RecordWebSocketError increments WebSocket error counter
func (m *Metrics) RecordWebSocketError() {
	m.mu.Lock()
	m.WebSocketErrorsTotal++
	m.mu.Unlock()
}

// GetActiveConnections returns current WebSocket connections
func (m *Metrics) GetActiveConnections() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeConnections
}

// RecordInsightRequest counts an AI request by kind and result
func (m *Metrics) RecordInsightRequest(kind string, success bool) {
	m.mu.Lock()
	if m.insightRequests[kind] == nil {
		m.insightRequests[kind] = make(map[bool]int64)
	}
	m.insightRequests[kind][success]++
	m.mu.Unlock()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(endpoint string, statusCode int, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.httpRequestsTotal[endpoint] == nil {
		m.httpRequestsTotal[endpoint] = make(map[int]int64)
	}
	m.httpRequestsTotal[endpoint][statusCode]++

	// Keep last 100 durations
	if len(m.httpRequestDurations[endpoint]) >= 100 {
		m.httpRequestDurations[endpoint] = m.httpRequestDurations[endpoint][1:]
	}
	m.httpRequestDurations[endpoint] = append(m.httpRequestDurations[endpoint], duration.Seconds())
}

// Handler returns an HTTP handler for the /metrics endpoint
func (m *Metrics) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.mu.RLock()
		defer m.mu.RUnlock()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		write := func(name string, value interface{}, labels ...string) {
			labelStr := ""
			if len(labels) > 0 {
				labelStr = "{"
				for i := 0; i < len(labels); i += 2 {
					if i > 0 {
						labelStr += ","
					}
					labelStr += labels[i] + "=\"" + labels[i+1] + "\""
				}
				labelStr += "}"
			}

			switch v := value.(type) {
			case int:
				w.Write([]byte(name + labelStr + " " + strconv.Itoa(v) + "\n"))
			case int64:
				w.Write([]byte(name + labelStr + " " + strconv.FormatInt(v, 10) + "\n"))
			case float64:
				w.Write([]byte(name + labelStr + " " + strconv.FormatFloat(v, 'f', 6, 64) + "\n"))
			}
		}

		write("aerocall_uptime_seconds", time.Since(m.startTime).Seconds())

		// Call-log fetches
		for _, view := range sortedKeys(m.fetchesTotal) {
			write("aerocall_calllog_fetches_total", m.fetchesTotal[view], "view", view)
		}
		for _, view := range sortedKeys(m.fetchErrorsTotal) {
			for _, reason := range sortedKeys(m.fetchErrorsTotal[view]) {
				write("aerocall_calllog_fetch_errors_total", m.fetchErrorsTotal[view][reason], "view", view, "reason", reason)
			}
		}
		write("aerocall_calllog_records_fetched_total", m.recordsFetched)
		write("aerocall_calllog_malformed_records_total", m.malformedRecords)
		write("aerocall_calllog_fetch_duration_seconds", m.lastFetchDuration.Seconds())

		// Dialer
		for _, outcome := range sortedKeys(m.dialAttempts) {
			write("aerocall_dial_attempts_total", m.dialAttempts[outcome], "outcome", outcome)
		}

		// Live calls
		write("aerocall_live_sessions_started_total", m.LiveSessionsStarted)
		write("aerocall_live_sessions_ended_total", m.LiveSessionsEnded)
		write("aerocall_live_sessions_active", m.activeLiveSessions)

		// WebSocket
		write("aerocall_websocket_connections_total", m.WebSocketConnectionsTotal)
		write("aerocall_websocket_disconnections_total", m.WebSocketDisconnectionsTotal)
		write("aerocall_websocket_active_connections", m.activeConnections)
		write("aerocall_websocket_messages_total", m.WebSocketMessagesTotal)
		write("aerocall_websocket_errors_total", m.WebSocketErrorsTotal)

		// AI
		for _, kind := range sortedKeys(m.insightRequests) {
			for success, count := range m.insightRequests[kind] {
				write("aerocall_insight_requests_total", count, "kind", kind, "success", strconv.FormatBool(success))
			}
		}

		// HTTP
		for endpoint, statusCodes := range m.httpRequestsTotal {
			for status, count := range statusCodes {
				write("aerocall_http_requests_total", count, "endpoint", endpoint, "status", strconv.Itoa(status))
			}
		}
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

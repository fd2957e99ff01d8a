package sandbox

import (
	"encoding/binary"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aerocall/backend/internal/calllog"
	"github.com/aerocall/backend/internal/types"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

const (
	jwtBearerGrant = "urn:ietf:params:oauth:grant-type:jwt-bearer"
	tokenTTL       = time.Hour
	defaultPerPage = 100
	maxPerPage     = 1000

	callLogPath = "/restapi/v1.0/account/~/extension/~/call-log"
)

// Credentials are the values the sandbox accepts at its token endpoint.
type Credentials struct {
	ClientID     string
	ClientSecret string
	JWT          string
}

// RingOut is a call placed through the sandbox.
type RingOut struct {
	ID   string
	From string
	To   string
	At   time.Time
}

// Server serves a RingCentral-shaped REST API over a fixed record set.
type Server struct {
	creds  Credentials
	logger zerolog.Logger

	mu       sync.RWMutex
	records  []types.RawCallRecord
	tokens   map[string]time.Time
	ringOuts []RingOut
	nextID   int64
}

// NewServer creates a sandbox serving records.
func NewServer(creds Credentials, records []types.RawCallRecord, logger zerolog.Logger) *Server {
	return &Server{
		creds:   creds,
		logger:  logger.With().Str("component", "sandbox").Logger(),
		records: records,
		tokens:  make(map[string]time.Time),
		nextID:  9000000000,
	}
}

// SetupRoutes configures HTTP routes
func (s *Server) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/health", s.healthHandler).Methods("GET")
	router.HandleFunc("/restapi/oauth/token", s.tokenHandler).Methods("POST")
	router.HandleFunc(callLogPath, s.requireToken(s.callLogHandler)).Methods("GET")
	router.HandleFunc("/restapi/v1.0/account/~/extension/~/ring-out", s.requireToken(s.ringOutHandler)).Methods("POST")
	router.HandleFunc("/restapi/v1.0/account/~/recording/{id}/content", s.requireToken(s.recordingHandler)).Methods("GET")
}

// Handler returns a router with all sandbox routes.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	s.SetupRoutes(router)
	return router
}

// SetRecords replaces the served record set.
func (s *Server) SetRecords(records []types.RawCallRecord) {
	s.mu.Lock()
	s.records = records
	s.mu.Unlock()
}

// RingOuts returns the calls placed so far.
func (s *Server) RingOuts() []RingOut {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]RingOut, len(s.ringOuts))
	copy(out, s.ringOuts)
	return out
}

// RevokeTokens invalidates every issued access token.
func (s *Server) RevokeTokens() {
	s.mu.Lock()
	s.tokens = make(map[string]time.Time)
	s.mu.Unlock()
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (s *Server) tokenHandler(w http.ResponseWriter, r *http.Request) {
	clientID, clientSecret, ok := r.BasicAuth()
	if !ok || clientID != s.creds.ClientID || clientSecret != s.creds.ClientSecret {
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"error":             "invalid_client",
			"error_description": "Invalid client credentials",
		})
		return
	}

	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":             "invalid_request",
			"error_description": "Malformed form body",
		})
		return
	}

	if r.PostForm.Get("grant_type") != jwtBearerGrant {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":             "unsupported_grant_type",
			"error_description": "Unsupported grant type",
		})
		return
	}
	if r.PostForm.Get("assertion") != s.creds.JWT {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":             "invalid_grant",
			"error_description": "Invalid assertion",
		})
		return
	}

	token := uuid.NewString()
	s.mu.Lock()
	s.tokens[token] = time.Now().Add(tokenTTL)
	s.mu.Unlock()

	s.logger.Debug().Msg("Issued access token")

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": token,
		"token_type":   "bearer",
		"expires_in":   int(tokenTTL.Seconds()),
		"scope":        "ReadCallLog RingOut ReadCallRecording",
	})
}

func (s *Server) requireToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

		s.mu.RLock()
		expiry, ok := s.tokens[token]
		s.mu.RUnlock()

		if !ok || time.Now().After(expiry) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"errorCode": "TokenInvalid",
				"message":   "Token not found",
			})
			return
		}
		next(w, r)
	}
}

type pageLink struct {
	URI string `json:"uri"`
}

type callLogResponse struct {
	URI     string                `json:"uri"`
	Records []types.RawCallRecord `json:"records"`
	Paging  struct {
		Page      int `json:"page"`
		PerPage   int `json:"perPage"`
		PageStart int `json:"pageStart,omitempty"`
		PageEnd   int `json:"pageEnd,omitempty"`
	} `json:"paging"`
	Navigation struct {
		FirstPage    *pageLink `json:"firstPage,omitempty"`
		NextPage     *pageLink `json:"nextPage,omitempty"`
		PreviousPage *pageLink `json:"previousPage,omitempty"`
	} `json:"navigation"`
}

func (s *Server) callLogHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	from, ok := parseDateParam(w, q.Get("dateFrom"), "dateFrom")
	if !ok {
		return
	}
	to, ok := parseDateParam(w, q.Get("dateTo"), "dateTo")
	if !ok {
		return
	}
	perPage := intParam(q.Get("perPage"), defaultPerPage)
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	page := intParam(q.Get("page"), 1)
	callType := q.Get("type")

	s.mu.RLock()
	matched := make([]types.RawCallRecord, 0, len(s.records))
	for _, rec := range s.records {
		if callType != "" && rec.Type != callType {
			continue
		}
		start := calllog.ParseStartTime(rec.StartTime)
		if !from.IsZero() && start.Before(from) {
			continue
		}
		if !to.IsZero() && !start.Before(to) {
			continue
		}
		matched = append(matched, rec)
	}
	s.mu.RUnlock()

	origin := "http://" + r.Host
	begin := (page - 1) * perPage
	if begin > len(matched) {
		begin = len(matched)
	}
	end := begin + perPage
	if end > len(matched) {
		end = len(matched)
	}

	var resp callLogResponse
	resp.URI = origin + r.URL.RequestURI()
	resp.Records = make([]types.RawCallRecord, 0, end-begin)
	for _, rec := range matched[begin:end] {
		if rec.Recording != nil {
			recording := *rec.Recording
			recording.ContentURI = origin + recording.ContentURI
			rec.Recording = &recording
		}
		resp.Records = append(resp.Records, rec)
	}
	resp.Paging.Page = page
	resp.Paging.PerPage = perPage
	if end > begin {
		resp.Paging.PageStart = begin
		resp.Paging.PageEnd = end - 1
	}

	link := func(p int) *pageLink {
		q.Set("page", strconv.Itoa(p))
		return &pageLink{URI: origin + callLogPath + "?" + q.Encode()}
	}
	resp.Navigation.FirstPage = link(1)
	if end < len(matched) {
		resp.Navigation.NextPage = link(page + 1)
	}
	if page > 1 {
		resp.Navigation.PreviousPage = link(page - 1)
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) ringOutHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		From struct {
			PhoneNumber string `json:"phoneNumber"`
		} `json:"from"`
		To struct {
			PhoneNumber string `json:"phoneNumber"`
		} `json:"to"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"errorCode": "InvalidPayload",
			"message":   "Request body is not valid JSON",
		})
		return
	}
	if req.From.PhoneNumber == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"errorCode": "InvalidParameter",
			"message":   "Parameter [from.phoneNumber] value is invalid",
		})
		return
	}
	if req.To.PhoneNumber == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"errorCode": "InvalidParameter",
			"message":   "Parameter [to.phoneNumber] value is invalid",
		})
		return
	}

	s.mu.Lock()
	s.nextID++
	ringOut := RingOut{
		ID:   strconv.FormatInt(s.nextID, 10),
		From: req.From.PhoneNumber,
		To:   req.To.PhoneNumber,
		At:   time.Now(),
	}
	s.ringOuts = append(s.ringOuts, ringOut)
	s.mu.Unlock()

	s.logger.Info().
		Str("from", ringOut.From).
		Str("to", ringOut.To).
		Msg("RingOut requested")

	writeJSON(w, http.StatusOK, map[string]any{
		"id":  ringOut.ID,
		"uri": "http://" + r.Host + "/restapi/v1.0/account/~/extension/~/ring-out/" + ringOut.ID,
		"status": map[string]string{
			"callStatus":   "InProgress",
			"callerStatus": "InProgress",
			"calleeStatus": "InProgress",
		},
	})
}

func (s *Server) recordingHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	found := false
	s.mu.RLock()
	for _, rec := range s.records {
		if rec.Recording != nil && rec.Recording.ID == id {
			found = true
			break
		}
	}
	s.mu.RUnlock()

	if !found {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"errorCode": "CMN-102",
			"message":   "Resource for parameter [recordingId] is not found",
		})
		return
	}

	w.Header().Set("Content-Type", "audio/wav")
	w.WriteHeader(http.StatusOK)
	w.Write(silentWAV(time.Second))
}

// silentWAV encodes d of 8 kHz mono 16-bit silence.
func silentWAV(d time.Duration) []byte {
	const sampleRate = 8000
	dataLen := int(d.Seconds()*sampleRate) * 2

	buf := make([]byte, 44+dataLen)
	copy(buf[0:], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:], uint32(36+dataLen))
	copy(buf[8:], "WAVEfmt ")
	binary.LittleEndian.PutUint32(buf[16:], 16)
	binary.LittleEndian.PutUint16(buf[20:], 1)
	binary.LittleEndian.PutUint16(buf[22:], 1)
	binary.LittleEndian.PutUint32(buf[24:], sampleRate)
	binary.LittleEndian.PutUint32(buf[28:], sampleRate*2)
	binary.LittleEndian.PutUint16(buf[32:], 2)
	binary.LittleEndian.PutUint16(buf[34:], 16)
	copy(buf[36:], "data")
	binary.LittleEndian.PutUint32(buf[40:], uint32(dataLen))
	return buf
}

func parseDateParam(w http.ResponseWriter, value, name string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, true
	}
	t := calllog.ParseStartTime(value)
	if t.IsZero() {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"errorCode": "InvalidParameter",
			"message":   "Parameter [" + name + "] value is invalid",
		})
		return time.Time{}, false
	}
	return t, true
}

func intParam(value string, def int) int {
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

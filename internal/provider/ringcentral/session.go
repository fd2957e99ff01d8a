package ringcentral

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/aerocall/backend/internal/provider"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	tokenPath      = "/restapi/oauth/token"
	jwtBearerGrant = "urn:ietf:params:oauth:grant-type:jwt-bearer"
)

// Config holds the credentials for an admin JWT login.
type Config struct {
	ServerURL    string
	ClientID     string
	ClientSecret string
	JWT          string
	Timeout      time.Duration
}

// Configured reports whether every credential needed for a login is present.
func (c Config) Configured() bool {
	return c.ServerURL != "" && c.ClientID != "" && c.ClientSecret != "" && c.JWT != ""
}

// sessionManager owns the authenticated HTTP client. The client is built on
// first use, refreshes its token through oauth2.ReuseTokenSource, and is
// dropped on a 401 so the next call logs in again.
type sessionManager struct {
	cfg  Config
	base *http.Client

	mu     sync.Mutex
	client *http.Client
}

func newSessionManager(cfg Config, base *http.Client) *sessionManager {
	if base == nil {
		base = &http.Client{Timeout: cfg.Timeout}
	}
	return &sessionManager{cfg: cfg, base: base}
}

// get returns the session client, creating it if needed.
func (s *sessionManager) get() (*http.Client, error) {
	if !s.cfg.Configured() {
		return nil, provider.ErrUpstreamUnavailable
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		return s.client, nil
	}

	cc := &clientcredentials.Config{
		ClientID:     s.cfg.ClientID,
		ClientSecret: s.cfg.ClientSecret,
		TokenURL:     strings.TrimRight(s.cfg.ServerURL, "/") + tokenPath,
		AuthStyle:    oauth2.AuthStyleInHeader,
		EndpointParams: url.Values{
			"grant_type": {jwtBearerGrant},
			"assertion":  {s.cfg.JWT},
		},
	}

	// The token source keeps this context for refreshes, so it must outlive
	// any single request.
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, s.base)
	ts := oauth2.ReuseTokenSource(nil, cc.TokenSource(ctx))

	client := oauth2.NewClient(ctx, ts)
	client.Timeout = s.cfg.Timeout
	s.client = client
	return client, nil
}

// invalidate drops the session if it is still the one the caller used.
func (s *sessionManager) invalidate(used *http.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == used {
		s.client = nil
	}
}

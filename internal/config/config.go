package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Supported call providers
const (
	ProviderRingCentral = "ringcentral"
	ProviderTwilio      = "twilio"
)

// RingCentralConfig holds the admin JWT login for the RingCentral account
type RingCentralConfig struct {
	ServerURL    string
	ClientID     string
	ClientSecret string
	AdminJWT     string
}

// TwilioConfig holds the Twilio account credentials
type TwilioConfig struct {
	AccountSID  string
	AuthToken   string
	PhoneNumber string
}

// AIConfig holds the Vertex AI settings. An empty ProjectID disables AI features.
type AIConfig struct {
	ProjectID string
	Location  string
	Model     string
}

// Config holds all configuration for the application
type Config struct {
	Port           string
	AllowedOrigins []string
	WSReadTimeout  time.Duration
	WSWriteTimeout time.Duration
	LogLevel       string
	PingPeriod     time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64

	CallProvider string
	RingCentral  RingCentralConfig
	Twilio       TwilioConfig

	AnalyticsWindow     time.Duration
	AnalyticsMaxRecords int
	RecentCallsLimit    int
	ProviderTimeout     time.Duration
	ReportLocation      *time.Location
	CaptionInterval     time.Duration

	AI AIConfig
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := &Config{
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "http://localhost:3000"), ","),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		CallProvider:   strings.ToLower(getEnv("CALL_PROVIDER", ProviderRingCentral)),
		RingCentral: RingCentralConfig{
			ServerURL:    getEnv("RC_SERVER_URL", "https://platform.ringcentral.com"),
			ClientID:     os.Getenv("RC_CLIENT_ID"),
			ClientSecret: os.Getenv("RC_CLIENT_SECRET"),
			AdminJWT:     os.Getenv("RC_ADMIN_JWT"),
		},
		Twilio: TwilioConfig{
			AccountSID:  os.Getenv("TWILIO_ACCOUNT_SID"),
			AuthToken:   os.Getenv("TWILIO_AUTH_TOKEN"),
			PhoneNumber: os.Getenv("TWILIO_PHONE_NUMBER"),
		},
		AI: AIConfig{
			ProjectID: os.Getenv("GCP_PROJECT_ID"),
			Location:  getEnv("VERTEX_AI_LOCATION", "us-central1"),
			Model:     getEnv("VERTEX_AI_MODEL", "gemini-1.5-flash"),
		},
	}

	if config.CallProvider != ProviderRingCentral && config.CallProvider != ProviderTwilio {
		return nil, fmt.Errorf("invalid CALL_PROVIDER %q: must be %s or %s", config.CallProvider, ProviderRingCentral, ProviderTwilio)
	}

	// Parse WebSocket timeouts
	wsReadTimeout, err := strconv.Atoi(getEnv("WS_READ_TIMEOUT", "60"))
	if err != nil {
		return nil, fmt.Errorf("invalid WS_READ_TIMEOUT: %w", err)
	}
	config.WSReadTimeout = time.Duration(wsReadTimeout) * time.Second

	wsWriteTimeout, err := strconv.Atoi(getEnv("WS_WRITE_TIMEOUT", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid WS_WRITE_TIMEOUT: %w", err)
	}
	config.WSWriteTimeout = time.Duration(wsWriteTimeout) * time.Second

	// Calculate WebSocket constants
	config.PongWait = config.WSReadTimeout
	config.PingPeriod = (config.PongWait * 9) / 10 // Must be less than pongWait
	config.WriteWait = config.WSWriteTimeout
	config.MaxMessageSize = 512

	// Analytics pipeline
	windowDays, err := positiveInt("ANALYTICS_WINDOW_DAYS", 30)
	if err != nil {
		return nil, err
	}
	config.AnalyticsWindow = time.Duration(windowDays) * 24 * time.Hour

	if config.AnalyticsMaxRecords, err = positiveInt("ANALYTICS_MAX_RECORDS", 1000); err != nil {
		return nil, err
	}
	if config.RecentCallsLimit, err = positiveInt("RECENT_CALLS_LIMIT", 25); err != nil {
		return nil, err
	}
	if config.ProviderTimeout, err = duration("PROVIDER_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if config.CaptionInterval, err = duration("CAPTION_INTERVAL", 3*time.Second); err != nil {
		return nil, err
	}

	tz := getEnv("REPORT_TIMEZONE", "UTC")
	config.ReportLocation, err = time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid REPORT_TIMEZONE %q: %w", tz, err)
	}

	// Trim spaces from allowed origins
	for i, origin := range config.AllowedOrigins {
		config.AllowedOrigins[i] = strings.TrimSpace(origin)
	}

	return config, nil
}

// AIEnabled reports whether Vertex AI is configured
func (c *Config) AIEnabled() bool {
	return c.AI.ProjectID != ""
}

func positiveInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive, got %d", key, n)
	}
	return n, nil
}

func duration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive, got %s", key, d)
	}
	return d, nil
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

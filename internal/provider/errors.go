package provider

import (
	"errors"
	"fmt"
)

// ErrUpstreamUnavailable is returned when the provider session cannot be
// established, typically because credentials are not configured.
var ErrUpstreamUnavailable = errors.New("call provider unavailable")

// ErrRecordingsUnsupported is returned by providers that cannot serve
// recording audio.
var ErrRecordingsUnsupported = errors.New("recordings not supported by provider")

// ErrRecordingURLRejected is returned when a recording URL points anywhere
// other than the provider's own hosts. Provider credentials are never sent
// to such a URL.
var ErrRecordingURLRejected = errors.New("recording URL is not on a provider host")

// UpstreamError is a non-success response from the provider.
type UpstreamError struct {
	Provider   string
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *UpstreamError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s %s: status %d: %s", e.Provider, e.Op, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s %s: %s", e.Provider, e.Op, msg)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// IsUpstreamError reports whether err wraps an *UpstreamError.
func IsUpstreamError(err error) bool {
	var upErr *UpstreamError
	return errors.As(err, &upErr)
}

// Detail returns the most specific human readable message carried by err.
func Detail(err error) string {
	var upErr *UpstreamError
	if errors.As(err, &upErr) && upErr.Message != "" {
		return upErr.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

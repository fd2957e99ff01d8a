package calllog

import (
	"fmt"
	"time"

	"github.com/aerocall/backend/internal/types"
	"github.com/dustin/go-humanize"
)

// FormatDuration renders a call duration as MM:SS, or H:MM:SS from one hour up
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

// FormatRelative renders t relative to now, e.g. "2 hours ago"
func FormatRelative(t, now time.Time) string {
	if t.IsZero() {
		return types.UnknownName
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

// View renders a normalized call for the call-log and voicemail lists
func View(call types.NormalizedCall, now time.Time) types.CallView {
	return types.CallView{
		ID:           call.ID,
		Contact:      call.Contact,
		User:         call.User,
		Status:       call.Status,
		Direction:    call.Direction,
		Duration:     FormatDuration(call.DurationSeconds),
		Timestamp:    FormatRelative(call.StartTime, now),
		RecordingURL: call.RecordingURL,
	}
}

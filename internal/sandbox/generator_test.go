package sandbox

import (
	"testing"
	"time"

	"github.com/aerocall/backend/internal/calllog"
	"github.com/aerocall/backend/internal/types"
)

func TestGenerateWithinWindowNewestFirst(t *testing.T) {
	to := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)
	from := to.AddDate(0, 0, -30)

	records := NewGenerator(1).Generate(500, from, to)

	if len(records) != 500 {
		t.Fatalf("expected 500 records, got %d", len(records))
	}

	var prev time.Time
	for i, rec := range records {
		start := calllog.ParseStartTime(rec.StartTime)
		if start.Before(from) || !start.Before(to) {
			t.Fatalf("record %d outside window: %s", i, rec.StartTime)
		}
		if i > 0 && start.After(prev) {
			t.Fatalf("record %d newer than previous", i)
		}
		prev = start
		if calllog.IsMalformed(rec) {
			t.Fatalf("record %d is malformed: %+v", i, rec)
		}
	}
}

func TestGenerateMix(t *testing.T) {
	to := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)
	records := NewGenerator(2).Generate(1000, to.AddDate(0, 0, -7), to)

	counts := make(map[types.CallStatus]int)
	withoutExtension := 0
	for _, rec := range records {
		call := calllog.Normalize(rec)
		counts[call.Status]++
		if rec.Extension == nil {
			withoutExtension++
		}
		if call.Status == types.CallStatusMissed && call.DurationSeconds != 0 {
			t.Errorf("missed call %s has duration %d", call.ID, call.DurationSeconds)
		}
		if call.Status == types.CallStatusMissed && rec.Recording != nil {
			t.Errorf("missed call %s has a recording", call.ID)
		}
	}

	for _, status := range []types.CallStatus{types.CallStatusAnswered, types.CallStatusMissed, types.CallStatusVoicemail} {
		if counts[status] == 0 {
			t.Errorf("expected some %s calls", status)
		}
	}
	if counts[types.CallStatusAnswered] < counts[types.CallStatusMissed] {
		t.Errorf("expected answered to dominate, got %+v", counts)
	}
	if withoutExtension == 0 {
		t.Error("expected some records without an extension")
	}
}

func TestGenerateDeterministic(t *testing.T) {
	to := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)
	from := to.AddDate(0, 0, -1)

	a := NewGenerator(42).Generate(20, from, to)
	b := NewGenerator(42).Generate(20, from, to)

	for i := range a {
		if a[i].ID != b[i].ID || a[i].StartTime != b[i].StartTime || a[i].Result != b[i].Result {
			t.Fatalf("record %d differs between runs with the same seed", i)
		}
	}
}

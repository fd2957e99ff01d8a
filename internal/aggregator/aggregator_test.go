package aggregator

import (
	"bytes"
	"encoding/json"
	"math/rand"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/aerocall/backend/internal/types"
)

var (
	windowEnd   = time.Date(2025, 3, 31, 12, 0, 0, 0, time.UTC)
	windowStart = windowEnd.AddDate(0, 0, -30)
)

func call(id string, status types.CallStatus, dir types.CallDirection, secs int, start time.Time, user string) types.NormalizedCall {
	return types.NormalizedCall{
		ID:              id,
		Status:          status,
		Direction:       dir,
		DurationSeconds: secs,
		StartTime:       start,
		User:            types.UserRef{Name: user},
	}
}

func TestAggregateFiveRecordScenario(t *testing.T) {
	day := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	records := []types.NormalizedCall{
		call("1", types.CallStatusMissed, types.DirectionInbound, 0, day, "Jane Doe"),
		call("2", types.CallStatusAnswered, types.DirectionInbound, 330, day.Add(time.Hour), "Jane Doe"),
		call("3", types.CallStatusAnswered, types.DirectionOutbound, 120, day.Add(2*time.Hour), "Jane Doe"),
		call("4", types.CallStatusVoicemail, types.DirectionInbound, 45, day.Add(3*time.Hour), "Jane Doe"),
		call("5", types.CallStatusMissed, types.DirectionOutbound, 0, day.Add(4*time.Hour), types.UnknownName),
	}

	snap := Aggregate(records, windowStart, windowEnd)

	if snap.Stats.TotalCalls != 5 {
		t.Errorf("expected totalCalls 5, got %d", snap.Stats.TotalCalls)
	}
	if snap.Stats.MissedCalls != 2 {
		t.Errorf("expected missedCalls 2, got %d", snap.Stats.MissedCalls)
	}
	if snap.Stats.AvgTalkTime != "3m 45s" {
		t.Errorf("expected avgTalkTime 3m 45s, got %s", snap.Stats.AvgTalkTime)
	}
	if snap.Stats.AnswerRate != "67%" {
		t.Errorf("expected answerRate 67%%, got %s", snap.Stats.AnswerRate)
	}
	if len(snap.CallVolume) != 1 || snap.CallVolume[0].Date != "Mar 14" || snap.CallVolume[0].Calls != 5 {
		t.Errorf("unexpected callVolume %+v", snap.CallVolume)
	}
	if len(snap.UserPerformance) != 1 {
		t.Fatalf("expected 1 userPerformance entry, got %+v", snap.UserPerformance)
	}
	if snap.UserPerformance[0].Name != "Jane" || snap.UserPerformance[0].Calls != 4 {
		t.Errorf("unexpected userPerformance %+v", snap.UserPerformance[0])
	}
}

func TestAggregateEmpty(t *testing.T) {
	snap := Aggregate(nil, windowStart, windowEnd)

	want := types.CallStats{TotalCalls: 0, MissedCalls: 0, AvgTalkTime: "0m 0s", AnswerRate: "0%"}
	if snap.Stats != want {
		t.Errorf("expected %+v, got %+v", want, snap.Stats)
	}
	if snap.CallVolume == nil || len(snap.CallVolume) != 0 {
		t.Errorf("expected empty non-nil callVolume, got %#v", snap.CallVolume)
	}
	if snap.UserPerformance == nil || len(snap.UserPerformance) != 0 {
		t.Errorf("expected empty non-nil userPerformance, got %#v", snap.UserPerformance)
	}

	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}
	if !strings.Contains(string(data), `"callVolume":[]`) || !strings.Contains(string(data), `"userPerformance":[]`) {
		t.Errorf("expected empty JSON arrays, got %s", data)
	}
}

func TestAvgTalkTimeOnlyAnsweredNonZero(t *testing.T) {
	day := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	records := []types.NormalizedCall{
		call("1", types.CallStatusVoicemail, types.DirectionInbound, 600, day, "A"),
		call("2", types.CallStatusMissed, types.DirectionInbound, 30, day, "A"),
		call("3", types.CallStatusAnswered, types.DirectionOutbound, 0, day, "A"),
	}

	if got := Aggregate(records, windowStart, windowEnd).Stats.AvgTalkTime; got != "0m 0s" {
		t.Errorf("expected 0m 0s, got %s", got)
	}
}

func TestAvgTalkTimeRounding(t *testing.T) {
	day := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	tests := []struct {
		name      string
		durations []int
		want      string
	}{
		{"exact", []int{90}, "1m 30s"},
		{"half rounds up", []int{60, 61}, "1m 1s"},
		{"never 60 seconds", []int{119, 120}, "2m 0s"},
		{"long calls", []int{3600, 7200}, "90m 0s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var records []types.NormalizedCall
			for i, d := range tt.durations {
				records = append(records, call(strconv.Itoa(i), types.CallStatusAnswered, types.DirectionOutbound, d, day, "A"))
			}
			if got := Aggregate(records, windowStart, windowEnd).Stats.AvgTalkTime; got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestAnswerRate(t *testing.T) {
	day := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		records []types.NormalizedCall
		want    string
	}{
		{
			name: "no inbound",
			records: []types.NormalizedCall{
				call("1", types.CallStatusAnswered, types.DirectionOutbound, 10, day, "A"),
			},
			want: "0%",
		},
		{
			name: "all missed",
			records: []types.NormalizedCall{
				call("1", types.CallStatusMissed, types.DirectionInbound, 0, day, "A"),
			},
			want: "0%",
		},
		{
			name: "all answered",
			records: []types.NormalizedCall{
				call("1", types.CallStatusAnswered, types.DirectionInbound, 10, day, "A"),
				call("2", types.CallStatusVoicemail, types.DirectionInbound, 10, day, "A"),
			},
			want: "100%",
		},
		{
			name: "one of three",
			records: []types.NormalizedCall{
				call("1", types.CallStatusAnswered, types.DirectionInbound, 10, day, "A"),
				call("2", types.CallStatusMissed, types.DirectionInbound, 0, day, "A"),
				call("3", types.CallStatusMissed, types.DirectionInbound, 0, day, "A"),
			},
			want: "33%",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Aggregate(tt.records, windowStart, windowEnd).Stats.AnswerRate; got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestCallVolumeSortedByParsedDate(t *testing.T) {
	// "Apr 2" sorts before "Feb 28" as a string.
	records := []types.NormalizedCall{
		call("1", types.CallStatusAnswered, types.DirectionInbound, 10, time.Date(2025, 4, 2, 9, 0, 0, 0, time.UTC), "A"),
		call("2", types.CallStatusAnswered, types.DirectionInbound, 10, time.Date(2025, 2, 28, 9, 0, 0, 0, time.UTC), "A"),
		call("3", types.CallStatusAnswered, types.DirectionInbound, 10, time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC), "A"),
		call("4", types.CallStatusAnswered, types.DirectionInbound, 10, time.Date(2025, 2, 28, 18, 0, 0, 0, time.UTC), "A"),
	}

	snap := Aggregate(records, windowStart, windowEnd)

	want := []types.CallVolumePoint{{Date: "Feb 28", Calls: 2}, {Date: "Mar 1", Calls: 1}, {Date: "Apr 2", Calls: 1}}
	if len(snap.CallVolume) != len(want) {
		t.Fatalf("expected %d points, got %+v", len(want), snap.CallVolume)
	}
	for i := range want {
		if snap.CallVolume[i] != want[i] {
			t.Errorf("point %d: expected %+v, got %+v", i, want[i], snap.CallVolume[i])
		}
	}
}

func TestCallVolumeAcrossYearBoundary(t *testing.T) {
	records := []types.NormalizedCall{
		call("1", types.CallStatusAnswered, types.DirectionInbound, 10, time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC), "A"),
		call("2", types.CallStatusAnswered, types.DirectionInbound, 10, time.Date(2024, 12, 30, 9, 0, 0, 0, time.UTC), "A"),
	}

	snap := Aggregate(records, windowStart, windowEnd)

	if len(snap.CallVolume) != 2 || snap.CallVolume[0].Date != "Dec 30" || snap.CallVolume[1].Date != "Jan 2" {
		t.Errorf("unexpected order %+v", snap.CallVolume)
	}
}

func TestCallVolumeUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	records := []types.NormalizedCall{
		// 02:00 UTC on Mar 2 is still Mar 1 at UTC-5.
		call("1", types.CallStatusAnswered, types.DirectionInbound, 10, time.Date(2025, 3, 2, 2, 0, 0, 0, time.UTC), "A"),
	}

	snap := NewAggregator(loc).Aggregate(records, windowStart, windowEnd)

	if len(snap.CallVolume) != 1 || snap.CallVolume[0].Date != "Mar 1" {
		t.Errorf("expected Mar 1 bucket, got %+v", snap.CallVolume)
	}
}

func TestCallVolumeUnknownDateBucket(t *testing.T) {
	records := []types.NormalizedCall{
		call("1", types.CallStatusAnswered, types.DirectionInbound, 10, time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC), "A"),
		call("2", types.CallStatusAnswered, types.DirectionInbound, 10, time.Time{}, "A"),
	}

	snap := Aggregate(records, windowStart, windowEnd)

	if len(snap.CallVolume) != 2 {
		t.Fatalf("expected 2 buckets, got %+v", snap.CallVolume)
	}
	if snap.CallVolume[0].Date != types.UnknownName || snap.CallVolume[0].Calls != 1 {
		t.Errorf("expected leading Unknown bucket, got %+v", snap.CallVolume[0])
	}
}

func TestUserPerformanceFirstSeenOrder(t *testing.T) {
	day := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	records := []types.NormalizedCall{
		call("1", types.CallStatusAnswered, types.DirectionInbound, 10, day, "Mike Ross"),
		call("2", types.CallStatusAnswered, types.DirectionInbound, 10, day, "Jane Doe"),
		call("3", types.CallStatusAnswered, types.DirectionInbound, 10, day, "Mike Ross"),
		call("4", types.CallStatusAnswered, types.DirectionInbound, 10, day, ""),
		call("5", types.CallStatusAnswered, types.DirectionInbound, 10, day, "Jane Doe"),
		call("6", types.CallStatusAnswered, types.DirectionInbound, 10, day, "Jane Smith"),
	}

	snap := Aggregate(records, windowStart, windowEnd)

	want := []types.UserPerformance{{Name: "Mike", Calls: 2}, {Name: "Jane", Calls: 2}, {Name: "Jane", Calls: 1}}
	if len(snap.UserPerformance) != len(want) {
		t.Fatalf("expected %d entries, got %+v", len(want), snap.UserPerformance)
	}
	for i := range want {
		if snap.UserPerformance[i] != want[i] {
			t.Errorf("entry %d: expected %+v, got %+v", i, want[i], snap.UserPerformance[i])
		}
	}
}

func TestWindowEchoed(t *testing.T) {
	snap := Aggregate(nil, windowStart, windowEnd)
	if !snap.Window.From.Equal(windowStart) || !snap.Window.To.Equal(windowEnd) {
		t.Errorf("unexpected window %+v", snap.Window)
	}
}

func randomRecords(rng *rand.Rand, n int) []types.NormalizedCall {
	statuses := []types.CallStatus{types.CallStatusAnswered, types.CallStatusMissed, types.CallStatusVoicemail}
	dirs := []types.CallDirection{types.DirectionInbound, types.DirectionOutbound}
	users := []string{"Jane Doe", "John Doe", "Mike Ross", types.UnknownName, ""}

	records := make([]types.NormalizedCall, 0, n)
	for i := 0; i < n; i++ {
		start := windowStart.Add(time.Duration(rng.Int63n(int64(30 * 24 * time.Hour))))
		if rng.Intn(20) == 0 {
			start = time.Time{}
		}
		records = append(records, call(
			strconv.Itoa(i),
			statuses[rng.Intn(len(statuses))],
			dirs[rng.Intn(len(dirs))],
			rng.Intn(1800),
			start,
			users[rng.Intn(len(users))],
		))
	}
	return records
}

func TestAggregateProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 50; round++ {
		records := randomRecords(rng, rng.Intn(200))
		snap := Aggregate(records, windowStart, windowEnd)

		if snap.Stats.TotalCalls != len(records) {
			t.Fatalf("round %d: totalCalls %d != %d", round, snap.Stats.TotalCalls, len(records))
		}
		if snap.Stats.MissedCalls > snap.Stats.TotalCalls {
			t.Fatalf("round %d: missed %d > total %d", round, snap.Stats.MissedCalls, snap.Stats.TotalCalls)
		}

		rate, err := strconv.Atoi(strings.TrimSuffix(snap.Stats.AnswerRate, "%"))
		if err != nil || !strings.HasSuffix(snap.Stats.AnswerRate, "%") || rate < 0 || rate > 100 {
			t.Fatalf("round %d: bad answer rate %q", round, snap.Stats.AnswerRate)
		}

		volumeSum := 0
		for _, p := range snap.CallVolume {
			if p.Calls <= 0 {
				t.Fatalf("round %d: non-positive bucket %+v", round, p)
			}
			volumeSum += p.Calls
		}
		if volumeSum != snap.Stats.TotalCalls {
			t.Fatalf("round %d: callVolume sum %d != total %d", round, volumeSum, snap.Stats.TotalCalls)
		}

		excluded := 0
		for _, r := range records {
			if r.User.Name == "" || r.User.Name == types.UnknownName {
				excluded++
			}
		}
		perfSum := 0
		for _, p := range snap.UserPerformance {
			if p.Name == types.UnknownName || p.Name == "" {
				t.Fatalf("round %d: excluded user leaked: %+v", round, p)
			}
			perfSum += p.Calls
		}
		if perfSum+excluded != snap.Stats.TotalCalls {
			t.Fatalf("round %d: userPerformance %d + excluded %d != total %d", round, perfSum, excluded, snap.Stats.TotalCalls)
		}
	}
}

func TestCallVolumeNonDecreasing(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	records := randomRecords(rng, 300)
	for i := range records {
		if records[i].StartTime.IsZero() {
			records[i].StartTime = windowStart
		}
	}

	snap := Aggregate(records, windowStart, windowEnd)

	var prev time.Time
	for i, p := range snap.CallVolume {
		d, err := time.Parse("Jan 2 2006", p.Date+" 2025")
		if err != nil {
			t.Fatalf("bad label %q: %v", p.Date, err)
		}
		if i > 0 && d.Before(prev) {
			t.Fatalf("callVolume not ordered at %d: %s before previous", i, p.Date)
		}
		prev = d
	}
}

func TestAggregateIdempotent(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	records := randomRecords(rng, 150)

	first, err := json.Marshal(Aggregate(records, windowStart, windowEnd))
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}
	second, err := json.Marshal(Aggregate(records, windowStart, windowEnd))
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}

	if !bytes.Equal(first, second) {
		t.Error("expected byte-identical output for identical input")
	}
}

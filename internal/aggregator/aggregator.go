// Package aggregator derives analytics snapshots from normalized call records.
package aggregator

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/aerocall/backend/internal/types"
)

const (
	dateKeyLayout   = "2006-01-02"
	dateLabelLayout = "Jan 2"
	unknownDateKey  = "unknown"
)

// Aggregator computes AnalyticsSnapshots. It holds no mutable state and is
// safe for concurrent use.
type Aggregator struct {
	location *time.Location
}

// NewAggregator creates an aggregator that buckets calendar days in loc.
// A nil loc means UTC.
func NewAggregator(loc *time.Location) *Aggregator {
	if loc == nil {
		loc = time.UTC
	}
	return &Aggregator{location: loc}
}

// Aggregate is a convenience for NewAggregator(time.UTC).Aggregate
func Aggregate(records []types.NormalizedCall, windowStart, windowEnd time.Time) types.AnalyticsSnapshot {
	return NewAggregator(time.UTC).Aggregate(records, windowStart, windowEnd)
}

// Aggregate computes the snapshot for records that the caller has already
// restricted to [windowStart, windowEnd].
func (a *Aggregator) Aggregate(records []types.NormalizedCall, windowStart, windowEnd time.Time) types.AnalyticsSnapshot {
	var (
		totalCalls      int
		missedCalls     int
		talkSeconds     int
		talkCount       int
		inboundTotal    int
		inboundAnswered int
	)

	volume := newOrderedCounter[string]()
	volumeDates := make(map[string]time.Time)
	users := newOrderedCounter[string]()

	for _, call := range records {
		totalCalls++

		if call.Status == types.CallStatusMissed {
			missedCalls++
		}
		if call.Status == types.CallStatusAnswered && call.DurationSeconds > 0 {
			talkSeconds += call.DurationSeconds
			talkCount++
		}
		if call.Direction == types.DirectionInbound {
			inboundTotal++
			if call.Status != types.CallStatusMissed {
				inboundAnswered++
			}
		}

		key, day := a.dateKey(call.StartTime)
		if volume.Inc(key) {
			volumeDates[key] = day
		}

		if name := strings.TrimSpace(call.User.Name); name != "" && name != types.UnknownName {
			users.Inc(name)
		}
	}

	return types.AnalyticsSnapshot{
		Stats: types.CallStats{
			TotalCalls:  totalCalls,
			MissedCalls: missedCalls,
			AvgTalkTime: formatAvgTalkTime(talkSeconds, talkCount),
			AnswerRate:  formatAnswerRate(inboundAnswered, inboundTotal),
		},
		CallVolume:      buildCallVolume(volume, volumeDates),
		UserPerformance: buildUserPerformance(users),
		Window:          types.Window{From: windowStart, To: windowEnd},
	}
}

// dateKey returns the canonical year-qualified day key and the day's midnight
// in the aggregator's location. Records without a usable start time share one bucket.
func (a *Aggregator) dateKey(t time.Time) (string, time.Time) {
	if t.IsZero() {
		return unknownDateKey, time.Time{}
	}
	local := t.In(a.location)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, a.location)
	return day.Format(dateKeyLayout), day
}

func buildCallVolume(volume *orderedCounter[string], dates map[string]time.Time) []types.CallVolumePoint {
	keys := volume.Keys()
	sort.SliceStable(keys, func(i, j int) bool {
		return dates[keys[i]].Before(dates[keys[j]])
	})

	points := make([]types.CallVolumePoint, 0, len(keys))
	for _, key := range keys {
		label := types.UnknownName
		if key != unknownDateKey {
			label = dates[key].Format(dateLabelLayout)
		}
		points = append(points, types.CallVolumePoint{Date: label, Calls: volume.Count(key)})
	}
	return points
}

func buildUserPerformance(users *orderedCounter[string]) []types.UserPerformance {
	keys := users.Keys()
	perf := make([]types.UserPerformance, 0, len(keys))
	for _, name := range keys {
		perf = append(perf, types.UserPerformance{
			Name:  firstName(name),
			Calls: users.Count(name),
		})
	}
	return perf
}

func firstName(fullName string) string {
	fields := strings.Fields(fullName)
	if len(fields) == 0 {
		return fullName
	}
	return fields[0]
}

// formatAvgTalkTime renders the mean talk time as "{m}m {s}s", rounding to
// the nearest whole second first so seconds never reads 60.
func formatAvgTalkTime(totalSeconds, count int) string {
	if count == 0 {
		return "0m 0s"
	}
	avg := int(math.Round(float64(totalSeconds) / float64(count)))
	return fmt.Sprintf("%dm %ds", avg/60, avg%60)
}

func formatAnswerRate(answered, total int) string {
	if total == 0 {
		return "0%"
	}
	rate := math.Round(float64(answered) / float64(total) * 100)
	return fmt.Sprintf("%d%%", int(rate))
}

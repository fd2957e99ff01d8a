package types

import "time"

// CallStats holds the scalar statistics of an analytics snapshot
type CallStats struct {
	TotalCalls  int    `json:"totalCalls"`
	MissedCalls int    `json:"missedCalls"`
	AvgTalkTime string `json:"avgTalkTime"` // "{m}m {s}s"
	AnswerRate  string `json:"answerRate"`  // "67%"
}

// CallVolumePoint is the number of calls on one calendar day
type CallVolumePoint struct {
	Date  string `json:"date"` // "Jan 2"
	Calls int    `json:"calls"`
}

// UserPerformance is the number of calls handled by one team member
type UserPerformance struct {
	Name  string `json:"name"` // first name only
	Calls int    `json:"calls"`
}

// Window is the time range a snapshot was computed for
type Window struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// AnalyticsSnapshot is the aggregated view over one window of call records
type AnalyticsSnapshot struct {
	Stats           CallStats         `json:"stats"`
	CallVolume      []CallVolumePoint `json:"callVolume"`
	UserPerformance []UserPerformance `json:"userPerformance"`
	Window          Window            `json:"window"`
}

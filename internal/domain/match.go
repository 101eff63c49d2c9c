package domain

import "time"

// Half is the phase of a tracked match
type Half string

const (
	HalfNotStarted Half = "NOT_STARTED"
	HalfFirst      Half = "FIRST"
	HalfSecond     Half = "SECOND"
)

// MatchStatus is a snapshot of the live match session
type MatchStatus struct {
	Half         Half          `json:"half"`
	Paused       bool          `json:"paused"`
	Running      bool          `json:"running"`
	Prefix       string        `json:"prefix"`
	Home         string        `json:"home"`
	Away         string        `json:"away"`
	HomeScore    int           `json:"home_score"`
	AwayScore    int           `json:"away_score"`
	Elapsed      int           `json:"elapsed_seconds"`
	ExtraTime    int           `json:"extra_time_seconds"`
	HalfDuration time.Duration `json:"half_duration"`
	Remaining    int           `json:"remaining_seconds"`
	Warp         string        `json:"warp,omitempty"`
	StartedAt    *time.Time    `json:"started_at,omitempty"`
}

// MatchResult is a finished match as stored in the database
type MatchResult struct {
	ID        int64     `json:"id"`
	Home      string    `json:"home"`
	Away      string    `json:"away"`
	HomeScore int       `json:"home_score"`
	AwayScore int       `json:"away_score"`
	Reason    string    `json:"reason"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}

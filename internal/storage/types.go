package storage

import "time"

// DailyStats aggregates productivity statistics for one calendar day.
type DailyStats struct {
	Date                string `json:"date"`
	FocusSeconds        int64  `json:"focus_seconds"`
	BreakSeconds        int64  `json:"break_seconds"`
	SessionsCompleted   int64  `json:"sessions_completed"`
	DistractionsBlocked int64  `json:"distractions_blocked"`
}

// URLLog represents one tab-activity log entry.
type URLLog struct {
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Timestamp time.Time `json:"timestamp"`
}

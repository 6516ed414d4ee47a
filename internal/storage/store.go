package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a record is missing from storage.
var ErrNotFound = errors.New("storage: record not found")

// Store represents the root storage interface.
type Store interface {
	Close() error
	Stats() StatsStore
	Logs() LogStore
}

// StatsStore manages per-day productivity statistics.
type StatsStore interface {
	GetDailyStats(ctx context.Context, date string) (*DailyStats, error)
	AddFocusSeconds(ctx context.Context, date string, seconds int64) error
	AddBreakSeconds(ctx context.Context, date string, seconds int64) error
	IncrementSessionsCompleted(ctx context.Context, date string) error
	IncrementDistractionsBlocked(ctx context.Context, date string) error
	DeleteStatsBefore(ctx context.Context, cutoffDate string) (int, error)
}

// LogStore manages the raw URL activity log fed by the browser extension.
type LogStore interface {
	AddURLLog(ctx context.Context, entry URLLog) error
	QueryURLLogs(ctx context.Context, filter URLLogFilter) ([]URLLog, error)
	DeleteURLLogsBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// URLLogFilter defines criteria for querying URL logs.
type URLLogFilter struct {
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int
	Offset    int
}

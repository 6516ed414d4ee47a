package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/goodtune/focusd/internal/storage"
	"github.com/redis/go-redis/v9"
)

type statsStore struct {
	client *redis.Client
}

func statsKey(date string) string {
	return fmt.Sprintf("focusd:stats:%s", date)
}

const statsDateIndex = "focusd:stats:dates"

// GetDailyStats retrieves the statistics hash for a specific date
func (s *statsStore) GetDailyStats(ctx context.Context, date string) (*storage.DailyStats, error) {
	data, err := s.client.HGetAll(ctx, statsKey(date)).Result()
	if err != nil {
		return nil, err
	}

	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	stats := &storage.DailyStats{Date: date}
	stats.FocusSeconds = parseInt64(data["focus_seconds"])
	stats.BreakSeconds = parseInt64(data["break_seconds"])
	stats.SessionsCompleted = parseInt64(data["sessions_completed"])
	stats.DistractionsBlocked = parseInt64(data["distractions_blocked"])

	return stats, nil
}

// AddFocusSeconds atomically adds completed focus time to a day
func (s *statsStore) AddFocusSeconds(ctx context.Context, date string, seconds int64) error {
	return s.increment(ctx, date, "focus_seconds", seconds)
}

// AddBreakSeconds atomically adds completed break time to a day
func (s *statsStore) AddBreakSeconds(ctx context.Context, date string, seconds int64) error {
	return s.increment(ctx, date, "break_seconds", seconds)
}

// IncrementSessionsCompleted bumps the completed-session counter for a day
func (s *statsStore) IncrementSessionsCompleted(ctx context.Context, date string) error {
	return s.increment(ctx, date, "sessions_completed", 1)
}

// IncrementDistractionsBlocked bumps the blocked-distraction counter for a day
func (s *statsStore) IncrementDistractionsBlocked(ctx context.Context, date string) error {
	return s.increment(ctx, date, "distractions_blocked", 1)
}

func (s *statsStore) increment(ctx context.Context, date, field string, delta int64) error {
	pipe := s.client.Pipeline()
	pipe.HIncrBy(ctx, statsKey(date), field, delta)
	pipe.SAdd(ctx, statsDateIndex, date)
	_, err := pipe.Exec(ctx)
	return err
}

// DeleteStatsBefore removes daily statistics older than the cutoff date.
// Dates are YYYY-MM-DD, so a lexicographic compare is a chronological one.
func (s *statsStore) DeleteStatsBefore(ctx context.Context, cutoffDate string) (int, error) {
	dates, err := s.client.SMembers(ctx, statsDateIndex).Result()
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, date := range dates {
		if date >= cutoffDate {
			continue
		}
		if err := s.client.Del(ctx, statsKey(date)).Err(); err != nil {
			return deleted, err
		}
		if err := s.client.SRem(ctx, statsDateIndex, date).Err(); err != nil {
			return deleted, err
		}
		deleted++
	}

	return deleted, nil
}

func parseInt64(s string) int64 {
	v, _ := strconv.ParseInt(s, 10, 64)
	return v
}

package redis

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/goodtune/focusd/internal/storage"
	"github.com/redis/go-redis/v9"
)

type logStore struct {
	client *redis.Client
}

const urlLogKey = "focusd:logs:url"

// AddURLLog appends a tab-activity entry, scored by its timestamp
func (s *logStore) AddURLLog(ctx context.Context, entry storage.URLLog) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	return s.client.ZAdd(ctx, urlLogKey, redis.Z{
		Score:  float64(entry.Timestamp.UnixNano()),
		Member: string(data),
	}).Err()
}

// QueryURLLogs returns entries newest-first within the filter's time range
func (s *logStore) QueryURLLogs(ctx context.Context, filter storage.URLLogFilter) ([]storage.URLLog, error) {
	min := "-inf"
	max := "+inf"
	if filter.StartTime != nil {
		min = formatScore(*filter.StartTime)
	}
	if filter.EndTime != nil {
		max = formatScore(*filter.EndTime)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	members, err := s.client.ZRevRangeByScore(ctx, urlLogKey, &redis.ZRangeBy{
		Min:    min,
		Max:    max,
		Offset: int64(filter.Offset),
		Count:  int64(limit),
	}).Result()
	if err != nil {
		return nil, err
	}

	logs := make([]storage.URLLog, 0, len(members))
	for _, member := range members {
		var entry storage.URLLog
		if err := json.Unmarshal([]byte(member), &entry); err != nil {
			continue
		}
		logs = append(logs, entry)
	}

	return logs, nil
}

// DeleteURLLogsBefore prunes entries older than the cutoff
func (s *logStore) DeleteURLLogsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	removed, err := s.client.ZRemRangeByScore(ctx, urlLogKey, "-inf", "("+formatScore(cutoff)).Result()
	if err != nil {
		return 0, err
	}
	return int(removed), nil
}

func formatScore(t time.Time) string {
	return strconv.FormatFloat(float64(t.UnixNano()), 'f', -1, 64)
}

package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/goodtune/focusd/internal/config"
	"github.com/goodtune/focusd/internal/storage"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	mr := miniredis.RunT(t)

	cfg := config.RedisConfig{
		Host:         mr.Addr(), // Full address "host:port"
		Port:         0,         // Not used when host contains port
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 5,
		DialTimeout:  "5s",
		ReadTimeout:  "3s",
		WriteTimeout: "3s",
	}

	store, err := Open(cfg)
	if err != nil {
		t.Fatalf("Failed to open Redis store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestStatsStore_IncrementAndGet(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	stats := store.Stats()

	date := "2025-06-01"

	if err := stats.AddFocusSeconds(ctx, date, 1500); err != nil {
		t.Fatalf("AddFocusSeconds failed: %v", err)
	}
	if err := stats.AddFocusSeconds(ctx, date, 300); err != nil {
		t.Fatalf("AddFocusSeconds failed: %v", err)
	}
	if err := stats.AddBreakSeconds(ctx, date, 300); err != nil {
		t.Fatalf("AddBreakSeconds failed: %v", err)
	}
	if err := stats.IncrementSessionsCompleted(ctx, date); err != nil {
		t.Fatalf("IncrementSessionsCompleted failed: %v", err)
	}
	if err := stats.IncrementDistractionsBlocked(ctx, date); err != nil {
		t.Fatalf("IncrementDistractionsBlocked failed: %v", err)
	}
	if err := stats.IncrementDistractionsBlocked(ctx, date); err != nil {
		t.Fatalf("IncrementDistractionsBlocked failed: %v", err)
	}

	got, err := stats.GetDailyStats(ctx, date)
	if err != nil {
		t.Fatalf("GetDailyStats failed: %v", err)
	}

	if got.FocusSeconds != 1800 {
		t.Errorf("Expected FocusSeconds 1800, got %d", got.FocusSeconds)
	}
	if got.BreakSeconds != 300 {
		t.Errorf("Expected BreakSeconds 300, got %d", got.BreakSeconds)
	}
	if got.SessionsCompleted != 1 {
		t.Errorf("Expected SessionsCompleted 1, got %d", got.SessionsCompleted)
	}
	if got.DistractionsBlocked != 2 {
		t.Errorf("Expected DistractionsBlocked 2, got %d", got.DistractionsBlocked)
	}
}

func TestStatsStore_GetMissingDate(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.Stats().GetDailyStats(context.Background(), "1999-01-01")
	if err != storage.ErrNotFound {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestStatsStore_DeleteStatsBefore(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	stats := store.Stats()

	for _, date := range []string{"2025-05-30", "2025-05-31", "2025-06-01"} {
		if err := stats.AddFocusSeconds(ctx, date, 60); err != nil {
			t.Fatalf("AddFocusSeconds failed: %v", err)
		}
	}

	deleted, err := stats.DeleteStatsBefore(ctx, "2025-06-01")
	if err != nil {
		t.Fatalf("DeleteStatsBefore failed: %v", err)
	}
	if deleted != 2 {
		t.Errorf("Expected 2 deleted, got %d", deleted)
	}

	if _, err := stats.GetDailyStats(ctx, "2025-05-30"); err != storage.ErrNotFound {
		t.Errorf("Expected ErrNotFound for pruned date, got %v", err)
	}
	if _, err := stats.GetDailyStats(ctx, "2025-06-01"); err != nil {
		t.Errorf("Expected kept date to survive, got %v", err)
	}
}

func TestLogStore_AddAndQuery(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	logs := store.Logs()

	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	entries := []storage.URLLog{
		{URL: "https://news.example.com", Title: "News", Timestamp: base},
		{URL: "https://docs.example.com", Title: "Docs", Timestamp: base.Add(time.Minute)},
		{URL: "https://video.example.com", Title: "Video", Timestamp: base.Add(2 * time.Minute)},
	}
	for _, e := range entries {
		if err := logs.AddURLLog(ctx, e); err != nil {
			t.Fatalf("AddURLLog failed: %v", err)
		}
	}

	got, err := logs.QueryURLLogs(ctx, storage.URLLogFilter{Limit: 10})
	if err != nil {
		t.Fatalf("QueryURLLogs failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(got))
	}
	// Newest first
	if got[0].URL != "https://video.example.com" {
		t.Errorf("Expected newest entry first, got %s", got[0].URL)
	}

	// Time-bounded query
	start := base.Add(30 * time.Second)
	got, err = logs.QueryURLLogs(ctx, storage.URLLogFilter{StartTime: &start, Limit: 10})
	if err != nil {
		t.Fatalf("QueryURLLogs failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("Expected 2 entries after start time, got %d", len(got))
	}
}

func TestLogStore_DeleteURLLogsBefore(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	logs := store.Logs()

	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		entry := storage.URLLog{
			URL:       "https://example.com",
			Title:     "Example",
			Timestamp: base.Add(time.Duration(i) * time.Hour),
		}
		if err := logs.AddURLLog(ctx, entry); err != nil {
			t.Fatalf("AddURLLog failed: %v", err)
		}
	}

	removed, err := logs.DeleteURLLogsBefore(ctx, base.Add(3*time.Hour))
	if err != nil {
		t.Fatalf("DeleteURLLogsBefore failed: %v", err)
	}
	if removed != 3 {
		t.Errorf("Expected 3 removed, got %d", removed)
	}

	got, err := logs.QueryURLLogs(ctx, storage.URLLogFilter{Limit: 10})
	if err != nil {
		t.Fatalf("QueryURLLogs failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("Expected 2 remaining, got %d", len(got))
	}
}

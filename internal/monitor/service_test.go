package monitor

import (
	"context"
	"testing"
	"time"

	"quantboard/internal/backtest"
	"quantboard/internal/config"
	"quantboard/internal/store"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	s, err := store.NewSQLite(config.DatabaseConfig{
		InMemory:     true,
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	})
	if err != nil {
		t.Fatalf("NewSQLite returned error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	svc, err := NewService(s, nil)
	if err != nil {
		t.Fatalf("NewService returned error: %v", err)
	}
	return svc
}

func TestService_RecordAndList(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	svc.RecordBacktest(ctx, backtest.Result{
		Success:    true,
		Strategy:   "rsi",
		Symbol:     "BTC/USDT",
		Interval:   "1h",
		ReturnPct:  12.5,
		TradeCount: 4,
	})
	svc.RecordSync(ctx, "BTC/USDT", "1h", 240)

	events, err := svc.ListEvents(ctx, "", 10)
	if err != nil {
		t.Fatalf("ListEvents returned error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	// 最近的事件排在最前。
	if events[0].Type != EventCollectorSync {
		t.Errorf("expected latest event first, got %s", events[0].Type)
	}

	only, err := svc.ListEvents(ctx, EventBacktestRun, 10)
	if err != nil {
		t.Fatalf("ListEvents returned error: %v", err)
	}
	if len(only) != 1 || only[0].Type != EventBacktestRun {
		t.Errorf("type filter failed: %v", only)
	}
}

func TestService_RecordBatch(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	started := time.Now().UTC().Add(-2 * time.Second)
	svc.RecordBatch(ctx, backtest.BatchSummary{
		BatchID:    "abc",
		Strategy:   "momentum",
		Interval:   "1d",
		Total:      5,
		Succeeded:  4,
		Failed:     1,
		Workers:    2,
		StartedAt:  started,
		FinishedAt: started.Add(time.Second),
	})

	events, err := svc.ListEvents(ctx, EventBatchRun, 10)
	if err != nil {
		t.Fatalf("ListEvents returned error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 batch event, got %d", len(events))
	}
}

package backtest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"quantboard/internal/exchange"
)

// fakeSource 基于内存K线实现 CandleSource。
type fakeSource struct {
	candles map[string][]exchange.Candle
	err     error
}

func (f *fakeSource) RangeCandles(_ context.Context, symbol string, _ exchange.Interval, start, end time.Time) ([]exchange.Candle, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []exchange.Candle
	for _, c := range f.candles[symbol] {
		if c.Timestamp.Before(start) || c.Timestamp.After(end) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeSource) ListSymbols(_ context.Context, _ exchange.Interval, minBars int) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	var symbols []string
	for symbol, candles := range f.candles {
		if len(candles) >= minBars {
			symbols = append(symbols, symbol)
		}
	}
	sort.Strings(symbols)
	return symbols, nil
}

// fakeCache 基于内存map实现 Cache。
type fakeCache struct {
	mu     sync.Mutex
	data   map[string][]byte
	setErr error
	hits   int
	sets   int
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string][]byte)}
}

func (f *fakeCache) GetJSON(_ context.Context, key string, dst interface{}) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.data[key]
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false
	}
	f.hits++
	return true
}

func (f *fakeCache) SetJSON(_ context.Context, key string, value interface{}, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.data[key] = raw
	f.sets++
	return nil
}

func makeCandles(n int, price func(int) float64) []exchange.Candle {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]exchange.Candle, n)
	for i := 0; i < n; i++ {
		p := price(i)
		candles[i] = exchange.Candle{
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Open:      p,
			High:      p * 1.005,
			Low:       p * 0.995,
			Close:     p,
			Volume:    1000,
		}
	}
	return candles
}

func wavePrice(i int) float64 {
	return 100 + 15*math.Sin(float64(i)/8)
}

func testWindow() (time.Time, time.Time) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return base, base.Add(400 * time.Hour)
}

func newTestEngine(t *testing.T, source CandleSource, cache Cache) *Engine {
	t.Helper()
	engine, err := NewEngine(EngineConfig{
		DefaultInitialCash: 10000,
		DefaultFeeRate:     0.001,
		MinBars:            30,
		MaxWorkers:         4,
		CacheTTL:           time.Hour,
	}, source, cache, nil)
	if err != nil {
		t.Fatalf("NewEngine returned error: %v", err)
	}
	return engine
}

func TestEngine_UnknownStrategyIsDomainFailure(t *testing.T) {
	source := &fakeSource{candles: map[string][]exchange.Candle{}}
	engine := newTestEngine(t, source, nil)

	res, err := engine.Run(context.Background(), Request{
		Strategy: "no_such", Symbol: "BTC/USDT", Interval: exchange.Interval1h,
	})
	if err != nil {
		t.Fatalf("domain failure must not return error: %v", err)
	}
	if res.Success {
		t.Fatalf("expected unsuccessful result")
	}
	if !strings.Contains(res.Reason, "未知策略") {
		t.Errorf("unexpected reason: %q", res.Reason)
	}
}

func TestEngine_EmptySymbol(t *testing.T) {
	engine := newTestEngine(t, &fakeSource{candles: map[string][]exchange.Candle{}}, nil)

	res, err := engine.Run(context.Background(), Request{Strategy: "rsi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Success {
		t.Fatalf("expected unsuccessful result for empty symbol")
	}
}

func TestEngine_InvalidInterval(t *testing.T) {
	engine := newTestEngine(t, &fakeSource{candles: map[string][]exchange.Candle{}}, nil)

	res, err := engine.Run(context.Background(), Request{
		Strategy: "rsi", Symbol: "BTC/USDT", Interval: "5m",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Success {
		t.Fatalf("expected unsuccessful result for unsupported interval")
	}
}

func TestEngine_NoDataInRange(t *testing.T) {
	engine := newTestEngine(t, &fakeSource{candles: map[string][]exchange.Candle{}}, nil)
	start, end := testWindow()

	res, err := engine.Run(context.Background(), Request{
		Strategy: "rsi", Symbol: "BTC/USDT", Interval: exchange.Interval1h,
		Start: start, End: end,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Success {
		t.Fatalf("expected unsuccessful result without data")
	}
	if !strings.Contains(res.Reason, "无价格数据") {
		t.Errorf("unexpected reason: %q", res.Reason)
	}
}

func TestEngine_InsufficientHistory(t *testing.T) {
	source := &fakeSource{candles: map[string][]exchange.Candle{
		"BTC/USDT": makeCandles(10, wavePrice),
	}}
	engine := newTestEngine(t, source, nil)
	start, end := testWindow()

	res, err := engine.Run(context.Background(), Request{
		Strategy: "rsi", Symbol: "BTC/USDT", Interval: exchange.Interval1h,
		Start: start, End: end,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Success {
		t.Fatalf("expected unsuccessful result for short history")
	}
	if !strings.Contains(res.Reason, "历史数据不足") {
		t.Errorf("unexpected reason: %q", res.Reason)
	}
}

func TestEngine_SourceErrorIsInfraError(t *testing.T) {
	engine := newTestEngine(t, &fakeSource{err: errors.New("db down")}, nil)
	start, end := testWindow()

	_, err := engine.Run(context.Background(), Request{
		Strategy: "rsi", Symbol: "BTC/USDT", Interval: exchange.Interval1h,
		Start: start, End: end,
	})
	if err == nil {
		t.Fatalf("expected infrastructure error")
	}
}

func TestEngine_SuccessfulRunConsistency(t *testing.T) {
	source := &fakeSource{candles: map[string][]exchange.Candle{
		"BTC/USDT": makeCandles(300, wavePrice),
	}}
	engine := newTestEngine(t, source, nil)
	start, end := testWindow()

	res, err := engine.Run(context.Background(), Request{
		Strategy: "rsi", Symbol: "BTC/USDT", Interval: exchange.Interval1h,
		Start: start, End: end,
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if !res.Success {
		t.Fatalf("expected success, reason=%q", res.Reason)
	}

	if res.Bars != 300 {
		t.Errorf("bars: got %d want 300", res.Bars)
	}
	if res.InitialCash != 10000 {
		t.Errorf("initial cash: got %v want 10000", res.InitialCash)
	}
	if res.FinalValue <= 0 {
		t.Errorf("final value must be positive, got %v", res.FinalValue)
	}

	wantReturn := (res.FinalValue/res.InitialCash - 1) * 100
	if diff := math.Abs(res.ReturnPct - wantReturn); diff > 1e-6 {
		t.Errorf("return pct inconsistent: got %v want %v", res.ReturnPct, wantReturn)
	}
	if res.TradeCount != len(res.Trades) {
		t.Errorf("trade count mismatch: %d vs %d trades", res.TradeCount, len(res.Trades))
	}

	sells := 0
	for _, trade := range res.Trades {
		if trade.Side == SideSell {
			sells++
		}
	}
	if res.Wins+res.Losses != sells {
		t.Errorf("wins+losses (%d) must equal closed trades (%d)", res.Wins+res.Losses, sells)
	}
}

func TestEngine_CacheDeterminism(t *testing.T) {
	source := &fakeSource{candles: map[string][]exchange.Candle{
		"BTC/USDT": makeCandles(300, wavePrice),
	}}
	cache := newFakeCache()
	engine := newTestEngine(t, source, cache)
	start, end := testWindow()

	req := Request{
		Strategy: "rsi", Symbol: "BTC/USDT", Interval: exchange.Interval1h,
		Start: start, End: end,
	}

	first, err := engine.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("first run error: %v", err)
	}
	if first.FromCache {
		t.Fatalf("first run must not come from cache")
	}

	second, err := engine.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("second run error: %v", err)
	}
	if !second.FromCache {
		t.Fatalf("second run must come from cache")
	}

	second.FromCache = false
	if normalizeJSON(t, first) != normalizeJSON(t, second) {
		t.Errorf("cached result differs from original")
	}
}

func TestEngine_ForceRefreshBypassesCache(t *testing.T) {
	source := &fakeSource{candles: map[string][]exchange.Candle{
		"BTC/USDT": makeCandles(300, wavePrice),
	}}
	cache := newFakeCache()
	engine := newTestEngine(t, source, cache)
	start, end := testWindow()

	req := Request{
		Strategy: "rsi", Symbol: "BTC/USDT", Interval: exchange.Interval1h,
		Start: start, End: end,
	}

	if _, err := engine.Run(context.Background(), req); err != nil {
		t.Fatalf("seed run error: %v", err)
	}

	req.ForceRefresh = true
	res, err := engine.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("refresh run error: %v", err)
	}
	if res.FromCache {
		t.Errorf("force refresh must bypass cache")
	}
	if cache.sets != 2 {
		t.Errorf("expected cache rewrite on refresh, sets=%d", cache.sets)
	}
}

func TestEngine_CacheWriteFailureDoesNotFailRun(t *testing.T) {
	source := &fakeSource{candles: map[string][]exchange.Candle{
		"BTC/USDT": makeCandles(300, wavePrice),
	}}
	cache := newFakeCache()
	cache.setErr = fmt.Errorf("redis down")
	engine := newTestEngine(t, source, cache)
	start, end := testWindow()

	res, err := engine.Run(context.Background(), Request{
		Strategy: "rsi", Symbol: "BTC/USDT", Interval: exchange.Interval1h,
		Start: start, End: end,
	})
	if err != nil {
		t.Fatalf("cache write failure must not fail the run: %v", err)
	}
	if !res.Success {
		t.Fatalf("expected success, reason=%q", res.Reason)
	}
}

func normalizeJSON(t *testing.T, res Result) string {
	t.Helper()
	raw, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("marshal result: %v", err)
	}
	return string(raw)
}

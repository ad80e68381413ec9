package server

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"quantboard/internal/backtest"
	"quantboard/internal/config"
	"quantboard/internal/exchange"
	"quantboard/internal/indicator"
	"quantboard/internal/monitor"
	"quantboard/internal/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	db, err := store.NewSQLite(config.DatabaseConfig{
		InMemory:     true,
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	})
	if err != nil {
		t.Fatalf("NewSQLite returned error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	candles, err := store.NewCandleRepo(db)
	if err != nil {
		t.Fatalf("NewCandleRepo returned error: %v", err)
	}
	values, err := store.NewIndicatorRepo(db)
	if err != nil {
		t.Fatalf("NewIndicatorRepo returned error: %v", err)
	}
	mon, err := monitor.NewService(db, nil)
	if err != nil {
		t.Fatalf("NewService returned error: %v", err)
	}

	seedCandles(t, candles)

	engine, err := backtest.NewEngine(backtest.EngineConfig{
		DefaultInitialCash: 10000,
		DefaultFeeRate:     0.001,
		MinBars:            30,
		MaxWorkers:         2,
		CacheTTL:           time.Hour,
	}, candles, nil, nil)
	if err != nil {
		t.Fatalf("NewEngine returned error: %v", err)
	}

	indicators, err := indicator.NewService(candles, values, nil)
	if err != nil {
		t.Fatalf("indicator.NewService returned error: %v", err)
	}

	srv, err := New(config.ServerConfig{Port: 0}, engine, candles, indicators, mon, nil, db, nil)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return srv
}

func seedCandles(t *testing.T, repo *store.CandleRepo) {
	t.Helper()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]exchange.Candle, 300)
	for i := range candles {
		p := 100 + 15*math.Sin(float64(i)/8)
		candles[i] = exchange.Candle{
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Open:      p, High: p * 1.005, Low: p * 0.995, Close: p,
			Volume: 1000,
		}
	}
	if _, err := repo.UpsertCandles(context.Background(), "BTC/USDT", exchange.Interval1h, candles); err != nil {
		t.Fatalf("seed candles: %v", err)
	}
}

func doRequest(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	srv.router().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	rec := doRequest(t, srv, http.MethodGet, "/healthz", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d want 200, body=%s", rec.Code, rec.Body.String())
	}

	var payload map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if payload["database"] != "up" {
		t.Errorf("database: got %q want up", payload["database"])
	}
	if payload["cache"] != "disabled" {
		t.Errorf("cache: got %q want disabled", payload["cache"])
	}
}

func TestStrategiesEndpoint(t *testing.T) {
	srv := newTestServer(t)
	rec := doRequest(t, srv, http.MethodGet, "/api/strategies", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"rsi"`) {
		t.Errorf("expected rsi in strategies, body=%s", rec.Body.String())
	}
}

func TestSymbolsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/symbols?interval=1h", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d want 200, body=%s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "BTC/USDT") {
		t.Errorf("expected BTC/USDT in symbols, body=%s", rec.Body.String())
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/symbols?interval=5m", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid interval: got %d want 400", rec.Code)
	}
}

func TestBacktestEndpoint(t *testing.T) {
	srv := newTestServer(t)

	body := fmt.Sprintf(`{
		"strategy": "rsi",
		"symbol": "BTC/USDT",
		"interval": "1h",
		"start": %q,
		"end": %q
	}`,
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).Format(time.RFC3339),
		time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC).Format(time.RFC3339),
	)

	rec := doRequest(t, srv, http.MethodPost, "/api/backtest", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d want 200, body=%s", rec.Code, rec.Body.String())
	}

	var result backtest.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, reason=%q", result.Reason)
	}

	// 回测完成后应能在事件接口查到记录。
	rec = doRequest(t, srv, http.MethodGet, "/api/events?type=backtest_run", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("events status: got %d want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "backtest_run") {
		t.Errorf("expected backtest_run event, body=%s", rec.Body.String())
	}
}

func TestBacktestEndpoint_BadBody(t *testing.T) {
	srv := newTestServer(t)
	rec := doRequest(t, srv, http.MethodPost, "/api/backtest", "{not json")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status: got %d want 400", rec.Code)
	}
}

func TestBatchEndpoint(t *testing.T) {
	srv := newTestServer(t)

	body := fmt.Sprintf(`{
		"strategy": "rsi",
		"interval": "1h",
		"start": %q,
		"end": %q,
		"symbols": ["BTC/USDT", "NOPE/USDT"]
	}`,
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).Format(time.RFC3339),
		time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC).Format(time.RFC3339),
	)

	rec := doRequest(t, srv, http.MethodPost, "/api/backtest/batch", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d want 200, body=%s", rec.Code, rec.Body.String())
	}

	var summary backtest.BatchSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.Total != 2 || summary.Succeeded != 1 || summary.Failed != 1 {
		t.Errorf("unexpected summary counts: %+v", summary)
	}
}

func TestIndicatorsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	path := fmt.Sprintf("/api/indicators?symbol=BTC/USDT&interval=1h&name=sma&period=10&start=%s&end=%s",
		"2025-01-01T00:00:00Z", "2025-01-20T00:00:00Z")
	rec := doRequest(t, srv, http.MethodGet, path, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d want 200, body=%s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"values"`) {
		t.Errorf("expected values payload, body=%s", rec.Body.String())
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/indicators?interval=1h", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing symbol: got %d want 400", rec.Code)
	}
}

package monitor

import (
	"time"

	"quantboard/internal/backtest"
)

// EventType 表示监控事件类型。
type EventType string

const (
	EventBacktestRun   EventType = "backtest_run"
	EventBatchRun      EventType = "batch_run"
	EventCollectorSync EventType = "collector_sync"
	EventError         EventType = "error"
)

// Event 封装通用监控事件。
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// BacktestPayload 记录单次回测摘要，不含逐笔成交明细。
type BacktestPayload struct {
	Strategy   string  `json:"strategy"`
	Symbol     string  `json:"symbol"`
	Interval   string  `json:"interval"`
	Success    bool    `json:"success"`
	Reason     string  `json:"reason,omitempty"`
	ReturnPct  float64 `json:"return_pct"`
	TradeCount int     `json:"trade_count"`
	FromCache  bool    `json:"from_cache"`
}

// BatchPayload 记录批量回测摘要。
type BatchPayload struct {
	BatchID   string  `json:"batch_id"`
	Strategy  string  `json:"strategy"`
	Interval  string  `json:"interval"`
	Total     int     `json:"total"`
	Succeeded int     `json:"succeeded"`
	Failed    int     `json:"failed"`
	Workers   int     `json:"workers"`
	Elapsed   float64 `json:"elapsed_seconds"`
}

// SyncPayload 记录一次K线采集。
type SyncPayload struct {
	Symbol   string `json:"symbol"`
	Interval string `json:"interval"`
	Written  int    `json:"written"`
}

// ErrorPayload 记录异常。
type ErrorPayload struct {
	Message string                 `json:"message"`
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

func backtestPayload(res backtest.Result) BacktestPayload {
	return BacktestPayload{
		Strategy:   res.Strategy,
		Symbol:     res.Symbol,
		Interval:   string(res.Interval),
		Success:    res.Success,
		Reason:     res.Reason,
		ReturnPct:  res.ReturnPct,
		TradeCount: res.TradeCount,
		FromCache:  res.FromCache,
	}
}

package backtest

import (
	"time"

	"quantboard/internal/exchange"
	"quantboard/internal/strategy"
)

// SimOptions 为全部策略共用的模拟参数。
type SimOptions struct {
	InitialCash float64 `json:"initial_cash"`
	// FeeRate 为0（未指定）时使用引擎默认费率，负数表示显式免手续费。
	FeeRate      float64 `json:"fee_rate"`
	StopLoss     float64 `json:"stop_loss"`     // 比例，0表示禁用
	TakeProfit   float64 `json:"take_profit"`   // 比例，0表示禁用
	CooldownBars int     `json:"cooldown_bars"` // 卖出后禁止买入的K线数
}

// Request 定义一次单资产回测。
type Request struct {
	Strategy     string            `json:"strategy"`
	Symbol       string            `json:"symbol"`
	Interval     exchange.Interval `json:"interval"`
	Start        time.Time         `json:"start"`
	End          time.Time         `json:"end"`
	Params       strategy.Params   `json:"params,omitempty"`
	Options      SimOptions        `json:"options"`
	ForceRefresh bool              `json:"force_refresh"`
}

func (r *Request) normalize(defaults EngineConfig) Request {
	req := *r
	if req.Interval == "" {
		req.Interval = exchange.Interval1h
	}
	if req.End.IsZero() {
		req.End = time.Now().UTC()
	}
	if req.Start.IsZero() {
		req.Start = req.End.AddDate(-1, 0, 0)
	}
	if req.Options.InitialCash <= 0 {
		req.Options.InitialCash = defaults.DefaultInitialCash
	}
	if req.Options.InitialCash <= 0 {
		req.Options.InitialCash = 10000
	}
	switch {
	case req.Options.FeeRate < 0:
		req.Options.FeeRate = 0
	case req.Options.FeeRate == 0:
		req.Options.FeeRate = defaults.DefaultFeeRate
	}
	if req.Options.StopLoss < 0 {
		req.Options.StopLoss = 0
	}
	if req.Options.TakeProfit < 0 {
		req.Options.TakeProfit = 0
	}
	if req.Options.CooldownBars < 0 {
		req.Options.CooldownBars = 0
	}
	return req
}

// BatchRequest 定义一次多资产批量回测。
type BatchRequest struct {
	Strategy     string            `json:"strategy"`
	Interval     exchange.Interval `json:"interval"`
	Start        time.Time         `json:"start"`
	End          time.Time         `json:"end"`
	Params       strategy.Params   `json:"params,omitempty"`
	Options      SimOptions        `json:"options"`
	ForceRefresh bool              `json:"force_refresh"`
	// Symbols 为空时回测全部历史充足的交易对。
	Symbols []string `json:"symbols,omitempty"`
	// MaxWorkers 为0时使用引擎默认并发。
	MaxWorkers int `json:"max_workers"`
}

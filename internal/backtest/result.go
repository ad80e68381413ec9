package backtest

import (
	"time"

	"quantboard/internal/exchange"
)

// 交易方向。
const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// 卖出原因。
const (
	ReasonSignal     = "signal"
	ReasonStopLoss   = "stop_loss"
	ReasonTakeProfit = "take_profit"
)

// Trade 记录一次成交。
type Trade struct {
	Timestamp time.Time `json:"timestamp"`
	Side      string    `json:"side"`
	Price     float64   `json:"price"`
	Quantity  float64   `json:"quantity"`
	Fee       float64   `json:"fee"`
	Reason    string    `json:"reason,omitempty"`
}

// Result 为一次回测的值对象。失败时 Success 为 false 并附带原因，
// 而不是向调用方抛出错误。
type Result struct {
	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`

	Strategy string            `json:"strategy"`
	Symbol   string            `json:"symbol"`
	Interval exchange.Interval `json:"interval"`
	Start    time.Time         `json:"start"`
	End      time.Time         `json:"end"`
	Bars     int               `json:"bars"`

	InitialCash      float64 `json:"initial_cash"`
	FinalValue       float64 `json:"final_value"`
	ReturnPct        float64 `json:"return_pct"`
	BuyHoldReturnPct float64 `json:"buy_hold_return_pct"`
	MaxDrawdownPct   float64 `json:"max_drawdown_pct"`
	SharpeRatio      float64 `json:"sharpe_ratio"`
	TotalFees        float64 `json:"total_fees"`

	TradeCount int     `json:"trade_count"`
	Wins       int     `json:"wins"`
	Losses     int     `json:"losses"`
	Trades     []Trade `json:"trades,omitempty"`

	FromCache bool `json:"from_cache"`
}

// Unsuccessful 构造带原因的失败结果。
func Unsuccessful(req Request, reason string) Result {
	return Result{
		Success:     false,
		Reason:      reason,
		Strategy:    req.Strategy,
		Symbol:      req.Symbol,
		Interval:    req.Interval,
		Start:       req.Start,
		End:         req.End,
		InitialCash: req.Options.InitialCash,
	}
}

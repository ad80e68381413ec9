package backtest

import (
	"context"
	"time"

	"quantboard/internal/exchange"
)

// CandleSource 提供回测所需的K线读取，便于在测试中注入内存数据源。
type CandleSource interface {
	RangeCandles(ctx context.Context, symbol string, interval exchange.Interval, start, end time.Time) ([]exchange.Candle, error)
	ListSymbols(ctx context.Context, interval exchange.Interval, minBars int) ([]string, error)
}

// Cache 定义结果缓存的最小接口。读取失败一律视为未命中，
// 缓存故障不得影响回测请求本身。
type Cache interface {
	GetJSON(ctx context.Context, key string, dst interface{}) bool
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

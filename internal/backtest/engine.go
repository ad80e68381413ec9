package backtest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"quantboard/internal/exchange"
	"quantboard/internal/indicator"
	"quantboard/internal/strategy"
)

// EngineConfig 控制引擎默认参数。
type EngineConfig struct {
	DefaultInitialCash float64
	DefaultFeeRate     float64
	MinBars            int
	MaxWorkers         int
	CacheTTL           time.Duration
}

func (c EngineConfig) normalize() EngineConfig {
	cfg := c
	if cfg.DefaultInitialCash <= 0 {
		cfg.DefaultInitialCash = 10000
	}
	if cfg.DefaultFeeRate < 0 {
		cfg.DefaultFeeRate = 0
	}
	if cfg.MinBars <= 0 {
		cfg.MinBars = 50
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 8
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 24 * time.Hour
	}
	return cfg
}

// Engine 串联数据源、指标、策略与模拟执行，并对结果做TTL缓存。
type Engine struct {
	cfg    EngineConfig
	source CandleSource
	cache  Cache
	logger *zap.Logger
}

// NewEngine 构建回测引擎。cache 可为 nil，表示不启用缓存。
func NewEngine(cfg EngineConfig, source CandleSource, cache Cache, logger *zap.Logger) (*Engine, error) {
	if source == nil {
		return nil, fmt.Errorf("backtest: candle source 不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Engine{
		cfg:    cfg.normalize(),
		source: source,
		cache:  cache,
		logger: logger,
	}, nil
}

// MinBars 返回引擎要求的最少K线数。
func (e *Engine) MinBars() int {
	return e.cfg.MinBars
}

// Run 执行单资产回测。领域层失败（未知策略、数据不足等）以
// Success=false 的结果返回；仅基础设施故障返回 error。
func (e *Engine) Run(ctx context.Context, req Request) (Result, error) {
	req = req.normalize(e.cfg)

	if req.Symbol == "" {
		return Unsuccessful(req, "symbol 不能为空"), nil
	}
	if _, err := exchange.ParseInterval(string(req.Interval)); err != nil {
		return Unsuccessful(req, err.Error()), nil
	}

	rule, err := strategy.New(req.Strategy, req.Params)
	if err != nil {
		return Unsuccessful(req, err.Error()), nil
	}

	key := cacheKey(req)
	if e.cache != nil && !req.ForceRefresh {
		var cached Result
		if e.cache.GetJSON(ctx, key, &cached) {
			cached.FromCache = true
			return cached, nil
		}
	}

	candles, err := e.source.RangeCandles(ctx, req.Symbol, req.Interval, req.Start, req.End)
	if err != nil {
		return Result{}, fmt.Errorf("backtest: 加载K线失败: %w", err)
	}
	if len(candles) == 0 {
		return Unsuccessful(req, fmt.Sprintf("%s %s 在指定区间内无价格数据", req.Symbol, req.Interval)), nil
	}

	series := indicator.NewSeries(candles)
	eval, err := rule.Prepare(series)
	if err != nil {
		return Unsuccessful(req, err.Error()), nil
	}

	minBars := e.cfg.MinBars
	if w := eval.Warmup() + 2; w > minBars {
		minBars = w
	}
	if series.Len() < minBars {
		return Unsuccessful(req, fmt.Sprintf("历史数据不足: 仅 %d 根K线，至少需要 %d", series.Len(), minBars)), nil
	}

	sim := NewSimulator(req.Options)
	sim.Run(series, eval)

	result := e.buildResult(req, series, sim)

	if e.cache != nil {
		if err := e.cache.SetJSON(ctx, key, result, e.cfg.CacheTTL); err != nil {
			e.logger.Warn("写入回测缓存失败", zap.String("key", key), zap.Error(err))
		}
	}

	return result, nil
}

func (e *Engine) buildResult(req Request, series indicator.Series, sim *Simulator) Result {
	lastPrice := series.Close[series.Len()-1]
	finalValue := sim.Equity(lastPrice)
	metrics := calculateMetrics(sim.EquityHistory(), sim.ReturnHistory(), req.Interval)

	buyHold := 0.0
	if first := series.Close[0]; first > 0 {
		buyHold = (lastPrice/first - 1) * 100
	}

	wins, losses := sim.WinsLosses()
	trades := sim.Trades()

	return Result{
		Success:          true,
		Strategy:         req.Strategy,
		Symbol:           req.Symbol,
		Interval:         req.Interval,
		Start:            series.Timestamps[0],
		End:              series.Timestamps[series.Len()-1],
		Bars:             series.Len(),
		InitialCash:      req.Options.InitialCash,
		FinalValue:       finalValue,
		ReturnPct:        metrics.TotalReturn * 100,
		BuyHoldReturnPct: buyHold,
		MaxDrawdownPct:   metrics.MaxDrawdown * 100,
		SharpeRatio:      metrics.SharpeRatio,
		TotalFees:        sim.TotalFees(),
		TradeCount:       len(trades),
		Wins:             wins,
		Losses:           losses,
		Trades:           trades,
	}
}

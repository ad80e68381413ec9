package indicator

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"quantboard/internal/exchange"
	"quantboard/internal/store"
)

// ComputeRequest 描述一次指标计算请求。
type ComputeRequest struct {
	Symbol   string
	Interval exchange.Interval
	Name     string
	Period   int
	Start    time.Time
	End      time.Time
}

// Service 按需计算指标并把结果行持久化，供看板图表复用。
type Service struct {
	candles *store.CandleRepo
	values  *store.IndicatorRepo
	logger  *zap.Logger
}

// NewService 创建指标服务。
func NewService(candles *store.CandleRepo, values *store.IndicatorRepo, logger *zap.Logger) (*Service, error) {
	if candles == nil {
		return nil, fmt.Errorf("indicator: candle repo 不能为空")
	}
	if values == nil {
		return nil, fmt.Errorf("indicator: indicator repo 不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{candles: candles, values: values, logger: logger}, nil
}

// Compute 加载K线、计算指定指标并写回存储，返回有效（非 NaN）的指标行。
func (s *Service) Compute(ctx context.Context, req ComputeRequest) ([]store.IndicatorValue, error) {
	candles, err := s.candles.RangeCandles(ctx, req.Symbol, req.Interval, req.Start, req.End)
	if err != nil {
		return nil, err
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("indicator: %s %s 无可用K线", req.Symbol, req.Interval)
	}

	series := NewSeries(candles)
	values, err := s.evaluate(req.Name, req.Period, series)
	if err != nil {
		return nil, err
	}

	rows := make([]store.IndicatorValue, 0, len(values))
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		rows = append(rows, store.IndicatorValue{
			Name:      req.Name,
			Period:    req.Period,
			Timestamp: series.Timestamps[i],
			Value:     v,
		})
	}

	if _, err := s.values.SaveValues(ctx, req.Symbol, req.Interval, rows); err != nil {
		s.logger.Warn("持久化指标失败",
			zap.String("symbol", req.Symbol),
			zap.String("name", req.Name),
			zap.Error(err),
		)
	}

	return rows, nil
}

func (s *Service) evaluate(name string, period int, series Series) ([]float64, error) {
	switch name {
	case "rsi":
		return RSI(series.Close, period)
	case "sma":
		return SMA(series.Close, period)
	case "ema":
		return EMA(series.Close, period)
	case "deviation":
		return Deviation(series.Close, period)
	case "momentum":
		return Momentum(series.Close, period)
	default:
		return nil, fmt.Errorf("indicator: 未知指标 %q", name)
	}
}

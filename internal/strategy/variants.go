package strategy

import (
	"fmt"
	"math"

	"quantboard/internal/indicator"
)

// rsiRule 在超卖时买入、超买时卖出。
type rsiRule struct {
	period     int
	oversold   float64
	overbought float64
}

func newRSIRule(params Params) (Rule, error) {
	r := &rsiRule{
		period:     params.GetInt("period", 14),
		oversold:   params.Get("oversold", 30),
		overbought: params.Get("overbought", 70),
	}
	if err := requirePositiveInt("period", r.period); err != nil {
		return nil, err
	}
	if err := requireRange("oversold", r.oversold, 0, 100); err != nil {
		return nil, err
	}
	if err := requireRange("overbought", r.overbought, 0, 100); err != nil {
		return nil, err
	}
	if r.oversold >= r.overbought {
		return nil, fmt.Errorf("strategy: oversold(%v) 必须小于 overbought(%v)", r.oversold, r.overbought)
	}
	return r, nil
}

func (r *rsiRule) Name() string { return "rsi" }

func (r *rsiRule) Prepare(series indicator.Series) (Evaluator, error) {
	rsi, err := indicator.RSI(series.Close, r.period)
	if err != nil {
		return nil, err
	}
	return &thresholdEvaluator{
		values: rsi,
		warmup: r.period + 1,
		buy:    func(v float64) bool { return v < r.oversold },
		sell:   func(v float64) bool { return v > r.overbought },
	}, nil
}

// maCrossRule 在快线上穿慢线时买入、下穿时卖出。
type maCrossRule struct {
	fast int
	slow int
}

func newMACrossRule(params Params) (Rule, error) {
	r := &maCrossRule{
		fast: params.GetInt("fast_period", 10),
		slow: params.GetInt("slow_period", 30),
	}
	if err := requirePositiveInt("fast_period", r.fast); err != nil {
		return nil, err
	}
	if err := requirePositiveInt("slow_period", r.slow); err != nil {
		return nil, err
	}
	if r.fast >= r.slow {
		return nil, fmt.Errorf("strategy: fast_period(%d) 必须小于 slow_period(%d)", r.fast, r.slow)
	}
	return r, nil
}

func (r *maCrossRule) Name() string { return "ma_cross" }

func (r *maCrossRule) Prepare(series indicator.Series) (Evaluator, error) {
	fast, err := indicator.SMA(series.Close, r.fast)
	if err != nil {
		return nil, err
	}
	slow, err := indicator.SMA(series.Close, r.slow)
	if err != nil {
		return nil, err
	}
	return &crossEvaluator{fast: fast, slow: slow, warmup: r.slow + 1}, nil
}

// momentumRule 在动量超过阈值时买入、跌破负阈值时卖出。
type momentumRule struct {
	lookback  int
	threshold float64
}

func newMomentumRule(params Params) (Rule, error) {
	r := &momentumRule{
		lookback:  params.GetInt("lookback", 20),
		threshold: params.Get("threshold", 0.05),
	}
	if err := requirePositiveInt("lookback", r.lookback); err != nil {
		return nil, err
	}
	if err := requireRange("threshold", r.threshold, 0, 1); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *momentumRule) Name() string { return "momentum" }

func (r *momentumRule) Prepare(series indicator.Series) (Evaluator, error) {
	mom, err := indicator.Momentum(series.Close, r.lookback)
	if err != nil {
		return nil, err
	}
	return &thresholdEvaluator{
		values: mom,
		warmup: r.lookback + 1,
		buy:    func(v float64) bool { return v > r.threshold },
		sell:   func(v float64) bool { return v < -r.threshold },
	}, nil
}

// bollingerRule 在收盘价跌破下轨时买入、突破上轨时卖出。
type bollingerRule struct {
	period int
	width  float64
}

func newBollingerRule(params Params) (Rule, error) {
	r := &bollingerRule{
		period: params.GetInt("period", 20),
		width:  params.Get("width", 2),
	}
	if err := requirePositiveInt("period", r.period); err != nil {
		return nil, err
	}
	if err := requireRange("width", r.width, 0.5, 5); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *bollingerRule) Name() string { return "bollinger" }

func (r *bollingerRule) Prepare(series indicator.Series) (Evaluator, error) {
	upper, _, lower, err := indicator.Bollinger(series.Close, r.period, r.width)
	if err != nil {
		return nil, err
	}
	return &bandEvaluator{
		close:  series.Close,
		upper:  upper,
		lower:  lower,
		warmup: r.period,
	}, nil
}

// meanReversionRule 在价格偏离均线超过入场阈值时买入、回归超过出场阈值时卖出。
type meanReversionRule struct {
	period   int
	entryDev float64
	exitDev  float64
}

func newMeanReversionRule(params Params) (Rule, error) {
	r := &meanReversionRule{
		period:   params.GetInt("period", 20),
		entryDev: params.Get("entry_deviation", 0.05),
		exitDev:  params.Get("exit_deviation", 0.03),
	}
	if err := requirePositiveInt("period", r.period); err != nil {
		return nil, err
	}
	if err := requireRange("entry_deviation", r.entryDev, 0, 1); err != nil {
		return nil, err
	}
	if err := requireRange("exit_deviation", r.exitDev, 0, 1); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *meanReversionRule) Name() string { return "mean_reversion" }

func (r *meanReversionRule) Prepare(series indicator.Series) (Evaluator, error) {
	dev, err := indicator.Deviation(series.Close, r.period)
	if err != nil {
		return nil, err
	}
	return &thresholdEvaluator{
		values: dev,
		warmup: r.period,
		buy:    func(v float64) bool { return v < -r.entryDev },
		sell:   func(v float64) bool { return v > r.exitDev },
	}, nil
}

// supportResistanceRule 在价格贴近滚动支撑位时买入、贴近阻力位时卖出。
type supportResistanceRule struct {
	period    int
	tolerance float64
}

func newSupportResistanceRule(params Params) (Rule, error) {
	r := &supportResistanceRule{
		period:    params.GetInt("period", 50),
		tolerance: params.Get("tolerance", 0.01),
	}
	if err := requirePositiveInt("period", r.period); err != nil {
		return nil, err
	}
	if err := requireRange("tolerance", r.tolerance, 0, 0.2); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *supportResistanceRule) Name() string { return "support_resistance" }

func (r *supportResistanceRule) Prepare(series indicator.Series) (Evaluator, error) {
	support, err := indicator.RollingMin(series.Low, r.period)
	if err != nil {
		return nil, err
	}
	resistance, err := indicator.RollingMax(series.High, r.period)
	if err != nil {
		return nil, err
	}
	return &levelEvaluator{
		close:      series.Close,
		support:    support,
		resistance: resistance,
		tolerance:  r.tolerance,
		warmup:     r.period,
	}, nil
}

// thresholdEvaluator 对单一指标序列做阈值比较。
type thresholdEvaluator struct {
	values []float64
	warmup int
	buy    func(float64) bool
	sell   func(float64) bool
}

func (e *thresholdEvaluator) Warmup() int { return e.warmup }

func (e *thresholdEvaluator) Signal(i int) Signal {
	if i < 0 || i >= len(e.values) {
		return SignalNone
	}
	v := e.values[i]
	if math.IsNaN(v) {
		return SignalNone
	}
	switch {
	case e.buy(v):
		return SignalBuy
	case e.sell(v):
		return SignalSell
	default:
		return SignalNone
	}
}

// crossEvaluator 检测快慢均线的上穿与下穿。
type crossEvaluator struct {
	fast   []float64
	slow   []float64
	warmup int
}

func (e *crossEvaluator) Warmup() int { return e.warmup }

func (e *crossEvaluator) Signal(i int) Signal {
	if i < 1 || i >= len(e.fast) {
		return SignalNone
	}
	prevFast, prevSlow := e.fast[i-1], e.slow[i-1]
	curFast, curSlow := e.fast[i], e.slow[i]
	if math.IsNaN(prevFast) || math.IsNaN(prevSlow) || math.IsNaN(curFast) || math.IsNaN(curSlow) {
		return SignalNone
	}
	switch {
	case prevFast <= prevSlow && curFast > curSlow:
		return SignalBuy
	case prevFast >= prevSlow && curFast < curSlow:
		return SignalSell
	default:
		return SignalNone
	}
}

// bandEvaluator 对上下轨做突破比较。
type bandEvaluator struct {
	close  []float64
	upper  []float64
	lower  []float64
	warmup int
}

func (e *bandEvaluator) Warmup() int { return e.warmup }

func (e *bandEvaluator) Signal(i int) Signal {
	if i < 0 || i >= len(e.close) {
		return SignalNone
	}
	if math.IsNaN(e.upper[i]) || math.IsNaN(e.lower[i]) {
		return SignalNone
	}
	switch {
	case e.close[i] < e.lower[i]:
		return SignalBuy
	case e.close[i] > e.upper[i]:
		return SignalSell
	default:
		return SignalNone
	}
}

// levelEvaluator 对滚动支撑/阻力位做贴近比较。
type levelEvaluator struct {
	close      []float64
	support    []float64
	resistance []float64
	tolerance  float64
	warmup     int
}

func (e *levelEvaluator) Warmup() int { return e.warmup }

func (e *levelEvaluator) Signal(i int) Signal {
	if i < 0 || i >= len(e.close) {
		return SignalNone
	}
	sup, res := e.support[i], e.resistance[i]
	if math.IsNaN(sup) || math.IsNaN(res) || sup <= 0 || res <= 0 {
		return SignalNone
	}
	price := e.close[i]
	switch {
	case price <= sup*(1+e.tolerance):
		return SignalBuy
	case price >= res*(1-e.tolerance):
		return SignalSell
	default:
		return SignalNone
	}
}

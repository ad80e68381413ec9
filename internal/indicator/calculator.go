package indicator

import (
	"fmt"
	"math"

	talib "github.com/markcheno/go-talib"
)

// 指标输出与输入序列逐索引对齐：窗口未填满的位置为 NaN（未定义），
// 之后的位置均为有效值。

// RSI 计算相对强弱指数。
func RSI(close []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, fmt.Errorf("indicator: rsi period 必须大于0")
	}
	out := talib.Rsi(close, period)
	return fillWarmup(out, period), nil
}

// SMA 计算简单移动平均。
func SMA(close []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, fmt.Errorf("indicator: sma period 必须大于0")
	}
	out := talib.Sma(close, period)
	return fillWarmup(out, period-1), nil
}

// EMA 计算指数移动平均。
func EMA(close []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, fmt.Errorf("indicator: ema period 必须大于0")
	}
	out := talib.Ema(close, period)
	return fillWarmup(out, period-1), nil
}

// Bollinger 计算布林带三条轨道。
func Bollinger(close []float64, period int, width float64) (upper, middle, lower []float64, err error) {
	if period <= 0 {
		return nil, nil, nil, fmt.Errorf("indicator: bollinger period 必须大于0")
	}
	if width <= 0 {
		width = 2
	}
	u, m, l := talib.BBands(close, period, width, width, talib.SMA)
	return fillWarmup(u, period-1), fillWarmup(m, period-1), fillWarmup(l, period-1), nil
}

// Deviation 计算收盘价相对简单均线的偏离比例 (close-sma)/sma。
func Deviation(close []float64, period int) ([]float64, error) {
	sma, err := SMA(close, period)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(close))
	for i := range close {
		if math.IsNaN(sma[i]) || sma[i] == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = (close[i] - sma[i]) / sma[i]
	}
	return out, nil
}

// RollingMin 计算滚动窗口最小值。
func RollingMin(values []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, fmt.Errorf("indicator: rolling min period 必须大于0")
	}
	out := talib.Min(values, period)
	return fillWarmup(out, period-1), nil
}

// RollingMax 计算滚动窗口最大值。
func RollingMax(values []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, fmt.Errorf("indicator: rolling max period 必须大于0")
	}
	out := talib.Max(values, period)
	return fillWarmup(out, period-1), nil
}

// Momentum 计算 lookback 根K线的收益率 close[i]/close[i-lookback]-1。
func Momentum(close []float64, lookback int) ([]float64, error) {
	if lookback <= 0 {
		return nil, fmt.Errorf("indicator: momentum lookback 必须大于0")
	}
	out := make([]float64, len(close))
	for i := range close {
		if i < lookback || close[i-lookback] == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = close[i]/close[i-lookback] - 1
	}
	return out, nil
}

// fillWarmup 将 talib 输出中窗口未填满的前缀覆盖为 NaN。
func fillWarmup(values []float64, warmup int) []float64 {
	if warmup > len(values) {
		warmup = len(values)
	}
	for i := 0; i < warmup; i++ {
		values[i] = math.NaN()
	}
	return values
}

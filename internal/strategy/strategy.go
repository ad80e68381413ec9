package strategy

import (
	"fmt"
	"sort"

	"quantboard/internal/indicator"
)

// Signal 表示策略在某根K线上给出的动作。
type Signal int

const (
	// SignalNone 表示无动作。
	SignalNone Signal = iota
	// SignalBuy 表示买入条件成立。
	SignalBuy
	// SignalSell 表示卖出条件成立。
	SignalSell
)

// Rule 定义一个策略变体：针对给定序列构造可逐索引求值的 Evaluator。
// 止损、止盈、冷却等通用退出逻辑由模拟器统一处理，Rule 只负责
// 各变体差异化的买卖判定谓词。
type Rule interface {
	Name() string
	Prepare(series indicator.Series) (Evaluator, error)
}

// Evaluator 对已准备好的序列逐索引给出信号。
type Evaluator interface {
	// Warmup 返回信号有效前所需的最少K线数。
	Warmup() int
	// Signal 返回第 i 根K线收盘时的信号。
	Signal(i int) Signal
}

type factory func(Params) (Rule, error)

var registry = map[string]factory{
	"rsi":                newRSIRule,
	"ma_cross":           newMACrossRule,
	"momentum":           newMomentumRule,
	"bollinger":          newBollingerRule,
	"mean_reversion":     newMeanReversionRule,
	"support_resistance": newSupportResistanceRule,
}

// New 按名称构造策略，未知名称返回错误。
func New(name string, params Params) (Rule, error) {
	fn, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("strategy: 未知策略 %q", name)
	}
	return fn(params)
}

// Names 返回全部已注册策略名，按字母序排列。
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

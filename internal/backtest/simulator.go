package backtest

import (
	"quantboard/internal/indicator"
	"quantboard/internal/strategy"
)

// Simulator 按时间顺序走完一条价格序列，维护现金与持仓状态。
// 状态只在 FLAT 与 LONG 之间切换：买入用尽全部现金，卖出清空全部持仓，
// 双边按比例收取手续费。止损、止盈与冷却对全部策略变体统一生效。
type Simulator struct {
	opts SimOptions

	cash       float64
	quantity   float64
	entryPrice float64
	lastSell   int

	totalFees float64
	wins      int
	losses    int
	trades    []Trade

	equityHistory []float64
	returnHistory []float64
}

// NewSimulator 创建模拟器。
func NewSimulator(opts SimOptions) *Simulator {
	if opts.InitialCash <= 0 {
		opts.InitialCash = 10000
	}
	return &Simulator{
		opts:     opts,
		cash:     opts.InitialCash,
		lastSell: -1,
	}
}

// Run 对整条序列执行一次模拟。
func (s *Simulator) Run(series indicator.Series, eval strategy.Evaluator) {
	warmup := eval.Warmup()

	for i := 0; i < series.Len(); i++ {
		price := series.Close[i]
		if price <= 0 {
			s.recordEquity(price)
			continue
		}

		if s.quantity > 0 {
			switch {
			case s.opts.StopLoss > 0 && price <= s.entryPrice*(1-s.opts.StopLoss):
				s.sell(series, i, ReasonStopLoss)
			case s.opts.TakeProfit > 0 && price >= s.entryPrice*(1+s.opts.TakeProfit):
				s.sell(series, i, ReasonTakeProfit)
			case i >= warmup && eval.Signal(i) == strategy.SignalSell:
				s.sell(series, i, ReasonSignal)
			}
		} else if i >= warmup && eval.Signal(i) == strategy.SignalBuy && s.cooledDown(i) {
			s.buy(series, i)
		}

		s.recordEquity(price)
	}
}

func (s *Simulator) cooledDown(i int) bool {
	if s.opts.CooldownBars <= 0 || s.lastSell < 0 {
		return true
	}
	return i-s.lastSell > s.opts.CooldownBars
}

func (s *Simulator) buy(series indicator.Series, i int) {
	price := series.Close[i]
	fee := s.cash * s.opts.FeeRate
	spend := s.cash - fee
	if spend <= 0 {
		return
	}

	s.quantity = spend / price
	s.entryPrice = price
	s.cash = 0
	s.totalFees += fee
	s.trades = append(s.trades, Trade{
		Timestamp: series.Timestamps[i],
		Side:      SideBuy,
		Price:     price,
		Quantity:  s.quantity,
		Fee:       fee,
	})
}

func (s *Simulator) sell(series indicator.Series, i int, reason string) {
	price := series.Close[i]
	proceeds := s.quantity * price
	fee := proceeds * s.opts.FeeRate
	s.cash = proceeds - fee
	s.totalFees += fee

	if price > s.entryPrice {
		s.wins++
	} else {
		s.losses++
	}

	s.trades = append(s.trades, Trade{
		Timestamp: series.Timestamps[i],
		Side:      SideSell,
		Price:     price,
		Quantity:  s.quantity,
		Fee:       fee,
		Reason:    reason,
	})

	s.quantity = 0
	s.entryPrice = 0
	s.lastSell = i
}

func (s *Simulator) recordEquity(price float64) {
	equity := s.Equity(price)
	if n := len(s.equityHistory); n > 0 && s.equityHistory[n-1] > 0 {
		s.returnHistory = append(s.returnHistory, equity/s.equityHistory[n-1]-1)
	}
	s.equityHistory = append(s.equityHistory, equity)
}

// Equity 返回给定价格下的组合价值：现金 + 持仓×价格。
func (s *Simulator) Equity(price float64) float64 {
	return s.cash + s.quantity*price
}

// Cash 返回当前现金。
func (s *Simulator) Cash() float64 { return s.cash }

// Quantity 返回当前持仓数量。
func (s *Simulator) Quantity() float64 { return s.quantity }

// Trades 返回成交记录副本。
func (s *Simulator) Trades() []Trade {
	return append([]Trade(nil), s.trades...)
}

// TotalFees 返回累计手续费。
func (s *Simulator) TotalFees() float64 { return s.totalFees }

// WinsLosses 返回盈利与亏损的平仓次数。
func (s *Simulator) WinsLosses() (int, int) { return s.wins, s.losses }

// EquityHistory 返回每步的组合价值序列副本。
func (s *Simulator) EquityHistory() []float64 {
	return append([]float64(nil), s.equityHistory...)
}

// ReturnHistory 返回每步收益率序列副本。
func (s *Simulator) ReturnHistory() []float64 {
	return append([]float64(nil), s.returnHistory...)
}

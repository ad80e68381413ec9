package exchange

import (
	"fmt"
	"time"
)

// Interval 表示K线周期。
type Interval string

const (
	// Interval1h 为小时级周期。
	Interval1h Interval = "1h"
	// Interval1d 为日级周期。
	Interval1d Interval = "1d"
)

// ParseInterval 校验并返回支持的周期。
func ParseInterval(raw string) (Interval, error) {
	switch Interval(raw) {
	case Interval1h:
		return Interval1h, nil
	case Interval1d:
		return Interval1d, nil
	default:
		return "", fmt.Errorf("不支持的K线周期: %q", raw)
	}
}

// Duration 返回周期对应的时长。
func (i Interval) Duration() time.Duration {
	switch i {
	case Interval1d:
		return 24 * time.Hour
	default:
		return time.Hour
	}
}

// Candle 代表单根K线。
type Candle struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// HistoryRequest 描述一次历史K线拉取。
type HistoryRequest struct {
	Symbol   string
	Interval Interval
	Since    time.Time
	Until    time.Time
}

package strategy

import "fmt"

// Params 是策略的扁平参数表，键为参数名、值为数值。
// 未提供的参数使用各策略的默认值。
type Params map[string]float64

// Get 返回参数值，缺失时返回默认值。
func (p Params) Get(key string, def float64) float64 {
	if p == nil {
		return def
	}
	if v, ok := p[key]; ok {
		return v
	}
	return def
}

// GetInt 返回整数参数，缺失时返回默认值。
func (p Params) GetInt(key string, def int) int {
	if p == nil {
		return def
	}
	if v, ok := p[key]; ok {
		return int(v)
	}
	return def
}

// Clone 返回参数副本。
func (p Params) Clone() Params {
	if p == nil {
		return nil
	}
	dst := make(Params, len(p))
	for k, v := range p {
		dst[k] = v
	}
	return dst
}

func requirePositiveInt(name string, value int) error {
	if value <= 0 {
		return fmt.Errorf("strategy: 参数 %s 必须大于0, 实际为 %d", name, value)
	}
	return nil
}

func requireRange(name string, value, min, max float64) error {
	if value < min || value > max {
		return fmt.Errorf("strategy: 参数 %s 必须位于[%v,%v], 实际为 %v", name, min, max, value)
	}
	return nil
}

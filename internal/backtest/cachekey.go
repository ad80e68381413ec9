package backtest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// cacheKey 从请求的标识字段派生确定性缓存键。
// 键中保留策略、交易对与周期的明文，便于按交易对批量失效。
func cacheKey(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s|%s|%s|%d|%d",
		req.Strategy, req.Symbol, req.Interval,
		req.Start.UTC().Unix(), req.End.UTC().Unix(),
	)
	fmt.Fprintf(&b, "|cash=%g|fee=%g|sl=%g|tp=%g|cd=%d",
		req.Options.InitialCash, req.Options.FeeRate,
		req.Options.StopLoss, req.Options.TakeProfit, req.Options.CooldownBars,
	)

	keys := make([]string, 0, len(req.Params))
	for k := range req.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "|%s=%g", k, req.Params[k])
	}

	sum := sha256.Sum256([]byte(b.String()))
	digest := hex.EncodeToString(sum[:])[:32]
	return fmt.Sprintf("backtest:%s:%s:%s:%s", req.Strategy, req.Symbol, req.Interval, digest)
}

// SymbolCachePattern 返回匹配某交易对全部回测缓存键的通配模式。
func SymbolCachePattern(symbol string) string {
	return "backtest:*:" + symbol + ":*"
}

package collector

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"quantboard/internal/backtest"
	"quantboard/internal/config"
	"quantboard/internal/exchange"
	"quantboard/internal/monitor"
	"quantboard/internal/store"
)

const syncWorkers = 4

// Invalidator 在新行情写入后清理相关的回测缓存。
type Invalidator interface {
	DeleteByPattern(ctx context.Context, pattern string) (int, error)
}

// Collector 负责从交易所增量采集历史K线并入库。
type Collector struct {
	cfg         config.CollectorConfig
	client      *exchange.Client
	candles     *store.CandleRepo
	invalidator Invalidator
	monitor     *monitor.Service
	logger      *zap.Logger
}

// New 构造采集器。invalidator 与 monitor 可为 nil。
func New(
	cfg config.CollectorConfig,
	client *exchange.Client,
	candles *store.CandleRepo,
	invalidator Invalidator,
	mon *monitor.Service,
	logger *zap.Logger,
) (*Collector, error) {
	if client == nil {
		return nil, fmt.Errorf("collector: exchange client 不能为空")
	}
	if candles == nil {
		return nil, fmt.Errorf("collector: candle repo 不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Collector{
		cfg:         cfg,
		client:      client,
		candles:     candles,
		invalidator: invalidator,
		monitor:     mon,
		logger:      logger,
	}, nil
}

// SyncAll 对配置内全部交易对与周期执行一次增量同步。
// 单个交易对失败不中断其余同步，错误仅记录。
func (c *Collector) SyncAll(ctx context.Context) {
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(syncWorkers)

	for _, symbol := range c.cfg.Symbols {
		for _, rawInterval := range c.cfg.Intervals {
			group.Go(func() error {
				interval, err := exchange.ParseInterval(rawInterval)
				if err != nil {
					c.logger.Warn("跳过无效周期",
						zap.String("symbol", symbol),
						zap.String("interval", rawInterval),
						zap.Error(err),
					)
					return nil
				}

				if err := c.SyncOne(groupCtx, symbol, interval); err != nil {
					c.logger.Warn("K线同步失败",
						zap.String("symbol", symbol),
						zap.String("interval", string(interval)),
						zap.Error(err),
					)
					if c.monitor != nil {
						c.monitor.RecordError(groupCtx, "K线同步失败", err, map[string]interface{}{
							"symbol":   symbol,
							"interval": string(interval),
						})
					}
				}
				return nil
			})
		}
	}

	_ = group.Wait()
}

// SyncOne 增量同步单个交易对与周期的K线：从库内最新时间续拉，
// 无历史时回溯 backfill_days 天。写入后使该交易对的回测缓存失效。
func (c *Collector) SyncOne(ctx context.Context, symbol string, interval exchange.Interval) error {
	since, err := c.resolveSince(ctx, symbol, interval)
	if err != nil {
		return err
	}

	candles, err := c.client.FetchHistory(ctx, exchange.HistoryRequest{
		Symbol:   symbol,
		Interval: interval,
		Since:    since,
	})
	if err != nil {
		return fmt.Errorf("collector: 拉取历史K线失败: %w", err)
	}
	if len(candles) == 0 {
		return nil
	}

	written, err := c.candles.UpsertCandles(ctx, symbol, interval, candles)
	if err != nil {
		return fmt.Errorf("collector: 写入K线失败: %w", err)
	}

	c.logger.Info("K线同步完成",
		zap.String("symbol", symbol),
		zap.String("interval", string(interval)),
		zap.Int("written", written),
	)

	if c.monitor != nil {
		c.monitor.RecordSync(ctx, symbol, string(interval), written)
	}

	if c.invalidator != nil && written > 0 {
		pattern := backtest.SymbolCachePattern(symbol)
		deleted, err := c.invalidator.DeleteByPattern(ctx, pattern)
		if err != nil {
			c.logger.Warn("清理回测缓存失败",
				zap.String("symbol", symbol),
				zap.Error(err),
			)
		} else if deleted > 0 {
			c.logger.Debug("已清理回测缓存",
				zap.String("symbol", symbol),
				zap.Int("deleted", deleted),
			)
		}
	}

	return nil
}

// RunLoop 按配置周期循环同步，直到上下文取消。启动时立即执行一轮。
func (c *Collector) RunLoop(ctx context.Context) {
	c.SyncAll(ctx)

	ticker := time.NewTicker(c.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("采集循环已停止")
			return
		case <-ticker.C:
			c.SyncAll(ctx)
		}
	}
}

func (c *Collector) resolveSince(ctx context.Context, symbol string, interval exchange.Interval) (time.Time, error) {
	latest, ok, err := c.candles.LatestTimestamp(ctx, symbol, interval)
	if err != nil {
		return time.Time{}, fmt.Errorf("collector: 查询最新K线失败: %w", err)
	}
	if ok {
		// 从最后一根K线重新拉取，覆盖可能未收盘的数据。
		return latest, nil
	}

	days := c.cfg.BackfillDays
	if days <= 0 {
		days = 365
	}
	return time.Now().UTC().AddDate(0, 0, -days), nil
}

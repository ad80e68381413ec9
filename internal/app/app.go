package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"quantboard/internal/backtest"
	"quantboard/internal/cache"
	"quantboard/internal/collector"
	"quantboard/internal/config"
	"quantboard/internal/exchange"
	"quantboard/internal/indicator"
	"quantboard/internal/monitor"
	"quantboard/internal/server"
	"quantboard/internal/store"
)

// App 聚合核心依赖并驱动系统生命周期。
type App struct {
	cfg    *config.Config
	logger *zap.Logger
	store  *store.Store
}

// New 创建 App 实例。
func New(cfg *config.Config, logger *zap.Logger, store *store.Store) *App {
	return &App{
		cfg:    cfg,
		logger: logger,
		store:  store,
	}
}

// Run 组装存储、缓存、引擎、采集与HTTP服务并阻塞运行，
// 直到上下文被退出信号取消。
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("回测看板已初始化",
		zap.String("environment", a.cfg.App.Environment),
		zap.String("exchange", a.cfg.Exchange.Name),
		zap.Bool("cache_enabled", a.cfg.Cache.Enabled),
		zap.Bool("collector_enabled", a.cfg.Collector.Enabled),
	)

	candles, err := store.NewCandleRepo(a.store)
	if err != nil {
		return err
	}
	indicatorValues, err := store.NewIndicatorRepo(a.store)
	if err != nil {
		return err
	}

	mon, err := monitor.NewService(a.store, a.logger)
	if err != nil {
		return err
	}

	redisCache, err := cache.New(a.cfg.Cache, a.logger)
	if err != nil {
		return err
	}
	defer func() {
		if redisCache != nil {
			_ = redisCache.Close()
		}
	}()

	// 接口变量必须显式判空，避免持有 nil 指针的非 nil 接口。
	var engineCache backtest.Cache
	var cacheHealth server.CacheHealth
	var invalidator collector.Invalidator
	if redisCache != nil {
		engineCache = redisCache
		cacheHealth = redisCache
		invalidator = redisCache
	}

	engine, err := backtest.NewEngine(backtest.EngineConfig{
		DefaultInitialCash: a.cfg.Backtest.InitialCash,
		DefaultFeeRate:     a.cfg.Backtest.FeeRate,
		MinBars:            a.cfg.Backtest.MinBars,
		MaxWorkers:         a.cfg.Backtest.MaxWorkers,
		CacheTTL:           a.cfg.Cache.TTL,
	}, candles, engineCache, a.logger)
	if err != nil {
		return err
	}

	indicators, err := indicator.NewService(candles, indicatorValues, a.logger)
	if err != nil {
		return err
	}

	httpServer, err := server.New(
		a.cfg.Server, engine, candles, indicators, mon, cacheHealth, a.store, a.logger,
	)
	if err != nil {
		return err
	}

	group, groupCtx := errgroup.WithContext(ctx)

	if a.cfg.Collector.Enabled {
		client, err := exchange.NewClient(a.cfg.Exchange, a.logger)
		if err != nil {
			return err
		}

		coll, err := collector.New(a.cfg.Collector, client, candles, invalidator, mon, a.logger)
		if err != nil {
			return err
		}

		group.Go(func() error {
			coll.RunLoop(groupCtx)
			return nil
		})
	}

	group.Go(func() error {
		return httpServer.Run(groupCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("系统异常退出: %w", err)
	}

	a.logger.Info("系统收到退出信号，正在停止")
	return nil
}

package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"quantboard/internal/backtest"
	"quantboard/internal/config"
	"quantboard/internal/indicator"
	"quantboard/internal/monitor"
	"quantboard/internal/store"
)

// CacheHealth 报告缓存连通性，缓存未启用时可为 nil。
type CacheHealth interface {
	Healthy(ctx context.Context) bool
}

// Server 暴露回测与监控的HTTP接口。
type Server struct {
	cfg        config.ServerConfig
	engine     *backtest.Engine
	candles    *store.CandleRepo
	indicators *indicator.Service
	monitor    *monitor.Service
	cache      CacheHealth
	db         *store.Store
	logger     *zap.Logger
}

// New 构造HTTP服务。monitor 与 cache 可为 nil。
func New(
	cfg config.ServerConfig,
	engine *backtest.Engine,
	candles *store.CandleRepo,
	indicators *indicator.Service,
	mon *monitor.Service,
	cache CacheHealth,
	db *store.Store,
	logger *zap.Logger,
) (*Server, error) {
	if engine == nil {
		return nil, fmt.Errorf("server: engine 不能为空")
	}
	if candles == nil {
		return nil, fmt.Errorf("server: candle repo 不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Server{
		cfg:        cfg,
		engine:     engine,
		candles:    candles,
		indicators: indicators,
		monitor:    mon,
		cache:      cache,
		db:         db,
		logger:     logger,
	}, nil
}

func (s *Server) router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	api := router.Group("/api")
	{
		api.POST("/backtest", s.handleBacktest)
		api.POST("/backtest/batch", s.handleBatch)
		api.POST("/backtest/batch/stream", s.handleBatchStream)
		api.GET("/symbols", s.handleSymbols)
		api.GET("/strategies", s.handleStrategies)
		api.GET("/indicators", s.handleIndicators)
		api.GET("/events", s.handleEvents)
	}
	router.GET("/healthz", s.handleHealth)

	return router
}

// Run 启动HTTP服务并阻塞，上下文取消后优雅关闭。
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	s.logger.Info("HTTP服务已启动", zap.String("addr", addr))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && err != http.ErrServerClosed {
			s.logger.Warn("关闭HTTP服务失败", zap.Error(err))
		}
		return nil
	case err, ok := <-errCh:
		if !ok {
			return nil
		}
		return fmt.Errorf("server: HTTP服务异常: %w", err)
	}
}

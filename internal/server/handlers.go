package server

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"quantboard/internal/backtest"
	"quantboard/internal/exchange"
	"quantboard/internal/indicator"
	"quantboard/internal/monitor"
	"quantboard/internal/strategy"
)

func (s *Server) handleBacktest(c *gin.Context) {
	var req backtest.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求体解析失败: " + err.Error()})
		return
	}

	result, err := s.engine.Run(c.Request.Context(), req)
	if err != nil {
		s.logger.Error("回测执行失败",
			zap.String("strategy", req.Strategy),
			zap.String("symbol", req.Symbol),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if s.monitor != nil {
		s.monitor.RecordBacktest(c.Request.Context(), result)
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) handleBatch(c *gin.Context) {
	var req backtest.BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求体解析失败: " + err.Error()})
		return
	}

	summary, err := s.engine.RunBatch(c.Request.Context(), req)
	if err != nil {
		s.logger.Error("批量回测执行失败",
			zap.String("strategy", req.Strategy),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if s.monitor != nil {
		s.monitor.RecordBatch(c.Request.Context(), summary)
	}

	c.JSON(http.StatusOK, summary)
}

type streamSummary struct {
	BatchID    string    `json:"batch_id"`
	Total      int       `json:"total"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

func (s *Server) handleBatchStream(c *gin.Context) {
	var req backtest.BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求体解析失败: " + err.Error()})
		return
	}

	ctx := c.Request.Context()
	batchID, results, err := s.engine.StreamBatch(ctx, req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	summary := streamSummary{
		BatchID:   batchID,
		StartedAt: time.Now().UTC(),
	}

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case result, ok := <-results:
			if !ok {
				summary.FinishedAt = time.Now().UTC()
				c.SSEvent("summary", summary)
				s.recordStreamBatch(req, summary)
				return false
			}
			summary.Total++
			if result.Success {
				summary.Succeeded++
			} else {
				summary.Failed++
			}
			c.SSEvent("result", result)
			return true
		}
	})
}

func (s *Server) recordStreamBatch(req backtest.BatchRequest, sum streamSummary) {
	if s.monitor == nil {
		return
	}
	s.monitor.RecordBatch(context.Background(), backtest.BatchSummary{
		BatchID:    sum.BatchID,
		Strategy:   req.Strategy,
		Interval:   string(req.Interval),
		Total:      sum.Total,
		Succeeded:  sum.Succeeded,
		Failed:     sum.Failed,
		StartedAt:  sum.StartedAt,
		FinishedAt: sum.FinishedAt,
	})
}

func (s *Server) handleSymbols(c *gin.Context) {
	interval, err := exchange.ParseInterval(c.DefaultQuery("interval", string(exchange.Interval1h)))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	minBars := s.engine.MinBars()
	if raw := c.Query("min_bars"); raw != "" {
		if v, convErr := strconv.Atoi(raw); convErr == nil && v > 0 {
			minBars = v
		}
	}

	symbols, err := s.candles.ListSymbols(c.Request.Context(), interval, minBars)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if symbols == nil {
		symbols = []string{}
	}

	c.JSON(http.StatusOK, gin.H{
		"interval": string(interval),
		"symbols":  symbols,
	})
}

func (s *Server) handleStrategies(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"strategies": strategy.Names()})
}

func (s *Server) handleIndicators(c *gin.Context) {
	if s.indicators == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "指标服务未启用"})
		return
	}

	interval, err := exchange.ParseInterval(c.DefaultQuery("interval", string(exchange.Interval1h)))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	symbol := c.Query("symbol")
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol 不能为空"})
		return
	}

	period, err := strconv.Atoi(c.DefaultQuery("period", "14"))
	if err != nil || period <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "period 必须为正整数"})
		return
	}

	end := time.Now().UTC()
	start := end.AddDate(-1, 0, 0)
	if raw := c.Query("start"); raw != "" {
		if t, parseErr := time.Parse(time.RFC3339, raw); parseErr == nil {
			start = t
		}
	}
	if raw := c.Query("end"); raw != "" {
		if t, parseErr := time.Parse(time.RFC3339, raw); parseErr == nil {
			end = t
		}
	}

	rows, err := s.indicators.Compute(c.Request.Context(), indicator.ComputeRequest{
		Symbol:   symbol,
		Interval: interval,
		Name:     c.DefaultQuery("name", "rsi"),
		Period:   period,
		Start:    start,
		End:      end,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"values": rows})
}

func (s *Server) handleEvents(c *gin.Context) {
	if s.monitor == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "监控服务未启用"})
		return
	}

	limit := 200
	if raw := c.Query("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			if v > 1000 {
				v = 1000
			}
			limit = v
		}
	}

	eventType := monitor.EventType("")
	if typ := strings.TrimSpace(c.Query("type")); typ != "" {
		eventType = monitor.EventType(strings.ToLower(typ))
	}

	events, err := s.monitor.ListEvents(c.Request.Context(), eventType, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx := c.Request.Context()

	status := gin.H{"status": "ok"}
	healthy := true

	if s.db != nil {
		if err := s.db.DB().PingContext(ctx); err != nil {
			status["database"] = "down"
			healthy = false
		} else {
			status["database"] = "up"
		}
	}

	if s.cache != nil {
		if s.cache.Healthy(ctx) {
			status["cache"] = "up"
		} else {
			status["cache"] = "down"
		}
	} else {
		status["cache"] = "disabled"
	}

	if !healthy {
		status["status"] = "degraded"
		c.JSON(http.StatusServiceUnavailable, status)
		return
	}
	c.JSON(http.StatusOK, status)
}

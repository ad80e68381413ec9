package backtest

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// BatchSummary 汇总一次批量回测。
type BatchSummary struct {
	BatchID    string    `json:"batch_id"`
	Strategy   string    `json:"strategy"`
	Interval   string    `json:"interval"`
	Total      int       `json:"total"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Results    []Result  `json:"results"`
	Workers    int       `json:"workers"`
}

// RunBatch 对全部候选交易对执行回测，资产间相互独立，失败不影响批次。
// 结果按收益率降序排列，失败项排在末尾。
func (e *Engine) RunBatch(ctx context.Context, req BatchRequest) (BatchSummary, error) {
	symbols, err := e.batchSymbols(ctx, req)
	if err != nil {
		return BatchSummary{}, err
	}

	summary := BatchSummary{
		BatchID:   uuid.NewString(),
		Strategy:  req.Strategy,
		Interval:  string(req.Interval),
		Total:     len(symbols),
		StartedAt: time.Now().UTC(),
		Workers:   e.workerCount(req.MaxWorkers, len(symbols)),
	}
	if len(symbols) == 0 {
		summary.FinishedAt = time.Now().UTC()
		return summary, nil
	}

	results := make([]Result, len(symbols))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(summary.Workers)
	for i, symbol := range symbols {
		group.Go(func() error {
			results[i] = e.runOne(groupCtx, req, symbol)
			return nil
		})
	}
	_ = group.Wait()

	sortResults(results)
	for _, r := range results {
		if r.Success {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
	}
	summary.Results = results
	summary.FinishedAt = time.Now().UTC()

	e.logger.Info("批量回测完成",
		zap.String("batch_id", summary.BatchID),
		zap.String("strategy", summary.Strategy),
		zap.Int("total", summary.Total),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Int("workers", summary.Workers),
	)

	return summary, nil
}

// StreamBatch 以生产者/消费者方式执行批量回测：每个资产完成后立即
// 向返回的通道发送结果，全部完成后关闭通道。
func (e *Engine) StreamBatch(ctx context.Context, req BatchRequest) (string, <-chan Result, error) {
	symbols, err := e.batchSymbols(ctx, req)
	if err != nil {
		return "", nil, err
	}

	batchID := uuid.NewString()
	out := make(chan Result, len(symbols))

	go func() {
		defer close(out)

		group, groupCtx := errgroup.WithContext(ctx)
		group.SetLimit(e.workerCount(req.MaxWorkers, len(symbols)))
		for _, symbol := range symbols {
			group.Go(func() error {
				result := e.runOne(groupCtx, req, symbol)
				select {
				case out <- result:
				case <-ctx.Done():
				}
				return nil
			})
		}
		_ = group.Wait()
	}()

	return batchID, out, nil
}

// runOne 执行批次内单个资产的回测，任何失败都折叠为失败结果。
func (e *Engine) runOne(ctx context.Context, req BatchRequest, symbol string) (result Result) {
	single := Request{
		Strategy: req.Strategy,
		Symbol:   symbol,
		Interval: req.Interval,
		Start:    req.Start,
		End:      req.End,
		// 每个资产持有独立副本，避免跨协程共享参数表。
		Params:       req.Params.Clone(),
		Options:      req.Options,
		ForceRefresh: req.ForceRefresh,
	}

	defer func() {
		if rec := recover(); rec != nil {
			e.logger.Error("回测协程发生panic",
				zap.String("symbol", symbol),
				zap.Any("panic", rec),
			)
			result = Unsuccessful(single, fmt.Sprintf("内部错误: %v", rec))
		}
	}()

	res, err := e.Run(ctx, single)
	if err != nil {
		e.logger.Warn("批次内单个资产回测失败",
			zap.String("symbol", symbol),
			zap.Error(err),
		)
		return Unsuccessful(single, err.Error())
	}
	return res
}

func (e *Engine) batchSymbols(ctx context.Context, req BatchRequest) ([]string, error) {
	if len(req.Symbols) > 0 {
		return req.Symbols, nil
	}

	symbols, err := e.source.ListSymbols(ctx, req.Interval, e.cfg.MinBars)
	if err != nil {
		return nil, fmt.Errorf("backtest: 查询候选交易对失败: %w", err)
	}
	return symbols, nil
}

// workerCount 取 CPU 数、资产数与配置上限的最小值。
func (e *Engine) workerCount(requested, assets int) int {
	limit := requested
	if limit <= 0 {
		limit = e.cfg.MaxWorkers
	}
	if cpus := runtime.NumCPU(); cpus < limit {
		limit = cpus
	}
	if assets > 0 && assets < limit {
		limit = assets
	}
	if limit < 1 {
		limit = 1
	}
	return limit
}

func sortResults(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Success != b.Success {
			return a.Success
		}
		if !a.Success {
			return a.Symbol < b.Symbol
		}
		if a.ReturnPct != b.ReturnPct {
			return a.ReturnPct > b.ReturnPct
		}
		return a.Symbol < b.Symbol
	})
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"quantboard/internal/exchange"
)

// CandleRepo 负责K线行的读写。
type CandleRepo struct {
	db *sql.DB
}

// NewCandleRepo 初始化K线存储，创建所需表结构。
func NewCandleRepo(store *Store) (*CandleRepo, error) {
	if store == nil {
		return nil, fmt.Errorf("store: store 不能为空")
	}

	r := &CandleRepo{db: store.DB()}
	if err := r.initSchema(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *CandleRepo) initSchema() error {
	stmt := `
CREATE TABLE IF NOT EXISTS candles (
	symbol TEXT NOT NULL,
	interval TEXT NOT NULL,
	ts INTEGER NOT NULL,
	open REAL NOT NULL,
	high REAL NOT NULL,
	low REAL NOT NULL,
	close REAL NOT NULL,
	volume REAL NOT NULL,
	PRIMARY KEY (symbol, interval, ts)
);
CREATE INDEX IF NOT EXISTS idx_candles_symbol_interval ON candles(symbol, interval);
`
	if _, err := r.db.Exec(stmt); err != nil {
		return fmt.Errorf("store: 初始化K线表失败: %w", err)
	}
	return nil
}

// UpsertCandles 批量写入K线，主键冲突时覆盖，返回写入行数。
func (r *CandleRepo) UpsertCandles(ctx context.Context, symbol string, interval exchange.Interval, candles []exchange.Candle) (int, error) {
	if len(candles) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: 开启事务失败: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO candles (symbol, interval, ts, open, high, low, close, volume)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(symbol, interval, ts) DO UPDATE SET
	open = excluded.open,
	high = excluded.high,
	low = excluded.low,
	close = excluded.close,
	volume = excluded.volume`)
	if err != nil {
		return 0, fmt.Errorf("store: 准备写入语句失败: %w", err)
	}
	defer stmt.Close()

	written := 0
	for _, candle := range candles {
		if _, err := stmt.ExecContext(ctx,
			symbol, string(interval), candle.Timestamp.UTC().Unix(),
			candle.Open, candle.High, candle.Low, candle.Close, candle.Volume,
		); err != nil {
			return 0, fmt.Errorf("store: 写入K线失败: %w", err)
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: 提交K线事务失败: %w", err)
	}
	return written, nil
}

// RangeCandles 按时间升序返回 [start, end] 区间内的K线。
func (r *CandleRepo) RangeCandles(ctx context.Context, symbol string, interval exchange.Interval, start, end time.Time) ([]exchange.Candle, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT ts, open, high, low, close, volume
FROM candles
WHERE symbol = ? AND interval = ? AND ts >= ? AND ts <= ?
ORDER BY ts ASC`,
		symbol, string(interval), start.UTC().Unix(), end.UTC().Unix())
	if err != nil {
		return nil, fmt.Errorf("store: 查询K线失败: %w", err)
	}
	defer rows.Close()

	var candles []exchange.Candle
	for rows.Next() {
		var (
			ts     int64
			candle exchange.Candle
		)
		if err := rows.Scan(&ts, &candle.Open, &candle.High, &candle.Low, &candle.Close, &candle.Volume); err != nil {
			return nil, fmt.Errorf("store: 解析K线失败: %w", err)
		}
		candle.Timestamp = time.Unix(ts, 0).UTC()
		candles = append(candles, candle)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: 读取K线失败: %w", err)
	}

	return candles, nil
}

// CountCandles 返回指定交易对、周期已存储的K线数量。
func (r *CandleRepo) CountCandles(ctx context.Context, symbol string, interval exchange.Interval) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM candles WHERE symbol = ? AND interval = ?`,
		symbol, string(interval),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("store: 统计K线失败: %w", err)
	}
	return count, nil
}

// ListSymbols 返回至少存有 minBars 根K线的全部交易对，按字母序排列。
func (r *CandleRepo) ListSymbols(ctx context.Context, interval exchange.Interval, minBars int) ([]string, error) {
	if minBars <= 0 {
		minBars = 1
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT symbol FROM candles
WHERE interval = ?
GROUP BY symbol
HAVING COUNT(*) >= ?
ORDER BY symbol ASC`,
		string(interval), minBars)
	if err != nil {
		return nil, fmt.Errorf("store: 查询交易对失败: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			return nil, fmt.Errorf("store: 解析交易对失败: %w", err)
		}
		symbols = append(symbols, symbol)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: 读取交易对失败: %w", err)
	}

	return symbols, nil
}

// LatestTimestamp 返回指定交易对、周期最新K线时间；无数据时 ok 为 false。
func (r *CandleRepo) LatestTimestamp(ctx context.Context, symbol string, interval exchange.Interval) (time.Time, bool, error) {
	var ts int64
	err := r.db.QueryRowContext(ctx,
		`SELECT ts FROM candles WHERE symbol = ? AND interval = ? ORDER BY ts DESC LIMIT 1`,
		symbol, string(interval),
	).Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("store: 查询最新K线失败: %w", err)
	}
	return time.Unix(ts, 0).UTC(), true, nil
}

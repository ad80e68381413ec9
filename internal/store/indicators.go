package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"quantboard/internal/exchange"
)

// IndicatorValue 表示一条已计算的指标行。
type IndicatorValue struct {
	Name      string    `json:"name"`
	Period    int       `json:"period"`
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// IndicatorRepo 负责已计算指标行的读写。
type IndicatorRepo struct {
	db *sql.DB
}

// NewIndicatorRepo 初始化指标存储，创建所需表结构。
func NewIndicatorRepo(store *Store) (*IndicatorRepo, error) {
	if store == nil {
		return nil, fmt.Errorf("store: store 不能为空")
	}

	r := &IndicatorRepo{db: store.DB()}
	if err := r.initSchema(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *IndicatorRepo) initSchema() error {
	stmt := `
CREATE TABLE IF NOT EXISTS indicator_values (
	symbol TEXT NOT NULL,
	interval TEXT NOT NULL,
	name TEXT NOT NULL,
	period INTEGER NOT NULL,
	ts INTEGER NOT NULL,
	value REAL NOT NULL,
	PRIMARY KEY (symbol, interval, name, period, ts)
);
`
	if _, err := r.db.Exec(stmt); err != nil {
		return fmt.Errorf("store: 初始化指标表失败: %w", err)
	}
	return nil
}

// SaveValues 批量写入指标行，NaN 视为未定义被跳过，返回写入行数。
func (r *IndicatorRepo) SaveValues(ctx context.Context, symbol string, interval exchange.Interval, values []IndicatorValue) (int, error) {
	if len(values) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: 开启事务失败: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO indicator_values (symbol, interval, name, period, ts, value)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(symbol, interval, name, period, ts) DO UPDATE SET value = excluded.value`)
	if err != nil {
		return 0, fmt.Errorf("store: 准备指标写入语句失败: %w", err)
	}
	defer stmt.Close()

	written := 0
	for _, v := range values {
		if math.IsNaN(v.Value) {
			continue
		}
		if _, err := stmt.ExecContext(ctx,
			symbol, string(interval), v.Name, v.Period, v.Timestamp.UTC().Unix(), v.Value,
		); err != nil {
			return 0, fmt.Errorf("store: 写入指标失败: %w", err)
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: 提交指标事务失败: %w", err)
	}
	return written, nil
}

// RangeValues 按时间升序返回指标行。
func (r *IndicatorRepo) RangeValues(ctx context.Context, symbol string, interval exchange.Interval, name string, period int, start, end time.Time) ([]IndicatorValue, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT ts, value FROM indicator_values
WHERE symbol = ? AND interval = ? AND name = ? AND period = ? AND ts >= ? AND ts <= ?
ORDER BY ts ASC`,
		symbol, string(interval), name, period, start.UTC().Unix(), end.UTC().Unix())
	if err != nil {
		return nil, fmt.Errorf("store: 查询指标失败: %w", err)
	}
	defer rows.Close()

	var values []IndicatorValue
	for rows.Next() {
		var (
			ts    int64
			value float64
		)
		if err := rows.Scan(&ts, &value); err != nil {
			return nil, fmt.Errorf("store: 解析指标失败: %w", err)
		}
		values = append(values, IndicatorValue{
			Name:      name,
			Period:    period,
			Timestamp: time.Unix(ts, 0).UTC(),
			Value:     value,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: 读取指标失败: %w", err)
	}

	return values, nil
}

package config

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
)

// Config 聚合了系统运行所需的全部配置项。
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Exchange  ExchangeConfig  `mapstructure:"exchange"`
	Collector CollectorConfig `mapstructure:"collector"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Backtest  BacktestConfig  `mapstructure:"backtest"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// AppConfig 控制应用级参数。
type AppConfig struct {
	Environment string `mapstructure:"environment"`
}

// ExchangeConfig 描述行情数据源交易所连接信息。
type ExchangeConfig struct {
	Name       string      `mapstructure:"name"`
	APIKey     string      `mapstructure:"api_key"`
	APISecret  string      `mapstructure:"api_secret"`
	UseSandbox bool        `mapstructure:"use_sandbox"`
	Retry      RetryConfig `mapstructure:"retry"`
}

// RetryConfig 统一控制重试机制。
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	MinDelay    time.Duration `mapstructure:"min_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

// CollectorConfig 控制历史K线采集。
type CollectorConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Symbols         []string      `mapstructure:"symbols"`
	Intervals       []string      `mapstructure:"intervals"`
	BackfillDays    int           `mapstructure:"backfill_days"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

// DatabaseConfig 管理数据库连接。
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	InMemory        bool          `mapstructure:"in_memory"`
}

// CacheConfig 管理回测结果缓存（Redis）。
type CacheConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Addr      string        `mapstructure:"addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	TTL       time.Duration `mapstructure:"ttl"`
}

// BacktestConfig 控制回测默认参数。
type BacktestConfig struct {
	InitialCash float64 `mapstructure:"initial_cash"`
	FeeRate     float64 `mapstructure:"fee_rate"`
	MinBars     int     `mapstructure:"min_bars"`
	MaxWorkers  int     `mapstructure:"max_workers"`
}

// ServerConfig 控制HTTP服务。
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig 控制日志输出。
type LoggingConfig struct {
	Level            string   `mapstructure:"level"`
	Encoding         string   `mapstructure:"encoding"`
	Development      bool     `mapstructure:"development"`
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// Validate 对配置进行基本校验。
func (c *Config) Validate() error {
	var err error

	if c.App.Environment == "" {
		err = multierr.Append(err, errors.New("app.environment 不能为空"))
	}
	if c.Exchange.Name == "" {
		err = multierr.Append(err, errors.New("exchange.name 不能为空"))
	}
	if c.Exchange.Retry.MaxAttempts <= 0 {
		err = multierr.Append(err, errors.New("exchange.retry.max_attempts 必须大于0"))
	}
	if c.Exchange.Retry.MinDelay <= 0 || c.Exchange.Retry.MaxDelay <= 0 {
		err = multierr.Append(err, errors.New("exchange.retry.delay 必须为正"))
	}
	if c.Exchange.Retry.MinDelay > c.Exchange.Retry.MaxDelay {
		err = multierr.Append(err, errors.New("exchange.retry.min_delay 不能大于 max_delay"))
	}
	if c.Collector.Enabled {
		if len(c.Collector.Symbols) == 0 {
			err = multierr.Append(err, errors.New("collector.symbols 至少包含一个交易对"))
		}
		if len(c.Collector.Intervals) == 0 {
			err = multierr.Append(err, errors.New("collector.intervals 至少包含一个周期"))
		}
		if c.Collector.BackfillDays <= 0 {
			err = multierr.Append(err, errors.New("collector.backfill_days 必须大于0"))
		}
		if c.Collector.RefreshInterval <= 0 {
			err = multierr.Append(err, errors.New("collector.refresh_interval 必须大于0"))
		}
	}
	if c.Database.Path == "" && !c.Database.InMemory {
		err = multierr.Append(err, errors.New("database.path 不能为空"))
	}
	if c.Database.MaxOpenConns <= 0 {
		err = multierr.Append(err, errors.New("database.max_open_conns 必须大于0"))
	}
	if c.Database.MaxIdleConns < 0 {
		err = multierr.Append(err, errors.New("database.max_idle_conns 不能为负"))
	}
	if c.Database.ConnMaxLifetime < 0 {
		err = multierr.Append(err, errors.New("database.conn_max_lifetime 不能为负"))
	}
	if c.Cache.Enabled {
		if c.Cache.Addr == "" {
			err = multierr.Append(err, errors.New("cache.addr 不能为空"))
		}
		if c.Cache.TTL <= 0 {
			err = multierr.Append(err, errors.New("cache.ttl 必须大于0"))
		}
	}
	if c.Backtest.InitialCash <= 0 {
		err = multierr.Append(err, errors.New("backtest.initial_cash 必须大于0"))
	}
	if c.Backtest.FeeRate < 0 || c.Backtest.FeeRate > 0.1 {
		err = multierr.Append(err, errors.New("backtest.fee_rate 应位于[0,0.1]"))
	}
	if c.Backtest.MinBars <= 0 {
		err = multierr.Append(err, errors.New("backtest.min_bars 必须大于0"))
	}
	if c.Backtest.MaxWorkers <= 0 {
		err = multierr.Append(err, errors.New("backtest.max_workers 必须大于0"))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		err = multierr.Append(err, errors.New("server.port 必须位于(0,65535]"))
	}
	if c.Logging.Level == "" {
		err = multierr.Append(err, errors.New("logging.level 不能为空"))
	}
	if c.Logging.Encoding == "" {
		err = multierr.Append(err, errors.New("logging.encoding 不能为空"))
	}
	if len(c.Logging.OutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.output_paths 至少包含一个输出目标"))
	}
	if len(c.Logging.ErrorOutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.error_output_paths 至少包含一个输出目标"))
	}

	if err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}

	return nil
}

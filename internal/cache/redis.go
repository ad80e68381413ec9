package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"quantboard/internal/config"
)

// Client 封装 Redis 作为回测结果的TTL缓存。
// 任何连接或序列化故障都降级为未命中并记录告警，绝不影响请求本身。
type Client struct {
	rdb    *redis.Client
	prefix string
	logger *zap.Logger
}

// New 创建缓存客户端。配置未启用时返回 nil（调用方视为不启用缓存）。
func New(cfg config.CacheConfig, logger *zap.Logger) (*Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,

		PoolSize:     10,
		MinIdleConns: 2,

		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,

		MaxRetries:      3,
		MinRetryBackoff: 100 * time.Millisecond,
		MaxRetryBackoff: 500 * time.Millisecond,
	})

	c := &Client{
		rdb:    rdb,
		prefix: cfg.KeyPrefix,
		logger: logger,
	}

	pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Warn("Redis 连接检查失败，缓存将按未命中降级", zap.String("addr", cfg.Addr), zap.Error(err))
	}

	return c, nil
}

// GetJSON 读取并反序列化缓存值，未命中或任何故障返回 false。
func (c *Client) GetJSON(ctx context.Context, key string, dst interface{}) bool {
	raw, err := c.rdb.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("读取缓存失败", zap.String("key", key), zap.Error(err))
		}
		return false
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		c.logger.Warn("反序列化缓存失败", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// SetJSON 序列化并写入缓存值，附带过期时间。
func (c *Client) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: 序列化失败: %w", err)
	}
	if err := c.rdb.Set(ctx, c.prefix+key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("cache: 写入失败: %w", err)
	}
	return nil
}

// Delete 删除指定键。
func (c *Client) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.prefix + k
	}
	if err := c.rdb.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("cache: 删除失败: %w", err)
	}
	return nil
}

// DeleteByPattern 按通配模式扫描并删除键，返回删除数量。
func (c *Client) DeleteByPattern(ctx context.Context, pattern string) (int, error) {
	var deleted int
	iter := c.rdb.Scan(ctx, 0, c.prefix+pattern, 200).Iterator()
	for iter.Next(ctx) {
		if err := c.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return deleted, fmt.Errorf("cache: 删除键 %q 失败: %w", iter.Val(), err)
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("cache: 扫描失败: %w", err)
	}
	return deleted, nil
}

// Healthy 返回 Redis 是否可达。
func (c *Client) Healthy(ctx context.Context) bool {
	return c.rdb.Ping(ctx).Err() == nil
}

// Close 关闭连接。
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Package ratelimit 基于 Redis 计数器实现固定窗口的频率限制。
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Counter 是计数所需的 Redis 命令子集，便于在测试中替换。
type Counter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// IncrWithTTL 自增计数，首次写入时设置过期时间。
func IncrWithTTL(ctx context.Context, client Counter, key string, ttl time.Duration) (int64, error) {
	count, err := client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		_ = client.Expire(ctx, key, ttl).Err()
	}
	return count, nil
}

// DailyKey 返回按 UTC 日期分桶的计数 key。
func DailyKey(scope string, userID uint, now time.Time) string {
	return fmt.Sprintf("%s:%d:%s", scope, userID, now.UTC().Format("20060102"))
}

// Daily 是按用户、按天的配额。Counter 为 nil 或 Limit <= 0 时不限制。
type Daily struct {
	Counter Counter
	Scope   string
	Limit   int
	Now     func() time.Time
}

// Allow 计数一次并返回是否仍在配额内。Redis 出错时返回错误，由调用方决定是否放行。
func (d *Daily) Allow(ctx context.Context, userID uint) (bool, error) {
	if d == nil || d.Counter == nil || d.Limit <= 0 {
		return true, nil
	}
	now := time.Now
	if d.Now != nil {
		now = d.Now
	}
	count, err := IncrWithTTL(ctx, d.Counter, DailyKey(d.Scope, userID, now()), 24*time.Hour)
	if err != nil {
		return false, fmt.Errorf("incr %s quota: %w", d.Scope, err)
	}
	return count <= int64(d.Limit), nil
}

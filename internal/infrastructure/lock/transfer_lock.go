package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ============================================================================
// Redis 分布式锁
// ============================================================================
//
// 同一 subadmin 的两笔并发充值不能都通过余额检查后各扣一次款。
// 数据库层有行锁兜底，这把锁把竞争挡在事务之外，
// 并保证多实例部署时同一 subadmin 的转账也是串行的。
//
// 加锁：SET key value NX EX timeout（NX 保互斥，EX 防死锁）
// 释放：Lua 脚本先验 value 再删 key，不会误删别人的锁
// ============================================================================

var ErrLockFailed = errors.New("获取分布式锁失败")

// DistributedLock 分布式锁
type DistributedLock struct {
	client     *redis.Client
	key        string
	value      string // 锁持有者标识，释放时验证
	expiration time.Duration
}

func NewDistributedLock(client *redis.Client, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

// TryLock 尝试获取锁（非阻塞）
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	success, err := l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
	if err != nil {
		return false, err
	}
	return success, nil
}

// Lock 阻塞式获取锁（带重试）
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		success, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if success {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
	return ErrLockFailed
}

// Unlock 释放锁
// Lua 脚本保证"检查+删除"的原子性：锁过期后被他人取得时，
// 过期持有者的 Unlock 不会删掉新持有者的锁
func (l *DistributedLock) Unlock(ctx context.Context) error {
	script := `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`
	_, err := l.client.Eval(ctx, script, []string{l.key}, l.value).Result()
	return err
}

// ============================================================================
// 按 subadmin 维度的转账锁
// ============================================================================

// RedisTransferLocker 实现 service.TransferLocker
// 按 subadmin 加锁：同一 subadmin 的转账串行，不同 subadmin 并发互不影响
type RedisTransferLocker struct {
	client *redis.Client
}

func NewTransferLocker(client *redis.Client) *RedisTransferLocker {
	return &RedisTransferLocker{client: client}
}

// Acquire 获取锁并返回释放函数；token 用于追踪哪个请求持有锁
func (l *RedisTransferLocker) Acquire(ctx context.Context, subAdminID int64, token string) (func(context.Context), error) {
	dl := NewDistributedLock(
		l.client,
		fmt.Sprintf("transfer:lock:subadmin:%d", subAdminID),
		token,
		30*time.Second,
	)
	if err := dl.Lock(ctx, 100*time.Millisecond, 30); err != nil {
		return nil, err
	}
	return func(ctx context.Context) {
		_ = dl.Unlock(ctx)
	}, nil
}

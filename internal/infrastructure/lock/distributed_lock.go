package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// 加锁: SET key token NX PX ttl
// 解锁: Lua 脚本校验 token 后删除，避免锁过期后误删他人持有的锁

var ErrLockFailed = errors.New("获取分布式锁失败")

const unlockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`

// DistributedLock 基于 Redis 的互斥锁
type DistributedLock struct {
	client     redis.Cmdable
	key        string
	value      string        // 持有者标识
	expiration time.Duration // 持有进程崩溃时锁自动过期
}

func NewDistributedLock(client redis.Cmdable, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

// TryLock 非阻塞加锁
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	return l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
}

// Lock 阻塞加锁，最多重试 maxRetries 次
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		ok, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if ok {
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

func (l *DistributedLock) Unlock(ctx context.Context) error {
	return l.client.Eval(ctx, unlockScript, []string{l.key}, l.value).Err()
}

// AccountLockKey 按用户维度加锁，不同用户之间互不阻塞
func AccountLockKey(userID string) string {
	return fmt.Sprintf("coinmarket:lock:account:%s", userID)
}

// RedisLocker 为每次余额变动获取一把用户级分布式锁
type RedisLocker struct {
	client        redis.Cmdable
	ttl           time.Duration
	retryInterval time.Duration
	maxRetries    int
}

func NewRedisLocker(client redis.Cmdable, ttl time.Duration, maxRetries int) *RedisLocker {
	if maxRetries <= 0 {
		maxRetries = 1
	}
	return &RedisLocker{
		client:        client,
		ttl:           ttl,
		retryInterval: 100 * time.Millisecond,
		maxRetries:    maxRetries,
	}
}

// Acquire 获取锁并返回释放函数
func (r *RedisLocker) Acquire(ctx context.Context, userID string) (func(), error) {
	l := NewDistributedLock(r.client, AccountLockKey(userID), uuid.NewString(), r.ttl)
	if err := l.Lock(ctx, r.retryInterval, r.maxRetries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLockFailed, err)
	}
	return func() {
		// 请求 ctx 可能已取消，解锁使用独立的超时
		unlockCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = l.Unlock(unlockCtx)
	}, nil
}

// Nop 未启用 Redis 时使用，互斥完全交给数据库行锁
type Nop struct{}

func (Nop) Acquire(context.Context, string) (func(), error) {
	return func() {}, nil
}

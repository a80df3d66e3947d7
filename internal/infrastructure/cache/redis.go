package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"coinmarket/internal/config"

	"github.com/go-redis/redis/v8"
)

func InitRedis(cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("连接 Redis 失败: %w", err)
	}
	return client, nil
}

const (
	ViewInventory = "inventory"
	ViewCart      = "cart"
)

// perUserViews 用户数据变化后需要一并失效的视图
var perUserViews = []string{ViewInventory, ViewCart}

func ViewKey(userID, view string) string {
	return fmt.Sprintf("coinmarket:view:%s:%s", userID, view)
}

// GenerationKey 每次失效加一，回填缓存前据此判断读到的数据是否已过期
func GenerationKey(userID string) string {
	return fmt.Sprintf("coinmarket:view:%s:gen", userID)
}

// 代数未变才写入。KEYS[1] 代数 KEYS[2] 视图, ARGV: 代数 内容 过期毫秒
const storeScript = `
local gen = redis.call("GET", KEYS[1]) or "0"
if gen ~= ARGV[1] then
	return 0
end
if tonumber(ARGV[3]) > 0 then
	redis.call("SET", KEYS[2], ARGV[2], "PX", ARGV[3])
else
	redis.call("SET", KEYS[2], ARGV[2])
end
return 1
`

// RedisViewCache 缓存按用户划分的只读视图，写操作提交后整体失效
type RedisViewCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisViewCache(client redis.Cmdable, ttl time.Duration) *RedisViewCache {
	return &RedisViewCache{client: client, ttl: ttl}
}

// Load 命中时把缓存内容解码到 dst
func (c *RedisViewCache) Load(ctx context.Context, userID, view string, dst interface{}) (bool, error) {
	raw, err := c.client.Get(ctx, ViewKey(userID, view)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, err
	}
	return true, nil
}

// Generation 读库之前取当前代数，从未失效过为 0
func (c *RedisViewCache) Generation(ctx context.Context, userID string) (int64, error) {
	gen, err := c.client.Get(ctx, GenerationKey(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// Store 只有代数仍为 gen 时才写入，期间发生过失效则放弃
func (c *RedisViewCache) Store(ctx context.Context, userID, view string, gen int64, value interface{}) (bool, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return false, err
	}
	keys := []string{GenerationKey(userID), ViewKey(userID, view)}
	stored, err := c.client.Eval(ctx, storeScript, keys, strconv.FormatInt(gen, 10), string(raw), c.ttl.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return stored == 1, nil
}

// Invalidate 先递增代数再删除视图，进行中的回填会被拒绝
func (c *RedisViewCache) Invalidate(ctx context.Context, userID string) error {
	if err := c.client.Incr(ctx, GenerationKey(userID)).Err(); err != nil {
		return err
	}
	keys := make([]string, 0, len(perUserViews))
	for _, view := range perUserViews {
		keys = append(keys, ViewKey(userID, view))
	}
	return c.client.Del(ctx, keys...).Err()
}

// Nop 未启用 Redis 时每次都直接读库
type Nop struct{}

func (Nop) Load(context.Context, string, string, interface{}) (bool, error) {
	return false, nil
}

func (Nop) Generation(context.Context, string) (int64, error) {
	return 0, nil
}

func (Nop) Store(context.Context, string, string, int64, interface{}) (bool, error) {
	return false, nil
}

func (Nop) Invalidate(context.Context, string) error {
	return nil
}

package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/zeebo/xxh3"

	"github.com/ruslano69/tdtp-dbengine/pkg/core/rowset"
)

// DefaultPrefix префикс ключей Redis
const DefaultPrefix = "dbengine:query:"

// Redis кэш результатов в Redis. Ключ запроса хешируется xxh3,
// значение хранится в JSON с тегами типов.
//
//	SET dbengine:query:<xxh3-128 hex> <JSON> EX <ttl>
type Redis struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

var _ Store = (*Redis)(nil)

// NewRedis создает кэш поверх клиента
func NewRedis(rdb *redis.Client, prefix string, ttl time.Duration) *Redis {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{rdb: rdb, prefix: prefix, ttl: ttl}
}

// RedisOptions параметры подключения
type RedisOptions struct {
	Address  string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

// DialRedis подключается к Redis и проверяет соединение
func DialRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Address,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return NewRedis(rdb, opts.Prefix, opts.TTL), nil
}

func (c *Redis) key(k string) string {
	h := xxh3.HashString128(k).Bytes()
	return fmt.Sprintf("%s%x", c.prefix, h[:])
}

// Get реализует Store
func (c *Redis) Get(ctx context.Context, key string) (*rowset.Result, bool, error) {
	payload, err := c.rdb.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis GET failed: %w", err)
	}
	res, err := Decode(payload)
	if err != nil {
		return nil, false, err
	}
	return res, true, nil
}

// Put реализует Store
func (c *Redis) Put(ctx context.Context, key string, res *rowset.Result) error {
	payload, err := Encode(res)
	if err != nil {
		return err
	}
	if err := c.rdb.Set(ctx, c.key(key), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis SET failed: %w", err)
	}
	return nil
}

// Delete реализует Store
func (c *Redis) Delete(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, c.key(key)).Err()
}

// Close закрывает соединение с Redis
func (c *Redis) Close() error {
	return c.rdb.Close()
}

// Package resultlog публикует итог задания в Redis, чтобы оркестратор мог
// узнать состояние опросом (GET) или подпиской (SUBSCRIBE).
package resultlog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ruslano69/tdtp-dbengine/pkg/report"
)

// DefaultTTL время жизни ключа состояния по умолчанию
const DefaultTTL = time.Hour

// KeyPrefix префикс ключей и каналов
const KeyPrefix = "dbengine:job:"

// Config параметры публикации
type Config struct {
	Address  string `yaml:"address"`  // Адрес Redis, например "127.0.0.1:6379"
	Name     string `yaml:"name"`     // Имя результата (ключ/канал), пусто - имя задания
	Password string `yaml:"password"` // Пароль Redis (опционально)
	DB       int    `yaml:"db"`       // Индекс базы данных Redis
	TTL      int    `yaml:"ttl"`      // TTL ключа в секундах (по умолчанию 3600)
}

// Validate проверяет конфигурацию
func (c Config) Validate() error {
	if c.Address == "" {
		return errors.New("result log address is required")
	}
	return nil
}

// StateKey ключ последнего состояния задания
func StateKey(name string) string { return KeyPrefix + name + ":state" }

// Channel канал событий задания
func Channel(name string) string { return KeyPrefix + name }

// RedisPublisher публикует результат выполнения задания в Redis
type RedisPublisher struct {
	client *redis.Client
	config Config
}

// NewRedisPublisher создает новый Redis publisher на основе конфигурации
func NewRedisPublisher(config Config) *RedisPublisher {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Address,
		Password: config.Password,
		DB:       config.DB,
	})
	return &RedisPublisher{client: client, config: config}
}

func (p *RedisPublisher) ttl() time.Duration {
	if p.config.TTL <= 0 {
		return DefaultTTL
	}
	return time.Duration(p.config.TTL) * time.Second
}

// Publish публикует сводку задания:
//   - SET dbengine:job:<name>:state <JSON> EX <ttl>  → для опроса (polling)
//   - PUBLISH dbengine:job:<name> <JSON>              → для подписки (pub/sub)
//
// Вызывается независимо от результата выполнения.
func (p *RedisPublisher) Publish(ctx context.Context, summary *report.Summary) error {
	name := p.config.Name
	if name == "" {
		name = summary.Name
	}

	payload, err := summary.Event().Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	// SET ключ с TTL — оркестратор может GET для получения последнего состояния
	if err := p.client.Set(ctx, StateKey(name), payload, p.ttl()).Err(); err != nil {
		return fmt.Errorf("redis SET failed: %w", err)
	}

	// PUBLISH событие — оркестратор может SUBSCRIBE для event-driven маршрутизации
	if err := p.client.Publish(ctx, Channel(name), payload).Err(); err != nil {
		return fmt.Errorf("redis PUBLISH failed: %w", err)
	}

	return nil
}

// Close закрывает соединение с Redis
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

// Package cache хранит результаты выборок фасада по ключу запроса.
// Память процесса (TTL) или Redis; фасад сам отдает клиентам глубокие копии.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/ruslano69/tdtp-dbengine/pkg/core/rowset"
)

// DefaultTTL время жизни записи по умолчанию
const DefaultTTL = 20 * time.Minute

// Store контракт кэша результатов
type Store interface {
	// Get возвращает результат и признак попадания
	Get(ctx context.Context, key string) (*rowset.Result, bool, error)
	// Put сохраняет результат
	Put(ctx context.Context, key string, res *rowset.Result) error
	// Delete удаляет запись
	Delete(ctx context.Context, key string) error
}

type entry[V any] struct {
	value   V
	expires time.Time
}

// TTL потокобезопасная карта с истечением записей.
// Мьютекс защищает только карту.
type TTL[V any] struct {
	mu    sync.Mutex
	ttl   time.Duration
	items map[string]entry[V]
	now   func() time.Time
}

// NewTTL создает карту; ttl <= 0 означает DefaultTTL
func NewTTL[V any](ttl time.Duration) *TTL[V] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &TTL[V]{
		ttl:   ttl,
		items: make(map[string]entry[V]),
		now:   time.Now,
	}
}

// Get возвращает живое значение
func (c *TTL[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	if c.now().After(e.expires) {
		delete(c.items, key)
		var zero V
		return zero, false
	}
	return e.value, true
}

// Put сохраняет значение
func (c *TTL[V]) Put(key string, value V) {
	c.mu.Lock()
	c.items[key] = entry[V]{value: value, expires: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

// Delete удаляет значение
func (c *TTL[V]) Delete(key string) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

// Clear удаляет все значения
func (c *TTL[V]) Clear() {
	c.mu.Lock()
	c.items = make(map[string]entry[V])
	c.mu.Unlock()
}

// Len количество записей, включая еще не вычищенные просроченные
func (c *TTL[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Memory кэш результатов в памяти процесса
type Memory struct {
	items *TTL[*rowset.Result]
}

var _ Store = (*Memory)(nil)

// NewMemory создает кэш в памяти
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{items: NewTTL[*rowset.Result](ttl)}
}

// Get реализует Store
func (m *Memory) Get(_ context.Context, key string) (*rowset.Result, bool, error) {
	res, ok := m.items.Get(key)
	return res, ok, nil
}

// Put реализует Store
func (m *Memory) Put(_ context.Context, key string, res *rowset.Result) error {
	m.items.Put(key, res)
	return nil
}

// Delete реализует Store
func (m *Memory) Delete(_ context.Context, key string) error {
	m.items.Delete(key)
	return nil
}

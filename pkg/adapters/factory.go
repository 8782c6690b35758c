package adapters

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/ruslano69/tdtp-dbengine/pkg/dialect"
)

// ErrUnknownType тип СУБД не зарегистрирован
var ErrUnknownType = errors.New("unknown database type")

// Constructor создает новый, еще не подключенный адаптер
type Constructor func() Adapter

// registration конструктор и диалект, который адаптер обязан дать после
// подключения. Unknown означает, что диалект определяется по DSN (ODBC).
type registration struct {
	constructor Constructor
	dialect     dialect.Dialect
}

// Factory реестр адаптеров по типу СУБД. Тип сравнивается без учета
// регистра и пробелов.
type Factory struct {
	mu       sync.RWMutex
	registry map[string]registration
}

// NewFactory создает пустой реестр
func NewFactory() *Factory {
	return &Factory{registry: make(map[string]registration)}
}

func normalizeType(dbType string) string {
	return strings.ToLower(strings.TrimSpace(dbType))
}

// Register регистрирует конструктор для типа dbType. d - диалект, который
// адаптер обязан вернуть после Connect; dialect.Unknown - любой известный.
func (f *Factory) Register(dbType string, d dialect.Dialect, constructor Constructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registry[normalizeType(dbType)] = registration{constructor: constructor, dialect: d}
}

// Types возвращает зарегистрированные типы по алфавиту
func (f *Factory) Types() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	types := make([]string, 0, len(f.registry))
	for dbType := range f.registry {
		types = append(types, dbType)
	}
	sort.Strings(types)
	return types
}

func (f *Factory) lookup(dbType string) (registration, error) {
	f.mu.RLock()
	reg, ok := f.registry[normalizeType(dbType)]
	f.mu.RUnlock()
	if !ok {
		return registration{}, fmt.Errorf("%w: %q (available types: %s)",
			ErrUnknownType, dbType, strings.Join(f.Types(), ", "))
	}
	return reg, nil
}

// Dialect возвращает диалект, заявленный при регистрации типа.
// Для ODBC это dialect.Unknown: семейство известно только после разбора DSN.
func (f *Factory) Dialect(dbType string) (dialect.Dialect, error) {
	reg, err := f.lookup(dbType)
	if err != nil {
		return dialect.Unknown, err
	}
	return reg.dialect, nil
}

// Create создает и подключает адаптер. Адаптер, который после подключения
// не определил диалект или дал не тот, что заявлен при регистрации,
// закрывается: движок не работает с неизвестным семейством SQL.
func (f *Factory) Create(ctx context.Context, cfg Config) (Adapter, error) {
	reg, err := f.lookup(cfg.Type)
	if err != nil {
		return nil, err
	}

	adapter := reg.constructor()
	if err := adapter.Connect(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Type, err)
	}

	got := adapter.Dialect()
	switch {
	case got == dialect.Unknown:
		err = fmt.Errorf("%s: cannot determine SQL dialect of %s", cfg.Type, adapter.URL())
	case reg.dialect != dialect.Unknown && got != reg.dialect:
		err = fmt.Errorf("%s: adapter reported dialect %s, expected %s", cfg.Type, got, reg.dialect)
	}
	if err != nil {
		if cerr := adapter.Close(ctx); cerr != nil {
			log.Warn().Err(cerr).Str("type", cfg.Type).Msg("problem closing rejected adapter")
		}
		return nil, err
	}

	log.Debug().
		Str("type", cfg.Type).
		Str("dialect", got.String()).
		Str("url", adapter.URL()).
		Msg("database connected")
	return adapter, nil
}

var globalFactory = NewFactory()

// Register регистрирует адаптер в глобальном реестре. Вызывается из init()
// пакетов адаптеров:
//
//	func init() {
//	    adapters.Register("postgres", dialect.Postgres, func() adapters.Adapter {
//	        return &Adapter{}
//	    })
//	}
func Register(dbType string, d dialect.Dialect, constructor Constructor) {
	globalFactory.Register(dbType, d, constructor)
}

// Types типы глобального реестра
func Types() []string {
	return globalFactory.Types()
}

// DialectOf проверяет тип по глобальному реестру и возвращает его диалект
func DialectOf(dbType string) (dialect.Dialect, error) {
	return globalFactory.Dialect(dbType)
}

// New создает и подключает адаптер через глобальный реестр
//
//	adapter, err := adapters.New(ctx, adapters.Config{
//	    Type: "mysql",
//	    DSN:  "root:secret@tcp(localhost:3306)/app?parseTime=true",
//	})
//	if err != nil {
//	    return err
//	}
//	defer adapter.Close(ctx)
func New(ctx context.Context, cfg Config) (Adapter, error) {
	return globalFactory.Create(ctx, cfg)
}

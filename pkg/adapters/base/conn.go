package base

import (
	"context"
	"database/sql"
	"errors"

	"github.com/ruslano69/tdtp-dbengine/pkg/adapters"
	"github.com/ruslano69/tdtp-dbengine/pkg/dialect"
)

// ErrNotConnected адаптер еще не подключен
var ErrNotConnected = errors.New("adapter not connected")

// Conn общая часть адаптеров: пул database/sql и диалект,
// определенный один раз при подключении
type Conn struct {
	db      *sql.DB
	dialect dialect.Dialect
	url     string
	schema  string
}

// Init заполняет соединение после успешного подключения
func (c *Conn) Init(db *sql.DB, d dialect.Dialect, url, schema string) {
	c.db = db
	c.dialect = d
	c.url = url
	c.schema = schema
}

// DB возвращает *sql.DB
func (c *Conn) DB() *sql.DB {
	return c.db
}

// Dialect диалект соединения
func (c *Conn) Dialect() dialect.Dialect {
	return c.dialect
}

// URL идентификатор соединения
func (c *Conn) URL() string {
	return c.url
}

// Schema схема по умолчанию
func (c *Conn) Schema() string {
	return c.schema
}

// Ping проверяет доступность БД
func (c *Conn) Ping(ctx context.Context) error {
	if c.db == nil {
		return ErrNotConnected
	}
	return c.db.PingContext(ctx)
}

// Close закрывает пул
func (c *Conn) Close(ctx context.Context) error {
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}

// ApplyPool применяет лимиты пула из конфигурации
func ApplyPool(db *sql.DB, cfg adapters.Config) {
	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		db.SetMaxIdleConns(cfg.MinConns)
	}
}

// OpenAndPing открывает пул и проверяет подключение с таймаутом из конфигурации
func OpenAndPing(ctx context.Context, driver string, cfg adapters.Config) (*sql.DB, error) {
	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, err
	}
	ApplyPool(db, cfg)

	pingCtx := ctx
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Package schemacache строит и кэширует описания таблиц по пробному
// запросу "select * from t where 0=1". Ключ кэша: url~table.
package schemacache

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ruslano69/tdtp-dbengine/pkg/cache"
	"github.com/ruslano69/tdtp-dbengine/pkg/core/schema"
)

// DefaultTTL время жизни описания таблицы
const DefaultTTL = 20 * time.Minute

// Querier выполняет запрос; *sql.DB, *sql.Tx и *sql.Conn подходят
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Catalog источник сведений о таблице помимо результата пробного запроса
type Catalog interface {
	URL() string
	GetAutoIncrementColumn(ctx context.Context, tableName string) (string, error)
}

// Cache кэш описаний таблиц. Безопасен для конкурентного использования;
// построение идет без блокировки, повторное построение допустимо.
type Cache struct {
	items *cache.TTL[*schema.TableSchema]
}

// New создает кэш; ttl <= 0 означает DefaultTTL
func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{items: cache.NewTTL[*schema.TableSchema](ttl)}
}

// Key ключ кэша для соединения и таблицы
func Key(url, table string) string {
	return url + "~" + table
}

// Describe возвращает описание таблицы, строя его при отсутствии в кэше
func (c *Cache) Describe(ctx context.Context, cat Catalog, q Querier, table string) (*schema.TableSchema, error) {
	key := Key(cat.URL(), table)
	if ts, ok := c.items.Get(key); ok {
		return ts, nil
	}

	ts, err := Build(ctx, cat, q, table)
	if err != nil {
		return nil, err
	}
	c.items.Put(key, ts)
	return ts, nil
}

// Invalidate удаляет описание таблицы
func (c *Cache) Invalidate(url, table string) {
	c.items.Delete(Key(url, table))
}

// Clear очищает кэш
func (c *Cache) Clear() {
	c.items.Clear()
}

// Build строит описание таблицы без кэша.
// Сначала пробуется имя в нижнем регистре, затем в верхнем.
func Build(ctx context.Context, cat Catalog, q Querier, table string) (*schema.TableSchema, error) {
	var (
		rows *sql.Rows
		err  error
	)
	for _, name := range []string{strings.ToLower(table), strings.ToUpper(table)} {
		rows, err = q.QueryContext(ctx, "select * from "+name+" where 0=1")
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to describe table %s: %w", table, err)
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to read column types of %s: %w", table, err)
	}

	autoInc, err := cat.GetAutoIncrementColumn(ctx, table)
	if err != nil {
		log.Warn().Err(err).Str("table", table).Msg("auto-increment column lookup failed")
		autoInc = ""
	}

	ts := &schema.TableSchema{Table: table, Columns: make([]schema.Column, 0, len(types))}
	for _, ct := range types {
		col := schema.Column{
			Name:         ct.Name(),
			DatabaseType: ct.DatabaseTypeName(),
			Type:         schema.FromDatabaseType(ct.DatabaseTypeName()),
			Nullable:     true,
		}
		if nullable, ok := ct.Nullable(); ok {
			col.Nullable = nullable
		}
		if length, ok := ct.Length(); ok {
			col.DisplaySize = length
		}
		if precision, scale, ok := ct.DecimalSize(); ok {
			col.Precision = precision
			col.Scale = scale
		}
		if autoInc != "" && strings.EqualFold(col.Name, autoInc) {
			col.AutoIncrement = true
			ts.AutoIncrement = col.Name
		}
		ts.Columns = append(ts.Columns, col)
	}
	return ts, rows.Err()
}

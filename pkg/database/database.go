// Package database фасад над соединением: выборки с кэшем и усечением,
// выгрузка в CSV со слиянием строк, пакетная вставка, изменение записей
// и транзакции с правилом владельца.
//
// Database рассчитан на одного логического писателя и не безопасен для
// конкурентного использования.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ruslano69/tdtp-dbengine/pkg/adapters"
	"github.com/ruslano69/tdtp-dbengine/pkg/cache"
	"github.com/ruslano69/tdtp-dbengine/pkg/dialect"
	"github.com/ruslano69/tdtp-dbengine/pkg/report"
	"github.com/ruslano69/tdtp-dbengine/pkg/schemacache"
)

// DefaultMaxResults предел строк Find по умолчанию; 0 означает без предела
const DefaultMaxResults = 500000

// ErrNoConnection фасад не подключен
var ErrNoConnection = errors.New("database is not connected")

// querier общий интерфейс *sql.DB и *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// Database фасад над адаптером
type Database struct {
	adapter    adapters.Adapter
	name       string
	results    cache.Store
	schemas    *schemacache.Cache
	summary    *report.Summary
	maxResults int

	tx      *sql.Tx
	batches map[string]*batchSession

	lastError    string
	lastDuration time.Duration
}

// Option настройка фасада
type Option func(*Database)

// WithCache подключает кэш результатов Find
func WithCache(c cache.Store) Option {
	return func(d *Database) { d.results = c }
}

// WithSchemaCache задает общий кэш описаний таблиц
func WithSchemaCache(c *schemacache.Cache) Option {
	return func(d *Database) { d.schemas = c }
}

// WithMaxResults задает предел строк Find; 0 без предела
func WithMaxResults(n int) Option {
	return func(d *Database) { d.maxResults = n }
}

// WithSummary задает сводку, в которую пишутся результаты операций
func WithSummary(s *report.Summary) Option {
	return func(d *Database) { d.summary = s }
}

// New создает фасад над подключенным адаптером
func New(a adapters.Adapter, name string, opts ...Option) *Database {
	d := &Database{
		adapter:    a,
		name:       name,
		maxResults: DefaultMaxResults,
		batches:    make(map[string]*batchSession),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.schemas == nil {
		d.schemas = schemacache.New(0)
	}
	if d.summary == nil {
		d.summary = report.NewSummary(name)
	}
	return d
}

// Open подключает адаптер через фабрику и создает фасад
func Open(ctx context.Context, cfg adapters.Config, name string, opts ...Option) (*Database, error) {
	a, err := adapters.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return New(a, name, opts...), nil
}

// Name имя фасада
func (d *Database) Name() string { return d.name }

// Adapter адаптер соединения
func (d *Database) Adapter() adapters.Adapter { return d.adapter }

// Dialect диалект соединения
func (d *Database) Dialect() dialect.Dialect {
	if d.adapter == nil {
		return dialect.Unknown
	}
	return d.adapter.Dialect()
}

// Summary сводка операций фасада
func (d *Database) Summary() *report.Summary { return d.summary }

// MaxResults текущий предел строк Find
func (d *Database) MaxResults() int { return d.maxResults }

// SetMaxResults задает предел строк Find; 0 без предела
func (d *Database) SetMaxResults(n int) { d.maxResults = n }

// LastError текст последней ошибки или ""
func (d *Database) LastError() string { return d.lastError }

// InError true, если последняя операция завершилась ошибкой
func (d *Database) InError() bool { return d.lastError != "" }

// ClearErrors сбрасывает последнюю ошибку
func (d *Database) ClearErrors() { d.lastError = "" }

// LastDuration длительность последней выборки
func (d *Database) LastDuration() time.Duration { return d.lastDuration }

func (d *Database) setError(err error) error {
	d.lastError = err.Error()
	log.Error().Err(err).Str("database", d.name).Msg("database operation failed")
	return err
}

// record добавляет результат в сводку; неуспех становится последней ошибкой
func (d *Database) record(o report.Outcome) report.Outcome {
	d.summary.Add(o)
	if !o.Success && o.Err != nil {
		d.setError(fmt.Errorf("%s: %w", o.Target, o.Err))
	}
	return o
}

func (d *Database) db() (*sql.DB, error) {
	if d.adapter == nil || d.adapter.DB() == nil {
		return nil, ErrNoConnection
	}
	return d.adapter.DB(), nil
}

// conn возвращает активную транзакцию, иначе пул. Все запросы внутри
// транзакции должны идти через нее.
func (d *Database) conn() (querier, error) {
	if d.tx != nil {
		return d.tx, nil
	}
	db, err := d.db()
	if err != nil {
		return nil, err
	}
	return db, nil
}

// ========== Transactions ==========

// Begin начинает транзакцию, если она еще не начата
func (d *Database) Begin(ctx context.Context) error {
	_, err := d.beginIfNeeded(ctx)
	return err
}

// beginIfNeeded сообщает, начал ли вызов транзакцию. Только начавший
// завершает ее; вложенные вызовы не трогают внешнюю транзакцию.
func (d *Database) beginIfNeeded(ctx context.Context) (bool, error) {
	if d.tx != nil {
		return false, nil
	}
	db, err := d.db()
	if err != nil {
		return false, d.setError(err)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, d.setError(fmt.Errorf("problem starting a transaction: %w", err))
	}
	d.tx = tx
	return true, nil
}

// InTransaction true внутри транзакции
func (d *Database) InTransaction() bool { return d.tx != nil }

// Commit фиксирует текущую транзакцию. Без транзакции ничего не делает.
func (d *Database) Commit(ctx context.Context) error {
	if d.tx == nil {
		log.Debug().Str("database", d.name).Msg("commit without transaction ignored")
		return nil
	}
	d.detachBatches()
	tx := d.tx
	d.tx = nil
	if err := tx.Commit(); err != nil {
		return d.setError(fmt.Errorf("problem committing a transaction: %w", err))
	}
	return nil
}

// Rollback откатывает текущую транзакцию. Без транзакции ничего не делает.
func (d *Database) Rollback(ctx context.Context) error {
	if d.tx == nil {
		return nil
	}
	d.detachBatches()
	tx := d.tx
	d.tx = nil
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		log.Error().Err(err).Str("database", d.name).Msg("problem rolling back a transaction")
		return err
	}
	return nil
}

// finish завершает транзакцию, начатую вызывающим
func (d *Database) finish(ctx context.Context, started bool, ok bool) error {
	if !started {
		return nil
	}
	if ok {
		return d.Commit(ctx)
	}
	return d.Rollback(ctx)
}

// Close закрывает пакеты, откатывает незавершенную транзакцию и
// закрывает адаптер
func (d *Database) Close(ctx context.Context) error {
	for table := range d.batches {
		d.CloseBatch(ctx, table)
	}
	if err := d.Rollback(ctx); err != nil {
		log.Warn().Err(err).Msg("rollback on close failed")
	}
	if d.adapter == nil {
		return nil
	}
	return d.adapter.Close(ctx)
}

func checkTable(table string) error {
	if strings.TrimSpace(table) == "" {
		return errors.New("you must specify a table name")
	}
	return nil
}

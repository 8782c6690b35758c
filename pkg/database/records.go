package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/ruslano69/tdtp-dbengine/pkg/adapters/base"
	"github.com/ruslano69/tdtp-dbengine/pkg/batch"
	"github.com/ruslano69/tdtp-dbengine/pkg/coerce"
	"github.com/ruslano69/tdtp-dbengine/pkg/core/rowset"
	"github.com/ruslano69/tdtp-dbengine/pkg/core/schema"
	"github.com/ruslano69/tdtp-dbengine/pkg/report"
)

// ErrNoBatch для таблицы нет открытого пакета
var ErrNoBatch = errors.New("no batch open for table")

// batchSession пакет таблицы и транзакция, которую он начал
type batchSession struct {
	writer *batch.Writer
	ownsTx bool
	keys   []int64
}

// Describe описание таблицы из общего кэша
func (d *Database) Describe(ctx context.Context, table string) (*schema.TableSchema, error) {
	q, err := d.conn()
	if err != nil {
		return nil, err
	}
	return d.schemas.Describe(ctx, d.adapter, q, table)
}

// Execute выполняет произвольный оператор
func (d *Database) Execute(ctx context.Context, statement string, params ...any) report.Outcome {
	d.lastError = ""
	q, err := d.conn()
	if err != nil {
		return d.record(report.Fail(statement, err))
	}
	res, err := q.ExecContext(ctx, statement, params...)
	if err != nil {
		return d.record(report.Fail(statement, err))
	}
	n, _ := res.RowsAffected()
	return d.record(report.OK(statement, n))
}

// AddBatch добавляет строку в пакет таблицы. Первая строка определяет
// колонки пакета; если транзакции нет, пакет начинает свою.
// В сводку попадают только ошибки.
func (d *Database) AddBatch(ctx context.Context, table string, row *rowset.Row) error {
	if err := checkTable(table); err != nil {
		return d.record(report.Fail(table, err)).Err
	}
	key := strings.ToLower(table)
	s := d.batches[key]
	if s == nil || s.writer == nil {
		ts, err := d.Describe(ctx, table)
		if err != nil {
			return d.record(report.Fail(table, err)).Err
		}
		started, err := d.beginIfNeeded(ctx)
		if err != nil {
			return err
		}
		w, err := batch.Open(ctx, d.tx, d.Dialect(), ts, table, row)
		if err != nil {
			d.finish(ctx, started, false)
			return d.record(report.Fail(table, err)).Err
		}
		s = &batchSession{writer: w, ownsTx: started}
		d.batches[key] = s
	}
	if err := s.writer.AddRow(row); err != nil {
		return d.record(report.Fail(table, err)).Err
	}
	return nil
}

// ExecuteBatch выполняет накопленные строки. Транзакция, начатая пакетом,
// фиксируется при успехе и откатывается при ошибке; внешняя транзакция
// остается открытой. Следующий AddBatch открывает новый пакет.
func (d *Database) ExecuteBatch(ctx context.Context, table string) report.Outcome {
	s := d.batches[strings.ToLower(table)]
	if s == nil || s.writer == nil {
		return d.record(report.Fail(table, ErrNoBatch))
	}
	o := s.writer.Execute(ctx)
	s.keys = s.writer.GeneratedKeys()
	if err := s.writer.Close(); err != nil {
		log.Warn().Err(err).Str("table", table).Msg("problem closing batch")
	}
	s.writer = nil
	if s.ownsTx {
		s.ownsTx = false
		if err := d.finish(ctx, true, o.Success); err != nil && o.Success {
			o = report.Fail(table, err)
		}
	}
	return d.record(o)
}

// CloseBatch отбрасывает пакет таблицы; транзакция пакета откатывается
func (d *Database) CloseBatch(ctx context.Context, table string) {
	key := strings.ToLower(table)
	s := d.batches[key]
	if s == nil {
		return
	}
	if s.writer != nil {
		s.writer.Close()
		s.writer = nil
	}
	if s.ownsTx {
		s.ownsTx = false
		d.Rollback(ctx)
	}
	delete(d.batches, key)
}

// GeneratedKeys ключи последнего выполненного пакета таблицы
func (d *Database) GeneratedKeys(table string) []int64 {
	s := d.batches[strings.ToLower(table)]
	if s == nil {
		return nil
	}
	out := make([]int64, len(s.keys))
	copy(out, s.keys)
	return out
}

// detachBatches закрывает писатели пакетов при завершении транзакции:
// подготовленные операторы принадлежат ей
func (d *Database) detachBatches() {
	for table, s := range d.batches {
		if s.writer != nil {
			if s.writer.Pending() > 0 {
				log.Warn().Str("table", table).Int("rows", s.writer.Pending()).
					Msg("transaction ended with unexecuted batch rows")
			}
			s.writer.Close()
			s.writer = nil
		}
		s.ownsTx = false
	}
}

// AddRecord вставляет одну строку. После вставки row получает
// сгенерированный ключ; при refresh строка перечитывается по ключу и все
// ее колонки, включая значения по умолчанию, копируются в row.
func (d *Database) AddRecord(ctx context.Context, table string, row *rowset.Row, refresh bool) (report.Outcome, *rowset.Row) {
	if err := checkTable(table); err != nil {
		return d.record(report.Fail(table, err)), nil
	}
	ts, err := d.Describe(ctx, table)
	if err != nil {
		return d.record(report.Fail(table, err)), nil
	}
	started, err := d.beginIfNeeded(ctx)
	if err != nil {
		return d.record(report.Fail(table, err)), nil
	}

	w, err := batch.Open(ctx, d.tx, d.Dialect(), ts, table, row)
	if err != nil {
		d.finish(ctx, started, false)
		return d.record(report.Fail(table, err)), nil
	}
	defer w.Close()

	if err := w.AddRow(row); err != nil {
		d.finish(ctx, started, false)
		return d.record(report.Fail(table, err)), nil
	}
	o := w.Execute(ctx)
	keys := w.GeneratedKeys()
	w.Close()
	if err := d.finish(ctx, started, o.Success); err != nil && o.Success {
		o = report.Fail(table, err)
	}
	d.record(o)
	if !o.Success || ts.AutoIncrement == "" || len(keys) == 0 {
		return o, nil
	}
	row.Set(ts.AutoIncrement, keys[0])
	if !refresh {
		return o, nil
	}

	query := fmt.Sprintf("select * from %s where %s=%s", table, ts.AutoIncrement, d.Dialect().Placeholder(1))
	fresh, err := d.FindFirst(ctx, query, true, keys[0])
	if err != nil {
		log.Warn().Err(err).Str("table", table).Msg("problem refreshing added record")
		return o, nil
	}
	if fresh != nil {
		fresh.Each(row.Set)
	}
	return o, fresh
}

// UpdateRecord изменяет строки по условию where значениями row.
// Строка "null" в любом регистре записывается как NULL. При refresh
// возвращается первая измененная строка.
func (d *Database) UpdateRecord(ctx context.Context, table, where string, row *rowset.Row, refresh bool) (report.Outcome, *rowset.Row) {
	if err := checkTable(table); err != nil {
		return d.record(report.Fail(table, err)), nil
	}
	if strings.TrimSpace(where) == "" {
		return d.record(report.Fail(table, errors.New("update requires a where clause"))), nil
	}
	if row == nil || row.Len() == 0 {
		return d.record(report.Fail(table, errors.New("no values to update"))), nil
	}
	ts, err := d.Describe(ctx, table)
	if err != nil {
		return d.record(report.Fail(table, err)), nil
	}

	dl := d.Dialect()
	sets := make([]string, 0, row.Len())
	args := make([]any, 0, row.Len())
	for _, key := range row.Keys() {
		col, ok := ts.Column(key)
		if !ok {
			return d.record(report.Fail(table, fmt.Errorf("column %s does not exist in table %s", key, table))), nil
		}
		value := row.Value(key)
		if s, isString := value.(string); isString && strings.EqualFold(s, "null") {
			value = nil
		}
		bound, err := coerce.Bind(value, col.Type)
		if err != nil {
			return d.record(report.Fail(table, fmt.Errorf("column %s: %w", col.Name, err))), nil
		}
		args = append(args, bound)
		sets = append(sets, col.Name+"="+dl.Placeholder(len(args)))
	}
	statement := fmt.Sprintf("update %s set %s where %s", table, strings.Join(sets, ","), where)

	q, err := d.conn()
	if err != nil {
		return d.record(report.Fail(table, err)), nil
	}
	res, err := q.ExecContext(ctx, statement, args...)
	if err != nil {
		return d.record(report.Fail(table, fmt.Errorf("problem updating record: %w", err))), nil
	}
	n, _ := res.RowsAffected()
	o := d.record(report.OK(table, n))
	if !refresh || n == 0 {
		return o, nil
	}
	fresh, err := d.FindFirst(ctx, fmt.Sprintf("select * from %s where %s", table, where), true)
	if err != nil {
		log.Warn().Err(err).Str("table", table).Msg("problem refreshing updated record")
		return o, nil
	}
	return o, fresh
}

// DeleteRecords удаляет строки по условию where
func (d *Database) DeleteRecords(ctx context.Context, table, where string) report.Outcome {
	if err := checkTable(table); err != nil {
		return d.record(report.Fail(table, err))
	}
	if strings.TrimSpace(where) == "" {
		return d.record(report.Fail(table, errors.New("delete requires a where clause")))
	}
	q, err := d.conn()
	if err != nil {
		return d.record(report.Fail(table, err))
	}
	res, err := q.ExecContext(ctx, fmt.Sprintf("delete from %s where %s", table, where))
	if err != nil {
		return d.record(report.Fail(table, err))
	}
	n, _ := res.RowsAffected()
	return d.record(report.OK(table, n))
}

// TableExists проверяет наличие таблицы
func (d *Database) TableExists(ctx context.Context, table string) bool {
	if d.adapter == nil {
		return false
	}
	ok, err := d.adapter.TableExists(ctx, table)
	if err != nil {
		d.setError(err)
		return false
	}
	return ok
}

// Quote возвращает идентификатор в кавычках диалекта
func (d *Database) Quote(name string) string {
	return base.QuoteIdentifier(d.Dialect(), name)
}

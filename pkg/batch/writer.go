// Package batch накапливает строки для одной таблицы и выполняет их
// через один подготовленный INSERT, собирая сгенерированные ключи.
// Writer не безопасен для конкурентного использования.
package batch

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/ruslano69/tdtp-dbengine/pkg/coerce"
	"github.com/ruslano69/tdtp-dbengine/pkg/core/rowset"
	"github.com/ruslano69/tdtp-dbengine/pkg/core/schema"
	"github.com/ruslano69/tdtp-dbengine/pkg/dialect"
	"github.com/ruslano69/tdtp-dbengine/pkg/report"
)

// ErrBatchClosed пакет уже закрыт
var ErrBatchClosed = errors.New("batch is closed")

// Executor соединение, на котором живет пакет.
// Подходят *sql.Conn и *sql.Tx: запрос ключа должен идти
// по тому же соединению, что и вставка.
type Executor interface {
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Writer открытый пакетный INSERT для одной таблицы
type Writer struct {
	exec      Executor
	dialect   dialect.Dialect
	table     string
	columns   []schema.Column
	query     string
	returning bool
	autoInc   string

	stmt    *sql.Stmt
	pending [][]any
	keys    []int64
	closed  bool
}

// Open готовит INSERT по ключам образцовой строки, пересеченным с колонками
// таблицы. Неизвестные ключи молча отбрасываются, порядок колонок
// запоминается.
func Open(ctx context.Context, exec Executor, d dialect.Dialect, ts *schema.TableSchema, table string, sample *rowset.Row) (*Writer, error) {
	w := &Writer{
		exec:    exec,
		dialect: d,
		table:   table,
		autoInc: ts.AutoIncrement,
	}
	for _, key := range sample.Keys() {
		if col, ok := ts.Column(key); ok {
			w.columns = append(w.columns, col)
		} else {
			log.Debug().Str("table", table).Str("column", key).Msg("unknown column dropped from batch")
		}
	}
	if len(w.columns) == 0 {
		return nil, fmt.Errorf("no known columns for table %s", table)
	}

	names := make([]string, len(w.columns))
	for i, c := range w.columns {
		names[i] = c.Name
	}
	w.query = fmt.Sprintf("insert into %s (%s) values (%s)",
		table, strings.Join(names, ","), d.Placeholders(len(names)))
	if d.SupportsReturning() && w.autoInc != "" {
		w.query += " returning " + w.autoInc
		w.returning = true
	}

	stmt, err := exec.PrepareContext(ctx, w.query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare insert into %s: %w", table, err)
	}
	w.stmt = stmt
	return w, nil
}

// Table имя таблицы
func (w *Writer) Table() string { return w.table }

// Query текст подготовленного INSERT
func (w *Writer) Query() string { return w.query }

// Columns колонки пакета в порядке параметров
func (w *Writer) Columns() []string {
	names := make([]string, len(w.columns))
	for i, c := range w.columns {
		names[i] = c.Name
	}
	return names
}

// Pending количество строк в очереди
func (w *Writer) Pending() int { return len(w.pending) }

// Closed true после Close
func (w *Writer) Closed() bool { return w.closed }

// AddRow связывает значения строки в запомненном порядке и ставит ее
// в очередь. Отсутствующая в строке колонка связывается как NULL.
func (w *Writer) AddRow(row *rowset.Row) error {
	if w.closed {
		return ErrBatchClosed
	}
	args := make([]any, len(w.columns))
	for i, col := range w.columns {
		v, err := coerce.Bind(row.Value(col.Name), col.Type)
		if err != nil {
			return fmt.Errorf("%s.%s: %w", w.table, col.Name, err)
		}
		args[i] = v
	}
	w.pending = append(w.pending, args)
	return nil
}

// Execute выполняет очередь через подготовленный оператор.
// При ошибке строки выполнение останавливается, Rows содержит число
// уже вставленных строк. Очередь очищается в любом случае.
func (w *Writer) Execute(ctx context.Context) report.Outcome {
	if w.closed {
		return report.Fail(w.table, ErrBatchClosed)
	}
	pending := w.pending
	w.pending = nil
	w.keys = w.keys[:0]

	var rows int64
	for i, args := range pending {
		src := KeySource{QueryInt: w.queryInt}
		if w.returning {
			var id int64
			if err := w.stmt.QueryRowContext(ctx, args...).Scan(&id); err != nil {
				return w.fail(rows, i, err)
			}
			src.Returned = &id
		} else {
			res, err := w.stmt.ExecContext(ctx, args...)
			if err != nil {
				return w.fail(rows, i, err)
			}
			src.Result = res
		}
		rows++

		if w.autoInc == "" {
			continue
		}
		id, strategy, err := ResolveKey(ctx, w.dialect, src)
		if err != nil {
			log.Warn().Err(err).Str("table", w.table).Msg("generated key not available")
			continue
		}
		log.Trace().Str("table", w.table).Str("strategy", strategy).Int64("key", id).Msg("generated key")
		w.keys = append(w.keys, id)
	}
	return report.OK(w.table, rows)
}

func (w *Writer) fail(rows int64, index int, err error) report.Outcome {
	o := report.Fail(w.table, fmt.Errorf("batch row %d: %w", index+1, err))
	o.Rows = rows
	return o
}

func (w *Writer) queryInt(ctx context.Context, query string) (int64, error) {
	var id sql.NullInt64
	if err := w.exec.QueryRowContext(ctx, query).Scan(&id); err != nil {
		return 0, err
	}
	if !id.Valid {
		return 0, ErrNoGeneratedKey
	}
	return id.Int64, nil
}

// GeneratedKeys ключи, полученные последним Execute, в порядке строк
func (w *Writer) GeneratedKeys() []int64 {
	out := make([]int64, len(w.keys))
	copy(out, w.keys)
	return out
}

// Close освобождает подготовленный оператор. Повторный вызов безопасен.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.pending = nil
	return w.stmt.Close()
}

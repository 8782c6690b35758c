// Package dump выгружает таблицы базы в текстовый дамп из INSERT
// операторов, совместимый с mysqldump: одна строка таблицы на оператор,
// значения по умолчанию опускаются.
package dump

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/ruslano69/tdtp-dbengine/pkg/adapters"
	"github.com/ruslano69/tdtp-dbengine/pkg/core/schema"
	"github.com/ruslano69/tdtp-dbengine/pkg/dialect"
	"github.com/ruslano69/tdtp-dbengine/pkg/processors"
	"github.com/ruslano69/tdtp-dbengine/pkg/progress"
	"github.com/ruslano69/tdtp-dbengine/pkg/report"
)

// Options параметры дампа
type Options struct {
	// Exclude таблицы, которые не выгружаются (без учета регистра)
	Exclude []string
	// Truncate добавляет truncate table перед данными каждой таблицы
	Truncate bool
	// DisableForeignKeys оборачивает дамп в set foreign_key_checks=0/1
	DisableForeignKeys bool
	// Info строка в начале дампа, обычно комментарий
	Info string
}

// Engine выгрузка одной базы
type Engine struct {
	adapter  adapters.Adapter
	opts     Options
	progress *progress.Progress
	summary  *report.Summary
}

// New создает выгрузку для подключенного адаптера
func New(a adapters.Adapter, opts Options) *Engine {
	return &Engine{
		adapter: a,
		opts:    opts,
		summary: report.NewSummary("dump"),
	}
}

// WithProgress задает счетчик прогресса (строки)
func (e *Engine) WithProgress(p *progress.Progress) *Engine {
	e.progress = p
	return e
}

// Summary результаты по таблицам
func (e *Engine) Summary() *report.Summary { return e.summary }

// Tables таблицы к выгрузке в порядке каталога
func (e *Engine) Tables(ctx context.Context) ([]string, error) {
	names, err := e.adapter.GetTableNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	exclude := make(map[string]bool, len(e.opts.Exclude))
	for _, t := range e.opts.Exclude {
		exclude[strings.ToLower(t)] = true
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		if !exclude[strings.ToLower(n)] {
			out = append(out, n)
		}
	}
	return out, nil
}

// Dump пишет полный дамп в w. Ошибка таблицы записывается в сводку и
// не останавливает выгрузку; ошибка записи в w возвращается.
func (e *Engine) Dump(ctx context.Context, w io.Writer) error {
	tables, err := e.Tables(ctx)
	if err != nil {
		return err
	}

	bw := bufio.NewWriterSize(w, 64*1024)
	if err := e.writePreamble(bw); err != nil {
		return err
	}
	for _, table := range tables {
		if err := ctx.Err(); err != nil {
			return err
		}
		o := e.dumpTable(ctx, bw, table)
		e.summary.Add(o)
		if !o.Success {
			log.Error().Err(o.Err).Str("table", table).Msg("failed to dump table")
		}
	}
	if e.opts.DisableForeignKeys {
		if _, err := bw.WriteString("\nset foreign_key_checks=1;\n"); err != nil {
			return err
		}
	}
	e.summary.Finish()
	return bw.Flush()
}

func (e *Engine) writePreamble(bw *bufio.Writer) error {
	var b strings.Builder
	if e.opts.Info != "" {
		b.WriteString(e.opts.Info)
		b.WriteString("\n")
	}
	b.WriteString("/*! set sql_safe_updates=0 */;\n")
	if e.opts.DisableForeignKeys {
		b.WriteString("set foreign_key_checks=0;\n")
	}
	if e.adapter.Dialect() == dialect.Postgres && e.adapter.Schema() != "" {
		b.WriteString("set schema '" + e.adapter.Schema() + "';\n")
	}
	_, err := bw.WriteString(b.String())
	return err
}

// DumpTable пишет INSERT операторы одной таблицы
func (e *Engine) DumpTable(ctx context.Context, w io.Writer, table string) report.Outcome {
	bw := bufio.NewWriter(w)
	o := e.dumpTable(ctx, bw, table)
	if err := bw.Flush(); err != nil && o.Success {
		o = report.Fail(table, err)
	}
	return o
}

func (e *Engine) dumpTable(ctx context.Context, bw *bufio.Writer, table string) report.Outcome {
	log.Debug().Str("table", table).Msg("dumping table")
	e.progress.SetStage(table)

	defaults, err := e.adapter.GetColumnDefaults(ctx, table)
	if err != nil {
		return report.Fail(table, fmt.Errorf("failed to read column defaults: %w", err))
	}

	rows, err := e.adapter.DB().QueryContext(ctx, "select * from "+table)
	if err != nil {
		return report.Fail(table, err)
	}
	defer rows.Close()

	cts, err := rows.ColumnTypes()
	if err != nil {
		return report.Fail(table, err)
	}
	names := make([]string, len(cts))
	types := make([]schema.DataType, len(cts))
	for i, ct := range cts {
		names[i] = ct.Name()
		types[i] = schema.FromDatabaseType(ct.DatabaseTypeName())
	}

	header := "\n/* Data for the table " + table + " */\n"
	written := false
	if e.opts.Truncate {
		if _, err := bw.WriteString(header + "truncate table " + table + ";\n"); err != nil {
			return report.Fail(table, err)
		}
		written = true
	}

	values := make([]any, len(names))
	ptrs := make([]any, len(names))
	for i := range values {
		ptrs[i] = &values[i]
	}
	cols := make([]string, 0, len(names))
	lits := make([]string, 0, len(names))

	var count int64
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return failAt(table, count, err)
		}
		cols, lits = cols[:0], lits[:0]
		for i, name := range names {
			def, hasDefault := defaults[strings.ToLower(name)]
			lit, notNull := Literal(values[i], types[i])
			switch {
			case !notNull && !hasDefault:
				continue
			case !notNull:
				lit = "null"
			case hasDefault && isDefault(values[i], types[i], def):
				continue
			}
			cols = append(cols, name)
			lits = append(lits, lit)
		}
		if len(cols) == 0 {
			continue
		}
		if !written {
			if _, err := bw.WriteString(header); err != nil {
				return failAt(table, count, err)
			}
			written = true
		}
		stmt := "insert into " + table + " (" + strings.Join(cols, ",") + ") values (" + strings.Join(lits, ",") + ");\n"
		if _, err := bw.WriteString(stmt); err != nil {
			return failAt(table, count, err)
		}
		count++
		e.progress.Inc()
	}
	if err := rows.Err(); err != nil {
		return failAt(table, count, err)
	}
	return report.OK(table, count)
}

func failAt(table string, rows int64, err error) report.Outcome {
	o := report.Fail(table, err)
	o.Rows = rows
	return o
}

// FileInfo результат DumpFile
type FileInfo struct {
	Path        string
	Size        int64
	Checksum    string
	Compression processors.Compression
}

// DumpFile пишет дамп в файл, сжимая его по compression.
// Контрольная сумма xxh3 считается по записанным в файл байтам.
func (e *Engine) DumpFile(ctx context.Context, path string, compression processors.Compression, level int) (FileInfo, error) {
	info := FileInfo{Path: path, Compression: compression}

	f, err := os.Create(path)
	if err != nil {
		return info, fmt.Errorf("failed to create dump file: %w", err)
	}
	sum := processors.NewChecksumWriter(f)
	cw, err := processors.NewWriter(sum, compression, level)
	if err != nil {
		f.Close()
		return info, err
	}

	err = e.Dump(ctx, cw)
	if cerr := cw.Close(); err == nil {
		err = cerr
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return info, fmt.Errorf("failed to write dump %s: %w", path, err)
	}

	info.Size = sum.Size()
	info.Checksum = sum.Sum()
	log.Info().
		Str("path", path).
		Int64("size", info.Size).
		Str("checksum", info.Checksum).
		Str("summary", e.summary.String()).
		Msg("dump written")
	return info, nil
}

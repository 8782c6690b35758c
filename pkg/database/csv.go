package database

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ruslano69/tdtp-dbengine/pkg/coerce"
	"github.com/ruslano69/tdtp-dbengine/pkg/core/rowset"
	"github.com/ruslano69/tdtp-dbengine/pkg/core/schema"
	"github.com/ruslano69/tdtp-dbengine/pkg/processors"
	"github.com/ruslano69/tdtp-dbengine/pkg/report"
	"github.com/ruslano69/tdtp-dbengine/pkg/xlsx"
)

// DefaultDelimiter разделитель CSV по умолчанию
const DefaultDelimiter = ','

// Форматы дат в текстовой выгрузке
const (
	csvDateLayout     = "02/01/2006"
	csvDateTimeLayout = "02/01/2006 15:04:05"
)

// CSVOptions параметры FindToCSV
type CSVOptions struct {
	Delimiter     rune
	IncludeHeader bool
	// HeaderRows выводятся перед данными как есть
	HeaderRows [][]string
	// Footer выводится последней строкой
	Footer []string
	// ConflateColumns колонки, по которым строки группируются
	ConflateColumns []string
	// ConflateToSingleRow сливает группу в одну строку, склеивая
	// остальные колонки через перевод строки
	ConflateToSingleRow bool
}

// csvSink пишет строки результата, выводя заголовок перед первой строкой данных
type csvSink struct {
	w       *csv.Writer
	columns []string
	types   []schema.DataType
	header  bool
	rows    int64
}

func newCSVSink(w io.Writer, delimiter rune, header bool, columns []string, types []schema.DataType) *csvSink {
	cw := csv.NewWriter(w)
	if delimiter == 0 {
		delimiter = DefaultDelimiter
	}
	cw.Comma = delimiter
	return &csvSink{w: cw, columns: columns, types: types, header: header}
}

func (s *csvSink) writeRow(row *rowset.Row) error {
	if s.header {
		s.header = false
		if err := s.w.Write(s.columns); err != nil {
			return err
		}
	}
	record := make([]string, len(s.columns))
	for i, col := range s.columns {
		var typ schema.DataType
		if i < len(s.types) {
			typ = s.types[i]
		}
		record[i] = csvValue(row.Value(col), typ)
	}
	s.rows++
	return s.w.Write(record)
}

func (s *csvSink) flush() error {
	s.w.Flush()
	return s.w.Error()
}

// csvValue текстовая форма значения для выгрузки
func csvValue(v any, typ schema.DataType) string {
	switch val := v.(type) {
	case nil:
		return ""
	case bool:
		if val {
			return "Y"
		}
		return "N"
	case time.Time:
		switch {
		case typ == schema.TypeDate:
			return val.Format(csvDateLayout)
		case typ == schema.TypeTime || coerce.IsTimeOfDay(val):
			return val.Format(coerce.TimeLayout)
		default:
			return val.Format(csvDateTimeLayout)
		}
	case []byte:
		if utf8.Valid(val) {
			return string(val)
		}
		return strings.ToValidUTF8(string(val), "")
	}
	return coerce.Text(v)
}

// FindToCSV выполняет запрос и пишет строки в w по мере чтения, не
// накапливая результат. Возвращает число строк данных.
func (d *Database) FindToCSV(ctx context.Context, w io.Writer, query string, opts CSVOptions, params ...any) (int64, error) {
	d.lastError = ""
	start := time.Now()
	defer func() { d.lastDuration = time.Since(start) }()

	q, err := d.conn()
	if err != nil {
		return 0, d.setError(err)
	}
	rows, err := q.QueryContext(ctx, query, params...)
	if err != nil {
		return 0, d.setError(fmt.Errorf("problem running query %q: %w", query, err))
	}
	defer rows.Close()

	cts, err := rows.ColumnTypes()
	if err != nil {
		return 0, d.setError(err)
	}
	names := columnNames(cts)
	types := make([]schema.DataType, len(cts))
	for i, ct := range cts {
		types[i] = schema.FromDatabaseType(ct.DatabaseTypeName())
	}

	sink := newCSVSink(w, opts.Delimiter, opts.IncludeHeader, names, types)
	for _, h := range opts.HeaderRows {
		if err := sink.w.Write(h); err != nil {
			return 0, d.setError(err)
		}
	}

	conflate := newConflator(sink, names, opts.ConflateColumns, opts.ConflateToSingleRow)
	values := make([]any, len(names))
	ptrs := make([]any, len(names))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return sink.rows, d.setError(err)
		}
		row := rowset.NewRow(len(names))
		for i, name := range names {
			row.Set(name, normalize(values[i], types[i]))
		}
		if err := conflate.add(row); err != nil {
			return sink.rows, d.setError(err)
		}
	}
	if err := rows.Err(); err != nil {
		return sink.rows, d.setError(fmt.Errorf("problem running query %q: %w", query, err))
	}
	if err := conflate.close(); err != nil {
		return sink.rows, d.setError(err)
	}
	if len(opts.Footer) > 0 {
		if err := sink.w.Write(opts.Footer); err != nil {
			return sink.rows, d.setError(err)
		}
	}
	if err := sink.flush(); err != nil {
		return sink.rows, d.setError(err)
	}
	return sink.rows, nil
}

// WriteCSV пишет готовый результат (например, из кэша) с теми же
// правилами, что и FindToCSV. Строки res не изменяются.
func WriteCSV(w io.Writer, res *rowset.Result, opts CSVOptions) (int64, error) {
	sink := newCSVSink(w, opts.Delimiter, opts.IncludeHeader, res.Columns, nil)
	for _, h := range opts.HeaderRows {
		if err := sink.w.Write(h); err != nil {
			return 0, err
		}
	}
	conflate := newConflator(sink, res.Columns, opts.ConflateColumns, opts.ConflateToSingleRow)
	for _, row := range res.Rows {
		if len(opts.ConflateColumns) > 0 {
			row = row.Clone()
		}
		if err := conflate.add(row); err != nil {
			return sink.rows, err
		}
	}
	if err := conflate.close(); err != nil {
		return sink.rows, err
	}
	if len(opts.Footer) > 0 {
		if err := sink.w.Write(opts.Footer); err != nil {
			return sink.rows, err
		}
	}
	return sink.rows, sink.flush()
}

// conflator группирует подряд идущие строки с равными значениями
// колонок слияния
type conflator struct {
	sink      *csvSink
	keys      []string
	merged    []string
	singleRow bool
	previous  *rowset.Row
}

func newConflator(sink *csvSink, columns, keys []string, singleRow bool) *conflator {
	c := &conflator{sink: sink, keys: keys, singleRow: singleRow && len(keys) > 0}
	if c.singleRow {
		for _, col := range columns {
			if !containsFold(keys, col) {
				c.merged = append(c.merged, col)
			}
		}
	}
	return c
}

func (c *conflator) add(row *rowset.Row) error {
	switch {
	case c.singleRow:
		if c.previous == nil {
			c.previous = row
			return nil
		}
		if c.changed(c.previous, row) {
			if err := c.sink.writeRow(c.previous); err != nil {
				return err
			}
			c.previous = row
			return nil
		}
		for _, col := range c.merged {
			oldVal, newVal := c.previous.Value(col), row.Value(col)
			switch {
			case oldVal == nil && newVal != nil:
				c.previous.Set(col, newVal)
			case oldVal != nil && newVal != nil:
				c.previous.Set(col, csvValue(oldVal, "")+"\n"+csvValue(newVal, ""))
			}
		}
		return nil

	case len(c.keys) > 0:
		original := row.Clone()
		if c.previous != nil {
			for _, col := range c.keys {
				if !row.Has(col) {
					continue
				}
				if equalValues(c.previous.Value(col), row.Value(col)) {
					row.Set(col, nil)
				}
			}
		}
		c.previous = original
		return c.sink.writeRow(row)

	default:
		return c.sink.writeRow(row)
	}
}

// close выводит накопленную группу
func (c *conflator) close() error {
	if c.singleRow && c.previous != nil {
		err := c.sink.writeRow(c.previous)
		c.previous = nil
		return err
	}
	return nil
}

func (c *conflator) changed(prev, row *rowset.Row) bool {
	for _, col := range c.keys {
		if !equalValues(prev.Value(col), row.Value(col)) {
			return true
		}
	}
	return false
}

func equalValues(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if at, ok := a.(time.Time); ok {
		bt, ok := b.(time.Time)
		return ok && at.Equal(bt)
	}
	if ab, ok := a.([]byte); ok {
		bb, ok := b.([]byte)
		return ok && string(ab) == string(bb)
	}
	return a == b
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

// Format формат SaveAs
type Format string

const (
	FormatCSV   Format = "csv"
	FormatTSV   Format = "tsv"
	FormatExcel Format = "xlsx"
)

// ParseFormat разбирает имя формата; пустая строка означает CSV
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "csv", "text":
		return FormatCSV, nil
	case "tsv", "tab":
		return FormatTSV, nil
	case "xlsx", "excel", "xls":
		return FormatExcel, nil
	}
	return "", fmt.Errorf("unsupported output format %q", name)
}

// SaveAs сохраняет результат запроса в файл с заголовком колонок.
// Текстовые форматы сжимаются по compression; Excel пишется как есть.
func (d *Database) SaveAs(ctx context.Context, query, path string, format Format, compression processors.Compression) report.Outcome {
	if format == FormatExcel {
		res, err := d.Find(ctx, query, true)
		if err != nil {
			return d.record(report.Fail(path, err))
		}
		if err := xlsx.WriteResult(res, path, ""); err != nil {
			return d.record(report.Fail(path, err))
		}
		return d.record(report.OK(path, int64(res.Len())))
	}

	delimiter := DefaultDelimiter
	if format == FormatTSV {
		delimiter = '\t'
	}

	f, err := os.Create(path)
	if err != nil {
		return d.record(report.Fail(path, err))
	}
	out, err := processors.NewWriter(f, compression, 0)
	if err != nil {
		f.Close()
		return d.record(report.Fail(path, err))
	}
	n, err := d.FindToCSV(ctx, out, query, CSVOptions{Delimiter: delimiter, IncludeHeader: true})
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return d.record(report.Fail(path, err))
	}
	return d.record(report.OK(path, n))
}

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ruslano69/tdtp-dbengine/pkg/coerce"
	"github.com/ruslano69/tdtp-dbengine/pkg/core/rowset"
	"github.com/ruslano69/tdtp-dbengine/pkg/core/schema"
)

// cacheKey ключ кэша результатов: соединение, текст запроса и параметры
func (d *Database) cacheKey(query string, params []any) string {
	var b strings.Builder
	b.WriteString(d.adapter.URL())
	b.WriteString("~")
	b.WriteString(query)
	for _, p := range params {
		s, ok := coerce.ToText(p, true, "")
		if !ok {
			s = "null"
		}
		b.WriteString("~")
		b.WriteString(s)
	}
	return b.String()
}

// Find выполняет запрос и возвращает строки.
//
// Без bypassCache результат ищется в кэше и кладется в него; вызывающий
// всегда получает собственную копию. При превышении MaxResults
// результат помечается Truncated.
func (d *Database) Find(ctx context.Context, query string, bypassCache bool, params ...any) (*rowset.Result, error) {
	d.lastError = ""
	start := time.Now()
	defer func() { d.lastDuration = time.Since(start) }()

	q, err := d.conn()
	if err != nil {
		return nil, d.setError(err)
	}

	useCache := d.results != nil && !bypassCache
	var key string
	if useCache {
		key = d.cacheKey(query, params)
		res, ok, err := d.results.Get(ctx, key)
		if err != nil {
			log.Warn().Err(err).Msg("result cache read failed")
		} else if ok {
			out := res.Clone()
			out.Cached = true
			return out, nil
		}
	}

	res, err := d.scan(ctx, q, query, params)
	if err != nil {
		return nil, d.setError(fmt.Errorf("problem executing query %q: %w", query, err))
	}
	if res.Truncated {
		log.Warn().Str("database", d.name).Int("max_results", d.maxResults).
			Msg("result truncated, more rows available")
	}

	if useCache {
		if err := d.results.Put(ctx, key, res); err != nil {
			log.Warn().Err(err).Msg("result cache write failed")
		}
		return res.Clone(), nil
	}
	return res, nil
}

func (d *Database) scan(ctx context.Context, q querier, query string, params []any) (*rowset.Result, error) {
	rows, err := q.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cts, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	names := columnNames(cts)
	types := make([]schema.DataType, len(cts))
	for i, ct := range cts {
		types[i] = schema.FromDatabaseType(ct.DatabaseTypeName())
	}

	// для потокового режима буфер не резервируется
	capacity := d.Dialect().FetchSize()
	if d.maxResults > 0 && capacity > d.maxResults {
		capacity = d.maxResults
	}
	res := &rowset.Result{Columns: names, Rows: make([]*rowset.Row, 0, capacity)}

	values := make([]any, len(names))
	ptrs := make([]any, len(names))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if d.maxResults > 0 && len(res.Rows) >= d.maxResults {
			res.Truncated = true
			break
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := rowset.NewRow(len(names))
		for i, name := range names {
			row.Set(name, normalize(values[i], types[i]))
		}
		res.Rows = append(res.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// columnNames имена колонок результата в написании драйвера.
// Повторное имя получает суффикс _<позиция>, позиция с 1.
func columnNames(cts []*sql.ColumnType) []string {
	seen := make(map[string]bool, len(cts))
	names := make([]string, len(cts))
	for i, ct := range cts {
		name := ct.Name()
		if seen[strings.ToLower(name)] {
			name = name + "_" + strconv.Itoa(i+1)
		}
		seen[strings.ToLower(name)] = true
		names[i] = name
	}
	return names
}

// normalize приводит байтовые значения драйвера к типу колонки:
// числа разбираются, текст становится string, двоичные данные копируются
func normalize(v any, typ schema.DataType) any {
	b, ok := v.([]byte)
	if !ok {
		return v
	}
	s := string(b)
	switch {
	case schema.IsBinaryType(typ):
		out := make([]byte, len(b))
		copy(out, b)
		return out
	case schema.IsWholeNumberType(typ):
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
	case typ == schema.TypeFloat || typ == schema.TypeDouble:
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	case typ == schema.TypeNumeric:
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	case typ == schema.TypeBoolean:
		if len(b) == 1 && b[0] <= 1 {
			return b[0] == 1
		}
		return coerce.IsYes(s)
	}
	return s
}

// FindFirst первая строка результата; пустая строка, если ничего не найдено
func (d *Database) FindFirst(ctx context.Context, query string, bypassCache bool, params ...any) (*rowset.Row, error) {
	res, err := d.Find(ctx, query, bypassCache, params...)
	if err != nil {
		return nil, err
	}
	if first := res.First(); first != nil {
		return first, nil
	}
	return rowset.NewRow(0), nil
}

// FindList значения одной колонки в порядке строк. Пустое имя колонки
// означает первую колонку результата.
func (d *Database) FindList(ctx context.Context, query, column string, bypassCache bool, params ...any) ([]any, error) {
	res, err := d.Find(ctx, query, bypassCache, params...)
	if err != nil {
		return nil, err
	}
	if column == "" && len(res.Columns) > 0 {
		column = res.Columns[0]
	}
	out := make([]any, 0, res.Len())
	for _, row := range res.Rows {
		out = append(out, row.Value(column))
	}
	return out, nil
}

// InClauseFromResults список значений колонки для конструкции IN (...).
// Строки и даты берутся в кавычки, NULL выводится как null. Пустое имя
// колонки означает первую колонку строки.
func InClauseFromResults(rows []*rowset.Row, column string) string {
	parts := make([]string, 0, len(rows))
	for _, row := range rows {
		key := column
		if key == "" {
			if row.Len() == 0 {
				continue
			}
			key, _ = row.At(0)
		}
		s, ok := coerce.ToText(row.Value(key), true, "")
		if !ok {
			s = "null"
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, ",")
}

// Lookup строки справочника, индексированные по значениям ключевых колонок
type Lookup struct {
	keyColumns    []string
	caseSensitive bool
	rows          map[string]*rowset.Row
}

// ErrNoKeyColumns не заданы ключевые колонки справочника
var ErrNoKeyColumns = errors.New("lookup requires at least one key column")

// GetLookup выполняет запрос и индексирует строки по значениям keyColumns,
// склеенным через запятую. При повторе ключа остается последняя строка.
func (d *Database) GetLookup(ctx context.Context, query string, keyColumns []string, caseSensitive bool, params ...any) (*Lookup, error) {
	if len(keyColumns) == 0 {
		return nil, d.setError(ErrNoKeyColumns)
	}
	res, err := d.Find(ctx, query, false, params...)
	if err != nil {
		return nil, err
	}
	l := &Lookup{
		keyColumns:    keyColumns,
		caseSensitive: caseSensitive,
		rows:          make(map[string]*rowset.Row, res.Len()),
	}
	for _, row := range res.Rows {
		values := make([]any, len(keyColumns))
		for i, col := range keyColumns {
			values[i] = row.Value(col)
		}
		l.rows[l.key(values...)] = row
	}
	return l, nil
}

func (l *Lookup) key(values ...any) string {
	parts := make([]string, len(values))
	for i, v := range values {
		s, ok := coerce.ToText(v, false, "")
		if !ok {
			s = "null"
		}
		parts[i] = s
	}
	k := strings.Join(parts, ",")
	if !l.caseSensitive {
		k = strings.ToLower(k)
	}
	return k
}

// Get строка по значениям ключевых колонок в их порядке
func (l *Lookup) Get(values ...any) (*rowset.Row, bool) {
	row, ok := l.rows[l.key(values...)]
	return row, ok
}

// Len число записей справочника
func (l *Lookup) Len() int { return len(l.rows) }

// KeyColumns ключевые колонки справочника
func (l *Lookup) KeyColumns() []string { return l.keyColumns }

// Package flatfile загружает плоские файлы (CSV, TSV, Excel, XML) во
// временную SQLite базу, чтобы к ним можно было обращаться через тот же
// фасад database.Database, что и к живым СУБД.
//
// Вся загрузка идет одной транзакцией. Close удаляет файл базы.
package flatfile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/ruslano69/tdtp-dbengine/pkg/adapters/base"
	"github.com/ruslano69/tdtp-dbengine/pkg/adapters/sqlite"
	"github.com/ruslano69/tdtp-dbengine/pkg/database"
	"github.com/ruslano69/tdtp-dbengine/pkg/dialect"
)

// Format вид плоского файла
type Format string

const (
	FormatCSV   Format = "csv"
	FormatTSV   Format = "tsv"
	FormatExcel Format = "excel"
	FormatXML   Format = "xml"
)

// DefaultEncoding кодировка текстовых файлов по умолчанию
const DefaultEncoding = "ISO-8859-1"

// SizeColumn колонка с числом значений строки
const SizeColumn = "size"

// ErrEmptyFile в файле нет ни одной записи
var ErrEmptyFile = errors.New("flat file contains no records")

// Options параметры загрузки
type Options struct {
	Format        Format // пусто - по расширению файла
	Delimiter     rune   // для CSV; 0 - запятая
	Encoding      string // для CSV/TSV; пусто - DefaultEncoding
	NoQuotes      bool   // кавычки не обрабатываются, поля режутся по разделителю
	RecordElement string // для XML: имя элемента-записи
	TempDir       string // каталог временной базы; пусто - os.TempDir()
}

// DetectFormat определяет формат по расширению
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".tsv", ".tab":
		return FormatTSV, nil
	case ".xlsx", ".xlsm":
		return FormatExcel, nil
	case ".xml":
		return FormatXML, nil
	default:
		return "", fmt.Errorf("unsupported flat file type: %s", path)
	}
}

// File загруженный плоский файл
type File struct {
	source string
	store  string
	tables []string
	db     *database.Database
}

// Open загружает файл path во временную SQLite базу
func Open(ctx context.Context, path string, opts Options) (*File, error) {
	format := opts.Format
	if format == "" {
		var err error
		if format, err = DetectFormat(path); err != nil {
			return nil, err
		}
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("flat file %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(opts.TempDir, "flatfile-*.db3")
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary store: %w", err)
	}
	store := tmp.Name()
	tmp.Close()

	f := &File{source: path, store: store}
	if err := f.load(ctx, format, opts); err != nil {
		f.Close(ctx)
		return nil, err
	}
	return f, nil
}

func (f *File) load(ctx context.Context, format Format, opts Options) error {
	log.Debug().Str("file", f.source).Str("format", string(format)).Str("store", f.store).Msg("converting flat file")

	adapter, err := sqlite.Open(ctx, f.store)
	if err != nil {
		return err
	}
	f.db = database.New(adapter, filepath.Base(f.source))

	tx, err := adapter.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin load: %w", err)
	}
	l := newLoader(tx)
	defer l.close()

	switch format {
	case FormatCSV, FormatTSV:
		delimiter := opts.Delimiter
		if delimiter == 0 {
			delimiter = ','
			if format == FormatTSV {
				delimiter = '\t'
			}
		}
		err = loadDelimited(ctx, l, f.source, delimiter, opts.Encoding, !opts.NoQuotes)
	case FormatExcel:
		err = loadExcel(ctx, l, f.source)
	case FormatXML:
		err = loadXML(ctx, l, f.source, opts.RecordElement)
	default:
		err = fmt.Errorf("unsupported flat file format: %s", format)
	}
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("problem reading %s file %s: %w", format, f.source, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit load: %w", err)
	}

	f.tables = l.tables
	log.Debug().Str("file", f.source).Strs("tables", f.tables).Msg("conversion complete")
	return nil
}

// Database фасад над временной базой
func (f *File) Database() *database.Database { return f.db }

// Tables созданные таблицы в порядке загрузки
func (f *File) Tables() []string { return f.tables }

// Source путь исходного файла
func (f *File) Source() string { return f.source }

// StorePath путь временной базы
func (f *File) StorePath() string { return f.store }

// Close закрывает базу и удаляет ее файл
func (f *File) Close(ctx context.Context) error {
	var errs []error
	if f.db != nil {
		errs = append(errs, f.db.Close(ctx))
		f.db = nil
	}
	if f.store != "" {
		for _, p := range []string{f.store, f.store + "-wal", f.store + "-shm", f.store + "-journal"} {
			if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
				errs = append(errs, err)
			}
		}
		f.store = ""
	}
	return errors.Join(errs...)
}

// loader создает таблицы и вставляет строки в рамках транзакции загрузки.
// Подготовленные выражения кэшируются по набору колонок.
type loader struct {
	tx     *sql.Tx
	tables []string
	stmts  map[string]*sql.Stmt
}

func newLoader(tx *sql.Tx) *loader {
	return &loader{tx: tx, stmts: make(map[string]*sql.Stmt)}
}

func (l *loader) create(ctx context.Context, table string, columns []string) error {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = base.QuoteIdentifier(dialect.SQLite, c)
	}
	// колонки без типа: SQLite хранит значение в том виде, в каком его вставили
	stmt := "create table " + base.QuoteIdentifier(dialect.SQLite, table) + " (" + strings.Join(quoted, ",") + ")"
	log.Debug().Str("sql", stmt).Msg("creating table")
	if _, err := l.tx.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to create table %s: %w", table, err)
	}
	l.tables = append(l.tables, table)
	return nil
}

func (l *loader) insert(ctx context.Context, table string, columns []string, values []any) error {
	key := table + "\x00" + strings.Join(columns, "\x00")
	stmt, ok := l.stmts[key]
	if !ok {
		quoted := make([]string, len(columns))
		for i, c := range columns {
			quoted[i] = base.QuoteIdentifier(dialect.SQLite, c)
		}
		query := "insert into " + base.QuoteIdentifier(dialect.SQLite, table) +
			" (" + strings.Join(quoted, ",") + ") values (" + dialect.SQLite.Placeholders(len(columns)) + ")"
		var err error
		if stmt, err = l.tx.PrepareContext(ctx, query); err != nil {
			return fmt.Errorf("failed to prepare insert into %s: %w", table, err)
		}
		l.stmts[key] = stmt
	}
	if _, err := stmt.ExecContext(ctx, values...); err != nil {
		return fmt.Errorf("failed to insert into %s: %w", table, err)
	}
	return nil
}

func (l *loader) close() {
	for _, s := range l.stmts {
		s.Close()
	}
	l.stmts = nil
}

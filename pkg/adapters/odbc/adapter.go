// Package odbc подключает движки без нативного Go-драйвера (H2, Vertica,
// Sybase) через ODBC-менеджер ОС. Диалект определяется по строке подключения.
//
// Драйвер github.com/alexbrainman/odbc требует cgo и unixODBC, поэтому
// подключается только при сборке с тегом odbc:
//
//	go build -tags odbc ./cmd/dbengine
package odbc

import (
	"context"
	"fmt"
	"strings"

	"github.com/ruslano69/tdtp-dbengine/pkg/adapters"
	"github.com/ruslano69/tdtp-dbengine/pkg/adapters/base"
	"github.com/ruslano69/tdtp-dbengine/pkg/dialect"
)

// AdapterType идентификатор ODBC адаптера
const AdapterType = "odbc"

var _ adapters.Adapter = (*Adapter)(nil)

func init() {
	adapters.Register(AdapterType, dialect.Unknown, func() adapters.Adapter {
		return &Adapter{}
	})
}

// Adapter адаптер ODBC
type Adapter struct {
	base.Conn
	catalog catalog
}

// catalog набор запросов к каталогу конкретного движка.
// Все запросы принимают (schema, table) либо только (schema).
type catalog struct {
	defaultSchema string
	version       string
	tables        string
	tableExists   string
	defaults      string
	primaryKeys   string
	autoIncrement string
}

var catalogs = map[dialect.Dialect]catalog{
	dialect.H2: {
		defaultSchema: "PUBLIC",
		version:       "SELECT H2VERSION()",
		tables: `SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES
			WHERE TABLE_SCHEMA = ? AND TABLE_TYPE IN ('TABLE', 'BASE TABLE') ORDER BY TABLE_NAME`,
		tableExists: `SELECT COUNT(*) FROM INFORMATION_SCHEMA.TABLES
			WHERE TABLE_SCHEMA = ? AND UPPER(TABLE_NAME) = UPPER(?)`,
		defaults: `SELECT COLUMN_NAME, COLUMN_DEFAULT FROM INFORMATION_SCHEMA.COLUMNS
			WHERE TABLE_SCHEMA = ? AND UPPER(TABLE_NAME) = UPPER(?) AND COLUMN_DEFAULT IS NOT NULL`,
		primaryKeys: `SELECT kcu.COLUMN_NAME
			FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
			JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu ON tc.CONSTRAINT_NAME = kcu.CONSTRAINT_NAME
			WHERE tc.CONSTRAINT_TYPE = 'PRIMARY KEY' AND tc.TABLE_SCHEMA = ? AND UPPER(tc.TABLE_NAME) = UPPER(?)
			ORDER BY kcu.ORDINAL_POSITION`,
		autoIncrement: `SELECT COLUMN_NAME FROM INFORMATION_SCHEMA.COLUMNS
			WHERE TABLE_SCHEMA = ? AND UPPER(TABLE_NAME) = UPPER(?) AND IS_IDENTITY = 'YES'`,
	},
	dialect.Vertica: {
		defaultSchema: "public",
		version:       "SELECT VERSION()",
		tables:        `SELECT table_name FROM v_catalog.tables WHERE table_schema = ? ORDER BY table_name`,
		tableExists: `SELECT COUNT(*) FROM v_catalog.tables
			WHERE table_schema = ? AND lower(table_name) = lower(?)`,
		defaults: `SELECT column_name, column_default FROM v_catalog.columns
			WHERE table_schema = ? AND lower(table_name) = lower(?) AND column_default IS NOT NULL`,
		primaryKeys: `SELECT column_name FROM v_catalog.primary_keys
			WHERE table_schema = ? AND lower(table_name) = lower(?) ORDER BY ordinal_position`,
		autoIncrement: `SELECT column_name FROM v_catalog.columns
			WHERE table_schema = ? AND lower(table_name) = lower(?) AND is_identity`,
	},
	dialect.SQLServerFamily: {
		// Sybase ASE: каталог через sysobjects/syscolumns
		defaultSchema: "dbo",
		version:       "SELECT @@version",
		tables:        `SELECT name FROM sysobjects WHERE type = 'U' AND user_name(uid) = ? ORDER BY name`,
		tableExists:   `SELECT COUNT(*) FROM sysobjects WHERE type = 'U' AND user_name(uid) = ? AND name = ?`,
		primaryKeys: `SELECT index_col(o.name, i.indid, c.colid)
			FROM sysobjects o
			JOIN sysindexes i ON i.id = o.id AND (i.status & 2048) = 2048
			JOIN syscolumns c ON c.id = o.id AND c.colid <= i.keycnt
			WHERE user_name(o.uid) = ? AND o.name = ?
			ORDER BY c.colid`,
		autoIncrement: `SELECT c.name FROM syscolumns c JOIN sysobjects o ON o.id = c.id
			WHERE user_name(o.uid) = ? AND o.name = ? AND (c.status & 128) = 128`,
	},
}

// Connect открывает ODBC-соединение. Диалект берется из DSN:
// "Driver=Vertica;...", "jdbc:h2:...", "Driver={Adaptive Server Enterprise};..." (sybase).
func (a *Adapter) Connect(ctx context.Context, cfg adapters.Config) error {
	d := dialect.Resolve("", cfg.DSN)
	if strings.Contains(strings.ToLower(cfg.DSN), "adaptive server") {
		d = dialect.SQLServerFamily
	}
	cat, ok := catalogs[d]
	if !ok {
		return fmt.Errorf("odbc: cannot determine database family from DSN")
	}

	db, err := base.OpenAndPing(ctx, "odbc", cfg)
	if err != nil {
		return fmt.Errorf("failed to open odbc connection: %w", err)
	}

	schema := cfg.Schema
	if schema == "" {
		schema = cat.defaultSchema
	}
	a.catalog = cat
	a.Init(db, d, "odbc:"+redact(cfg.DSN), schema)
	return nil
}

// redact убирает пароль из строки подключения
func redact(dsn string) string {
	parts := strings.Split(dsn, ";")
	kept := parts[:0]
	for _, p := range parts {
		key := strings.ToLower(strings.TrimSpace(strings.SplitN(p, "=", 2)[0]))
		if key == "pwd" || key == "password" || key == "" {
			continue
		}
		kept = append(kept, strings.TrimSpace(p))
	}
	return strings.Join(kept, ";")
}

// GetDatabaseType возвращает тип адаптера
func (a *Adapter) GetDatabaseType() string {
	return AdapterType
}

// GetDatabaseVersion возвращает версию СУБД
func (a *Adapter) GetDatabaseVersion(ctx context.Context) (string, error) {
	var version string
	if err := a.DB().QueryRowContext(ctx, a.catalog.version).Scan(&version); err != nil {
		return "", fmt.Errorf("failed to get version: %w", err)
	}
	return version, nil
}

// GetTableNames возвращает таблицы схемы
func (a *Adapter) GetTableNames(ctx context.Context) ([]string, error) {
	tables, err := base.QueryStrings(ctx, a.DB(), a.catalog.tables, a.Schema())
	if err != nil {
		return nil, fmt.Errorf("failed to query tables: %w", err)
	}
	return tables, nil
}

// TableExists проверяет существование таблицы
func (a *Adapter) TableExists(ctx context.Context, tableName string) (bool, error) {
	var count int
	if err := a.DB().QueryRowContext(ctx, a.catalog.tableExists, a.Schema(), tableName).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check table existence: %w", err)
	}
	return count > 0, nil
}

// GetColumnDefaults значения по умолчанию. Для Sybase не читаются.
func (a *Adapter) GetColumnDefaults(ctx context.Context, tableName string) (map[string]string, error) {
	if a.catalog.defaults == "" {
		return map[string]string{}, nil
	}
	return base.QueryDefaults(ctx, a.DB(), a.catalog.defaults, a.Schema(), tableName)
}

// GetPrimaryKeys возвращает колонки первичного ключа
func (a *Adapter) GetPrimaryKeys(ctx context.Context, tableName string) ([]string, error) {
	keys, err := base.QueryStrings(ctx, a.DB(), a.catalog.primaryKeys, a.Schema(), tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to read primary key of %s: %w", tableName, err)
	}
	return keys, nil
}

// GetAutoIncrementColumn возвращает identity колонку
func (a *Adapter) GetAutoIncrementColumn(ctx context.Context, tableName string) (string, error) {
	cols, err := base.QueryStrings(ctx, a.DB(), a.catalog.autoIncrement, a.Schema(), tableName)
	if err != nil {
		return "", fmt.Errorf("failed to read identity column of %s: %w", tableName, err)
	}
	if len(cols) == 0 {
		return "", nil
	}
	return cols[0], nil
}

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/ruslano69/tdtp-dbengine/pkg/adapters"
	"github.com/ruslano69/tdtp-dbengine/pkg/adapters/base"
	"github.com/ruslano69/tdtp-dbengine/pkg/dialect"
)

const driverSqlite = "sqlite"

// Compile-time check: Adapter должен реализовывать интерфейс adapters.Adapter
var _ adapters.Adapter = (*Adapter)(nil)

// Регистрация адаптера в глобальной фабрике
func init() {
	adapters.Register("sqlite", dialect.SQLite, func() adapters.Adapter {
		return &Adapter{}
	})
}

// Adapter представляет адаптер для работы с SQLite
// Реализует интерфейс adapters.Adapter
type Adapter struct {
	base.Conn

	// Pragmas переопределяет PRAGMA, применяемые при подключении.
	// nil - набор по умолчанию для массовых операций.
	Pragmas []string
}

// DefaultPragmas оптимизации для массовой загрузки и выгрузки
var DefaultPragmas = []string{
	// WAL mode: Write-Ahead Logging - до 10x быстрее записи, безопасно
	"PRAGMA journal_mode = WAL",

	// Synchronous NORMAL: fsync только на критичных моментах (не на каждый INSERT)
	"PRAGMA synchronous = NORMAL",

	// Cache size: 64 MB кеша (по умолчанию ~2 MB) - важно для больших таблиц
	"PRAGMA cache_size = -64000",

	// Temp store в памяти: временные таблицы/индексы в RAM, не на диске
	"PRAGMA temp_store = MEMORY",

	// SQLite не проверяет внешние ключи без этой настройки
	"PRAGMA foreign_keys = ON",
}

// Connect устанавливает подключение к SQLite
// Реализует интерфейс adapters.Adapter
func (a *Adapter) Connect(ctx context.Context, cfg adapters.Config) error {
	db, err := base.OpenAndPing(ctx, driverSqlite, cfg)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// каждое соединение к :memory: это отдельная БД
	if strings.Contains(cfg.DSN, ":memory:") || strings.Contains(cfg.DSN, "mode=memory") {
		db.SetMaxOpenConns(1)
	}

	a.Init(db, dialect.SQLite, "sqlite:"+cfg.DSN, "")

	pragmas := a.Pragmas
	if pragmas == nil {
		pragmas = DefaultPragmas
	}
	a.applyPragmas(ctx, pragmas)

	return nil
}

// Open подключает адаптер к файлу без фабрики
func Open(ctx context.Context, path string, pragmas ...string) (*Adapter, error) {
	a := &Adapter{Pragmas: pragmas}
	if err := a.Connect(ctx, adapters.Config{Type: "sqlite", DSN: path}); err != nil {
		return nil, err
	}
	return a, nil
}

// applyPragmas применяет PRAGMA. Некоторые из них не работают для
// существующих БД, такие ошибки только логируются.
func (a *Adapter) applyPragmas(ctx context.Context, pragmas []string) {
	for _, pragma := range pragmas {
		if _, err := a.DB().ExecContext(ctx, pragma); err != nil {
			log.Warn().Err(err).Str("pragma", pragma).Msg("sqlite pragma failed")
		}
	}
}

// GetDatabaseType возвращает тип СУБД
// Реализует интерфейс adapters.Adapter
func (a *Adapter) GetDatabaseType() string {
	return "sqlite"
}

// GetDatabaseVersion возвращает версию SQLite
// Реализует интерфейс adapters.Adapter
func (a *Adapter) GetDatabaseVersion(ctx context.Context) (string, error) {
	var version string
	err := a.DB().QueryRowContext(ctx, "SELECT sqlite_version()").Scan(&version)
	if err != nil {
		return "", fmt.Errorf("failed to get version: %w", err)
	}
	return "SQLite " + version, nil
}

// TableExists проверяет существование таблицы
// Реализует интерфейс adapters.Adapter
func (a *Adapter) TableExists(ctx context.Context, tableName string) (bool, error) {
	query := `
		SELECT COUNT(*)
		FROM sqlite_master
		WHERE type='table' AND lower(name)=lower(?)
	`

	var count int
	err := a.DB().QueryRowContext(ctx, query, tableName).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check table existence: %w", err)
	}

	return count > 0, nil
}

// GetTableNames возвращает список всех таблиц в БД
// Реализует интерфейс adapters.Adapter
func (a *Adapter) GetTableNames(ctx context.Context) ([]string, error) {
	tables, err := base.QueryStrings(ctx, a.DB(), `
		SELECT name
		FROM sqlite_master
		WHERE type='table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get table names: %w", err)
	}
	return tables, nil
}

type columnInfo struct {
	name    string
	typ     string
	notNull bool
	def     sql.NullString
	pk      int
}

func (a *Adapter) tableInfo(ctx context.Context, tableName string) ([]columnInfo, error) {
	rows, err := a.DB().QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", base.QuoteIdentifier(dialect.SQLite, tableName)))
	if err != nil {
		return nil, fmt.Errorf("failed to read table info for %s: %w", tableName, err)
	}
	defer rows.Close()

	var cols []columnInfo
	for rows.Next() {
		var cid int
		var c columnInfo
		if err := rows.Scan(&cid, &c.name, &c.typ, &c.notNull, &c.def, &c.pk); err != nil {
			return nil, fmt.Errorf("failed to scan table info: %w", err)
		}
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

// GetColumnDefaults возвращает значения по умолчанию из PRAGMA table_info
func (a *Adapter) GetColumnDefaults(ctx context.Context, tableName string) (map[string]string, error) {
	cols, err := a.tableInfo(ctx, tableName)
	if err != nil {
		return nil, err
	}
	defaults := make(map[string]string)
	for _, c := range cols {
		if !c.def.Valid {
			continue
		}
		if v, ok := base.NormalizeDefault(c.def.String); ok {
			defaults[strings.ToLower(c.name)] = v
		}
	}
	return defaults, nil
}

// GetPrimaryKeys возвращает колонки первичного ключа в порядке ключа
func (a *Adapter) GetPrimaryKeys(ctx context.Context, tableName string) ([]string, error) {
	cols, err := a.tableInfo(ctx, tableName)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, 1)
	for pos := 1; ; pos++ {
		found := false
		for _, c := range cols {
			if c.pk == pos {
				keys = append(keys, c.name)
				found = true
			}
		}
		if !found {
			break
		}
	}
	return keys, nil
}

// GetAutoIncrementColumn: в SQLite автоинкрементом является единственная
// колонка INTEGER PRIMARY KEY (псевдоним rowid)
func (a *Adapter) GetAutoIncrementColumn(ctx context.Context, tableName string) (string, error) {
	cols, err := a.tableInfo(ctx, tableName)
	if err != nil {
		return "", err
	}
	var pk []columnInfo
	for _, c := range cols {
		if c.pk > 0 {
			pk = append(pk, c)
		}
	}
	if len(pk) == 1 && strings.EqualFold(pk[0].typ, "INTEGER") {
		return pk[0].name, nil
	}
	return "", nil
}

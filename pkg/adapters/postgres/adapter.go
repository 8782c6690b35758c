package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/ruslano69/tdtp-dbengine/pkg/adapters"
	"github.com/ruslano69/tdtp-dbengine/pkg/adapters/base"
	"github.com/ruslano69/tdtp-dbengine/pkg/dialect"
)

// Compile-time check: Adapter должен реализовывать интерфейсы
var (
	_ adapters.Adapter           = (*Adapter)(nil)
	_ adapters.ConstraintManager = (*Adapter)(nil)
)

// PostgreSQL error codes
const (
	codeUndefinedTable  = "42P01"
	codeUndefinedObject = "42704"
)

// Регистрация адаптера в глобальной фабрике
func init() {
	adapters.Register("postgres", dialect.Postgres, func() adapters.Adapter {
		return &Adapter{}
	})
}

// Adapter представляет адаптер для работы с PostgreSQL.
// Пул pgx используется для запросов к каталогу, *sql.DB поверх того же
// пула отдается движку переноса данных.
type Adapter struct {
	base.Conn
	pool *pgxpool.Pool
}

// Connect устанавливает подключение к PostgreSQL
// Реализует интерфейс adapters.Adapter
func (a *Adapter) Connect(ctx context.Context, cfg adapters.Config) error {
	// Парсим connection string
	config, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return fmt.Errorf("failed to parse connection string: %w", err)
	}

	// Настраиваем pool из конфига
	if cfg.MaxConns > 0 {
		config.MaxConns = int32(cfg.MaxConns)
	} else {
		config.MaxConns = 10 // default
	}

	if cfg.MinConns > 0 {
		config.MinConns = int32(cfg.MinConns)
	} else {
		config.MinConns = 2 // default
	}

	if cfg.Timeout > 0 {
		config.ConnConfig.ConnectTimeout = cfg.Timeout
	}

	schema := cfg.Schema
	if schema == "" {
		schema = "public" // default schema
	}
	if schema != "public" {
		config.ConnConfig.RuntimeParams["search_path"] = schema
	}

	// Создаем connection pool
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Проверяем подключение
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	a.pool = pool
	url := fmt.Sprintf("postgresql://%s@%s:%d/%s",
		config.ConnConfig.User, config.ConnConfig.Host, config.ConnConfig.Port, config.ConnConfig.Database)
	a.Init(stdlib.OpenDBFromPool(pool), dialect.Postgres, url, schema)

	return nil
}

// Close закрывает *sql.DB и connection pool
// Реализует интерфейс adapters.Adapter
func (a *Adapter) Close(ctx context.Context) error {
	err := a.Conn.Close(ctx)
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
	return err
}

// GetDatabaseType возвращает тип СУБД
// Реализует интерфейс adapters.Adapter
func (a *Adapter) GetDatabaseType() string {
	return "postgres"
}

// Pool возвращает *pgxpool.Pool для прямого доступа
func (a *Adapter) Pool() *pgxpool.Pool {
	return a.pool
}

// GetDatabaseVersion возвращает версию PostgreSQL
func (a *Adapter) GetDatabaseVersion(ctx context.Context) (string, error) {
	var version string
	if err := a.pool.QueryRow(ctx, "SELECT version()").Scan(&version); err != nil {
		return "", fmt.Errorf("failed to get version: %w", err)
	}
	return version, nil
}

// queryStrings собирает первую колонку результата через пул pgx
func (a *Adapter) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := a.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetTableNames возвращает таблицы текущей схемы
func (a *Adapter) GetTableNames(ctx context.Context) ([]string, error) {
	tables, err := a.queryStrings(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1 AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`, a.Schema())
	if err != nil {
		return nil, fmt.Errorf("failed to get table names: %w", err)
	}
	return tables, nil
}

// TableExists проверяет существование таблицы
func (a *Adapter) TableExists(ctx context.Context, tableName string) (bool, error) {
	var exists bool
	err := a.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = $1 AND lower(table_name) = lower($2)
		)
	`, a.Schema(), tableName).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check table existence: %w", err)
	}
	return exists, nil
}

// GetColumnDefaults читает column_default из information_schema
func (a *Adapter) GetColumnDefaults(ctx context.Context, tableName string) (map[string]string, error) {
	rows, err := a.pool.Query(ctx, `
		SELECT column_name, column_default
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2 AND column_default IS NOT NULL
	`, a.Schema(), tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to read column defaults: %w", err)
	}
	defer rows.Close()

	defaults := make(map[string]string)
	for rows.Next() {
		var name, def string
		if err := rows.Scan(&name, &def); err != nil {
			return nil, err
		}
		if v, ok := base.NormalizeDefault(def); ok {
			defaults[strings.ToLower(name)] = v
		}
	}
	return defaults, rows.Err()
}

// GetPrimaryKeys возвращает колонки первичного ключа
func (a *Adapter) GetPrimaryKeys(ctx context.Context, tableName string) ([]string, error) {
	keys, err := a.queryStrings(ctx, `
		SELECT kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name
		 AND tc.table_schema = kcu.table_schema
		WHERE tc.constraint_type = 'PRIMARY KEY'
		  AND tc.table_schema = $1
		  AND tc.table_name = $2
		ORDER BY kcu.ordinal_position
	`, a.Schema(), tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to read primary key of %s: %w", tableName, err)
	}
	return keys, nil
}

// GetAutoIncrementColumn ищет serial (nextval) или identity колонку
func (a *Adapter) GetAutoIncrementColumn(ctx context.Context, tableName string) (string, error) {
	cols, err := a.queryStrings(ctx, `
		SELECT column_name
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		  AND (column_default LIKE 'nextval(%' OR is_identity = 'YES')
		ORDER BY ordinal_position
	`, a.Schema(), tableName)
	if err != nil {
		return "", fmt.Errorf("failed to read serial column of %s: %w", tableName, err)
	}
	if len(cols) == 0 {
		return "", nil
	}
	return cols[0], nil
}

// IsMissingObject true для ошибок "relation does not exist"
func (a *Adapter) IsMissingObject(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == codeUndefinedTable || pgErr.Code == codeUndefinedObject
	}
	return false
}

package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/ruslano69/tdtp-dbengine/pkg/adapters"
	"github.com/ruslano69/tdtp-dbengine/pkg/adapters/base"
	"github.com/ruslano69/tdtp-dbengine/pkg/dialect"
)

// AdapterType идентификатор MySQL адаптера
const AdapterType = "mysql"

// MySQL error codes
const (
	errDuplicateEntry = 1062
	errNoSuchTable    = 1146
	errBadTable       = 1051
)

// Compile-time check
var _ adapters.Adapter = (*Adapter)(nil)

// Adapter реализует adapters.Adapter для MySQL и MariaDB
type Adapter struct {
	base.Conn
	database string
}

func init() {
	// Регистрируем MySQL адаптер в фабрике
	adapters.Register(AdapterType, dialect.MySQLFamily, func() adapters.Adapter {
		return &Adapter{}
	})
	adapters.Register("mariadb", dialect.MySQLFamily, func() adapters.Adapter {
		return &Adapter{}
	})
}

// Connect подключается к MySQL базе данных.
// parseTime включается всегда: DATETIME должен приходить как time.Time.
func (a *Adapter) Connect(ctx context.Context, cfg adapters.Config) error {
	dsn, err := mysql.ParseDSN(cfg.DSN)
	if err != nil {
		return fmt.Errorf("invalid mysql DSN: %w", err)
	}
	dsn.ParseTime = true
	if cfg.Timeout > 0 {
		dsn.Timeout = cfg.Timeout
	}

	connector, err := mysql.NewConnector(dsn)
	if err != nil {
		return fmt.Errorf("failed to create connector: %w", err)
	}
	db := sql.OpenDB(connector)
	base.ApplyPool(db, cfg)

	// Проверяем соединение
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	a.database = dsn.DBName
	url := fmt.Sprintf("mysql://%s@%s/%s", dsn.User, dsn.Addr, dsn.DBName)
	a.Init(db, dialect.MySQLFamily, url, dsn.DBName)
	return nil
}

// GetDatabaseType возвращает тип адаптера
func (a *Adapter) GetDatabaseType() string {
	return AdapterType
}

// GetDatabaseVersion возвращает версию MySQL
func (a *Adapter) GetDatabaseVersion(ctx context.Context) (string, error) {
	var version string
	err := a.DB().QueryRowContext(ctx, "SELECT VERSION()").Scan(&version)
	if err != nil {
		return "", fmt.Errorf("failed to get version: %w", err)
	}
	return version, nil
}

// GetTableNames возвращает список всех таблиц в базе данных (без представлений)
func (a *Adapter) GetTableNames(ctx context.Context) ([]string, error) {
	rows, err := a.DB().QueryContext(ctx, "SHOW FULL TABLES WHERE Table_type = 'BASE TABLE'")
	if err != nil {
		return nil, fmt.Errorf("failed to query tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var table, tableType string
		if err := rows.Scan(&table, &tableType); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, table)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tables: %w", err)
	}

	return tables, nil
}

// TableExists проверяет существование таблицы
func (a *Adapter) TableExists(ctx context.Context, tableName string) (bool, error) {
	query := `
		SELECT COUNT(*)
		FROM information_schema.tables
		WHERE table_schema = DATABASE()
		  AND table_name = ?
	`

	var count int
	err := a.DB().QueryRowContext(ctx, query, tableName).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check table existence: %w", err)
	}

	return count > 0, nil
}

// GetColumnDefaults читает COLUMN_DEFAULT из information_schema.
// MariaDB 10.2+ возвращает строки в кавычках, MySQL без них, оба варианта
// приводятся base.NormalizeDefault.
func (a *Adapter) GetColumnDefaults(ctx context.Context, tableName string) (map[string]string, error) {
	return base.QueryDefaults(ctx, a.DB(), `
		SELECT column_name, column_default
		FROM information_schema.columns
		WHERE table_schema = DATABASE()
		  AND table_name = ?
	`, tableName)
}

// GetPrimaryKeys возвращает колонки первичного ключа
func (a *Adapter) GetPrimaryKeys(ctx context.Context, tableName string) ([]string, error) {
	keys, err := base.QueryStrings(ctx, a.DB(), `
		SELECT column_name
		FROM information_schema.key_column_usage
		WHERE table_schema = DATABASE()
		  AND table_name = ?
		  AND constraint_name = 'PRIMARY'
		ORDER BY ordinal_position
	`, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to read primary key of %s: %w", tableName, err)
	}
	return keys, nil
}

// GetAutoIncrementColumn ищет колонку с EXTRA = auto_increment
func (a *Adapter) GetAutoIncrementColumn(ctx context.Context, tableName string) (string, error) {
	cols, err := base.QueryStrings(ctx, a.DB(), `
		SELECT column_name
		FROM information_schema.columns
		WHERE table_schema = DATABASE()
		  AND table_name = ?
		  AND extra LIKE '%auto_increment%'
	`, tableName)
	if err != nil {
		return "", fmt.Errorf("failed to read auto_increment column of %s: %w", tableName, err)
	}
	if len(cols) == 0 {
		return "", nil
	}
	return cols[0], nil
}

// IsDuplicateKeyError проверяет, является ли ошибка нарушением уникальности
func IsDuplicateKeyError(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == errDuplicateEntry
	}
	return err != nil && strings.Contains(err.Error(), "Duplicate entry")
}

// IsMissingObject реализует классификацию ошибок для очистки БД:
// отсутствующая таблица не является ошибкой операции
func (a *Adapter) IsMissingObject(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == errNoSuchTable || mysqlErr.Number == errBadTable
	}
	return false
}

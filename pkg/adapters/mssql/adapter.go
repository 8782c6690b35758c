package mssql

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	mssql "github.com/denisenkom/go-mssqldb" // MS SQL Server driver

	"github.com/ruslano69/tdtp-dbengine/pkg/adapters"
	"github.com/ruslano69/tdtp-dbengine/pkg/adapters/base"
	"github.com/ruslano69/tdtp-dbengine/pkg/dialect"
)

// SQL Server error numbers
const (
	errInvalidObjectName = 208
	errCannotDropTable   = 3701
)

// Compile-time check
var _ adapters.Adapter = (*Adapter)(nil)

// Adapter implements the adapters.Adapter interface for Microsoft SQL Server.
type Adapter struct {
	base.Conn

	// Version information
	serverVersion    int    // Major version: 11=2012, 13=2016, 14=2017, 15=2019, 16=2022
	serverVersionStr string // Full version string
}

func init() {
	// Register MS SQL Server adapter in factory
	adapters.Register(AdapterType, dialect.SQLServerFamily, func() adapters.Adapter {
		return &Adapter{}
	})
}

// Connect implements adapters.Adapter interface.
// Connects to MS SQL Server and detects the server version.
func (a *Adapter) Connect(ctx context.Context, cfg adapters.Config) error {
	db, err := base.OpenAndPing(ctx, "mssql", cfg)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	schema := cfg.Schema
	if schema == "" {
		schema = DefaultSchema
	}
	a.Init(db, dialect.SQLServerFamily, connectionURL(cfg.DSN), schema)

	if err := a.detectVersion(ctx); err != nil {
		a.Conn.Close(ctx)
		return err
	}
	return nil
}

// connectionURL strips credentials from the DSN so it can be used as a cache key.
func connectionURL(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.Scheme == "" {
		// ADO style: server=...;user id=...;password=...
		var parts []string
		for _, kv := range strings.Split(dsn, ";") {
			key := strings.ToLower(strings.TrimSpace(strings.SplitN(kv, "=", 2)[0]))
			if key == "password" || key == "pwd" || key == "" {
				continue
			}
			parts = append(parts, strings.TrimSpace(kv))
		}
		return "sqlserver:" + strings.Join(parts, ";")
	}
	u.User = nil
	return u.String()
}

// detectVersion reads SERVERPROPERTY('ProductVersion').
func (a *Adapter) detectVersion(ctx context.Context) error {
	var version string
	err := a.DB().QueryRowContext(ctx, "SELECT CAST(SERVERPROPERTY('ProductVersion') AS NVARCHAR(128))").Scan(&version)
	if err != nil {
		return fmt.Errorf("failed to get server version: %w", err)
	}
	a.serverVersionStr = version
	a.serverVersion = parseServerVersion(version)
	return nil
}

// parseServerVersion parses SQL Server version string to major version number.
// Examples:
//   - "11.0.2100.60" → 11 (SQL Server 2012)
//   - "15.0.2000.5"  → 15 (SQL Server 2019)
func parseServerVersion(version string) int {
	major, err := strconv.Atoi(strings.SplitN(version, ".", 2)[0])
	if err != nil {
		return 0
	}
	return major
}

// serverVersionName returns human-readable server version name.
func serverVersionName(major int) string {
	switch major {
	case 11:
		return "SQL Server 2012"
	case 12:
		return "SQL Server 2014"
	case 13:
		return "SQL Server 2016"
	case 14:
		return "SQL Server 2017"
	case 15:
		return "SQL Server 2019"
	case 16:
		return "SQL Server 2022"
	default:
		return fmt.Sprintf("SQL Server (version %d)", major)
	}
}

// GetDatabaseType implements adapters.Adapter interface.
func (a *Adapter) GetDatabaseType() string {
	return AdapterType
}

// GetDatabaseVersion implements adapters.Adapter interface.
func (a *Adapter) GetDatabaseVersion(ctx context.Context) (string, error) {
	if a.serverVersionStr == "" {
		if err := a.detectVersion(ctx); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("%s (%s)", serverVersionName(a.serverVersion), a.serverVersionStr), nil
}

// GetTableNames implements adapters.Adapter interface.
func (a *Adapter) GetTableNames(ctx context.Context) ([]string, error) {
	tables, err := base.QueryStrings(ctx, a.DB(), `
		SELECT TABLE_NAME
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_TYPE = 'BASE TABLE' AND TABLE_SCHEMA = ?
		ORDER BY TABLE_NAME
	`, a.Schema())
	if err != nil {
		return nil, fmt.Errorf("failed to query tables: %w", err)
	}
	return tables, nil
}

// TableExists implements adapters.Adapter interface.
func (a *Adapter) TableExists(ctx context.Context, tableName string) (bool, error) {
	var count int
	err := a.DB().QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
	`, a.Schema(), tableName).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check table existence: %w", err)
	}
	return count > 0, nil
}

// GetColumnDefaults implements adapters.Adapter interface.
// SQL Server wraps defaults in parentheses: ((0)), ('abc'), (N'abc').
func (a *Adapter) GetColumnDefaults(ctx context.Context, tableName string) (map[string]string, error) {
	return base.QueryDefaults(ctx, a.DB(), `
		SELECT COLUMN_NAME, COLUMN_DEFAULT
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ? AND COLUMN_DEFAULT IS NOT NULL
	`, a.Schema(), tableName)
}

// GetPrimaryKeys implements adapters.Adapter interface.
func (a *Adapter) GetPrimaryKeys(ctx context.Context, tableName string) ([]string, error) {
	keys, err := base.QueryStrings(ctx, a.DB(), `
		SELECT kcu.COLUMN_NAME
		FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
		JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu
		  ON tc.CONSTRAINT_NAME = kcu.CONSTRAINT_NAME
		 AND tc.TABLE_SCHEMA = kcu.TABLE_SCHEMA
		WHERE tc.CONSTRAINT_TYPE = 'PRIMARY KEY'
		  AND tc.TABLE_SCHEMA = ?
		  AND tc.TABLE_NAME = ?
		ORDER BY kcu.ORDINAL_POSITION
	`, a.Schema(), tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to read primary key of %s: %w", tableName, err)
	}
	return keys, nil
}

// GetAutoIncrementColumn implements adapters.Adapter interface.
// Returns the IDENTITY column of the table.
func (a *Adapter) GetAutoIncrementColumn(ctx context.Context, tableName string) (string, error) {
	cols, err := base.QueryStrings(ctx, a.DB(), `
		SELECT COLUMN_NAME
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
		  AND COLUMNPROPERTY(OBJECT_ID(QUOTENAME(TABLE_SCHEMA) + '.' + QUOTENAME(TABLE_NAME)), COLUMN_NAME, 'IsIdentity') = 1
		ORDER BY ORDINAL_POSITION
	`, a.Schema(), tableName)
	if err != nil {
		return "", fmt.Errorf("failed to read identity column of %s: %w", tableName, err)
	}
	if len(cols) == 0 {
		return "", nil
	}
	return cols[0], nil
}

// IsMissingObject reports "Invalid object name" errors.
func (a *Adapter) IsMissingObject(err error) bool {
	var msErr mssql.Error
	if errors.As(err, &msErr) {
		return msErr.Number == errInvalidObjectName || msErr.Number == errCannotDropTable
	}
	return false
}

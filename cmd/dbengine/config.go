package main

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ruslano69/tdtp-dbengine/pkg/adapters"
	"github.com/ruslano69/tdtp-dbengine/pkg/brokers"
	"github.com/ruslano69/tdtp-dbengine/pkg/resultlog"
	"github.com/ruslano69/tdtp-dbengine/pkg/retry"
	"github.com/ruslano69/tdtp-dbengine/pkg/storage"
)

// Config represents the main configuration structure
type Config struct {
	Database  DatabaseConfig   `yaml:"database"`
	Cache     CacheConfig      `yaml:"cache,omitempty"`
	Dump      DumpConfig       `yaml:"dump,omitempty"`
	Reload    ReloadConfig     `yaml:"reload,omitempty"`
	ResultLog resultlog.Config `yaml:"result_log,omitempty"`
	Broker    brokers.Config   `yaml:"broker,omitempty"`
	S3        storage.Config   `yaml:"s3,omitempty"`
	Retry     RetryConfig      `yaml:"retry,omitempty"`
}

// DatabaseConfig contains database connection settings
type DatabaseConfig struct {
	Type        string `yaml:"type"`                   // sqlite, postgres, mysql, mssql, odbc
	Host        string `yaml:"host,omitempty"`         // For network databases
	Port        int    `yaml:"port,omitempty"`         // Database port
	Database    string `yaml:"database,omitempty"`     // Database name or file path
	User        string `yaml:"user,omitempty"`         // Username
	Password    string `yaml:"password,omitempty"`     // Password
	Schema      string `yaml:"schema,omitempty"`       // PostgreSQL schema (default: public)
	WindowsAuth bool   `yaml:"windows_auth,omitempty"` // MS SQL Windows authentication
	SSLMode     string `yaml:"sslmode,omitempty"`      // PostgreSQL SSL mode
	Driver      string `yaml:"driver,omitempty"`       // ODBC driver name (H2, Vertica, Sybase)
	DSN         string `yaml:"dsn,omitempty"`          // Raw connection string, overrides the fields above
	MaxConns    int    `yaml:"max_conns,omitempty"`
	Timeout     int    `yaml:"timeout,omitempty"` // Connect timeout in seconds
}

// CacheConfig query result cache settings
type CacheConfig struct {
	Type       string `yaml:"type"`                  // memory, redis, none
	TTL        int    `yaml:"ttl,omitempty"`         // seconds
	Address    string `yaml:"address,omitempty"`     // Redis address
	Password   string `yaml:"password,omitempty"`    // Redis password
	DB         int    `yaml:"db,omitempty"`          // Redis database index
	MaxResults int    `yaml:"max_results,omitempty"` // Find row limit, 0 = default
}

// DumpConfig dump defaults
type DumpConfig struct {
	Compression        string   `yaml:"compression,omitempty"` // gzip, zstd or empty
	Level              int      `yaml:"level,omitempty"`
	Exclude            []string `yaml:"exclude,omitempty"`
	Truncate           bool     `yaml:"truncate"`
	DisableForeignKeys bool     `yaml:"disable_foreign_keys"`
	Upload             bool     `yaml:"upload"` // Upload dump file to S3
}

// ReloadConfig reload and clear defaults
type ReloadConfig struct {
	Truncate string   `yaml:"truncate,omitempty"` // delete, strip, keep
	Exclude  []string `yaml:"exclude,omitempty"`  // Tables kept by --clear
}

// RetryConfig for retry mechanism settings
type RetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	MaxAttempts int    `yaml:"max_attempts"`
	Strategy    string `yaml:"strategy"` // constant, linear, exponential
	InitialWait int    `yaml:"initial_wait_ms"`
	MaxWait     int    `yaml:"max_wait_ms"`
	Jitter      bool   `yaml:"jitter"`
}

// RetryerConfig converts to retry.Config
func (r RetryConfig) RetryerConfig() retry.Config {
	cfg := retry.DefaultConfig()
	cfg.Enabled = r.Enabled
	if r.MaxAttempts > 0 {
		cfg.MaxAttempts = r.MaxAttempts
	}
	if r.Strategy != "" {
		cfg.BackoffStrategy = retry.BackoffStrategy(strings.ToLower(r.Strategy))
	}
	if r.InitialWait > 0 {
		cfg.InitialDelay = time.Duration(r.InitialWait) * time.Millisecond
	}
	if r.MaxWait > 0 {
		cfg.MaxDelay = time.Duration(r.MaxWait) * time.Millisecond
	}
	if cfg.MaxDelay < cfg.InitialDelay {
		cfg.MaxDelay = cfg.InitialDelay
	}
	if !r.Jitter {
		cfg.Jitter = 0
	}
	return cfg
}

// LoadConfig loads configuration from YAML file
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if config.Database.Type == "" {
		return nil, fmt.Errorf("database.type is required")
	}

	return &config, nil
}

// SaveConfig saves configuration to YAML file
func SaveConfig(filename string, config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// CreateSampleConfig creates sample configuration for different database types
func CreateSampleConfig(dbType string) *Config {
	config := &Config{
		Database: DatabaseConfig{
			Type: AdapterType(dbType),
		},
		Cache: CacheConfig{
			Type: "memory",
			TTL:  3600,
		},
		Dump: DumpConfig{
			Compression:        "gzip",
			Truncate:           true,
			DisableForeignKeys: true,
		},
		Reload: ReloadConfig{
			Truncate: "delete",
		},
		Retry: RetryConfig{
			Enabled:     true,
			MaxAttempts: 3,
			Strategy:    "exponential",
			InitialWait: 1000,
			MaxWait:     30000,
			Jitter:      true,
		},
	}

	switch config.Database.Type {
	case "postgres":
		config.Database.Host = "localhost"
		config.Database.Port = 5432
		config.Database.Database = "mydb"
		config.Database.User = "postgres"
		config.Database.Password = "password"
		config.Database.Schema = "public"
		config.Database.SSLMode = "disable"

	case "mssql":
		config.Database.Host = "localhost"
		config.Database.Port = 1433
		config.Database.Database = "mydb"
		config.Database.User = "sa"
		config.Database.Password = "YourPassword123"

	case "sqlite":
		config.Database.Database = "database.db"

	case "mysql":
		config.Database.Host = "localhost"
		config.Database.Port = 3306
		config.Database.Database = "mydb"
		config.Database.User = "root"
		config.Database.Password = "password"

	case "odbc":
		config.Database.Driver = "H2"
		config.Database.Host = "localhost"
		config.Database.Port = 5435
		config.Database.Database = "mydb"
		config.Database.User = "sa"
	}

	return config
}

// AdapterType maps config aliases to registered adapter types
func AdapterType(dbType string) string {
	switch t := strings.ToLower(strings.TrimSpace(dbType)); t {
	case "postgresql", "pgx":
		return "postgres"
	case "sqlserver":
		return "mssql"
	case "sqlite3":
		return "sqlite"
	default:
		return t
	}
}

// BuildDSN constructs database connection string from config
func (c *DatabaseConfig) BuildDSN() string {
	if c.DSN != "" {
		return c.DSN
	}

	switch AdapterType(c.Type) {
	case "postgres":
		sslMode := c.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		schema := c.Schema
		if schema == "" {
			schema = "public"
		}
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(c.User, c.Password),
			Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
			Path:     "/" + c.Database,
			RawQuery: "sslmode=" + url.QueryEscape(sslMode) + "&search_path=" + url.QueryEscape(schema),
		}
		return u.String()

	case "mssql":
		if c.WindowsAuth {
			return fmt.Sprintf("sqlserver://%s:%d?database=%s&integrated security=SSPI",
				c.Host, c.Port, c.Database)
		}
		u := url.URL{
			Scheme:   "sqlserver",
			User:     url.UserPassword(c.User, c.Password),
			Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
			RawQuery: "database=" + url.QueryEscape(c.Database),
		}
		return u.String()

	case "sqlite":
		return c.Database

	case "mysql", "mariadb":
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
			c.User, c.Password, c.Host, c.Port, c.Database)

	case "odbc":
		parts := []string{"Driver=" + c.Driver}
		if c.Host != "" {
			parts = append(parts, "Server="+c.Host)
		}
		if c.Port != 0 {
			parts = append(parts, fmt.Sprintf("Port=%d", c.Port))
		}
		if c.Database != "" {
			parts = append(parts, "Database="+c.Database)
		}
		if c.User != "" {
			parts = append(parts, "UID="+c.User, "PWD="+c.Password)
		}
		return strings.Join(parts, ";")

	default:
		return ""
	}
}

// AdapterConfig builds adapters.Config
func (c *DatabaseConfig) AdapterConfig() adapters.Config {
	cfg := adapters.Config{
		Type:     AdapterType(c.Type),
		DSN:      c.BuildDSN(),
		Schema:   c.Schema,
		MaxConns: c.MaxConns,
	}
	if c.Timeout > 0 {
		cfg.Timeout = time.Duration(c.Timeout) * time.Second
	}
	return cfg
}

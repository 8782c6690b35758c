package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ruslano69/tdtp-dbengine/cmd/dbengine/commands"
	"github.com/ruslano69/tdtp-dbengine/pkg/adapters"
	_ "github.com/ruslano69/tdtp-dbengine/pkg/adapters/mssql"
	_ "github.com/ruslano69/tdtp-dbengine/pkg/adapters/mysql"
	_ "github.com/ruslano69/tdtp-dbengine/pkg/adapters/odbc"
	_ "github.com/ruslano69/tdtp-dbengine/pkg/adapters/postgres"
	_ "github.com/ruslano69/tdtp-dbengine/pkg/adapters/sqlite"
	"github.com/ruslano69/tdtp-dbengine/pkg/cache"
	"github.com/ruslano69/tdtp-dbengine/pkg/database"
	"github.com/ruslano69/tdtp-dbengine/pkg/flatfile"
	"github.com/ruslano69/tdtp-dbengine/pkg/processors"
	"github.com/ruslano69/tdtp-dbengine/pkg/reload"
	"github.com/ruslano69/tdtp-dbengine/pkg/report"
	"github.com/ruslano69/tdtp-dbengine/pkg/retry"
	"github.com/ruslano69/tdtp-dbengine/pkg/schemacache"
	"github.com/ruslano69/tdtp-dbengine/pkg/security"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Parse flags
	flags := ParseFlags()

	// Handle version
	if *flags.Version {
		PrintVersion()
		os.Exit(0)
	}

	// Handle help
	if *flags.Help {
		PrintHelp()
		os.Exit(0)
	}

	setupLogging(*flags.LogLevel)

	// Handle config creation
	if *flags.CreateConfig != "" {
		createConfigTemplate(*flags.CreateConfig)
		return
	}

	if !commandWasSpecified(flags) {
		PrintHelp()
		os.Exit(1)
	}

	// Flat files do not need a database config
	if *flags.File != "" {
		if err := runFlatFile(ctx, flags); err != nil {
			fatal("Command failed: %v", err)
		}
		return
	}

	// Load configuration
	config, err := LoadConfig(*flags.Config)
	if err != nil {
		fatal("Failed to load config: %v", err)
	}

	retryer, err := retry.NewRetryer(config.Retry.RetryerConfig())
	if err != nil {
		fatal("Invalid retry config: %v", err)
	}

	adapterConfig := config.Database.AdapterConfig()
	// неизвестный тип не повторяем
	if _, err := adapters.DialectOf(adapterConfig.Type); err != nil {
		fatal("Invalid database config: %v", err)
	}
	adapter, err := retry.DoValue(ctx, retryer, func(ctx context.Context) (adapters.Adapter, error) {
		return adapters.New(ctx, adapterConfig)
	})
	if err != nil {
		fatal("Failed to connect to %s: %v", adapterConfig.Type, err)
	}
	defer adapter.Close(context.Background())

	// Route commands
	summary, cmdErr := runCommand(ctx, flags, config, adapter, retryer)

	if summary != nil {
		log.Info().Str("job", summary.JobID).Msg(summary.String())
		if err := publishSummary(context.WithoutCancel(ctx), config, retryer, summary); err != nil {
			log.Warn().Err(err).Msg("failed to publish job summary")
		}
	}

	// Handle errors
	if cmdErr != nil {
		adapter.Close(context.Background())
		fatal("Command failed: %v", cmdErr)
	}
}

// runCommand выполняет одну команду над подключенной базой
func runCommand(ctx context.Context, flags *Flags, config *Config, adapter adapters.Adapter, retryer *retry.Retryer) (*report.Summary, error) {
	switch {
	case *flags.List:
		return nil, commands.ListTables(ctx, os.Stdout, adapter)

	case *flags.Dump:
		opts, err := dumpOptions(ctx, flags, config)
		if err != nil {
			return nil, err
		}
		opts.Retry = retryer
		return commands.Dump(ctx, os.Stdout, adapter, opts)

	case *flags.Reload != "":
		opts, err := reloadOptions(flags, config)
		if err != nil {
			return nil, err
		}
		opts.Input = *flags.Reload
		return commands.Reload(ctx, adapter, opts)

	case *flags.Clear:
		opts, err := reloadOptions(flags, config)
		if err != nil {
			return nil, err
		}
		return commands.Clear(ctx, adapter, splitList(*flags.Tables), opts)

	case *flags.Query != "":
		db, closeCache, err := openDatabase(ctx, flags, config, adapter)
		if err != nil {
			return nil, err
		}
		defer closeCache()
		opts, err := queryOptions(flags)
		if err != nil {
			return nil, err
		}
		opts.Guard = security.NewQueryGuard(*flags.Unsafe)
		if *flags.Upload {
			if opts.Output == "" {
				return nil, fmt.Errorf("--upload requires --output file")
			}
			if opts.Upload, err = newUploader(ctx, config); err != nil {
				return nil, fmt.Errorf("s3: %w", err)
			}
			opts.Retry = retryer
		}
		opts.Cached = !*flags.NoCache && config.Cache.Type != "" && config.Cache.Type != "none"
		return commands.Query(ctx, os.Stdout, db, opts)
	}
	return nil, fmt.Errorf("no command specified")
}

func runFlatFile(ctx context.Context, flags *Flags) error {
	fileOpts := flatfile.Options{
		Encoding:      *flags.Encoding,
		NoQuotes:      *flags.NoQuotes,
		RecordElement: *flags.Record,
	}
	if *flags.Delimiter != "," {
		fileOpts.Delimiter = delimiterRune(*flags.Delimiter)
	}

	if *flags.Query == "" {
		return commands.FlatFileTables(ctx, os.Stdout, *flags.File, fileOpts)
	}
	opts, err := queryOptions(flags)
	if err != nil {
		return err
	}
	// разделитель относится к входному файлу
	opts.CSV.Delimiter = database.DefaultDelimiter
	summary, err := commands.QueryFlatFile(ctx, os.Stdout, *flags.File, fileOpts, opts)
	if summary != nil {
		log.Info().Str("job", summary.JobID).Msg(summary.String())
	}
	return err
}

func dumpOptions(ctx context.Context, flags *Flags, config *Config) (commands.DumpOptions, error) {
	compression, err := compressionFor(*flags.Compress, config.Dump.Compression, *flags.Output)
	if err != nil {
		return commands.DumpOptions{}, err
	}
	level := config.Dump.Level
	if *flags.Level != 0 {
		level = *flags.Level
	}
	exclude := config.Dump.Exclude
	if *flags.Exclude != "" {
		exclude = splitList(*flags.Exclude)
	}

	opts := commands.DumpOptions{
		Output:             *flags.Output,
		Compression:        compression,
		Level:              level,
		Exclude:            exclude,
		Truncate:           config.Dump.Truncate,
		DisableForeignKeys: config.Dump.DisableForeignKeys,
	}

	if *flags.Upload || config.Dump.Upload {
		if opts.Output == "" || opts.Output == "-" {
			return opts, fmt.Errorf("--upload requires --output file")
		}
		uploader, err := newUploader(ctx, config)
		if err != nil {
			return opts, fmt.Errorf("s3: %w", err)
		}
		opts.Upload = uploader
	}
	return opts, nil
}

func reloadOptions(flags *Flags, config *Config) (commands.ReloadOptions, error) {
	mode := config.Reload.Truncate
	if *flags.Truncate != "" {
		mode = *flags.Truncate
	}
	truncate, err := reload.ParseTruncateMode(mode)
	if err != nil {
		return commands.ReloadOptions{}, err
	}
	exclude := config.Reload.Exclude
	if *flags.Exclude != "" {
		exclude = splitList(*flags.Exclude)
	}
	return commands.ReloadOptions{Truncate: truncate, Exclude: exclude}, nil
}

func queryOptions(flags *Flags) (commands.QueryOptions, error) {
	opts := commands.QueryOptions{
		SQL:    *flags.Query,
		Output: *flags.Output,
		CSV: database.CSVOptions{
			Delimiter:           delimiterRune(*flags.Delimiter),
			IncludeHeader:       !*flags.NoHeader,
			ConflateColumns:     splitList(*flags.Conflate),
			ConflateToSingleRow: *flags.SingleRow,
		},
	}
	if opts.Output == "" {
		return opts, nil
	}

	format, err := outputFormat(*flags.Format, opts.Output)
	if err != nil {
		return opts, err
	}
	opts.Format = format
	if opts.Compress, err = compressionFor(*flags.Compress, "", opts.Output); err != nil {
		return opts, err
	}
	return opts, nil
}

// openDatabase строит фасад с кэшем результатов и кэшем схем
func openDatabase(ctx context.Context, flags *Flags, config *Config, adapter adapters.Adapter) (*database.Database, func(), error) {
	ttl := time.Duration(config.Cache.TTL) * time.Second
	dbOpts := []database.Option{database.WithSchemaCache(schemacache.New(0))}

	maxResults := config.Cache.MaxResults
	if *flags.MaxResults > 0 {
		maxResults = *flags.MaxResults
	}
	if maxResults > 0 {
		dbOpts = append(dbOpts, database.WithMaxResults(maxResults))
	}

	closeCache := func() {}
	switch strings.ToLower(config.Cache.Type) {
	case "", "none":
	case "memory":
		dbOpts = append(dbOpts, database.WithCache(cache.NewMemory(ttl)))
	case "redis":
		store, err := cache.DialRedis(ctx, cache.RedisOptions{
			Address:  config.Cache.Address,
			Password: config.Cache.Password,
			DB:       config.Cache.DB,
			Prefix:   "dbengine:cache:",
			TTL:      ttl,
		})
		if err != nil {
			return nil, nil, err
		}
		closeCache = func() { store.Close() }
		dbOpts = append(dbOpts, database.WithCache(store))
	default:
		return nil, nil, fmt.Errorf("unsupported cache type: %s (supported: memory, redis, none)", config.Cache.Type)
	}

	return database.New(adapter, config.Database.Database, dbOpts...), closeCache, nil
}

// compressionFor выбирает сжатие: флаг, затем конфиг, затем расширение файла
func compressionFor(flagValue, configValue, output string) (processors.Compression, error) {
	if flagValue != "" {
		return processors.ParseCompression(flagValue)
	}
	if configValue != "" {
		return processors.ParseCompression(configValue)
	}
	return processors.FromFilename(output), nil
}

// outputFormat формат файла результата: флаг или расширение
func outputFormat(flagValue, output string) (database.Format, error) {
	if flagValue != "" {
		return database.ParseFormat(flagValue)
	}
	name := strings.ToLower(output)
	if c := processors.FromFilename(name); c != processors.CompressionNone {
		name = strings.TrimSuffix(name, filepath.Ext(name))
	}
	switch filepath.Ext(name) {
	case ".xlsx", ".xls":
		return database.FormatExcel, nil
	case ".tsv", ".tab":
		return database.FormatTSV, nil
	}
	return database.FormatCSV, nil
}

func setupLogging(level string) {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

// createConfigTemplate creates a sample configuration file
func createConfigTemplate(dbType string) {
	config := CreateSampleConfig(dbType)

	if err := SaveConfig("config.yaml", config); err != nil {
		fatal("Failed to save config: %v", err)
	}

	fmt.Printf("✓ Created sample %s config: config.yaml\n", dbType)
	fmt.Println("Edit the file with your database credentials and run:")
	fmt.Printf("  dbengine --list --config config.yaml\n")
}

// commandWasSpecified checks if any command was specified
func commandWasSpecified(flags *Flags) bool {
	return *flags.List ||
		*flags.Dump ||
		*flags.Reload != "" ||
		*flags.Clear ||
		*flags.Query != "" ||
		*flags.File != ""
}

// fatal prints error and exits
func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

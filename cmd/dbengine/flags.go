package main

import (
	"flag"
	"os"
	"strings"
)

// Flags holds all command-line flags
type Flags struct {
	// Commands
	List   *bool
	Dump   *bool
	Reload *string
	Clear  *bool
	Query  *string
	File   *string // Flat file (CSV, TSV, XLSX, XML) queried instead of the database

	// Options
	Config       *string
	Output       *string
	Format       *string
	Compress     *string
	Level        *int
	Tables       *string
	Exclude      *string
	Truncate     *string
	Upload       *bool
	MaxResults   *int
	NoCache      *bool
	Unsafe       *bool
	Delimiter    *string
	NoHeader     *bool
	Conflate     *string
	SingleRow    *bool
	Encoding     *string
	NoQuotes     *bool
	Record       *string
	CreateConfig *string

	// Misc
	LogLevel *string
	Version  *bool
	Help     *bool
}

// ParseFlags defines and parses all command-line flags
func ParseFlags() *Flags {
	return parseFlags(flag.CommandLine, os.Args[1:])
}

func parseFlags(fs *flag.FlagSet, args []string) *Flags {
	f := &Flags{}

	// Commands
	f.List = fs.Bool("list", false, "List all tables in database")
	f.Dump = fs.Bool("dump", false, "Dump all tables as INSERT statements")
	f.Reload = fs.String("reload", "", "Reload a dump file into the database (file path, - for stdin)")
	f.Clear = fs.Bool("clear", false, "Clear tables (all but --exclude, or --tables)")
	f.Query = fs.String("query", "", "Run a SELECT and write the result as CSV (or --output file)")
	f.File = fs.String("file", "", "Load a flat file (csv, tsv, xlsx, xml) and query it instead of the database")

	// Options
	f.Config = fs.String("config", "config.yaml", "Configuration file path")
	f.Output = fs.String("output", "", "Output file path (default: stdout)")
	f.Format = fs.String("format", "", "Output file format: csv, tsv, xlsx (default: by --output extension)")
	f.Compress = fs.String("compress", "", "Compression: gzip, zstd (default: from config or --output extension)")
	f.Level = fs.Int("level", 0, "Compression level (0 = codec default)")
	f.Tables = fs.String("tables", "", "Comma-separated tables for --clear")
	f.Exclude = fs.String("exclude", "", "Comma-separated tables skipped by --dump and --clear")
	f.Truncate = fs.String("truncate", "", "PostgreSQL truncate handling on reload: delete, strip, keep")
	f.Upload = fs.Bool("upload", false, "Upload the dump file to S3 (requires s3 section in config)")
	f.MaxResults = fs.Int("max-results", 0, "Maximum rows returned by --query (0 = default)")
	f.Unsafe = fs.Bool("unsafe", false, "Allow --query to run statements that modify data")
	f.NoCache = fs.Bool("no-cache", false, "Bypass the query result cache")
	f.Delimiter = fs.String("delimiter", ",", "CSV field delimiter (\\t for tab)")
	f.NoHeader = fs.Bool("no-header", false, "Do not write the CSV header row")
	f.Conflate = fs.String("conflate", "", "Comma-separated columns whose repeated values are blanked")
	f.SingleRow = fs.Bool("single-row", false, "Merge rows with equal --conflate values into one row")
	f.Encoding = fs.String("encoding", "", "Flat file charset (default ISO-8859-1)")
	f.NoQuotes = fs.Bool("no-quotes", false, "Flat file fields are not quoted")
	f.Record = fs.String("record", "", "XML record element name")
	f.CreateConfig = fs.String("create-config", "", "Create sample config for: sqlite, postgres, mysql, mssql, odbc")

	// Misc
	f.LogLevel = fs.String("log-level", "info", "Log level: debug, info, warn, error")
	f.Version = fs.Bool("version", false, "Show version information")
	f.Help = fs.Bool("help", false, "Show detailed help with examples")

	fs.Parse(args)

	return f
}

// splitList splits a comma-separated flag value
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// delimiterRune parses --delimiter
func delimiterRune(s string) rune {
	switch s {
	case "", ",":
		return ','
	case `\t`, "tab", "\t":
		return '\t'
	default:
		return []rune(s)[0]
	}
}

package main

import "fmt"

const version = "2.0.0"

// PrintVersion prints version information
func PrintVersion() {
	fmt.Printf("dbengine version %s\n", version)
	fmt.Println("Portable data movement engine: dump, reload, query, flat files")
	fmt.Println("https://github.com/ruslano69/tdtp-dbengine")
}

// PrintHelp prints comprehensive help information
func PrintHelp() {
	fmt.Println("dbengine - portable dump/reload/query tool for SQL databases and flat files")
	fmt.Printf("Version: %s\n\n", version)

	fmt.Println("USAGE:")
	fmt.Println("  dbengine [command] [options]")
	fmt.Println()

	fmt.Println("COMMANDS:")
	fmt.Println()

	fmt.Println("  Database Operations:")
	fmt.Println("    --list                     List all tables in database")
	fmt.Println("    --dump                     Dump all tables as INSERT statements")
	fmt.Println("    --reload <file>            Reload a dump file (- for stdin)")
	fmt.Println("    --clear                    Delete rows from all tables (or --tables)")
	fmt.Println("    --query <sql>              Run a SELECT and write CSV (or --output file)")
	fmt.Println()

	fmt.Println("  Flat Files:")
	fmt.Println("    --file <path>              Load CSV/TSV/XLSX/XML into a temporary database")
	fmt.Println("                               With --query runs SQL against it, otherwise lists tables")
	fmt.Println()

	fmt.Println("  Configuration:")
	fmt.Println("    --create-config <type>     Write sample config.yaml: sqlite, postgres, mysql, mssql, odbc")
	fmt.Println()

	fmt.Println("OPTIONS:")
	fmt.Println()

	fmt.Println("  General:")
	fmt.Println("    --config <file>            Configuration file (default: config.yaml)")
	fmt.Println("    --output <file>            Output file path (default: stdout)")
	fmt.Println("    --log-level <level>        debug, info, warn, error (default: info)")
	fmt.Println()

	fmt.Println("  Dump / Reload:")
	fmt.Println("    --compress <codec>         gzip or zstd (default: by file extension)")
	fmt.Println("    --level <n>                Compression level (0 = codec default)")
	fmt.Println("    --exclude <tables>         Comma-separated tables to skip")
	fmt.Println("    --tables <tables>          Comma-separated tables for --clear")
	fmt.Println("    --truncate <mode>          PostgreSQL TRUNCATE on reload: delete, strip, keep")
	fmt.Println("    --upload                   Upload dump file to S3 (s3 section in config)")
	fmt.Println()

	fmt.Println("  Query Output:")
	fmt.Println("    --format <fmt>             csv, tsv, xlsx (with --output)")
	fmt.Println("    --delimiter <c>            CSV delimiter (default: ,; \\t for tab)")
	fmt.Println("    --no-header                Do not write the header row")
	fmt.Println("    --conflate <cols>          Blank repeated values of these columns")
	fmt.Println("    --single-row               Merge conflated groups into one row")
	fmt.Println("    --max-results <n>          Row limit for cached queries")
	fmt.Println("    --no-cache                 Stream rows, bypass the result cache")
	fmt.Println("    --unsafe                   Allow --query to modify data (default: read-only)")
	fmt.Println("    --upload                   With --output, upload the result file to S3")
	fmt.Println("    --unsafe                   Allow --query to modify data (default: read-only)")
	fmt.Println()

	fmt.Println("  Flat File Options:")
	fmt.Println("    --encoding <charset>       Text file charset (default: ISO-8859-1)")
	fmt.Println("    --no-quotes                Fields are not quoted, split on delimiter only")
	fmt.Println("    --record <element>         XML record element (default: first child of root)")
	fmt.Println()

	fmt.Println("EXAMPLES:")
	fmt.Println()
	fmt.Println("  # Create config for PostgreSQL")
	fmt.Println("  dbengine --create-config postgres")
	fmt.Println()
	fmt.Println("  # Dump database to a compressed file and upload it")
	fmt.Println("  dbengine --dump --output nightly.sql.zst --upload")
	fmt.Println()
	fmt.Println("  # Reload a dump into another database")
	fmt.Println("  dbengine --config target.yaml --reload nightly.sql.zst")
	fmt.Println()
	fmt.Println("  # Clear everything except reference tables")
	fmt.Println("  dbengine --clear --exclude countries,currencies")
	fmt.Println()
	fmt.Println("  # Query to Excel")
	fmt.Println("  dbengine --query \"select * from orders\" --output orders.xlsx")
	fmt.Println()
	fmt.Println("  # Query a CSV file with SQL")
	fmt.Println("  dbengine --file prices.csv --query \"select cola, sum(colc) from sheet1 group by cola\"")
	fmt.Println()

	fmt.Println("RESULT LOG:")
	fmt.Println("  Each job summary is published to Redis (result_log) and to a")
	fmt.Println("  message broker (broker: rabbitmq or kafka) when configured.")
	fmt.Println()
}

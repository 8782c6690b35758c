package commands

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/ruslano69/tdtp-dbengine/pkg/core/rowset"
	"github.com/ruslano69/tdtp-dbengine/pkg/database"
	"github.com/ruslano69/tdtp-dbengine/pkg/processors"
	"github.com/ruslano69/tdtp-dbengine/pkg/report"
	"github.com/ruslano69/tdtp-dbengine/pkg/retry"
	"github.com/ruslano69/tdtp-dbengine/pkg/security"
)

// QueryOptions параметры --query
type QueryOptions struct {
	SQL      string
	Params   []any
	CSV      database.CSVOptions
	Output   string // файл результата; пусто - поток w
	Format   database.Format
	Compress processors.Compression
	Cached   bool                 // результат через Find и кэш вместо потоковой выгрузки
	Guard    *security.QueryGuard // nil - без проверки
	Upload   Uploader             // выгрузка файла Output; nil - без выгрузки
	Retry    *retry.Retryer
}

// Query выполняет запрос и пишет результат в CSV поток или файл
// (CSV, TSV, XLSX)
func Query(ctx context.Context, w io.Writer, db *database.Database, opts QueryOptions) (*report.Summary, error) {
	summary := report.NewSummary("query")
	defer summary.Finish()

	if opts.SQL == "" {
		return summary, fmt.Errorf("query text is required")
	}
	if err := opts.Guard.Check(opts.SQL); err != nil {
		summary.Add(report.Fail(opts.SQL, err))
		return summary, fmt.Errorf("%w (use --unsafe to run it)", err)
	}

	if opts.Output != "" {
		o := db.SaveAs(ctx, opts.SQL, opts.Output, opts.Format, opts.Compress)
		summary.Add(o)
		if !o.Success {
			return summary, o.Err
		}
		log.Info().Str("file", opts.Output).Int64("rows", o.Rows).Msg("query saved")
		if opts.Upload != nil {
			meta := map[string]string{"job-id": summary.JobID, "rows": strconv.FormatInt(o.Rows, 10)}
			if sum, err := processors.ChecksumFile(opts.Output); err == nil {
				meta["checksum"] = sum
			}
			if err := upload(ctx, opts.Upload, opts.Retry, opts.Output, meta, summary); err != nil {
				return summary, err
			}
		}
		return summary, nil
	}

	var (
		rows int64
		err  error
	)
	if opts.Cached {
		var res *rowset.Result
		if res, err = db.Find(ctx, opts.SQL, false, opts.Params...); err == nil {
			rows, err = database.WriteCSV(w, res, opts.CSV)
		}
	} else {
		rows, err = db.FindToCSV(ctx, w, opts.SQL, opts.CSV, opts.Params...)
	}
	if err != nil {
		summary.Add(report.Fail(opts.SQL, err))
		return summary, err
	}
	summary.Add(report.OK(opts.SQL, rows))
	return summary, nil
}

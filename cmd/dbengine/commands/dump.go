package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ruslano69/tdtp-dbengine/pkg/adapters"
	"github.com/ruslano69/tdtp-dbengine/pkg/dump"
	"github.com/ruslano69/tdtp-dbengine/pkg/processors"
	"github.com/ruslano69/tdtp-dbengine/pkg/progress"
	"github.com/ruslano69/tdtp-dbengine/pkg/report"
	"github.com/ruslano69/tdtp-dbengine/pkg/retry"
	"github.com/ruslano69/tdtp-dbengine/pkg/storage"
)

// Uploader выгрузка файла во внешнее хранилище (storage.Uploader)
type Uploader interface {
	UploadFile(ctx context.Context, path string, metadata map[string]string) (storage.Object, error)
}

// DumpOptions параметры команды --dump
type DumpOptions struct {
	Output             string // пусто или "-" - stdout
	Compression        processors.Compression
	Level              int
	Exclude            []string
	Truncate           bool
	DisableForeignKeys bool
	Upload             Uploader // nil - без выгрузки
	Retry              *retry.Retryer
}

// Dump выгружает базу в файл или stdout
func Dump(ctx context.Context, stdout io.Writer, adapter adapters.Adapter, opts DumpOptions) (*report.Summary, error) {
	engine := dump.New(adapter, dump.Options{
		Exclude:            opts.Exclude,
		Truncate:           opts.Truncate,
		DisableForeignKeys: opts.DisableForeignKeys,
		Info:               fmt.Sprintf("/* %s dump, %s */", adapter.GetDatabaseType(), time.Now().Format(time.RFC3339)),
	})
	p := progress.New()
	p.SetStage("dump")
	engine.WithProgress(p)
	stop := watch(ctx, p, "rows")
	defer stop()

	if opts.Output == "" || opts.Output == "-" {
		w, err := processors.NewWriter(stdout, opts.Compression, opts.Level)
		if err != nil {
			return engine.Summary(), err
		}
		err = engine.Dump(ctx, w)
		if cerr := w.Close(); err == nil {
			err = cerr
		}
		return engine.Summary(), err
	}

	info, err := engine.DumpFile(ctx, opts.Output, opts.Compression, opts.Level)
	summary := engine.Summary()
	if err != nil {
		return summary, err
	}

	if opts.Upload != nil {
		meta := map[string]string{
			"checksum": info.Checksum,
			"job-id":   summary.JobID,
		}
		if err := upload(ctx, opts.Upload, opts.Retry, info.Path, meta, summary); err != nil {
			return summary, err
		}
	}
	return summary, nil
}

// upload выгружает файл с повторами и записывает результат в сводку
func upload(ctx context.Context, up Uploader, r *retry.Retryer, path string, meta map[string]string, summary *report.Summary) error {
	obj, err := retry.DoValue(ctx, r, func(ctx context.Context) (storage.Object, error) {
		return up.UploadFile(ctx, path, meta)
	})
	if err != nil {
		summary.Add(report.Fail("upload", err))
		return err
	}
	summary.Add(report.OK("upload "+obj.Key, 0))
	log.Info().Str("bucket", obj.Bucket).Str("key", obj.Key).Msg("file uploaded")
	return nil
}

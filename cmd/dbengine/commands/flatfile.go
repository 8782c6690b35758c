package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/ruslano69/tdtp-dbengine/pkg/flatfile"
	"github.com/ruslano69/tdtp-dbengine/pkg/report"
)

// QueryFlatFile загружает CSV/TSV/XLSX/XML во временную базу и выполняет
// над ней запрос. Пустой запрос выводит все строки первой таблицы.
func QueryFlatFile(ctx context.Context, w io.Writer, path string, fileOpts flatfile.Options, opts QueryOptions) (*report.Summary, error) {
	f, err := flatfile.Open(ctx, path, fileOpts)
	if err != nil {
		summary := report.NewSummary("flatfile")
		summary.Add(report.Fail(path, err))
		summary.Finish()
		return summary, err
	}
	defer f.Close(ctx)

	if opts.SQL == "" {
		tables := f.Tables()
		if len(tables) == 0 {
			return report.NewSummary("flatfile"), fmt.Errorf("no tables loaded from %s", path)
		}
		opts.SQL = "select * from " + f.Database().Quote(tables[0]) + " order by rowid"
	}
	return Query(ctx, w, f.Database(), opts)
}

// FlatFileTables список таблиц, полученных из файла
func FlatFileTables(ctx context.Context, w io.Writer, path string, fileOpts flatfile.Options) error {
	f, err := flatfile.Open(ctx, path, fileOpts)
	if err != nil {
		return err
	}
	defer f.Close(ctx)

	for _, table := range f.Tables() {
		res, err := f.Database().Find(ctx, "select count(*) as n from "+f.Database().Quote(table), true)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s: %v row(s)\n", table, res.First().Value("n"))
	}
	return nil
}

package commands

import (
	"context"
	"os"

	"github.com/ruslano69/tdtp-dbengine/pkg/adapters"
	"github.com/ruslano69/tdtp-dbengine/pkg/progress"
	"github.com/ruslano69/tdtp-dbengine/pkg/reload"
	"github.com/ruslano69/tdtp-dbengine/pkg/report"
)

// ReloadOptions параметры --reload и --clear
type ReloadOptions struct {
	Input    string // пусто или "-" - stdin
	Truncate reload.TruncateMode
	Exclude  []string
}

// Reload загружает дамп в базу
func Reload(ctx context.Context, adapter adapters.Adapter, opts ReloadOptions) (*report.Summary, error) {
	p := progress.New()
	p.SetStage("reload")
	engine := reload.New(adapter, reload.Options{Truncate: opts.Truncate}).WithProgress(p)
	stop := watch(ctx, p, "statements")
	defer stop()

	if opts.Input == "" || opts.Input == "-" {
		return engine.Reload(ctx, os.Stdin)
	}
	return engine.ReloadFile(ctx, opts.Input)
}

// Clear очищает перечисленные таблицы или, если список пуст, все таблицы
// кроме opts.Exclude
func Clear(ctx context.Context, adapter adapters.Adapter, tables []string, opts ReloadOptions) (*report.Summary, error) {
	engine := reload.New(adapter, reload.Options{Truncate: opts.Truncate, Exclude: opts.Exclude})
	if len(tables) > 0 {
		return engine.ClearTables(ctx, tables)
	}
	return engine.ClearDatabase(ctx, opts.Exclude...)
}

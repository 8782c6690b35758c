package reload

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/ruslano69/tdtp-dbengine/pkg/adapters"
	"github.com/ruslano69/tdtp-dbengine/pkg/dialect"
	"github.com/ruslano69/tdtp-dbengine/pkg/report"
)

// ClearDatabase очищает все таблицы, кроме Options.Exclude и exclude,
// при отключенной ссылочной целостности. Автоинкременты сбрасываются
// для H2 и PostgreSQL (таблицы с первичным ключом id).
func (e *Engine) ClearDatabase(ctx context.Context, exclude ...string) (*report.Summary, error) {
	skip := make(map[string]bool)
	for _, t := range append(append([]string{}, e.opts.Exclude...), exclude...) {
		skip[strings.ToLower(t)] = true
	}
	names, err := e.adapter.GetTableNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	var tables []string
	for _, n := range names {
		if !skip[strings.ToLower(n)] {
			tables = append(tables, n)
		}
	}
	return e.clear(ctx, "clear database", tables)
}

// ClearTables очищает только перечисленные существующие таблицы
func (e *Engine) ClearTables(ctx context.Context, tables []string) (*report.Summary, error) {
	if len(tables) == 0 {
		return report.NewSummary("clear tables"), nil
	}
	want := make(map[string]bool, len(tables))
	for _, t := range tables {
		want[strings.ToLower(t)] = true
	}
	names, err := e.adapter.GetTableNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	var selected []string
	for _, n := range names {
		if want[strings.ToLower(n)] {
			selected = append(selected, n)
		}
	}
	return e.clear(ctx, "clear tables", selected)
}

func (e *Engine) clear(ctx context.Context, name string, tables []string) (*report.Summary, error) {
	summary := report.NewSummary(name)
	defer summary.Finish()

	conn, err := e.adapter.DB().Conn(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	restore, err := e.disableIntegrity(ctx, conn)
	if err != nil {
		return summary, err
	}
	defer restoreIntegrity(context.WithoutCancel(ctx), restore, summary)

	if err := e.setSchema(ctx, conn); err != nil {
		return summary, err
	}

	e.progress.AddTotal(int64(len(tables)))
	for _, table := range tables {
		e.progress.SetStage("Truncating " + table)
		log.Info().Str("table", table).Msg("truncating")
		summary.Add(e.clearTable(ctx, conn, table))
		e.progress.Inc()
	}
	return summary, nil
}

func (e *Engine) clearTable(ctx context.Context, conn *sql.Conn, table string) report.Outcome {
	d := e.adapter.Dialect()

	stmt := "truncate table " + table
	if d == dialect.SQLite {
		stmt = "delete from " + table
	}
	res, err := conn.ExecContext(ctx, stmt)
	if err != nil {
		return e.classify(table, err)
	}
	var rows int64
	if d == dialect.SQLite {
		rows, _ = res.RowsAffected()
	}

	switch d {
	case dialect.H2:
		_, err = conn.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN id RESTART WITH 1", table))
	case dialect.Postgres:
		if e.hasIDKey(ctx, table) {
			_, err = conn.ExecContext(ctx, fmt.Sprintf(
				"SELECT setval(pg_get_serial_sequence('%s', 'id'), coalesce(max(id),0) + 1, false) FROM %s", table, table))
		}
	case dialect.SQLite:
		// таблицы sqlite_sequence нет, пока нет AUTOINCREMENT колонок
		if _, serr := conn.ExecContext(ctx, "delete from sqlite_sequence where name=?", table); serr != nil {
			log.Trace().Err(serr).Msg("sqlite_sequence not reset")
		}
	}
	if err != nil {
		return e.classify(table, err)
	}
	return report.OK(table, rows)
}

// hasIDKey true, если первичный ключ таблицы состоит из колонки id
func (e *Engine) hasIDKey(ctx context.Context, table string) bool {
	pk, err := e.adapter.GetPrimaryKeys(ctx, table)
	return err == nil && len(pk) == 1 && strings.EqualFold(pk[0], "id")
}

// classify пропускает ошибки отсутствующего объекта (нет колонки id,
// нет последовательности) и записывает остальные
func (e *Engine) classify(table string, err error) report.Outcome {
	c, ok := e.adapter.(adapters.ErrorClassifier)
	missing := ok && c.IsMissingObject(err)
	if !ok {
		msg := strings.ToLower(err.Error())
		missing = strings.Contains(msg, "not found") || strings.Contains(msg, "does not exist")
	}
	if missing {
		log.Debug().Err(err).Str("table", table).Msg("missing object ignored")
		return report.OK(table, 0)
	}
	log.Error().Err(err).Str("table", table).Msg("problem truncating table")
	return report.Fail(table, err)
}

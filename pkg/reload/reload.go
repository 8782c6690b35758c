// Package reload загружает текстовый дамп обратно в базу: делит поток на
// операторы, переписывает их под целевой диалект и выполняет по одному
// при отключенной ссылочной целостности.
package reload

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/ruslano69/tdtp-dbengine/pkg/adapters"
	"github.com/ruslano69/tdtp-dbengine/pkg/dialect"
	"github.com/ruslano69/tdtp-dbengine/pkg/processors"
	"github.com/ruslano69/tdtp-dbengine/pkg/progress"
	"github.com/ruslano69/tdtp-dbengine/pkg/report"
)

// Options параметры загрузки
type Options struct {
	// Truncate режим truncate table для PostgreSQL
	Truncate TruncateMode
	// Exclude таблицы, которые ClearDatabase не очищает
	Exclude []string
}

// Engine загрузка дампа в одну базу
type Engine struct {
	adapter  adapters.Adapter
	opts     Options
	rewriter *Rewriter
	progress *progress.Progress
}

// New создает загрузчик для подключенного адаптера
func New(a adapters.Adapter, opts Options) *Engine {
	return &Engine{
		adapter:  a,
		opts:     opts,
		rewriter: NewRewriter(a.Dialect(), opts.Truncate),
	}
}

// WithProgress задает счетчик прогресса (операторы)
func (e *Engine) WithProgress(p *progress.Progress) *Engine {
	e.progress = p
	return e
}

// ReloadFile загружает дамп из файла
func (e *Engine) ReloadFile(ctx context.Context, path string) (*report.Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dump: %w", err)
	}
	defer f.Close()
	if st, err := f.Stat(); err == nil && st.Size() == 0 {
		return nil, fmt.Errorf("dump %s is empty", path)
	}
	return e.Reload(ctx, f)
}

// Reload выполняет операторы дампа из r. Сжатие определяется по
// сигнатуре. Ошибка оператора записывается в сводку, загрузка
// продолжается; ошибка соединения или чтения возвращается.
func (e *Engine) Reload(ctx context.Context, r io.Reader) (*report.Summary, error) {
	summary := report.NewSummary("reload")

	rc, compression, err := processors.NewReader(r)
	if err != nil {
		return summary, err
	}
	defer rc.Close()
	log.Info().Str("compression", string(compression)).Str("dialect", e.adapter.Dialect().String()).Msg("reloading database")

	conn, err := e.adapter.DB().Conn(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	restore, err := e.disableIntegrity(ctx, conn)
	if err != nil {
		return summary, err
	}
	defer func() {
		restoreIntegrity(context.WithoutCancel(ctx), restore, summary)
		summary.Finish()
	}()

	if err := e.setSchema(ctx, conn); err != nil {
		return summary, err
	}

	e.progress.SetStage("reload")
	var (
		tok       Tokenizer
		executed  int64
		statement int
	)
	br := bufio.NewReaderSize(rc, processors.ReaderBufferSize)
	for {
		ch, _, err := br.ReadRune()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return summary, fmt.Errorf("failed to read dump: %w", err)
		}
		raw, ok := tok.Feed(ch)
		if !ok {
			continue
		}
		statement++
		stmt := e.rewriter.Rewrite(raw)
		if stmt == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			log.Error().Err(err).Int("statement", statement).Str("sql", abbreviate(stmt)).Msg("statement failed")
			summary.Add(report.Fail(fmt.Sprintf("statement %d: %s", statement, abbreviate(stmt)), err))
		} else {
			executed++
		}
		e.progress.Inc()
	}
	if rest := tok.Pending(); rest != "" {
		log.Warn().Str("sql", abbreviate(rest)).Msg("dump ends with an unterminated statement")
	}

	summary.Add(report.OK("statements", executed))
	log.Info().Int64("executed", executed).Int("statements", statement).Msg("reload complete")
	return summary, nil
}

// abbreviate укорачивает оператор для журнала
func abbreviate(stmt string) string {
	const max = 120
	stmt = strings.ReplaceAll(stmt, "\n", " ")
	if len(stmt) <= max {
		return stmt
	}
	return stmt[:max] + "..."
}

func (e *Engine) setSchema(ctx context.Context, conn *sql.Conn) error {
	if e.adapter.Dialect() != dialect.Postgres || e.adapter.Schema() == "" {
		return nil
	}
	if _, err := conn.ExecContext(ctx, "set schema '"+e.adapter.Schema()+"'"); err != nil {
		return fmt.Errorf("failed to set schema: %w", err)
	}
	return nil
}

// restoreIntegrity вызывает функцию восстановления от disableIntegrity.
// Ошибка попадает в сводку и журнал.
func restoreIntegrity(ctx context.Context, restore func(context.Context) error, summary *report.Summary) {
	if err := restore(ctx); err != nil {
		summary.Add(report.Fail("referential integrity", err))
		log.Error().Err(err).Msg("failed to restore referential integrity")
	}
}

// disableIntegrity отключает проверку внешних ключей на соединении и
// возвращает функцию восстановления. В PostgreSQL внешние ключи
// удаляются и затем создаются заново, после чего выравниваются
// последовательности.
func (e *Engine) disableIntegrity(ctx context.Context, conn *sql.Conn) (func(context.Context) error, error) {
	exec := func(stmts ...string) func(context.Context) error {
		return func(ctx context.Context) error {
			for _, s := range stmts {
				if _, err := conn.ExecContext(ctx, s); err != nil {
					return fmt.Errorf("%s: %w", s, err)
				}
			}
			return nil
		}
	}
	noop := func(context.Context) error { return nil }

	switch e.adapter.Dialect() {
	case dialect.MySQLFamily:
		if err := exec("set names 'utf8'", "set foreign_key_checks=0")(ctx); err != nil {
			return noop, err
		}
		return exec("set foreign_key_checks=1"), nil

	case dialect.H2:
		if err := exec("SET REFERENTIAL_INTEGRITY FALSE")(ctx); err != nil {
			return noop, err
		}
		return exec("SET REFERENTIAL_INTEGRITY TRUE"), nil

	case dialect.SQLite:
		if err := exec("PRAGMA foreign_keys=OFF")(ctx); err != nil {
			return noop, err
		}
		return exec("PRAGMA foreign_keys=ON"), nil

	case dialect.Postgres:
		if err := exec("SET CONSTRAINTS ALL DEFERRED")(ctx); err != nil {
			return noop, err
		}
		cm, ok := e.adapter.(adapters.ConstraintManager)
		if !ok {
			return noop, nil
		}
		saved, err := cm.DropForeignKeys(ctx)
		if err != nil {
			if rerr := cm.RestoreForeignKeys(ctx, saved); rerr != nil {
				log.Error().Err(rerr).Msg("failed to restore partially dropped foreign keys")
			}
			return noop, fmt.Errorf("failed to drop foreign keys: %w", err)
		}
		log.Debug().Int("constraints", len(saved)).Msg("foreign keys dropped")
		return func(ctx context.Context) error {
			return errors.Join(cm.RestoreForeignKeys(ctx, saved), cm.ResyncSequences(ctx))
		}, nil
	}

	log.Debug().Str("dialect", e.adapter.Dialect().String()).Msg("referential integrity toggle not supported")
	return noop, nil
}

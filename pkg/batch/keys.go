package batch

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ruslano69/tdtp-dbengine/pkg/dialect"
)

// ErrNoGeneratedKey ни одна стратегия не вернула сгенерированный ключ
var ErrNoGeneratedKey = errors.New("no generated key available")

// KeySource то, из чего стратегии получают ключ после вставки строки
type KeySource struct {
	// Result результат ExecContext, nil при вставке с RETURNING
	Result sql.Result
	// Returned ключ, прочитанный из RETURNING
	Returned *int64
	// QueryInt выполняет скалярный запрос на том же соединении, что и вставка
	QueryInt func(ctx context.Context, query string) (int64, error)
}

// KeyStrategy способ получения сгенерированного ключа
type KeyStrategy struct {
	Name    string
	Applies func(d dialect.Dialect) bool
	Fetch   func(ctx context.Context, src KeySource) (int64, error)
}

func anyDialect(dialect.Dialect) bool { return true }

func only(ds ...dialect.Dialect) func(dialect.Dialect) bool {
	return func(d dialect.Dialect) bool {
		for _, x := range ds {
			if x == d {
				return true
			}
		}
		return false
	}
}

func scalar(query string) func(ctx context.Context, src KeySource) (int64, error) {
	return func(ctx context.Context, src KeySource) (int64, error) {
		if src.QueryInt == nil {
			return 0, ErrNoGeneratedKey
		}
		return src.QueryInt(ctx, query)
	}
}

// KeyStrategies упорядоченный список стратегий. Побеждает первая
// применимая к диалекту стратегия, вернувшая ключ без ошибки.
var KeyStrategies = []KeyStrategy{
	{
		Name:    "driver",
		Applies: anyDialect,
		Fetch: func(_ context.Context, src KeySource) (int64, error) {
			if src.Returned != nil {
				return *src.Returned, nil
			}
			if src.Result == nil {
				return 0, ErrNoGeneratedKey
			}
			return src.Result.LastInsertId()
		},
	},
	{
		Name:    "last_insert_id",
		Applies: only(dialect.MySQLFamily, dialect.Vertica),
		Fetch:   scalar("SELECT LAST_INSERT_ID()"),
	},
	{
		Name:    "last_insert_rowid",
		Applies: only(dialect.SQLite),
		Fetch:   scalar("SELECT LAST_INSERT_ROWID()"),
	},
	{
		Name:    "identity",
		Applies: only(dialect.SQLServerFamily),
		Fetch:   scalar("SELECT @@IDENTITY"),
	},
}

// ResolveKey проходит KeyStrategies по порядку. Возвращает ключ и имя
// сработавшей стратегии.
func ResolveKey(ctx context.Context, d dialect.Dialect, src KeySource) (int64, string, error) {
	var lastErr error
	for _, s := range KeyStrategies {
		if !s.Applies(d) {
			continue
		}
		id, err := s.Fetch(ctx, src)
		if err == nil {
			return id, s.Name, nil
		}
		lastErr = err
	}
	if lastErr != nil && !errors.Is(lastErr, ErrNoGeneratedKey) {
		return 0, "", fmt.Errorf("%w: %v", ErrNoGeneratedKey, lastErr)
	}
	return 0, "", ErrNoGeneratedKey
}

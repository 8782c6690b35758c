package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

const foreignKeysQuery = `
	SELECT
		'ALTER TABLE ' || quote_ident(nspname) || '.' || quote_ident(relname) ||
		' ADD CONSTRAINT ' || quote_ident(conname) || ' ' || pg_get_constraintdef(pg_constraint.oid),
		'ALTER TABLE ' || quote_ident(nspname) || '.' || quote_ident(relname) ||
		' DROP CONSTRAINT ' || quote_ident(conname)
	FROM pg_constraint
	INNER JOIN pg_class ON conrelid = pg_class.oid
	INNER JOIN pg_namespace ON pg_namespace.oid = pg_class.relnamespace
	WHERE contype = 'f'
	ORDER BY nspname, relname, conname
`

// DropForeignKeys запоминает определения всех внешних ключей и удаляет их.
// Возвращает ADD CONSTRAINT для последующего RestoreForeignKeys.
func (a *Adapter) DropForeignKeys(ctx context.Context) ([]string, error) {
	rows, err := a.pool.Query(ctx, foreignKeysQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to read foreign keys: %w", err)
	}

	var adds, drops []string
	for rows.Next() {
		var add, drop string
		if err := rows.Scan(&add, &drop); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan foreign key: %w", err)
		}
		adds = append(adds, add)
		drops = append(drops, drop)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, drop := range drops {
		if _, err := a.pool.Exec(ctx, drop); err != nil {
			// уже удаленные ключи восстановим вызывающей стороной
			return adds[:i], fmt.Errorf("failed to drop foreign key (%s): %w", drop, err)
		}
	}

	log.Debug().Int("count", len(adds)).Msg("foreign keys dropped")
	return adds, nil
}

// RestoreForeignKeys восстанавливает внешние ключи. Ошибка одного ключа
// не останавливает остальные.
func (a *Adapter) RestoreForeignKeys(ctx context.Context, statements []string) error {
	var errs []error
	for _, stmt := range statements {
		if _, err := a.pool.Exec(ctx, stmt); err != nil {
			log.Error().Err(err).Str("statement", stmt).Msg("failed to restore foreign key")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// sequence последовательность вида <table>_id_seq и колонка, которую она питает
type sequence struct {
	name   string
	table  string
	column string
}

// ResyncSequences выставляет каждой последовательности <table>_id_seq,
// на которую ссылается default колонки таблицы, значение MAX(col)+1
func (a *Adapter) ResyncSequences(ctx context.Context) error {
	names, err := a.queryStrings(ctx, `
		SELECT sequence_name
		FROM information_schema.sequences
		WHERE sequence_catalog = current_database() AND sequence_schema = $1
	`, a.Schema())
	if err != nil {
		return fmt.Errorf("failed to list sequences: %w", err)
	}

	var seqs []sequence
	for _, name := range names {
		if !strings.HasSuffix(name, "_id_seq") {
			continue
		}
		table := strings.TrimSuffix(name, "_id_seq")
		var column string
		err := a.pool.QueryRow(ctx, `
			SELECT column_name
			FROM information_schema.columns
			WHERE table_catalog = current_database()
			  AND table_schema = $1
			  AND table_name = $2
			  AND column_default IN ($3, $4)
			LIMIT 1
		`, a.Schema(), table,
			fmt.Sprintf("nextval('%s'::regclass)", name),
			fmt.Sprintf("nextval('%s.%s'::regclass)", a.Schema(), name),
		).Scan(&column)
		if errors.Is(err, pgx.ErrNoRows) {
			log.Debug().Str("sequence", name).Msg("no table found for sequence, ignored")
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to resolve sequence %s: %w", name, err)
		}
		seqs = append(seqs, sequence{name: name, table: table, column: column})
	}

	var errs []error
	for _, s := range seqs {
		var maxID *int64
		query := fmt.Sprintf("SELECT MAX(%s) FROM %s", pgx.Identifier{s.column}.Sanitize(), pgx.Identifier{a.Schema(), s.table}.Sanitize())
		if err := a.pool.QueryRow(ctx, query).Scan(&maxID); err != nil {
			errs = append(errs, fmt.Errorf("sequence %s: %w", s.name, err))
			continue
		}
		next := int64(1)
		if maxID != nil {
			next = *maxID + 1
		}
		if _, err := a.pool.Exec(ctx, "SELECT setval($1::text::regclass, $2, false)", pgx.Identifier{a.Schema(), s.name}.Sanitize(), next); err != nil {
			errs = append(errs, fmt.Errorf("sequence %s: %w", s.name, err))
			continue
		}
		log.Debug().Str("sequence", s.name).Int64("next", next).Msg("sequence resynchronized")
	}
	return errors.Join(errs...)
}

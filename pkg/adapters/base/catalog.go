package base

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/ruslano69/tdtp-dbengine/pkg/dialect"
)

// QueryStrings выполняет запрос и собирает первую колонку всех строк
func QueryStrings(ctx context.Context, db *sql.DB, query string, args ...any) ([]string, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s sql.NullString
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		if s.Valid {
			out = append(out, s.String)
		}
	}
	return out, rows.Err()
}

// QueryDefaults выполняет запрос вида "SELECT column_name, column_default ..."
// и возвращает нормализованные значения по умолчанию (ключи в нижнем регистре)
func QueryDefaults(ctx context.Context, db *sql.DB, query string, args ...any) (map[string]string, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to read column defaults: %w", err)
	}
	defer rows.Close()

	defaults := make(map[string]string)
	for rows.Next() {
		var name string
		var def sql.NullString
		if err := rows.Scan(&name, &def); err != nil {
			return nil, err
		}
		if !def.Valid {
			continue
		}
		if v, ok := NormalizeDefault(def.String); ok {
			defaults[strings.ToLower(name)] = v
		}
	}
	return defaults, rows.Err()
}

// ContainsFold ищет имя таблицы без учета регистра
func ContainsFold(names []string, name string) bool {
	for _, n := range names {
		if strings.EqualFold(n, name) {
			return true
		}
	}
	return false
}

// NormalizeDefault приводит DEFAULT из каталога к значению литерала.
// Второй результат false, если default фактически NULL.
//
//	((0))                   -> 0       (MS SQL)
//	'abc'::character varying -> abc    (PostgreSQL)
//	'it''s'                 -> it's    (MariaDB)
//	N'abc'                  -> abc     (MS SQL)
//	b'1'                    -> 1       (MySQL BIT)
//	NULL, NULL::text        -> нет значения
func NormalizeDefault(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	for len(s) >= 2 && s[0] == '(' && s[len(s)-1] == ')' && balanced(s[1:len(s)-1]) {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	upper := strings.ToUpper(s)
	if upper == "NULL" || strings.HasPrefix(upper, "NULL::") {
		return "", false
	}

	if strings.HasPrefix(s, "N'") || strings.HasPrefix(s, "b'") || strings.HasPrefix(s, "B'") {
		s = s[1:]
	}

	if strings.HasPrefix(s, "'") {
		if end := closingQuote(s); end > 0 {
			return strings.ReplaceAll(s[1:end], "''", "'"), true
		}
	}

	// приведение типа у числовых и булевых литералов: 0::smallint
	if i := strings.Index(s, "::"); i > 0 && !strings.Contains(s, "(") {
		s = s[:i]
	}
	return s, true
}

func balanced(s string) bool {
	depth := 0
	inQuote := false
	for _, r := range s {
		switch {
		case r == '\'':
			inQuote = !inQuote
		case inQuote:
		case r == '(':
			depth++
		case r == ')':
			depth--
			if depth < 0 {
				return false
			}
		}
	}
	return depth == 0
}

func closingQuote(s string) int {
	for i := 1; i < len(s); i++ {
		if s[i] != '\'' {
			continue
		}
		if i+1 < len(s) && s[i+1] == '\'' {
			i++
			continue
		}
		return i
	}
	return -1
}

// QuoteIdentifier экранирует имя таблицы или колонки по правилам диалекта
func QuoteIdentifier(d dialect.Dialect, name string) string {
	switch d {
	case dialect.MySQLFamily:
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	case dialect.SQLServerFamily:
		return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
	default:
		return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
	}
}

package reload

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ruslano69/tdtp-dbengine/pkg/dialect"
)

// TruncateMode обработка truncate table при загрузке в PostgreSQL
type TruncateMode int

const (
	// TruncateAsDelete переписывает truncate table t в delete from t
	TruncateAsDelete TruncateMode = iota
	// TruncateStrip удаляет оператор
	TruncateStrip
	// TruncateKeep оставляет оператор без изменений
	TruncateKeep
)

func (m TruncateMode) String() string {
	switch m {
	case TruncateStrip:
		return "strip"
	case TruncateKeep:
		return "keep"
	default:
		return "delete"
	}
}

// ParseTruncateMode разбирает имя режима; пустая строка дает TruncateAsDelete
func ParseTruncateMode(s string) (TruncateMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "delete":
		return TruncateAsDelete, nil
	case "strip":
		return TruncateStrip, nil
	case "keep":
		return TruncateKeep, nil
	}
	return TruncateAsDelete, fmt.Errorf("unknown truncate mode %q", s)
}

var (
	reSafeUpdates = regexp.MustCompile(`(?is)^\s*set\s*sql_safe_updates\s*=\s*\d\s*;?\s*$`)
	reForeignKeys = regexp.MustCompile(`(?is)^\s*set\s+foreign_key_checks\s*=\s*(false|true|0|1)\s*;?\s*$`)
	reTruncate    = regexp.MustCompile(`(?is)^\s*truncate\s+table\s+(\S+?)\s*;?\s*$`)

	// устаревшее имя таблицы пользователей
	reUserInsert   = regexp.MustCompile(`(?is)^insert\s+into\s+user\s+`)
	reUserDelete   = regexp.MustCompile(`(?is)^delete\s+from\s+user(\s|;|$)`)
	reUserUpdate   = regexp.MustCompile(`(?is)^update\s+user\s+`)
	reUserTruncate = regexp.MustCompile(`(?is)^truncate\s+table\s+user;?$`)
)

// Rewriter приводит операторы дампа в формате MySQL к целевому диалекту
type Rewriter struct {
	dialect  dialect.Dialect
	truncate TruncateMode
}

// NewRewriter создает переписчик для диалекта
func NewRewriter(d dialect.Dialect, mode TruncateMode) *Rewriter {
	return &Rewriter{dialect: d, truncate: mode}
}

// Rewrite возвращает оператор для целевого диалекта.
// Пустая строка означает, что оператор выполнять не нужно.
func (w *Rewriter) Rewrite(stmt string) string {
	stmt = renameUsers(strings.TrimSpace(stmt))
	if !w.dialect.NeedsRewrite() {
		return stmt
	}
	if reSafeUpdates.MatchString(stmt) {
		return ""
	}
	if m := reForeignKeys.FindStringSubmatch(stmt); m != nil {
		return w.foreignKeys(isOn(m[1]))
	}
	if m := reTruncate.FindStringSubmatch(stmt); m != nil {
		return w.truncateTable(stmt, m[1])
	}

	switch w.dialect {
	case dialect.H2:
		return translate(stmt, h2Literals)
	case dialect.Postgres:
		return translate(stmt, postgresLiterals)
	case dialect.SQLite:
		return translate(stmt, sqliteLiterals)
	}
	return stmt
}

func isOn(v string) bool {
	return v == "1" || strings.EqualFold(v, "true")
}

func (w *Rewriter) foreignKeys(on bool) string {
	switch w.dialect {
	case dialect.H2:
		if on {
			return "SET REFERENTIAL_INTEGRITY TRUE"
		}
		return "SET REFERENTIAL_INTEGRITY FALSE"
	case dialect.Postgres:
		return "SET CONSTRAINTS ALL DEFERRED"
	case dialect.SQLite:
		if on {
			return "PRAGMA foreign_keys=ON"
		}
		return "PRAGMA foreign_keys=OFF"
	}
	return ""
}

func (w *Rewriter) truncateTable(stmt, table string) string {
	switch w.dialect {
	case dialect.SQLite:
		return "delete from " + table
	case dialect.Postgres:
		switch w.truncate {
		case TruncateStrip:
			return ""
		case TruncateKeep:
			return stmt
		default:
			return "delete from " + table
		}
	}
	return stmt
}

func renameUsers(stmt string) string {
	switch {
	case reUserInsert.MatchString(stmt):
		return reUserInsert.ReplaceAllString(stmt, "insert into users ")
	case reUserDelete.MatchString(stmt):
		return reUserDelete.ReplaceAllString(stmt, "delete from users$1")
	case reUserUpdate.MatchString(stmt):
		return reUserUpdate.ReplaceAllString(stmt, "update users ")
	case reUserTruncate.MatchString(stmt):
		return "truncate table users"
	}
	return stmt
}

// literalStyle правила перевода литералов MySQL в стандартный SQL
type literalStyle struct {
	hex     func(h string) string
	cr      string
	nul     string // замена \0 внутри кавычек; сырой NUL обрывает разбор SQL
	bareHex bool   // 0xABCD вне кавычек превращается в ABCD
}

var (
	h2Literals = literalStyle{
		hex:     func(h string) string { return "X'" + h + "'" },
		cr:      "\n",
		nul:     "'||CHAR(0)||'",
		bareHex: true,
	}
	postgresLiterals = literalStyle{
		hex: func(h string) string { return `E'\\x` + h + "'" },
		cr:  "\r",
	}
	sqliteLiterals = literalStyle{
		hex: func(h string) string { return "X'" + h + "'" },
		cr:  "\r",
		nul: "'||char(0)||'",
	}
)

// translate переписывает строковые и двоичные литералы: экранирование
// обратной косой чертой заменяется стандартным удвоением кавычки,
// X'..' и unhex('..') переводятся в двоичную форму диалекта.
func translate(stmt string, st literalStyle) string {
	var b strings.Builder
	b.Grow(len(stmt) + 16)
	inQuotes := false
	n := len(stmt)
	for i := 0; i < n; i++ {
		c := stmt[i]
		if inQuotes {
			switch c {
			case '\\':
				if i+1 >= n {
					b.WriteByte(c)
					continue
				}
				i++
				switch stmt[i] {
				case 'n':
					b.WriteByte('\n')
				case 'r':
					if i+2 < n && stmt[i+1] == '\\' && stmt[i+2] == 'n' {
						i += 2
						b.WriteByte('\n')
					} else {
						b.WriteString(st.cr)
					}
				case '0':
					b.WriteString(st.nul)
				case 'Z':
					b.WriteByte(0x1a)
				case 't':
					b.WriteByte('\t')
				case '\'':
					b.WriteString("''")
				default:
					b.WriteByte(stmt[i])
				}
			case '\'':
				if i+1 < n && stmt[i+1] == '\'' {
					b.WriteString("''")
					i++
					continue
				}
				inQuotes = false
				b.WriteByte(c)
			default:
				b.WriteByte(c)
			}
			continue
		}

		if i == 0 || !isIdent(stmt[i-1]) {
			if h, end, ok := hexLiteral(stmt, i); ok {
				b.WriteString(st.hex(h))
				i = end
				continue
			}
			if st.bareHex && (c == '0') && i+2 < n && (stmt[i+1] == 'x' || stmt[i+1] == 'X') && isHex(stmt[i+2]) {
				j := i + 2
				for j < n && isHex(stmt[j]) {
					j++
				}
				b.WriteString(stmt[i+2 : j])
				i = j - 1
				continue
			}
		}
		if c == '\'' {
			inQuotes = true
		}
		b.WriteByte(c)
	}
	return b.String()
}

// hexLiteral распознает X'..' и unhex('..') с позиции i.
// Возвращает шестнадцатеричные цифры и индекс последнего символа литерала.
func hexLiteral(s string, i int) (string, int, bool) {
	start := -1
	switch {
	case (s[i] == 'X' || s[i] == 'x') && i+1 < len(s) && s[i+1] == '\'':
		start = i + 2
	case len(s)-i >= 7 && strings.EqualFold(s[i:i+7], "unhex('"):
		start = i + 7
	default:
		return "", 0, false
	}
	j := start
	for j < len(s) && isHex(s[j]) {
		j++
	}
	if j >= len(s) || s[j] != '\'' {
		return "", 0, false
	}
	end := j
	if s[i] != 'X' && s[i] != 'x' {
		if j+1 >= len(s) || s[j+1] != ')' {
			return "", 0, false
		}
		end = j + 1
	}
	return s[start:j], end, true
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func isIdent(c byte) bool {
	return c == '_' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// Package security проверяет запросы, которые dbengine выполняет по
// командной строке. По умолчанию --query только читает данные.
package security

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/ruslano69/tdtp-dbengine/pkg/reload"
)

// ErrNotReadOnly запрос может изменить данные или схему
var ErrNotReadOnly = errors.New("query is not read-only")

// leading допустимые первые слова читающего запроса
var leading = map[string]bool{
	"SELECT": true, "WITH": true, "VALUES": true,
	"SHOW": true, "EXPLAIN": true, "DESCRIBE": true, "DESC": true,
}

// forbidden слова, которые не встречаются в читающем запросе вне литералов
var forbidden = map[string]bool{
	"INSERT": true, "UPDATE": true, "DELETE": true, "TRUNCATE": true, "MERGE": true, "UPSERT": true,
	"DROP": true, "CREATE": true, "ALTER": true, "RENAME": true,
	"GRANT": true, "REVOKE": true,
	"EXEC": true, "EXECUTE": true, "CALL": true,
	"PRAGMA": true, "ATTACH": true, "DETACH": true, "VACUUM": true,
	"BEGIN": true, "COMMIT": true, "ROLLBACK": true,
	"INTO": true, "LOCK": true, "COPY": true,
}

// QueryGuard пропускает только один читающий оператор, если запись не разрешена
type QueryGuard struct {
	allowWrites bool
}

// NewQueryGuard создает проверку; allowWrites отключает ее
func NewQueryGuard(allowWrites bool) *QueryGuard {
	return &QueryGuard{allowWrites: allowWrites}
}

// AllowWrites true, если проверка отключена
func (g *QueryGuard) AllowWrites() bool {
	return g == nil || g.allowWrites
}

// Check возвращает ErrNotReadOnly для изменяющих запросов. nil guard
// пропускает все.
func (g *QueryGuard) Check(query string) error {
	if g.AllowWrites() {
		return nil
	}

	stmts := reload.Split(query + ";")
	switch {
	case len(stmts) == 0:
		return fmt.Errorf("empty query")
	case len(stmts) > 1:
		return fmt.Errorf("%w: %d statements", ErrNotReadOnly, len(stmts))
	}

	words := Keywords(stmts[0])
	if len(words) == 0 {
		return fmt.Errorf("empty query")
	}
	if !leading[words[0]] {
		return fmt.Errorf("%w: %s statement", ErrNotReadOnly, words[0])
	}
	for _, w := range words[1:] {
		if forbidden[w] {
			return fmt.Errorf("%w: %s", ErrNotReadOnly, w)
		}
	}
	return nil
}

// Keywords слова запроса в верхнем регистре без строковых литералов,
// идентификаторов в кавычках и комментариев. Содержимое /*! */ (MySQL
// выполняет его) считается кодом.
func Keywords(query string) []string {
	var (
		words []string
		word  strings.Builder
	)
	flush := func() {
		if word.Len() > 0 {
			words = append(words, strings.ToUpper(word.String()))
			word.Reset()
		}
	}

	rs := []rune(query)
	for i := 0; i < len(rs); i++ {
		r := rs[i]
		switch {
		case r == '\'' || r == '"' || r == '`' || r == '[':
			flush()
			i = skipQuoted(rs, i)
		case r == '-' && i+1 < len(rs) && rs[i+1] == '-':
			flush()
			for i < len(rs) && rs[i] != '\n' {
				i++
			}
		case r == '/' && i+1 < len(rs) && rs[i+1] == '*':
			flush()
			if i+2 < len(rs) && rs[i+2] == '!' {
				i += 2
				continue
			}
			end := strings.Index(string(rs[i+2:]), "*/")
			if end < 0 {
				return words
			}
			i += 2 + len([]rune(string(rs[i+2:])[:end])) + 1
		case unicode.IsLetter(r) || r == '_' || (word.Len() > 0 && unicode.IsDigit(r)):
			word.WriteRune(r)
		default:
			flush()
		}
	}
	flush()
	return words
}

// skipQuoted возвращает индекс закрывающей кавычки; удвоенная кавычка и
// \ внутри литерала экранируют
func skipQuoted(rs []rune, start int) int {
	closing := rs[start]
	if closing == '[' {
		closing = ']'
	}
	for i := start + 1; i < len(rs); i++ {
		switch {
		case rs[i] == '\\' && rs[start] == '\'':
			i++
		case rs[i] == closing:
			if i+1 < len(rs) && rs[i+1] == closing && closing != ']' {
				i++
				continue
			}
			return i
		}
	}
	return len(rs)
}

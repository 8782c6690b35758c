// Package dialect определяет семейства SQL-движков, с которыми работает движок
// переноса данных. Диалект определяется один раз при открытии соединения
// и далее передается явно.
package dialect

import (
	"strconv"
	"strings"
)

// Dialect семейство SQL-движков
type Dialect int

const (
	Unknown Dialect = iota
	MySQLFamily
	Postgres
	H2
	SQLite
	SQLServerFamily
	Vertica
)

// DefaultFetchSize размер выборки для движков без потокового режима
const DefaultFetchSize = 30000

// StreamingFetchSize маркер потокового чтения (MySQL-семейство)
const StreamingFetchSize = 0

var names = map[Dialect]string{
	Unknown:         "unknown",
	MySQLFamily:     "mysql",
	Postgres:        "postgres",
	H2:              "h2",
	SQLite:          "sqlite",
	SQLServerFamily: "sqlserver",
	Vertica:         "vertica",
}

func (d Dialect) String() string {
	if n, ok := names[d]; ok {
		return n
	}
	return "unknown"
}

// порядок проверки важен: "postgres" встречается в "postgresql",
// "mssql" не должен совпасть с "mysql"
var markers = []struct {
	substr  string
	dialect Dialect
}{
	{"mysql", MySQLFamily},
	{"mariadb", MySQLFamily},
	{"postgres", Postgres},
	{"pgx", Postgres},
	{"vertica", Vertica},
	{"sqlserver", SQLServerFamily},
	{"mssql", SQLServerFamily},
	{"sybase", SQLServerFamily},
	{"sqlite", SQLite},
	{"h2", H2},
}

// Resolve определяет диалект по имени драйвера и строке подключения.
// Имя драйвера имеет приоритет: DSN может содержать произвольный текст.
func Resolve(driver, url string) Dialect {
	if d := match(strings.ToLower(driver)); d != Unknown {
		return d
	}
	return match(strings.ToLower(url))
}

func match(s string) Dialect {
	if s == "" {
		return Unknown
	}
	for _, m := range markers {
		if m.substr == "h2" {
			// h2 слишком короткий маркер, ищем его как jdbc/odbc префикс или имя драйвера
			if s == "h2" || strings.Contains(s, ":h2:") || strings.HasPrefix(s, "h2:") || strings.Contains(s, "driver=h2") {
				return H2
			}
			continue
		}
		if strings.Contains(s, m.substr) {
			return m.dialect
		}
	}
	return Unknown
}

// FetchSize возвращает подсказку размера выборки для Find.
// Для MySQL-семейства возвращается StreamingFetchSize.
func (d Dialect) FetchSize() int {
	if d == MySQLFamily {
		return StreamingFetchSize
	}
	return DefaultFetchSize
}

// Placeholder возвращает позиционный параметр с номером n (с 1)
func (d Dialect) Placeholder(n int) string {
	switch d {
	case Postgres:
		return "$" + strconv.Itoa(n)
	default:
		return "?"
	}
}

// Placeholders возвращает список из n параметров через запятую
func (d Dialect) Placeholders(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = d.Placeholder(i + 1)
	}
	return strings.Join(parts, ",")
}

// SupportsReturning сообщает, умеет ли движок INSERT ... RETURNING
func (d Dialect) SupportsReturning() bool {
	return d == Postgres
}

// NeedsRewrite true для целевых диалектов, в которые переписывается дамп.
// MySQL-формат является исходным; SQLite не понимает экранирование
// обратной косой чертой и TRUNCATE.
func (d Dialect) NeedsRewrite() bool {
	return d == H2 || d == Postgres || d == SQLite
}

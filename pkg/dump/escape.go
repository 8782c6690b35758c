package dump

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ruslano69/tdtp-dbengine/pkg/coerce"
	"github.com/ruslano69/tdtp-dbengine/pkg/core/schema"
)

// EscapeString экранирует строку для литерала в одинарных кавычках
// в формате mysqldump: NUL, LF, CR, 0x1A, обратная косая черта и кавычка.
func EscapeString(s string) string {
	if !strings.ContainsAny(s, "\x00\n\r\x1a\\'") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 8)
	for _, r := range s {
		switch r {
		case 0:
			b.WriteString(`\0`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case 0x1a:
			b.WriteString(`\Z`)
		case '\\':
			b.WriteString(`\\`)
		case '\'':
			b.WriteString(`\'`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Quote строковый литерал с экранированием
func Quote(s string) string {
	return "'" + EscapeString(s) + "'"
}

// HexLiteral двоичное значение в виде X'..'
func HexLiteral(b []byte) string {
	return "X'" + hex.EncodeToString(b) + "'"
}

// Literal текст SQL-литерала для значения колонки с тегом typ.
// Второй результат false означает NULL.
func Literal(v any, typ schema.DataType) (string, bool) {
	if v != nil && typ == schema.TypeBoolean {
		return strconv.FormatBool(isTrue(v)), true
	}
	switch val := v.(type) {
	case nil:
		return "", false
	case bool:
		return strconv.FormatBool(val), true
	case time.Time:
		return Quote(formatTime(val, typ)), true
	case []byte:
		if schema.IsBinaryType(typ) {
			return HexLiteral(val), true
		}
		return Literal(string(val), typ)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32), true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(val), true
	case string:
		switch {
		case schema.IsNumericType(typ) && isNumber(val):
			return val, true
		case schema.IsBinaryType(typ):
			return HexLiteral([]byte(val)), true
		}
		return Quote(val), true
	}
	return Quote(fmt.Sprint(v)), true
}

func formatTime(t time.Time, typ schema.DataType) string {
	switch {
	case typ == schema.TypeDate:
		return t.Format(coerce.DateLayout)
	case typ == schema.TypeTime || (typ != schema.TypeTimestamp && coerce.IsTimeOfDay(t)):
		return t.Format(coerce.TimeLayout)
	default:
		return t.Format(coerce.DateTimeLayout)
	}
}

// isTrue значение булевой колонки; BIT(1) приходит одним байтом
func isTrue(v any) bool {
	if b, ok := v.([]byte); ok && len(b) == 1 && b[0] <= 1 {
		return b[0] == 1
	}
	return coerce.IsYes(v)
}

func isNumber(s string) bool {
	_, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return err == nil
}

// isDefault true, если значение совпадает со значением по умолчанию колонки
// и может быть опущено в INSERT
func isDefault(v any, typ schema.DataType, def string) bool {
	switch {
	case v == nil:
		return false
	case typ == schema.TypeBoolean:
		return isTrue(v) == coerce.IsYes(def)
	case schema.IsNumericType(typ):
		a, ok1 := toFloat(v)
		b, err := strconv.ParseFloat(strings.TrimSpace(def), 64)
		return ok1 && err == nil && a == b
	case schema.IsTextType(typ):
		switch s := v.(type) {
		case string:
			return s == def
		case []byte:
			return string(s) == def
		}
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case []byte:
		f, err := strconv.ParseFloat(string(n), 64)
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

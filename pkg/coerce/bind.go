package coerce

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ruslano69/tdtp-dbengine/pkg/core/schema"
)

// ErrWriteTypeMismatch значение не удалось разобрать как число для числовой колонки
var ErrWriteTypeMismatch = errors.New("write type mismatch")

var yesPattern = regexp.MustCompile(`(?i)^(y|yes|t|true|on|1)$`)

// IsYes true для y, yes, t, true, on, 1 в любом регистре
func IsYes(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	}
	s, ok := ToText(value, false, "")
	if !ok {
		return false
	}
	return yesPattern.MatchString(strings.TrimSpace(s))
}

// Bind готовит значение для позиционного параметра колонки с тегом typ.
//
// Пустая строка для нетекстовой колонки становится NULL. DATE и TIMESTAMP
// при неудачном разборе передаются исходной строкой, чтобы кривая дата не
// останавливала массовую загрузку. Ошибка возвращается только для
// синтаксически неверного числа.
func Bind(value any, typ schema.DataType) (any, error) {
	if value == nil {
		return nil, nil
	}

	if s, isString := value.(string); isString && !schema.IsTextType(typ) && strings.TrimSpace(s) == "" {
		return nil, nil
	}

	switch typ {
	case schema.TypeBoolean:
		return IsYes(value), nil

	case schema.TypeDate:
		if t, ok := value.(time.Time); ok {
			return t, nil
		}
		text := Text(value)
		if t, ok := ParseDate(text); ok {
			return t, nil
		}
		if t, ok := ParseDateTime(text); ok {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
		return text, nil

	case schema.TypeTimestamp:
		if t, ok := value.(time.Time); ok {
			return t, nil
		}
		text := Text(value)
		if t, ok := ParseDateTime(text); ok {
			return t, nil
		}
		if t, ok := ParseDate(text); ok {
			return t, nil
		}
		return text, nil

	case schema.TypeFloat, schema.TypeDouble:
		if f, ok := asFloat(value); ok {
			return f, nil
		}
		text := strings.TrimSpace(Text(value))
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, mismatch(typ, text)
		}
		return f, nil

	case schema.TypeSmallint:
		if i, ok := asInt(value); ok {
			return int16(i), nil
		}
		text := strings.TrimSpace(Text(value))
		i, err := strconv.ParseInt(text, 10, 16)
		if err != nil {
			return nil, mismatch(typ, text)
		}
		return int16(i), nil

	case schema.TypeInteger, schema.TypeBigint:
		if i, ok := asInt(value); ok {
			return i, nil
		}
		text := strings.TrimSpace(Text(value))
		i, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, mismatch(typ, text)
		}
		return i, nil

	case schema.TypeNumeric:
		if i, ok := asInt(value); ok {
			return i, nil
		}
		if f, ok := asFloat(value); ok {
			return f, nil
		}
		text := strings.TrimSpace(Text(value))
		if i, err := strconv.ParseInt(text, 10, 64); err == nil {
			return i, nil
		}
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, mismatch(typ, text)
		}
		return f, nil

	case schema.TypeBinary:
		switch v := value.(type) {
		case []byte:
			b := make([]byte, len(v))
			copy(b, v)
			return b, nil
		case string:
			// движки, хранящие LOB как текст
			return v, nil
		}
		return Text(value), nil

	default:
		if b, ok := value.([]byte); ok {
			return string(b), nil
		}
		return Text(value), nil
	}
}

func mismatch(typ schema.DataType, text string) error {
	return fmt.Errorf("%w: cannot bind %q to %s column", ErrWriteTypeMismatch, text, typ)
}

func asInt(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float32:
		return float64(x), true
	case float64:
		return x, true
	}
	if i, ok := asInt(v); ok {
		return float64(i), true
	}
	return 0, false
}

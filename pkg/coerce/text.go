// Package coerce преобразует значения между однозначной текстовой формой
// и нативными типами колонок.
package coerce

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultNumericFormat формат вещественных чисел: минимум один, максимум восемь знаков после точки
	DefaultNumericFormat = "0.0#######"

	DateTimeLayout = "2006-01-02 15:04:05"
	DateLayout     = "2006-01-02"
	TimeLayout     = "15:04:05"
)

// ToText возвращает значение в однозначной текстовой форме.
// Второй результат false означает NULL.
//
// Целые числа выводятся как есть, вещественные по numericFormat
// (по умолчанию DefaultNumericFormat), bool как "1"/"0", байтовый срез
// как его длина. Строки при quoted оборачиваются в одинарные кавычки.
func ToText(value any, quoted bool, numericFormat string) (string, bool) {
	var s string
	switch v := value.(type) {
	case nil:
		return "", false
	case time.Time:
		layout := DateTimeLayout
		if IsTimeOfDay(v) {
			layout = TimeLayout
		}
		s = v.Format(layout)
		if quoted {
			s = "'" + s + "'"
		}
		return s, true
	case int:
		s = strconv.FormatInt(int64(v), 10)
	case int8:
		s = strconv.FormatInt(int64(v), 10)
	case int16:
		s = strconv.FormatInt(int64(v), 10)
	case int32:
		s = strconv.FormatInt(int64(v), 10)
	case int64:
		s = strconv.FormatInt(v, 10)
	case uint:
		s = strconv.FormatUint(uint64(v), 10)
	case uint8:
		s = strconv.FormatUint(uint64(v), 10)
	case uint16:
		s = strconv.FormatUint(uint64(v), 10)
	case uint32:
		s = strconv.FormatUint(uint64(v), 10)
	case uint64:
		s = strconv.FormatUint(v, 10)
	case float32:
		s = FormatNumber(float64(v), numericFormat)
	case float64:
		s = FormatNumber(v, numericFormat)
	case bool:
		if v {
			s = "1"
		} else {
			s = "0"
		}
	case []byte:
		s = strconv.Itoa(len(v))
	case string:
		s = v
		if quoted {
			s = "'" + s + "'"
		}
	default:
		s = fmt.Sprint(v)
		if quoted {
			s = "'" + s + "'"
		}
	}
	return s, true
}

// Text упрощенная форма ToText без кавычек; NULL дает пустую строку
func Text(value any) string {
	s, _ := ToText(value, false, "")
	return s
}

// IsTimeOfDay true для time.Time без даты: драйверы возвращают TIME колонки
// с нулевой датой (0000-01-01 или 0001-01-01).
func IsTimeOfDay(t time.Time) bool {
	y, m, d := t.Date()
	return (y == 0 || y == 1) && m == time.January && d == 1
}

// FormatNumber форматирует число по шаблону вида "0.0#######":
// нули после точки задают минимум знаков, решетки дополнительный максимум.
func FormatNumber(f float64, pattern string) string {
	if pattern == "" {
		pattern = DefaultNumericFormat
	}
	minDec, maxDec := decimalsOf(pattern)
	s := strconv.FormatFloat(f, 'f', maxDec, 64)
	if maxDec == 0 {
		return s
	}
	dot := strings.IndexByte(s, '.')
	end := len(s)
	for end > dot+1+minDec && s[end-1] == '0' {
		end--
	}
	if end == dot+1 {
		end = dot
	}
	return s[:end]
}

func decimalsOf(pattern string) (minDec, maxDec int) {
	dot := strings.IndexByte(pattern, '.')
	if dot < 0 {
		return 0, 0
	}
	for _, r := range pattern[dot+1:] {
		switch r {
		case '0':
			minDec++
			maxDec++
		case '#':
			maxDec++
		}
	}
	return minDec, maxDec
}

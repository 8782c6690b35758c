package coerce

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	integerLiteral = regexp.MustCompile(`^[-+]?\d{1,18}$`)
	floatLiteral   = regexp.MustCompile(`^[-+]?(\d+\.\d*|\.\d+|\d+)([eE][-+]?\d+)?$`)
)

// Infer определяет тип значения из плоского файла по его виду:
// целое, вещественное или текст (в том числе ISO дата, которая остается
// строкой). Ведущие нули сохраняют текст: "007" это код, а не число.
func Infer(raw string) any {
	s := strings.TrimSpace(raw)
	if s == "" {
		return s
	}
	if integerLiteral.MatchString(s) && !hasLeadingZero(s) {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i
		}
	}
	if floatLiteral.MatchString(s) && !hasLeadingZero(s) {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return s
}

func hasLeadingZero(s string) bool {
	s = strings.TrimLeft(s, "+-")
	return len(s) > 1 && s[0] == '0' && s[1] != '.'
}

package coerce

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var months = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

type datePattern struct {
	re    *regexp.Regexp
	parse func(parts []string) (y int, m time.Month, d int, ok bool)
}

// шаблоны проверяются по порядку, первый совпавший побеждает
var datePatterns = []datePattern{
	// 1980-06-21
	{regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})$`), ymd(1, 2, 3)},
	// 19800621
	{regexp.MustCompile(`^(\d{4})(\d{2})(\d{2})$`), ymd(1, 2, 3)},
	// 800621
	{regexp.MustCompile(`^(\d{2})(\d{2})(\d{2})$`), ymd(1, 2, 3)},
	// Jun 21, 1980 / June 21 1980
	{regexp.MustCompile(`^([a-z]{3,9}) (\d{1,2}),? (\d{4})$`), nameDY(1, 2, 3)},
	// 21-Jun-1980 / 21 Jun 80 / 21/Jun/1980
	{regexp.MustCompile(`^(\d{1,2})[- /]([a-z]{3,9})[- /](\d{2}|\d{4})$`), nameDY(2, 1, 3)},
	// 21Jun1980 / 21Jun80
	{regexp.MustCompile(`^(\d{1,2})([a-z]{3,9})(\d{2}|\d{4})$`), nameDY(2, 1, 3)},
	// Sat 21-Jun-1980 / Saturday 21-June-80
	{regexp.MustCompile(`^[a-z]{3,9} (\d{1,2})-([a-z]{3,9})-(\d{2}|\d{4})$`), nameDY(2, 1, 3)},
	// Saturday June 21, 1980
	{regexp.MustCompile(`^[a-z]{5,9} ([a-z]{3,9}) (\d{1,2}),? (\d{4})$`), nameDY(1, 2, 3)},
	// 06/21/1980 (американский порядок)
	{regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{2}|\d{4})$`), ymd(3, 1, 2)},
	// 21.06.1980
	{regexp.MustCompile(`^(\d{1,2})\.(\d{1,2})\.(\d{2}|\d{4})$`), ymd(3, 2, 1)},
	// 1980-173 (юлианский день)
	{regexp.MustCompile(`^(\d{4})-(\d{1,3})$`), julian},
}

// ParseDate разбирает дату в одном из поддерживаемых форматов.
// Время отбрасывается, результат в UTC.
func ParseDate(s string) (time.Time, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return time.Time{}, false
	}
	for _, p := range datePatterns {
		parts := p.re.FindStringSubmatch(s)
		if parts == nil {
			continue
		}
		y, m, d, ok := p.parse(parts)
		if !ok {
			return time.Time{}, false
		}
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
	}
	return time.Time{}, false
}

var (
	timeHMS    = regexp.MustCompile(`^(\d{1,2})[:. ](\d{1,2})(?:[:. ](\d{1,2}))?(?:\.\d+)?\s*(am|pm)?$`)
	timeDigits = regexp.MustCompile(`^(\d{1,6})$`)
)

// ParseTime разбирает время суток: 10:20:30, 10:20, 102030, 10.20 pm
func ParseTime(s string) (h, m, sec int, ok bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if parts := timeDigits.FindStringSubmatch(s); parts != nil {
		digits := strings.Repeat("0", 6-len(parts[1])) + parts[1]
		h, _ = strconv.Atoi(digits[0:2])
		m, _ = strconv.Atoi(digits[2:4])
		sec, _ = strconv.Atoi(digits[4:6])
		return h, m, sec, validClock(h, m, sec)
	}
	parts := timeHMS.FindStringSubmatch(s)
	if parts == nil {
		return 0, 0, 0, false
	}
	h, _ = strconv.Atoi(parts[1])
	m, _ = strconv.Atoi(parts[2])
	if parts[3] != "" {
		sec, _ = strconv.Atoi(parts[3])
	}
	if parts[4] == "pm" && h < 12 {
		h += 12
	}
	return h, m, sec, validClock(h, m, sec)
}

// ParseDateTime разбирает дату со временем в форме yyyyMMddHHmmss или
// "<дата> <время>", где время отделено последним пробелом.
func ParseDateTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	var datePart, timePart string
	switch {
	case len(s) == 14 && isDigits(s) && strings.Trim(s, "0") != "":
		datePart, timePart = s[:8], s[8:]
	case strings.Contains(s, " "):
		i := strings.LastIndexByte(s, ' ')
		datePart, timePart = s[:i], s[i+1:]
	case strings.Contains(s, "T"):
		i := strings.IndexByte(s, 'T')
		datePart, timePart = s[:i], strings.TrimSuffix(s[i+1:], "Z")
	default:
		return time.Time{}, false
	}

	d, ok := ParseDate(datePart)
	if !ok {
		return time.Time{}, false
	}
	h, m, sec, ok := ParseTime(timePart)
	if !ok {
		return time.Time{}, false
	}
	return time.Date(d.Year(), d.Month(), d.Day(), h, m, sec, 0, time.UTC), true
}

// IsISODate true для yyyy-MM-dd и yyyy-MM-dd HH:mm:ss
func IsISODate(s string) bool {
	if _, err := time.Parse(DateLayout, s); err == nil {
		return true
	}
	_, err := time.Parse(DateTimeLayout, s)
	return err == nil
}

func ymd(yi, mi, di int) func([]string) (int, time.Month, int, bool) {
	return func(p []string) (int, time.Month, int, bool) {
		y := year(p[yi])
		m, _ := strconv.Atoi(p[mi])
		d, _ := strconv.Atoi(p[di])
		return y, time.Month(m), d, validDate(y, m, d)
	}
}

func nameDY(mi, di, yi int) func([]string) (int, time.Month, int, bool) {
	return func(p []string) (int, time.Month, int, bool) {
		name := p[mi]
		if len(name) < 3 {
			return 0, 0, 0, false
		}
		m, ok := months[name[:3]]
		if !ok {
			return 0, 0, 0, false
		}
		y := year(p[yi])
		d, _ := strconv.Atoi(p[di])
		return y, m, d, validDate(y, int(m), d)
	}
}

func julian(p []string) (int, time.Month, int, bool) {
	y, _ := strconv.Atoi(p[1])
	doy, _ := strconv.Atoi(p[2])
	if doy < 1 || doy > 366 {
		return 0, 0, 0, false
	}
	t := time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, doy-1)
	return t.Year(), t.Month(), t.Day(), true
}

// двузначный год относится к текущему столетию
func year(s string) int {
	y, _ := strconv.Atoi(s)
	if len(s) == 2 {
		now := time.Now().Year()
		y += now - now%100
	}
	return y
}

func validDate(y, m, d int) bool {
	if m < 1 || m > 12 || d < 1 {
		return false
	}
	return d <= time.Date(y, time.Month(m)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func validClock(h, m, s int) bool {
	return h >= 0 && h < 24 && m >= 0 && m < 60 && s >= 0 && s < 60
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

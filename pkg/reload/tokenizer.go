package reload

import "strings"

// Tokenizer делит поток дампа на операторы по ';' вне кавычек.
// Состояние хранится в самом объекте; один Tokenizer на один поток.
type Tokenizer struct {
	buf      strings.Builder
	inQuotes bool
	inEscape bool
}

// Feed принимает очередной символ. Если символ завершил оператор,
// возвращает его текст без терминатора и true.
func (t *Tokenizer) Feed(r rune) (string, bool) {
	switch r {
	case '\'':
		if !t.inEscape {
			t.inQuotes = !t.inQuotes
		} else {
			t.inEscape = false
		}

	case '\\':
		if t.inQuotes {
			t.inEscape = !t.inEscape
		}

	case ';':
		if t.inQuotes {
			t.inEscape = false
			break
		}
		stmt := strings.TrimSpace(t.buf.String())
		t.reset()
		if stmt == "" || isBlockComment(stmt) {
			return "", false
		}
		return stmt, true

	case '\n':
		if !t.inQuotes {
			pending := strings.TrimSpace(t.buf.String())
			if pending == "" || isBlockComment(pending) {
				t.reset()
				return "", false
			}
		}
		t.inEscape = false

	default:
		t.inEscape = false
	}

	t.buf.WriteRune(r)
	return "", false
}

// Pending незавершенный текст в буфере (без терминатора в конце потока)
func (t *Tokenizer) Pending() string {
	return strings.TrimSpace(t.buf.String())
}

// Reset сбрасывает состояние
func (t *Tokenizer) Reset() {
	t.reset()
}

func (t *Tokenizer) reset() {
	t.buf.Reset()
	t.inQuotes = false
	t.inEscape = false
}

// isBlockComment true для текста, целиком состоящего из одного /* */
// комментария, включая /*! ... */
func isBlockComment(s string) bool {
	return strings.HasPrefix(s, "/*") && strings.HasSuffix(s, "*/") && strings.Index(s, "*/") == len(s)-2
}

// Split делит текст на операторы
func Split(text string) []string {
	var (
		t   Tokenizer
		out []string
	)
	for _, r := range text {
		if stmt, ok := t.Feed(r); ok {
			out = append(out, stmt)
		}
	}
	return out
}

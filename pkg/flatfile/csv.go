package flatfile

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/ruslano69/tdtp-dbengine/pkg/coerce"
)

// DelimitedTable таблица, в которую загружается CSV/TSV
const DelimitedTable = "sheet1"

// CellName имя колонки для ячейки с номером n (с 0): cola..colz, colaa..colzz,
// colaaa... как буквы колонок Excel
func CellName(n int) string {
	var letters []byte
	for n++; n > 0; n = (n - 1) / 26 {
		letters = append(letters, byte('a'+(n-1)%26))
	}
	slices.Reverse(letters)
	return "col" + string(letters)
}

func cellNames(n int) []string {
	names := make([]string, 0, n+1)
	names = append(names, SizeColumn)
	for i := 0; i < n; i++ {
		names = append(names, CellName(i))
	}
	return names
}

// ResolveEncoding находит кодировку по IANA имени; пусто - DefaultEncoding
func ResolveEncoding(name string) (encoding.Encoding, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return charmap.ISO8859_1, nil
	}
	switch strings.ToLower(name) {
	case "utf-8", "utf8":
		return unicode.UTF8, nil
	case "iso-8859-1", "latin1", "iso8859-1":
		return charmap.ISO8859_1, nil
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil, fmt.Errorf("unknown encoding %q: %w", name, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("unsupported encoding %q", name)
	}
	return enc, nil
}

// recordReader отдает записи файла по одной; nil, io.EOF в конце
type recordReader interface {
	Read() ([]string, error)
}

// plainReader режет строки по разделителю без обработки кавычек
type plainReader struct {
	scanner   *bufio.Scanner
	delimiter string
}

func (r *plainReader) Read() ([]string, error) {
	for r.scanner.Scan() {
		line := strings.TrimRight(r.scanner.Text(), "\r")
		if line == "" {
			continue
		}
		return strings.Split(line, r.delimiter), nil
	}
	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// eachRecord читает файл целиком и вызывает fn для каждой непустой записи
func eachRecord(path string, delimiter rune, enc encoding.Encoding, quotes bool, fn func([]string) error) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	in := transform.NewReader(file, enc.NewDecoder())

	var rr recordReader
	if quotes {
		cr := csv.NewReader(in)
		cr.Comma = delimiter
		cr.FieldsPerRecord = -1
		cr.LazyQuotes = true
		cr.ReuseRecord = true
		rr = cr
	} else {
		sc := bufio.NewScanner(in)
		sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
		rr = &plainReader{scanner: sc, delimiter: string(delimiter)}
	}

	for line := 1; ; line++ {
		rec, err := rr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("record %d: %w", line, err)
		}
		if isBlank(rec) {
			continue
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// loadDelimited загружает CSV/TSV в таблицу sheet1 за два прохода:
// первый находит самую широкую запись, второй вставляет данные
func loadDelimited(ctx context.Context, l *loader, path string, delimiter rune, encName string, quotes bool) error {
	enc, err := ResolveEncoding(encName)
	if err != nil {
		return err
	}

	width := 0
	err = eachRecord(path, delimiter, enc, quotes, func(rec []string) error {
		width = max(width, len(rec))
		return nil
	})
	if err != nil {
		return err
	}
	if width == 0 {
		return ErrEmptyFile
	}

	if err := l.create(ctx, DelimitedTable, cellNames(width)); err != nil {
		return err
	}

	return eachRecord(path, delimiter, enc, quotes, func(rec []string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		values := make([]any, 0, len(rec)+1)
		values = append(values, int64(len(rec)))
		for _, v := range rec {
			values = append(values, coerce.Infer(v))
		}
		return l.insert(ctx, DelimitedTable, cellNames(len(rec)), values)
	})
}

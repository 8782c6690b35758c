package flatfile

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/net/html/charset"

	"github.com/ruslano69/tdtp-dbengine/pkg/coerce"
)

// xmlRecord дочерние элементы одной записи в порядке появления
type xmlRecord struct {
	names  []string
	values map[string]string
}

func (r *xmlRecord) set(name, value string) {
	if _, ok := r.values[name]; !ok {
		r.names = append(r.names, name)
	}
	r.values[name] = value
}

// readXMLRecords собирает записи с элементом record. Пустое имя означает
// первый дочерний элемент корня.
func readXMLRecords(path, record string) (string, []*xmlRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", nil, err
	}
	defer file.Close()

	dec := xml.NewDecoder(file)
	dec.CharsetReader = charset.NewReaderLabel

	var (
		records []*xmlRecord
		depth   int
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if record == "" && depth == 2 {
				record = t.Name.Local
			}
			if t.Name.Local != record {
				continue
			}
			rec, err := readXMLRecord(dec)
			if err != nil {
				return "", nil, fmt.Errorf("record %d: %w", len(records)+1, err)
			}
			records = append(records, rec)
			depth--
		case xml.EndElement:
			depth--
		}
	}
	return record, records, nil
}

// readXMLRecord читает элемент записи до закрывающего тега. Значение
// колонки это весь текст дочернего элемента.
func readXMLRecord(dec *xml.Decoder) (*xmlRecord, error) {
	rec := &xmlRecord{values: make(map[string]string)}
	var (
		field string
		text  strings.Builder
		depth int
	)
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if depth == 1 {
				field = t.Name.Local
				text.Reset()
			}
		case xml.CharData:
			if depth >= 1 {
				text.Write(t)
			}
		case xml.EndElement:
			if depth == 0 {
				return rec, nil
			}
			if depth == 1 {
				rec.set(field, strings.TrimSpace(text.String()))
			}
			depth--
		}
	}
}

// loadXML загружает записи в таблицу с именем элемента записи. Колонки
// это объединение дочерних элементов всех записей плюс size.
func loadXML(ctx context.Context, l *loader, path, record string) error {
	table, records, err := readXMLRecords(path, record)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return ErrEmptyFile
	}

	var columns []string
	seen := make(map[string]bool)
	for _, rec := range records {
		for _, name := range rec.names {
			if !seen[strings.ToLower(name)] {
				seen[strings.ToLower(name)] = true
				columns = append(columns, name)
			}
		}
	}
	if seen[SizeColumn] {
		return fmt.Errorf("record element %s already has a %s child", table, SizeColumn)
	}
	columns = append(columns, SizeColumn)
	if err := l.create(ctx, table, columns); err != nil {
		return err
	}

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		names := append(append([]string(nil), rec.names...), SizeColumn)
		values := make([]any, 0, len(names))
		for _, name := range rec.names {
			values = append(values, coerce.Infer(rec.values[name]))
		}
		values = append(values, int64(len(rec.names)))
		if err := l.insert(ctx, table, names, values); err != nil {
			return err
		}
	}
	return nil
}

package flatfile

import (
	"context"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/ruslano69/tdtp-dbengine/pkg/xlsx"
)

// loadExcel загружает каждый непустой лист в таблицу sheet<N>, где N номер
// листа в книге. Колонки col<буквы>, значения берутся с учетом типа ячейки.
func loadExcel(ctx context.Context, l *loader, path string) error {
	sheets, err := xlsx.ReadWorkbook(path)
	if err != nil {
		return err
	}

	for i, sheet := range sheets {
		table := "sheet" + strconv.Itoa(i+1)
		if len(sheet.Columns) == 0 {
			log.Debug().Str("sheet", sheet.Name).Msg("ignoring empty sheet")
			continue
		}
		log.Debug().Str("sheet", sheet.Name).Str("table", table).Msg("loading sheet")

		columns := make([]string, len(sheet.Columns))
		for j, c := range sheet.Columns {
			columns[j] = excelColumn(c)
		}
		if err := l.create(ctx, table, columns); err != nil {
			return err
		}

		// ячейки идут по строкам, одна вставка на строку листа
		var (
			row    int
			names  []string
			values []any
		)
		flush := func() error {
			if len(names) == 0 {
				return nil
			}
			err := l.insert(ctx, table, names, values)
			names, values = nil, nil
			return err
		}
		for _, cell := range sheet.Cells {
			if cell.Row != row {
				if err := flush(); err != nil {
					return err
				}
				row = cell.Row
			}
			names = append(names, excelColumn(cell.Column))
			values = append(values, cell.Value)
		}
		if err := flush(); err != nil {
			return err
		}
	}
	return nil
}

func excelColumn(letters string) string {
	return "col" + strings.ToLower(letters)
}

package xlsx

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/ruslano69/tdtp-dbengine/pkg/coerce"
	"github.com/ruslano69/tdtp-dbengine/pkg/core/rowset"
)

// Cell непустая ячейка листа
type Cell struct {
	Column string // буквы колонки: A, B, ..., AA
	Row    int    // номер строки с 1
	Value  any    // string, int64, float64
}

// Sheet содержимое листа
type Sheet struct {
	Name    string
	Cells   []Cell
	Columns []string // буквы колонок, упорядоченные по длине, затем по имени
}

// WriteResult - save query result to XLSX file
//
// Creates an Excel file with a formatted header row and one row per result row.
//
// Example:
//
//	err := xlsx.WriteResult(result, "output.xlsx", "Orders")
func WriteResult(res *rowset.Result, filePath string, sheetName string) error {
	// Create new Excel file
	f := excelize.NewFile()
	defer f.Close()

	// Set default sheet name
	if sheetName == "" {
		sheetName = "Sheet1"
	}

	// Create/rename sheet
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if sheetName != "Sheet1" {
		f.DeleteSheet("Sheet1")
	}

	// Create header style
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	dateStyle, _ := f.NewStyle(&excelize.Style{NumFmt: 22})

	// Write headers
	for col, name := range res.Columns {
		cell := ColumnName(col+1) + "1"
		f.SetCellValue(sheetName, cell, name)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	// Write data rows
	for rowIdx, row := range res.Rows {
		for col, name := range res.Columns {
			cell := ColumnName(col+1) + strconv.Itoa(rowIdx+2)
			v := toExcel(row.Value(name))
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return fmt.Errorf("failed to set %s: %w", cell, err)
			}
			if _, ok := v.(time.Time); ok {
				f.SetCellStyle(sheetName, cell, cell, dateStyle)
			}
		}
	}

	// Auto-fit columns
	for col := range res.Columns {
		colName := ColumnName(col + 1)
		f.SetColWidth(sheetName, colName, colName, 15)
	}

	// Save file
	return f.SaveAs(filePath)
}

// toExcel - convert a row value into a value excelize can store
func toExcel(v any) any {
	switch x := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(x)
	case bool:
		if x {
			return "TRUE"
		}
		return "FALSE"
	default:
		return x
	}
}

// ReadWorkbook - read every sheet of an XLSX file
//
// Cell type drives the value: strings stay text, booleans become 1/0,
// numbers become int64 or float64, date cells become "yyyy-MM-dd HH:mm:ss".
func ReadWorkbook(filePath string) ([]Sheet, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	var sheets []Sheet
	for _, name := range f.GetSheetList() {
		sheet, err := readSheet(f, name)
		if err != nil {
			return nil, err
		}
		sheets = append(sheets, sheet)
	}
	return sheets, nil
}

func readSheet(f *excelize.File, name string) (Sheet, error) {
	sheet := Sheet{Name: name}

	rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return sheet, fmt.Errorf("failed to read rows of %s: %w", name, err)
	}

	seen := make(map[string]bool)
	for r, cols := range rows {
		for c, raw := range cols {
			if raw == "" {
				continue
			}
			letters := ColumnName(c + 1)
			ref := letters + strconv.Itoa(r+1)
			v, err := cellValue(f, name, ref, raw)
			if err != nil {
				return sheet, err
			}
			sheet.Cells = append(sheet.Cells, Cell{Column: letters, Row: r + 1, Value: v})
			if !seen[letters] {
				seen[letters] = true
				sheet.Columns = append(sheet.Columns, letters)
			}
		}
	}
	SortColumns(sheet.Columns)
	return sheet, nil
}

func cellValue(f *excelize.File, sheet, ref, raw string) (any, error) {
	typ, err := f.GetCellType(sheet, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to read type of %s!%s: %w", sheet, ref, err)
	}

	switch typ {
	case excelize.CellTypeBool:
		if raw == "1" || strings.EqualFold(raw, "true") {
			return int64(1), nil
		}
		return int64(0), nil

	case excelize.CellTypeDate:
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return t.Format(coerce.DateTimeLayout), nil
		}
		return raw, nil

	case excelize.CellTypeNumber, excelize.CellTypeUnset, excelize.CellTypeFormula:
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return raw, nil
		}
		if isDateFormatted(f, sheet, ref) {
			if t, err := excelize.ExcelDateToTime(n, false); err == nil {
				return t.Format(coerce.DateTimeLayout), nil
			}
		}
		if n == math.Trunc(n) && math.Abs(n) < 1e15 {
			return int64(n), nil
		}
		return n, nil

	default:
		return raw, nil
	}
}

// встроенные форматы Excel для дат и времени
var builtinDateFormats = map[int]bool{
	14: true, 15: true, 16: true, 17: true, 18: true, 19: true, 20: true, 21: true, 22: true,
	45: true, 46: true, 47: true,
}

func isDateFormatted(f *excelize.File, sheet, ref string) bool {
	styleID, err := f.GetCellStyle(sheet, ref)
	if err != nil || styleID == 0 {
		return false
	}
	style, err := f.GetStyle(styleID)
	if err != nil || style == nil {
		return false
	}
	if builtinDateFormats[style.NumFmt] {
		return true
	}
	if style.CustomNumFmt != nil {
		format := strings.ToLower(*style.CustomNumFmt)
		return strings.ContainsAny(format, "dy") || strings.Contains(format, "hh")
	}
	return false
}

// SortColumns упорядочивает буквы колонок по длине, затем по имени (A..Z, AA..)
func SortColumns(cols []string) {
	sort.Slice(cols, func(i, j int) bool {
		if len(cols[i]) != len(cols[j]) {
			return len(cols[i]) < len(cols[j])
		}
		return cols[i] < cols[j]
	})
}

// ColumnName - convert column index to Excel column name (1 → A, 27 → AA)
func ColumnName(col int) string {
	name := ""
	for col > 0 {
		col--
		name = string(rune('A'+col%26)) + name
		col /= 26
	}
	return name
}

package schema

import "strings"

// Column описание колонки таблицы. Неизменяемо после построения.
type Column struct {
	Name          string
	Type          DataType
	DatabaseType  string
	Nullable      bool
	AutoIncrement bool
	DisplaySize   int64
	Precision     int64
	Scale         int64
}

// TableSchema упорядоченный список колонок и имя автоинкрементной колонки
// (не более одной).
type TableSchema struct {
	Table         string
	Columns       []Column
	AutoIncrement string
}

// Column ищет колонку без учета регистра
func (s *TableSchema) Column(name string) (Column, bool) {
	for _, c := range s.Columns {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return Column{}, false
}

// HasColumn проверяет наличие колонки
func (s *TableSchema) HasColumn(name string) bool {
	_, ok := s.Column(name)
	return ok
}

// ColumnNames возвращает имена колонок в порядке таблицы
func (s *TableSchema) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

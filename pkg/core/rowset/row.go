// Package rowset содержит единицу обмена между фасадом и его клиентами:
// упорядоченную строку с поиском колонок без учета регистра.
package rowset

import "strings"

// Row упорядоченное отображение "колонка -> значение".
// Поиск по имени не зависит от регистра, порядок вставки сохраняется.
type Row struct {
	keys   []string
	values []any
	index  map[string]int
}

// NewRow создает пустую строку с заданной емкостью
func NewRow(capacity int) *Row {
	return &Row{
		keys:   make([]string, 0, capacity),
		values: make([]any, 0, capacity),
		index:  make(map[string]int, capacity),
	}
}

// RowOf строит строку из пар ключ/значение: RowOf("id", 1, "name", "x")
func RowOf(pairs ...any) *Row {
	r := NewRow(len(pairs) / 2)
	for i := 0; i+1 < len(pairs); i += 2 {
		k, _ := pairs[i].(string)
		r.Set(k, pairs[i+1])
	}
	return r
}

// Set устанавливает значение. Существующий ключ сохраняет исходное
// написание и позицию.
func (r *Row) Set(key string, value any) {
	lk := strings.ToLower(key)
	if i, ok := r.index[lk]; ok {
		r.values[i] = value
		return
	}
	r.index[lk] = len(r.keys)
	r.keys = append(r.keys, key)
	r.values = append(r.values, value)
}

// Get возвращает значение и признак наличия колонки
func (r *Row) Get(key string) (any, bool) {
	i, ok := r.index[strings.ToLower(key)]
	if !ok {
		return nil, false
	}
	return r.values[i], true
}

// Value возвращает значение или nil
func (r *Row) Value(key string) any {
	v, _ := r.Get(key)
	return v
}

// Has проверяет наличие колонки
func (r *Row) Has(key string) bool {
	_, ok := r.index[strings.ToLower(key)]
	return ok
}

// Delete удаляет колонку
func (r *Row) Delete(key string) {
	i, ok := r.index[strings.ToLower(key)]
	if !ok {
		return
	}
	r.keys = append(r.keys[:i], r.keys[i+1:]...)
	r.values = append(r.values[:i], r.values[i+1:]...)
	delete(r.index, strings.ToLower(key))
	for j := i; j < len(r.keys); j++ {
		r.index[strings.ToLower(r.keys[j])] = j
	}
}

// Keys возвращает имена колонок в порядке вставки
func (r *Row) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Len количество колонок
func (r *Row) Len() int {
	return len(r.keys)
}

// At возвращает пару по позиции
func (r *Row) At(i int) (string, any) {
	return r.keys[i], r.values[i]
}

// Each обходит колонки в порядке вставки
func (r *Row) Each(fn func(key string, value any)) {
	for i, k := range r.keys {
		fn(k, r.values[i])
	}
}

// Clone глубокая копия. Байтовые срезы копируются, остальные значения
// (строки, числа, time.Time) неизменяемы.
func (r *Row) Clone() *Row {
	c := &Row{
		keys:   make([]string, len(r.keys)),
		values: make([]any, len(r.values)),
		index:  make(map[string]int, len(r.index)),
	}
	copy(c.keys, r.keys)
	for i, v := range r.values {
		c.values[i] = CloneValue(v)
	}
	for k, i := range r.index {
		c.index[k] = i
	}
	return c
}

// Map возвращает копию в виде обычной map
func (r *Row) Map() map[string]any {
	m := make(map[string]any, len(r.keys))
	for i, k := range r.keys {
		m[k] = r.values[i]
	}
	return m
}

// CloneValue копирует изменяемые значения
func CloneValue(v any) any {
	switch x := v.(type) {
	case []byte:
		if x == nil {
			return []byte(nil)
		}
		b := make([]byte, len(x))
		copy(b, x)
		return b
	default:
		return v
	}
}

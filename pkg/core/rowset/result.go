package rowset

// Result результат выборки
type Result struct {
	Columns   []string
	Rows      []*Row
	Truncated bool
	Cached    bool
}

// Len количество строк
func (r *Result) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Rows)
}

// First первая строка или nil
func (r *Result) First() *Row {
	if r.Len() == 0 {
		return nil
	}
	return r.Rows[0]
}

// Clone глубокая копия результата
func (r *Result) Clone() *Result {
	c := &Result{
		Columns:   make([]string, len(r.Columns)),
		Rows:      make([]*Row, len(r.Rows)),
		Truncated: r.Truncated,
		Cached:    r.Cached,
	}
	copy(c.Columns, r.Columns)
	for i, row := range r.Rows {
		c.Rows[i] = row.Clone()
	}
	return c
}

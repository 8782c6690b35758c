// Package progress счетчик хода длительных операций (дамп, загрузка,
// очистка). Значения опрашиваются вызывающей стороной.
package progress

import "sync/atomic"

// Progress счетчик выполненных шагов из общего количества
type Progress struct {
	total   atomic.Int64
	current atomic.Int64
	stage   atomic.Value
}

// New создает счетчик
func New() *Progress {
	p := &Progress{}
	p.stage.Store("")
	return p
}

// AddTotal увеличивает ожидаемое количество шагов
func (p *Progress) AddTotal(n int64) {
	if p == nil {
		return
	}
	p.total.Add(n)
}

// Inc отмечает выполненный шаг
func (p *Progress) Inc() {
	p.Add(1)
}

// Add отмечает n выполненных шагов
func (p *Progress) Add(n int64) {
	if p == nil {
		return
	}
	p.current.Add(n)
}

// SetStage задает текущий этап (имя таблицы и т.п.)
func (p *Progress) SetStage(stage string) {
	if p == nil {
		return
	}
	p.stage.Store(stage)
}

// Stage текущий этап
func (p *Progress) Stage() string {
	if p == nil {
		return ""
	}
	s, _ := p.stage.Load().(string)
	return s
}

// Current выполнено шагов
func (p *Progress) Current() int64 {
	if p == nil {
		return 0
	}
	return p.current.Load()
}

// Total ожидается шагов
func (p *Progress) Total() int64 {
	if p == nil {
		return 0
	}
	return p.total.Load()
}

// Percent процент выполнения, 0 если общее количество неизвестно
func (p *Progress) Percent() float64 {
	total := p.Total()
	if total <= 0 {
		return 0
	}
	return float64(p.Current()) * 100 / float64(total)
}

// Package report собирает результаты отдельных операций (таблица, пакет,
// оператор) в итоговую сводку задания. Частичный отказ не прерывает
// массовую операцию, а остается видимым в сводке.
package report

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Outcome результат одной операции
type Outcome struct {
	Target  string `json:"target"`
	Success bool   `json:"success"`
	Rows    int64  `json:"rows,omitempty"`
	Err     error  `json:"-"`
}

// OK успешный результат
func OK(target string, rows int64) Outcome {
	return Outcome{Target: target, Success: true, Rows: rows}
}

// Fail неуспешный результат
func Fail(target string, err error) Outcome {
	return Outcome{Target: target, Err: err}
}

// Error текст ошибки или пустая строка
func (o Outcome) Error() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// Summary сводка задания
type Summary struct {
	JobID    string
	Name     string
	Started  time.Time
	Finished time.Time

	mu       sync.Mutex
	outcomes []Outcome
}

// NewSummary создает сводку с новым идентификатором задания
func NewSummary(name string) *Summary {
	return &Summary{
		JobID:   uuid.NewString(),
		Name:    name,
		Started: time.Now(),
	}
}

// Add добавляет результат
func (s *Summary) Add(o Outcome) {
	s.mu.Lock()
	s.outcomes = append(s.outcomes, o)
	s.mu.Unlock()
}

// Finish фиксирует время окончания
func (s *Summary) Finish() {
	s.mu.Lock()
	s.Finished = time.Now()
	s.mu.Unlock()
}

// Outcomes копия списка результатов
func (s *Summary) Outcomes() []Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Outcome, len(s.outcomes))
	copy(out, s.outcomes)
	return out
}

// Counts количество успешных и неуспешных операций
func (s *Summary) Counts() (succeeded, failed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.outcomes {
		if o.Success {
			succeeded++
		} else {
			failed++
		}
	}
	return succeeded, failed
}

// Rows сумма строк по успешным операциям
func (s *Summary) Rows() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, o := range s.outcomes {
		if o.Success {
			n += o.Rows
		}
	}
	return n
}

// Failures неуспешные результаты
func (s *Summary) Failures() []Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Outcome
	for _, o := range s.outcomes {
		if !o.Success {
			out = append(out, o)
		}
	}
	return out
}

// Success true если не было ни одного отказа
func (s *Summary) Success() bool {
	_, failed := s.Counts()
	return failed == 0
}

// Err объединяет ошибки всех неуспешных операций
func (s *Summary) Err() error {
	var errs []error
	for _, o := range s.Failures() {
		if o.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", o.Target, o.Err))
		} else {
			errs = append(errs, fmt.Errorf("%s: failed", o.Target))
		}
	}
	return errors.Join(errs...)
}

// Duration длительность задания
func (s *Summary) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	end := s.Finished
	if end.IsZero() {
		end = time.Now()
	}
	return end.Sub(s.Started)
}

// String краткая строка для логов
func (s *Summary) String() string {
	ok, failed := s.Counts()
	return fmt.Sprintf("%s [%s]: %d succeeded, %d failed, %d rows in %s",
		s.Name, s.JobID, ok, failed, s.Rows(), s.Duration().Round(time.Millisecond))
}

package report

import (
	"encoding/json"
	"time"
)

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// JobEvent состояние задания, публикуемое после его завершения
// (успешного или с ошибкой) в Redis, Kafka или RabbitMQ
type JobEvent struct {
	JobID      string    `json:"job_id"`
	Name       string    `json:"name"`
	Status     string    `json:"status"` // "success" | "failed"
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	DurationMs int64     `json:"duration_ms"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	Rows       int64     `json:"rows"`
	Failures   []Failure `json:"failures,omitempty"`
	Error      *string   `json:"error,omitempty"`
}

// Failure неуспешная операция в событии
type Failure struct {
	Target string `json:"target"`
	Error  string `json:"error"`
}

// Event снимок сводки для публикации
func (s *Summary) Event() JobEvent {
	ok, failed := s.Counts()
	s.mu.Lock()
	started, finished := s.Started, s.Finished
	s.mu.Unlock()
	if finished.IsZero() {
		finished = time.Now()
	}

	ev := JobEvent{
		JobID:      s.JobID,
		Name:       s.Name,
		Status:     StatusSuccess,
		StartedAt:  started,
		FinishedAt: finished,
		DurationMs: finished.Sub(started).Milliseconds(),
		Succeeded:  ok,
		Failed:     failed,
		Rows:       s.Rows(),
	}
	for _, o := range s.Failures() {
		ev.Failures = append(ev.Failures, Failure{Target: o.Target, Error: o.Error()})
	}
	if err := s.Err(); err != nil {
		ev.Status = StatusFailed
		msg := err.Error()
		ev.Error = &msg
	}
	return ev
}

// Marshal JSON представление события
func (e JobEvent) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

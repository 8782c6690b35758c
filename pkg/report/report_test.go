package report

import (
	"errors"
	"strings"
	"testing"
)

func TestSummaryAccumulates(t *testing.T) {
	s := NewSummary("reload")
	if s.JobID == "" {
		t.Fatal("JobID must be generated")
	}

	s.Add(OK("users", 10))
	s.Add(Fail("orders", errors.New("syntax error")))
	s.Add(OK("items", 5))
	s.Finish()

	ok, failed := s.Counts()
	if ok != 2 || failed != 1 {
		t.Errorf("Counts() = %d, %d; want 2, 1", ok, failed)
	}
	if s.Rows() != 15 {
		t.Errorf("Rows() = %d, want 15", s.Rows())
	}
	if s.Success() {
		t.Error("Success() must be false with a failure")
	}

	err := s.Err()
	if err == nil || !strings.Contains(err.Error(), "orders: syntax error") {
		t.Errorf("Err() = %v", err)
	}

	failures := s.Failures()
	if len(failures) != 1 || failures[0].Error() != "syntax error" {
		t.Errorf("Failures() = %+v", failures)
	}
}

func TestEmptySummaryIsSuccess(t *testing.T) {
	s := NewSummary("dump")
	if !s.Success() || s.Err() != nil {
		t.Error("empty summary must be successful")
	}
	if !strings.Contains(s.String(), "0 succeeded, 0 failed") {
		t.Errorf("unexpected String(): %s", s.String())
	}
}

func TestSummaryEvent(t *testing.T) {
	s := NewSummary("dump")
	s.Add(OK("users", 3))
	s.Add(Fail("orders", errors.New("boom")))
	s.Finish()

	ev := s.Event()
	if ev.JobID != s.JobID || ev.Name != "dump" {
		t.Errorf("identity = %s %s", ev.JobID, ev.Name)
	}
	if ev.Status != StatusFailed || ev.Succeeded != 1 || ev.Failed != 1 || ev.Rows != 3 {
		t.Errorf("event = %+v", ev)
	}
	if len(ev.Failures) != 1 || ev.Failures[0].Target != "orders" || ev.Failures[0].Error != "boom" {
		t.Errorf("Failures = %+v", ev.Failures)
	}
	if ev.Error == nil || !strings.Contains(*ev.Error, "orders: boom") {
		t.Errorf("Error = %v", ev.Error)
	}

	data, err := ev.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"status":"failed"`) {
		t.Errorf("json = %s", data)
	}

	if got := NewSummary("ok").Event(); got.Status != StatusSuccess || got.Error != nil {
		t.Errorf("empty summary event = %+v", got)
	}
}

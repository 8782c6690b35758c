package progress

import (
	"sync"
	"testing"
)

func TestProgressConcurrent(t *testing.T) {
	p := New()
	p.AddTotal(100)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				p.Inc()
			}
		}()
	}
	wg.Wait()

	if p.Current() != 50 {
		t.Errorf("Current() = %d, want 50", p.Current())
	}
	if p.Percent() != 50 {
		t.Errorf("Percent() = %v, want 50", p.Percent())
	}
}

func TestNilProgressIsSafe(t *testing.T) {
	var p *Progress
	p.Inc()
	p.AddTotal(10)
	p.SetStage("users")
	if p.Current() != 0 || p.Total() != 0 || p.Stage() != "" || p.Percent() != 0 {
		t.Error("nil progress must be a no-op")
	}
}

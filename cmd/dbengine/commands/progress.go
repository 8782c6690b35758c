package commands

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ruslano69/tdtp-dbengine/pkg/progress"
)

// ProgressInterval период записи прогресса в лог
var ProgressInterval = 5 * time.Second

// watch пишет прогресс в лог, пока не вызвана возвращенная функция
func watch(ctx context.Context, p *progress.Progress, what string) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(ProgressInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				ev := log.Info().Str("stage", p.Stage()).Int64(what, p.Current())
				if p.Total() > 0 {
					ev = ev.Float64("percent", p.Percent())
				}
				ev.Msg("progress")
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

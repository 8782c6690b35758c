package main

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/ruslano69/tdtp-dbengine/pkg/brokers"
	"github.com/ruslano69/tdtp-dbengine/pkg/report"
	"github.com/ruslano69/tdtp-dbengine/pkg/resultlog"
	"github.com/ruslano69/tdtp-dbengine/pkg/retry"
	"github.com/ruslano69/tdtp-dbengine/pkg/storage"
)

// publishSummary отправляет итог задания в result log (Redis) и брокер,
// если они настроены. Ошибки публикации не меняют результат задания.
func publishSummary(ctx context.Context, config *Config, r *retry.Retryer, summary *report.Summary) error {
	if summary == nil {
		return nil
	}
	var errs []error

	if config.ResultLog.Address != "" {
		pub := resultlog.NewRedisPublisher(config.ResultLog)
		err := r.Do(ctx, func(ctx context.Context) error {
			return pub.Publish(ctx, summary)
		})
		pub.Close()
		if err != nil {
			errs = append(errs, err)
		} else {
			log.Debug().Str("job", summary.JobID).Msg("summary published to result log")
		}
	}

	if config.Broker.Type != "" {
		if err := notifyBroker(ctx, config.Broker, r, summary); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func notifyBroker(ctx context.Context, cfg brokers.Config, r *retry.Retryer, summary *report.Summary) error {
	n, err := brokers.New(cfg)
	if err != nil {
		return err
	}
	if err := r.Do(ctx, n.Connect); err != nil {
		return err
	}
	defer n.Close()

	if err := r.Do(ctx, func(ctx context.Context) error {
		return brokers.Notify(ctx, n, summary)
	}); err != nil {
		return err
	}
	log.Debug().Str("broker", n.Type()).Str("job", summary.JobID).Msg("job event sent")
	return nil
}

// newUploader создает S3 загрузчик для --upload
func newUploader(ctx context.Context, config *Config) (*storage.Uploader, error) {
	if err := config.S3.Validate(); err != nil {
		return nil, err
	}
	return storage.New(ctx, config.S3)
}

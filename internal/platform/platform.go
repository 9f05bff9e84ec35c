// Package platform opens the backing services shared by the api, the TUI and
// leasectl, so every process that writes leases or payments publishes the same
// events to the same places.
package platform

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/MrJamesThe3rd/loyer/internal/config"
	"github.com/MrJamesThe3rd/loyer/internal/dashboard"
	"github.com/MrJamesThe3rd/loyer/internal/document"
	"github.com/MrJamesThe3rd/loyer/internal/notify"
)

const kafkaDialAttempts = 10

// Events carries the dashboard cache and the notifier chain built on top of it:
// structured logs, Kafka when brokers are configured, then cache invalidation.
type Events struct {
	Cache    dashboard.Cache
	Notifier notify.Multi

	closers []io.Closer
}

func OpenEvents(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Events, error) {
	e := &Events{
		Cache:    dashboard.NoCache{},
		Notifier: notify.Multi{notify.NewLogNotifier(logger)},
	}

	if cfg.Redis.Addr != "" {
		client, err := dashboard.DialRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, err
		}

		e.closers = append(e.closers, client)
		e.Cache = dashboard.NewRedisCache(client)
	}

	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := notify.DialKafka(ctx, cfg.Kafka.Brokers, kafkaDialAttempts)
		if err != nil {
			_ = e.Close()
			return nil, err
		}

		kafka := notify.NewKafkaNotifier(producer, cfg.Kafka.TopicPrefix)

		e.closers = append(e.closers, kafka)
		e.Notifier = append(e.Notifier, kafka)
	}

	e.Notifier = append(e.Notifier, dashboard.NewInvalidator(e.Cache))

	return e, nil
}

// Close releases the connections in reverse order of opening.
func (e *Events) Close() error {
	var errs []error

	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}

	e.closers = nil

	return errors.Join(errs...)
}

// OpenStorage selects the document backend named by the configuration.
func OpenStorage(ctx context.Context, cfg *config.Config) (document.Storage, error) {
	if cfg.Documents.Backend == "s3" {
		return document.DialS3(ctx, cfg.Documents.Bucket, cfg.Documents.Region, cfg.Documents.Endpoint, cfg.Documents.PresignTTL)
	}

	return document.NewLocalStorage(cfg.Documents.Dir)
}

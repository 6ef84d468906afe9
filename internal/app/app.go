// Package app initializes and holds long-lived application services,
// acting as a dependency injection container.
package app

import (
	"context"
	"fmt"

	gcpubsub "cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/snapfresh/snapfresh/internal/catalog"
	catgcs "github.com/snapfresh/snapfresh/internal/catalog/gcs"
	"github.com/snapfresh/snapfresh/internal/config"
	"github.com/snapfresh/snapfresh/internal/logging"
	"github.com/snapfresh/snapfresh/internal/metrics"
	pubmem "github.com/snapfresh/snapfresh/internal/publisher/memory"
	pubgcp "github.com/snapfresh/snapfresh/internal/publisher/pubsub"
	"github.com/snapfresh/snapfresh/internal/refresh"
	"github.com/snapfresh/snapfresh/internal/registry"
)

// App holds the shared, long-lived services: logger, domain registry,
// catalog store, and report publisher. It is built once at startup and
// handed to the commands that need it.
type App struct {
	Config    config.Config
	Logger    *zap.Logger
	Registry  *registry.Registry
	Store     refresh.CatalogStore
	Publisher refresh.Publisher
	Stats     *refresh.Aggregator

	closers []func() error
}

// New creates and initializes an App from loaded configuration.
// It fails fast if any critical service cannot be initialized.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	metrics.Init()

	a := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: registry.New(cfg.Domains),
		Stats:    refresh.NewAggregator(),
	}

	switch cfg.Storage.Provider {
	case "file":
		a.Store = catalog.NewFileStore()
	case "memory":
		a.Store = catalog.NewMemoryStore()
	case "gcs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("init gcs client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		store, err := catgcs.New(client, catgcs.Config{Bucket: cfg.Storage.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("init gcs store: %w", err)
		}
		logger.Info("using GCS catalog store", zap.String("bucket", cfg.Storage.GCSBucket))
		a.Store = store
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Storage.Provider)
	}

	switch cfg.Publisher.Provider {
	case "noop":
		// A nil publisher disables report fan-out.
	case "memory":
		a.Publisher = pubmem.New()
	case "pubsub":
		client, err := gcpubsub.NewClient(ctx, cfg.Publisher.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("init pubsub client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		logger.Info("publishing cycle reports to Pub/Sub",
			zap.String("project", cfg.Publisher.ProjectID),
			zap.String("topic", cfg.Publisher.Topic))
		a.Publisher = pubgcp.New(client.Topic(cfg.Publisher.Topic))
	default:
		return nil, fmt.Errorf("unknown publisher provider %q", cfg.Publisher.Provider)
	}

	return a, nil
}

// Close gracefully shuts down all services in the container.
func (a *App) Close() {
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			a.Logger.Warn("error closing service", zap.Error(err))
		}
	}
	// Flushing the logger is best-effort: stderr sync fails on some
	// platforms and there is nothing useful to do about it.
	_ = a.Logger.Sync()
}

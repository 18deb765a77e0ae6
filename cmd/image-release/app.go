package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/ironsheep/image-release-tools/internal/config"
	"github.com/ironsheep/image-release-tools/internal/dataset"
	"github.com/ironsheep/image-release-tools/internal/logging"
	"github.com/ironsheep/image-release-tools/internal/notify"
	"github.com/ironsheep/image-release-tools/internal/release"
	"github.com/ironsheep/image-release-tools/internal/store"
	"github.com/ironsheep/image-release-tools/internal/telemetry"
	"github.com/ironsheep/image-release-tools/internal/transform"
)

// app holds the collaborators built from the service configuration.
type app struct {
	cfg      config.Config
	orch     *release.Orchestrator
	metrics  *telemetry.Metrics
	notifier notify.Notifier
	log      *slog.Logger
}

func newApp(cfgPath string) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	logging.Configure(logging.Options{Level: cfg.Log.Level, JSON: cfg.Log.JSON})
	log := logging.L()
	log.Debug("configuration loaded", "config", cfg.String())

	var st store.Store
	switch cfg.Storage.Driver {
	case config.StorageMySQL:
		gs, err := store.OpenMySQL(cfg.Storage.MySQL)
		if err != nil {
			return nil, err
		}
		st = gs
	default:
		st = store.NewMemoryStore()
	}

	notifiers := notify.Multi{notify.NewLogNotifier()}
	if cfg.Notify.Kafka.Enabled {
		kn, err := notify.NewKafkaNotifier(cfg.Notify.Kafka.KafkaConfig)
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, kn)
	}

	metrics := telemetry.New()
	orch, err := release.New(release.Deps{
		Catalog:  transform.NewCatalog(),
		Source:   dataset.NewDirSource(cfg.Release.DataRoot),
		Store:    st,
		Notifier: notifiers,
		Metrics:  metrics,
	}, cfg.Options(), release.WithLogger(log))
	if err != nil {
		notifiers.Close()
		return nil, err
	}

	return &app{cfg: cfg, orch: orch, metrics: metrics, notifier: notifiers, log: log}, nil
}

func (a *app) Close() {
	if err := a.notifier.Close(); err != nil {
		a.log.Warn("failed to close notifier", "error", err)
	}
}

// reapLoop removes orphaned staging trees on startup and then hourly.
func (a *app) reapLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		if n, err := a.orch.Reap(a.cfg.Release.StagingMaxAge); err != nil {
			a.log.Warn("staging reap failed", "removed", n, "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

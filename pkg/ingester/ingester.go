package ingester

import (
	"context"

	"github.com/ValerySidorin/ferry/pkg/batch"
	"github.com/ValerySidorin/ferry/pkg/indexing"
	"github.com/ValerySidorin/ferry/pkg/journal"
	"github.com/ValerySidorin/ferry/pkg/metadata"
	"github.com/ValerySidorin/ferry/pkg/objstore"
	"github.com/ValerySidorin/ferry/pkg/queue"
	"github.com/ValerySidorin/ferry/pkg/reconcile"
	"github.com/ValerySidorin/ferry/pkg/session"
	"github.com/ValerySidorin/ferry/pkg/session/store"
	"github.com/ValerySidorin/ferry/pkg/transfer"
	util_http "github.com/ValerySidorin/ferry/pkg/util/http"
	gklog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/grafana/dskit/services"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Ingester runs the pipeline once, or every polling interval when one is
// configured.
type Ingester struct {
	services.Service

	cfg Config
	log gklog.Logger

	extractor  *metadata.Extractor
	sessions   *session.Manager
	engine     *transfer.Engine
	scheduler  *batch.Scheduler
	reconciler *reconcile.Reconciler

	journal   journal.Journal
	publisher queue.Publisher

	metrics *metrics
}

func New(ctx context.Context, cfg Config, reg prometheus.Registerer, log gklog.Logger) (*Ingester, error) {
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, errors.Wrap(err, "ingester config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "ingester config")
	}

	log = gklog.With(log, "service", "ingester")

	client, err := util_http.NewClient(cfg.HTTP)
	if err != nil {
		return nil, errors.Wrap(err, "ingester init http client")
	}

	credStore, err := store.New(cfg.Token.Store, reg, log)
	if err != nil {
		return nil, errors.Wrap(err, "ingester init credential store")
	}
	sessions := session.New(cfg.Token, client, credStore, log)

	engine, err := transfer.New(cfg.Archive, client, sessions, indexing.DefaultMapping, log)
	if err != nil {
		return nil, errors.Wrap(err, "ingester init transfer engine")
	}

	var mirror objstore.Writer
	if cfg.Mirror.Enabled() {
		mirror, err = objstore.NewWriter(ctx, cfg.Mirror)
		if err != nil {
			return nil, errors.Wrap(err, "ingester connect to obj store as writer")
		}
	}

	i := &Ingester{
		cfg:        cfg,
		log:        log,
		extractor:  metadata.NewExtractor(cfg.Metadata, log),
		sessions:   sessions,
		engine:     engine,
		scheduler:  batch.NewScheduler(cfg.Batch, log),
		reconciler: reconcile.New(cfg.Reconcile, mirror, log),
		metrics:    newMetrics(reg),
	}

	if cfg.Journal.Enabled() {
		i.journal, err = journal.New(ctx, cfg.Journal, log)
		if err != nil {
			return nil, errors.Wrap(err, "ingester connect to journal")
		}
	}

	if cfg.Notify.Enabled() {
		i.publisher, err = queue.NewPublisher(cfg.Notify, log)
		if err != nil {
			i.dispose(ctx)
			return nil, errors.Wrap(err, "ingester connect to queue")
		}
	}

	if cfg.PollingInterval > 0 {
		i.Service = services.NewTimerService(cfg.PollingInterval, nil, i.iteration, i.stopping)
	} else {
		i.Service = services.NewBasicService(nil, i.runOnce, i.stopping)
	}

	return i, nil
}

// runOnce makes the service terminate after a single run. A run that could
// not complete fails the service.
func (i *Ingester) runOnce(ctx context.Context) error {
	_, err := i.Run(ctx)
	return err
}

// iteration keeps polling after an aborted run.
func (i *Ingester) iteration(ctx context.Context) error {
	if _, err := i.Run(ctx); err != nil {
		level.Error(i.log).Log("msg", "run aborted, retrying on next tick", "err", err)
	}
	return nil
}

func (i *Ingester) stopping(_ error) error {
	i.dispose(context.Background())
	return nil
}

func (i *Ingester) dispose(ctx context.Context) {
	if i.journal != nil {
		if err := i.journal.Dispose(ctx); err != nil {
			level.Warn(i.log).Log("msg", "failed to close journal", "err", err)
		}
	}
	if i.publisher != nil {
		if err := i.publisher.Close(); err != nil {
			level.Warn(i.log).Log("msg", "failed to close queue publisher", "err", err)
		}
	}
}

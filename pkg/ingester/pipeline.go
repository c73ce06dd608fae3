package ingester

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ValerySidorin/ferry/pkg/batch"
	"github.com/ValerySidorin/ferry/pkg/journal"
	"github.com/ValerySidorin/ferry/pkg/metadata"
	"github.com/ValerySidorin/ferry/pkg/queue/message"
	"github.com/ValerySidorin/ferry/pkg/reconcile"
	"github.com/ValerySidorin/ferry/pkg/transfer"
	gklog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

const metadataExt = ".xml"

// ErrNoCredential aborts a run before any file is touched.
var ErrNoCredential = errors.New("no usable access token")

type Result struct {
	RunID     string
	RunStamp  string
	SourceDir string
	Outcomes  []transfer.Outcome
	Batches   batch.Stats
	Summary   reconcile.Summary
}

func (r *Result) Succeeded() int {
	return lo.CountBy(r.Outcomes, func(o transfer.Outcome) bool {
		return o.Record.Extracted() && o.OK()
	})
}

// Run executes the pipeline once. Per-file failures end up in the outcomes;
// only a missing credential or an unusable directory layout is returned as an
// error.
func (i *Ingester) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	res := &Result{
		RunID:     uuid.NewString(),
		RunStamp:  reconcile.RunStamp(start),
		SourceDir: i.cfg.SourceDir,
	}
	if i.cfg.Reconcile.TempSolution {
		res.SourceDir = filepath.Join(i.cfg.SourceDir, reconcile.DayDir(start))
	}

	logger := gklog.With(i.log, "run", res.RunID)
	level.Info(logger).Log("msg", "run started", "stamp", res.RunStamp, "source", res.SourceDir)

	if _, err := i.sessions.Ensure(ctx); err != nil {
		level.Error(logger).Log("msg", "token retrieval failed, aborting run", "err", err)
		i.metrics.runs.WithLabelValues("aborted").Inc()
		return nil, errors.Wrap(ErrNoCredential, err.Error())
	}

	if err := i.reconciler.Prepare(); err != nil {
		i.metrics.runs.WithLabelValues("aborted").Inc()
		return nil, err
	}

	files, err := discover(res.SourceDir)
	if err != nil {
		i.metrics.runs.WithLabelValues("aborted").Inc()
		return nil, err
	}
	level.Info(logger).Log("msg", "metadata files found", "count", len(files))

	records := i.extractor.ExtractAll(ctx, res.SourceDir, files)
	i.metrics.extractionFailures.Add(float64(lo.CountBy(records, func(r *metadata.Record) bool {
		return !r.Extracted()
	})))

	i.beginJournal(ctx, logger, res, start)

	res.Outcomes, res.Batches = i.scheduler.Run(ctx, records, func(ctx context.Context, rec *metadata.Record) transfer.Outcome {
		return i.transfer(ctx, res.SourceDir, rec)
	})
	i.metrics.observeTransfers(res.Outcomes, res.Batches)

	i.finishJournal(ctx, logger, res, start)
	i.publish(logger, res)

	res.Summary = i.reconciler.Reconcile(ctx, res.SourceDir, res.RunStamp, res.Outcomes)
	i.metrics.observeReconcile(res.Summary)

	i.metrics.runs.WithLabelValues("completed").Inc()
	i.metrics.runDuration.Observe(time.Since(start).Seconds())
	i.metrics.lastRun.SetToCurrentTime()

	level.Info(logger).Log("msg", "run completed", "files", len(res.Outcomes), "succeeded", res.Succeeded(), "duration", time.Since(start))
	return res, nil
}

func (i *Ingester) transfer(ctx context.Context, dir string, rec *metadata.Record) transfer.Outcome {
	if !rec.Extracted() {
		return transfer.ErrorOutcome(rec, rec.Error())
	}

	cred, ok := i.sessions.Current()
	if !ok {
		return transfer.ErrorOutcome(rec, ErrNoCredential.Error())
	}

	return i.engine.Transfer(ctx, rec, filepath.Join(dir, rec.PayloadName()), cred)
}

func (i *Ingester) beginJournal(ctx context.Context, logger gklog.Logger, res *Result, start time.Time) {
	if i.journal == nil {
		return
	}

	if err := i.journal.BeginRun(ctx, journal.NewRun(res.RunID, res.RunStamp, start)); err != nil {
		level.Warn(logger).Log("msg", "failed to journal run start", "err", err)
	}
}

func (i *Ingester) finishJournal(ctx context.Context, logger gklog.Logger, res *Result, start time.Time) {
	if i.journal == nil {
		return
	}

	now := time.Now()
	if err := i.journal.RecordOutcomes(ctx, journal.Entries(res.RunID, res.Outcomes, now)); err != nil {
		level.Warn(logger).Log("msg", "failed to journal outcomes", "err", err)
	}

	run := journal.NewRun(res.RunID, res.RunStamp, start)
	journal.Finish(run, res.Outcomes, now)
	if err := i.journal.FinishRun(ctx, run); err != nil {
		level.Warn(logger).Log("msg", "failed to journal run end", "err", err)
	}
}

func (i *Ingester) publish(logger gklog.Logger, res *Result) {
	if i.publisher == nil {
		return
	}

	for _, o := range res.Outcomes {
		if err := i.publisher.Pub(i.cfg.Notify.Channel, message.FromOutcome(res.RunID, o)); err != nil {
			level.Warn(logger).Log("msg", "failed to publish outcome", "file", o.Record.OriginalFileName, "err", err)
		}
	}
}

// discover lists the metadata files of dir in name order.
func discover(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "list source directory")
	}

	files := lo.FilterMap(entries, func(e os.DirEntry, _ int) (string, bool) {
		return e.Name(), e.Type().IsRegular() && strings.HasSuffix(e.Name(), metadataExt)
	})
	sort.Strings(files)

	return files, nil
}

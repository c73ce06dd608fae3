package batch

import (
	"context"
	"flag"
	"time"

	"github.com/ValerySidorin/ferry/pkg/metadata"
	"github.com/ValerySidorin/ferry/pkg/transfer"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/atomic"
)

const defaultSize = 20

type Config struct {
	Size int `yaml:"size"`
}

func (c *Config) RegisterFlags(flagPrefix string, f *flag.FlagSet) {
	f.IntVar(&c.Size, flagPrefix+"size", defaultSize, "Number of transfers run concurrently. The next batch starts when the whole batch finished.")
}

func (c *Config) Validate() error {
	if c.Size <= 0 {
		return errors.Errorf("batch size must be positive, got %d", c.Size)
	}
	return nil
}

type Batch struct {
	Order   uint
	Records []*metadata.Record
	offset  int
}

// Split cuts recs into consecutive batches of size, the last one may be
// shorter.
func Split(recs []*metadata.Record, size int) []*Batch {
	if size <= 0 {
		size = defaultSize
	}

	batches := make([]*Batch, 0, (len(recs)+size-1)/size)
	for i, chunk := range lo.Chunk(recs, size) {
		batches = append(batches, &Batch{
			Order:   uint(i),
			Records: chunk,
			offset:  i * size,
		})
	}
	return batches
}

type TransferFunc func(ctx context.Context, rec *metadata.Record) transfer.Outcome

type Stats struct {
	Sizes        []int
	PeakInFlight int
}

// Scheduler runs batches one after another and the transfers of a batch
// concurrently. A failed transfer never stops its siblings.
type Scheduler struct {
	cfg Config
	log log.Logger

	inFlight atomic.Int64
	peak     atomic.Int64
}

func NewScheduler(cfg Config, logger log.Logger) *Scheduler {
	return &Scheduler{
		cfg: cfg,
		log: log.With(logger, "component", "batch"),
	}
}

// Run returns one outcome per record, at the record's index. Records of
// batches not started before ctx is done get an error outcome.
func (s *Scheduler) Run(ctx context.Context, recs []*metadata.Record, fn TransferFunc) ([]transfer.Outcome, Stats) {
	s.inFlight.Store(0)
	s.peak.Store(0)

	outcomes := make([]transfer.Outcome, len(recs))
	stats := Stats{}

	for _, b := range Split(recs, s.cfg.Size) {
		if err := ctx.Err(); err != nil {
			for i, rec := range b.Records {
				outcomes[b.offset+i] = transfer.ErrorOutcome(rec, err.Error())
			}
			continue
		}

		start := time.Now()
		_ = level.Info(s.log).Log("msg", "batch started", "order", b.Order, "size", len(b.Records))

		s.run(ctx, b, fn, outcomes)
		stats.Sizes = append(stats.Sizes, len(b.Records))

		failed := lo.CountBy(outcomes[b.offset:b.offset+len(b.Records)], func(o transfer.Outcome) bool {
			return !o.OK()
		})
		_ = level.Info(s.log).Log("msg", "batch finished", "order", b.Order, "failed", failed, "duration", time.Since(start))
	}

	stats.PeakInFlight = int(s.peak.Load())
	return outcomes, stats
}

func (s *Scheduler) run(ctx context.Context, b *Batch, fn TransferFunc, outcomes []transfer.Outcome) {
	p := pool.New().WithMaxGoroutines(len(b.Records))

	for i, rec := range b.Records {
		i, rec := i, rec
		p.Go(func() {
			s.enter()
			defer s.inFlight.Dec()

			outcomes[b.offset+i] = fn(ctx, rec)
		})
	}

	p.Wait()
}

func (s *Scheduler) enter() {
	n := s.inFlight.Inc()
	for {
		peak := s.peak.Load()
		if n <= peak || s.peak.CompareAndSwap(peak, n) {
			return
		}
	}
}

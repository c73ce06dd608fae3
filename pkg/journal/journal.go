package journal

import (
	"context"
	"flag"
	"time"

	"github.com/ValerySidorin/ferry/pkg/journal/pg"
	"github.com/ValerySidorin/ferry/pkg/transfer"
	"github.com/go-kit/log"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// Config selects where run outcomes are journaled. An empty store disables
// the journal.
type Config struct {
	Store string    `yaml:"store"`
	Pg    pg.Config `yaml:"pg"`
}

func (c *Config) RegisterFlags(flagPrefix string, f *flag.FlagSet) {
	f.StringVar(&c.Store, flagPrefix+"store", "", `Store run outcomes are journaled to. Supported values are: pg. Empty disables the journal.`)
	c.Pg.RegisterFlags(flagPrefix, f)
}

func (c *Config) Enabled() bool {
	return c.Store != ""
}

type Journal interface {
	BeginRun(ctx context.Context, run *pg.Run) error
	RecordOutcomes(ctx context.Context, entries []*pg.Entry) error
	FinishRun(ctx context.Context, run *pg.Run) error
	Dispose(ctx context.Context) error
}

func New(ctx context.Context, cfg Config, logger log.Logger) (Journal, error) {
	switch cfg.Store {
	case "pg":
		return pg.NewJournalStore(ctx, cfg.Pg, logger)
	}

	return nil, errors.Errorf("invalid journal store: %q", cfg.Store)
}

func NewRun(id, stamp string, started time.Time) *pg.Run {
	return &pg.Run{
		ID:        id,
		Stamp:     stamp,
		StartedAt: started,
	}
}

// Finish fills the counters of run from the outcomes of its transfers.
func Finish(run *pg.Run, outcomes []transfer.Outcome, finished time.Time) {
	run.FinishedAt = finished
	run.Files = len(outcomes)
	run.Succeeded = lo.CountBy(outcomes, func(o transfer.Outcome) bool {
		return o.Record.Extracted() && o.OK()
	})
	run.Failed = run.Files - run.Succeeded
}

func Entries(runID string, outcomes []transfer.Outcome, recorded time.Time) []*pg.Entry {
	return lo.Map(outcomes, func(o transfer.Outcome, _ int) *pg.Entry {
		return &pg.Entry{
			RunID:      runID,
			File:       o.Record.OriginalFileName,
			Payload:    o.Record.PayloadName(),
			Extraction: string(o.Record.Status),
			Code:       o.Code,
			Status:     o.Status,
			Text:       o.Text,
			Chunks:     o.Chunks,
			RecordedAt: recorded,
		}
	})
}

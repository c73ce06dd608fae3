package pg

import (
	"context"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const maxTextLen = 4000

type Run struct {
	ID         string
	Stamp      string
	StartedAt  time.Time
	FinishedAt time.Time
	Files      int
	Succeeded  int
	Failed     int
}

type Entry struct {
	RunID      string
	File       string
	Payload    string
	Extraction string
	Code       int
	Status     string
	Text       string
	Chunks     int
	RecordedAt time.Time
}

// Store journals runs and their outcomes to postgres. It is used by one run
// at a time.
type Store struct {
	cfg  Config
	log  log.Logger
	conn *pgx.Conn
}

func NewJournalStore(ctx context.Context, cfg Config, logger log.Logger) (*Store, error) {
	conn, err := pgx.Connect(ctx, cfg.Conn)
	if err != nil {
		return nil, errors.Wrap(err, "pg journal store init conn")
	}

	q := `create table if not exists public.runs
	(id text primary key, stamp text not null, started_at timestamptz not null, finished_at timestamptz,
	files integer not null default 0, succeeded integer not null default 0, failed integer not null default 0);
	create table if not exists public.run_outcomes
	(run_id text not null references public.runs(id), file text not null, payload text not null,
	extraction text not null, code integer not null, status text not null, text text not null,
	chunks integer not null, recorded_at timestamptz not null);`
	if _, err := conn.Exec(ctx, q); err != nil {
		conn.Close(ctx)
		return nil, errors.Wrap(err, "pg journal store init tables")
	}

	return &Store{
		cfg:  cfg,
		log:  log.With(logger, "component", "journal"),
		conn: conn,
	}, nil
}

func (s *Store) BeginRun(ctx context.Context, run *Run) error {
	q := `insert into runs(id, stamp, started_at) values($1, $2, $3);`

	if _, err := s.conn.Exec(ctx, q, run.ID, run.Stamp, run.StartedAt); err != nil {
		return errors.Wrap(err, "pg journal store insert run")
	}

	return nil
}

// RecordOutcomes inserts all entries in one transaction.
func (s *Store) RecordOutcomes(ctx context.Context, entries []*Entry) error {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "pg journal store begin transaction")
	}

	q := `insert into run_outcomes(run_id, file, payload, extraction, code, status, text, chunks, recorded_at)
	values($1, $2, $3, $4, $5, $6, $7, $8, $9);`

	b := &pgx.Batch{}
	for _, e := range entries {
		b.Queue(q, e.RunID, e.File, e.Payload, e.Extraction, e.Code, e.Status, truncate(e.Text), e.Chunks, e.RecordedAt)
	}

	if err := tx.SendBatch(ctx, b).Close(); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			_ = level.Warn(s.log).Log("msg", "pg journal store rollback failed", "err", rbErr)
		}
		return errors.Wrap(err, "pg journal store insert outcomes")
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "pg journal store commit transaction")
	}

	return nil
}

func (s *Store) FinishRun(ctx context.Context, run *Run) error {
	q := `update runs
	set finished_at = $2,
	files = $3,
	succeeded = $4,
	failed = $5
	where id = $1;`

	if _, err := s.conn.Exec(ctx, q, run.ID, run.FinishedAt, run.Files, run.Succeeded, run.Failed); err != nil {
		return errors.Wrap(err, "pg journal store update run")
	}

	return nil
}

func (s *Store) Dispose(ctx context.Context) error {
	if err := s.conn.Close(ctx); err != nil {
		return errors.Wrap(err, "pg journal store close connection")
	}

	return nil
}

func truncate(s string) string {
	r := []rune(s)
	if len(r) <= maxTextLen {
		return s
	}
	return string(r[:maxTextLen])
}

package reconcile

import (
	"context"
	"flag"
	"io"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ValerySidorin/ferry/pkg/metadata"
	"github.com/ValerySidorin/ferry/pkg/objstore"
	"github.com/ValerySidorin/ferry/pkg/transfer"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
)

const (
	runStampLayout = "20060102150405"
	dayLayout      = "20060102"
)

func RunStamp(t time.Time) string {
	return t.Format(runStampLayout)
}

// DayDir is the subdirectory of the source directory read in temp solution
// mode.
func DayDir(t time.Time) string {
	return t.Format(dayLayout)
}

type Config struct {
	BackupDir    string `yaml:"backup_dir"`
	ErrorDir     string `yaml:"error_dir"`
	TempSolution bool   `yaml:"temp_solution"`
}

func (c *Config) RegisterFlags(flagPrefix string, f *flag.FlagSet) {
	f.StringVar(&c.BackupDir, flagPrefix+"backup-dir", "", "Root of the per-run directories successfully archived pairs are moved to.")
	f.StringVar(&c.ErrorDir, flagPrefix+"error-dir", "", "Root of the per-run directories failed pairs are moved to.")
	f.BoolVar(&c.TempSolution, flagPrefix+"temp-solution", false, "Read from the <source>/<YYYYMMDD> directory and never move files.")
}

func (c *Config) Validate() error {
	if c.BackupDir == "" {
		return errors.New("backup directory is not set")
	}
	if c.ErrorDir == "" {
		return errors.New("error directory is not set")
	}
	return nil
}

type Summary struct {
	BackedUp int
	Errored  int
	Skipped  int
	Failed   int
}

// Reconciler moves every pair to the backup or error area of the run
// depending on its outcome.
type Reconciler struct {
	cfg    Config
	mirror objstore.Writer
	log    log.Logger
}

// New creates a reconciler. mirror may be nil.
func New(cfg Config, mirror objstore.Writer, logger log.Logger) *Reconciler {
	return &Reconciler{
		cfg:    cfg,
		mirror: mirror,
		log:    log.With(logger, "component", "reconciler"),
	}
}

// Prepare creates the backup and error roots.
func (r *Reconciler) Prepare() error {
	for _, dir := range []string{r.cfg.BackupDir, r.cfg.ErrorDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "create output directory")
		}
	}
	return nil
}

func (r *Reconciler) Reconcile(ctx context.Context, sourceDir, runStamp string, outcomes []transfer.Outcome) Summary {
	s := Summary{}

	for _, o := range outcomes {
		r.logOutcome(o)

		if r.cfg.TempSolution {
			continue
		}

		root, backup := r.cfg.ErrorDir, false
		if o.Record.Extracted() && o.OK() {
			root, backup = r.cfg.BackupDir, true
		}

		moved, err := r.movePair(sourceDir, filepath.Join(root, runStamp), o.Record)
		switch {
		case err != nil:
			s.Failed++
			_ = level.Error(r.log).Log("msg", "failed to move file pair", "file", o.Record.OriginalFileName, "err", err)
		case !moved:
			s.Skipped++
		case backup:
			s.BackedUp++
			r.mirrorPair(ctx, filepath.Join(root, runStamp), runStamp, o.Record)
		default:
			s.Errored++
		}
	}

	_ = level.Info(r.log).Log("msg", "reconciliation finished", "backed_up", s.BackedUp, "errored", s.Errored, "skipped", s.Skipped, "failed", s.Failed)
	return s
}

func (r *Reconciler) logOutcome(o transfer.Outcome) {
	logger := log.With(r.log, "file", o.Record.OriginalFileName)

	if o.Record.Extracted() {
		_ = level.Info(logger).Log("msg", "metadata extraction succeeded", "status", o.Record.Status)
	} else {
		_ = level.Error(logger).Log("msg", "metadata extraction failed", "status", o.Record.Status, "err", o.Record.Error())
	}

	if o.OK() {
		_ = level.Info(logger).Log("msg", "transfer succeeded", "status", o.Status, "text", o.Text)
	} else {
		_ = level.Error(logger).Log("msg", "transfer failed", "status", o.Status, "text", o.Text)
	}
}

// movePair moves the metadata file and its payload into dst. A pair with a
// missing member is left in place and reported as not moved.
func (r *Reconciler) movePair(sourceDir, dst string, rec *metadata.Record) (bool, error) {
	names := []string{rec.OriginalFileName, rec.PayloadName()}

	for _, name := range names {
		if name == "" || !isFile(filepath.Join(sourceDir, name)) {
			_ = level.Warn(r.log).Log("msg", "file pair incomplete, left in place", "file", rec.OriginalFileName, "missing", name)
			return false, nil
		}
	}

	if err := os.MkdirAll(dst, 0o755); err != nil {
		return false, errors.Wrap(err, "create run directory")
	}

	for _, name := range names {
		if err := move(filepath.Join(sourceDir, name), filepath.Join(dst, name)); err != nil {
			return false, err
		}
	}

	_ = level.Debug(r.log).Log("msg", "file pair moved", "file", rec.OriginalFileName, "dst", dst)
	return true, nil
}

func (r *Reconciler) mirrorPair(ctx context.Context, dir, runStamp string, rec *metadata.Record) {
	if r.mirror == nil {
		return
	}

	for _, name := range []string{rec.OriginalFileName, rec.PayloadName()} {
		if err := r.mirrorFile(ctx, filepath.Join(dir, name), objstore.ObjectName(runStamp, name)); err != nil {
			_ = level.Warn(r.log).Log("msg", "failed to mirror backed-up file", "file", name, "err", err)
		}
	}
}

func (r *Reconciler) mirrorFile(ctx context.Context, path, objName string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open backed-up file")
	}
	defer f.Close()

	return r.mirror.Store(ctx, objName, f)
}

func isFile(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.Mode().IsRegular()
}

// move renames src to dst, copying when both are on different devices.
func move(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	if !crossDevice(err) {
		return errors.Wrap(err, "move file")
	}

	if err := copyFile(src, dst); err != nil {
		return errors.Wrap(err, "move file")
	}
	if err := os.Remove(src); err != nil {
		return errors.Wrap(err, "remove moved file")
	}
	return nil
}

func crossDevice(err error) bool {
	return errors.Is(err, syscall.EXDEV)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	st, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, st.Mode().Perm())
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

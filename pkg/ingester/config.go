package ingester

import (
	"flag"
	"time"

	"github.com/ValerySidorin/ferry/pkg/batch"
	"github.com/ValerySidorin/ferry/pkg/journal"
	"github.com/ValerySidorin/ferry/pkg/metadata"
	"github.com/ValerySidorin/ferry/pkg/objstore"
	"github.com/ValerySidorin/ferry/pkg/queue"
	"github.com/ValerySidorin/ferry/pkg/reconcile"
	"github.com/ValerySidorin/ferry/pkg/session"
	"github.com/ValerySidorin/ferry/pkg/transfer"
	util_http "github.com/ValerySidorin/ferry/pkg/util/http"
	"github.com/pkg/errors"
)

type Config struct {
	SourceDir       string        `yaml:"source_dir"`
	PollingInterval time.Duration `yaml:"polling_interval"`

	Metadata  metadata.Config        `yaml:"metadata"`
	Archive   transfer.Config        `yaml:"archive"`
	HTTP      util_http.ClientConfig `yaml:"http"`
	Token     session.Config         `yaml:"token"`
	Batch     batch.Config           `yaml:"batch"`
	Reconcile reconcile.Config       `yaml:"reconcile"`
	Mirror    objstore.Config        `yaml:"mirror"`
	Journal   journal.Config         `yaml:"journal"`
	Notify    queue.Config           `yaml:"notify"`
}

func (c *Config) RegisterFlags(f *flag.FlagSet) {
	f.StringVar(&c.SourceDir, "source-dir", "", "Directory holding the metadata files and their payloads.")
	f.DurationVar(&c.PollingInterval, "polling-interval", 0, "Run the pipeline every interval. 0 runs it once and exits.")

	c.Metadata.RegisterFlags("metadata.", f)
	c.Archive.RegisterFlags("archive.", f)
	c.HTTP.RegisterFlags("archive.", f)
	c.Token.RegisterFlags("token.", f)
	c.Batch.RegisterFlags("batch.", f)
	c.Reconcile.RegisterFlags("", f)
	c.Mirror.RegisterFlags("mirror.", f)
	c.Journal.RegisterFlags("journal.", f)
	c.Notify.RegisterFlags("notify.", f)
}

// ApplyDefaults fills settings derived from other settings.
func (c *Config) ApplyDefaults() error {
	if c.Token.TokenEndpoint == "" {
		endpoint, err := c.Archive.TokenEndpoint()
		if err != nil {
			return err
		}
		c.Token.TokenEndpoint = endpoint
	}
	return nil
}

func (c *Config) Validate() error {
	if c.SourceDir == "" {
		return errors.New("source directory is not set")
	}
	if c.PollingInterval < 0 {
		return errors.New("polling interval must not be negative")
	}
	if err := c.Archive.Validate(); err != nil {
		return err
	}
	if err := c.Batch.Validate(); err != nil {
		return err
	}
	if err := c.Reconcile.Validate(); err != nil {
		return err
	}
	return c.Token.Validate()
}

package objstore

import (
	"context"
	"flag"
	"io"

	"github.com/ValerySidorin/ferry/pkg/objstore/minio"
	"github.com/pkg/errors"
)

const (
	Delimiter = "/"
)

// Config selects the object storage backed-up pairs are mirrored to. An empty
// store disables mirroring.
type Config struct {
	Store  string       `yaml:"store"`
	Bucket string       `yaml:"bucket"`
	Minio  minio.Config `yaml:"minio"`
}

func (c *Config) RegisterFlags(flagPrefix string, f *flag.FlagSet) {
	f.StringVar(&c.Store, flagPrefix+"store", "", `Object storage backed-up files are mirrored to. Supported values are: minio. Empty disables mirroring.`)
	f.StringVar(&c.Bucket, flagPrefix+"bucket", "ferry-backup", "Bucket backed-up files are mirrored to.")
	c.Minio.RegisterFlags(flagPrefix+"minio.", f)
}

func (c *Config) Enabled() bool {
	return c.Store != ""
}

type Writer interface {
	Store(ctx context.Context, objName string, r io.Reader) error
}

// ObjectName is the key of a file backed up by the run with the given stamp.
func ObjectName(runStamp, fileName string) string {
	return runStamp + Delimiter + fileName
}

func NewWriter(ctx context.Context, cfg Config) (Writer, error) {
	switch cfg.Store {
	case "minio":
		return minio.NewWriter(ctx, cfg.Minio, cfg.Bucket)
	}

	return nil, errors.Errorf("invalid object store for writer: %q", cfg.Store)
}

package store

import (
	"context"
	"flag"

	"github.com/ValerySidorin/ferry/pkg/util"
	"github.com/go-kit/log"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Store keeps the encoded credential at one opaque location. Get returns nil
// without an error when nothing was stored yet.
type Store interface {
	Get(ctx context.Context) ([]byte, error)
	Put(ctx context.Context, b []byte) error
}

type Config struct {
	Store string        `yaml:"store"`
	File  FileConfig    `yaml:"file"`
	KV    util.KVConfig `yaml:"kv"`
}

func (c *Config) RegisterFlags(flagPrefix string, f *flag.FlagSet) {
	f.StringVar(&c.Store, flagPrefix+"store", "file", "Where the access token is persisted between runs. Supported values are: file, kv.")
	c.File.RegisterFlags(flagPrefix+"file.", f)
	c.KV.RegisterFlagsWithPrefix(flagPrefix+"kv.", "ferry/", f)
}

func New(cfg Config, reg prometheus.Registerer, logger log.Logger) (Store, error) {
	switch cfg.Store {
	case "file":
		return NewFileStore(cfg.File), nil
	case "kv":
		return NewKVStore(cfg.KV, reg, logger)
	}

	return nil, errors.Errorf("invalid credential store: %q", cfg.Store)
}

package store

import (
	"context"
	"flag"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

type FileConfig struct {
	Dir  string `yaml:"dir"`
	Name string `yaml:"name"`
}

func (c *FileConfig) RegisterFlags(flagPrefix string, f *flag.FlagSet) {
	f.StringVar(&c.Dir, flagPrefix+"dir", filepath.Join(os.TempDir(), "ferry"), "Directory of the token file. Created if missing.")
	f.StringVar(&c.Name, flagPrefix+"name", "auth_token.json", "Name of the token file.")
}

func (c FileConfig) Path() string {
	return filepath.Join(c.Dir, c.Name)
}

// FileStore replaces the token file atomically, so a concurrent reader sees
// either the old or the new content.
type FileStore struct {
	cfg FileConfig
}

func NewFileStore(cfg FileConfig) *FileStore {
	return &FileStore{cfg: cfg}
}

func (s *FileStore) Get(_ context.Context) ([]byte, error) {
	b, err := os.ReadFile(s.cfg.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "read token file")
	}
	return b, nil
}

func (s *FileStore) Put(_ context.Context, b []byte) error {
	if err := os.MkdirAll(s.cfg.Dir, 0o755); err != nil {
		return errors.Wrap(err, "create token directory")
	}

	tmp, err := os.CreateTemp(s.cfg.Dir, s.cfg.Name+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp token file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return errors.Wrap(err, "write temp token file")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrap(err, "sync temp token file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close temp token file")
	}

	if err := os.Rename(tmp.Name(), s.cfg.Path()); err != nil {
		return errors.Wrap(err, "replace token file")
	}

	return nil
}

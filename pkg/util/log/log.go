package log

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/weaveworks/common/logging"
)

var (
	Logger = log.NewNopLogger()
)

type Config struct {
	LogFormat logging.Format `yaml:"log_format"`
	LogLevel  logging.Level  `yaml:"log_level"`
	LogFile   string         `yaml:"log_file"`
}

func (c *Config) RegisterFlags(f *flag.FlagSet) {
	c.LogFormat.RegisterFlags(f)
	c.LogLevel.RegisterFlags(f)
	f.StringVar(&c.LogFile, "log.file", "", "Write logs to this file instead of stderr. The directory is created if missing.")
}

// InitLogger replaces the package Logger. The returned closer releases the
// log file, if one was opened.
func InitLogger(cfg *Config) (io.Closer, error) {
	w, closer, err := openOutput(cfg.LogFile)
	if err != nil {
		return nil, err
	}

	l := newBasicLogger(w, cfg.LogFormat)
	Logger = level.NewFilter(log.With(l, "caller", log.Caller(5)), cfg.LogLevel.Gokit)

	return closer, nil
}

func NewDefaultLogger(w io.Writer, l logging.Level, format logging.Format) log.Logger {
	return level.NewFilter(log.With(newBasicLogger(w, format), "caller", log.DefaultCaller), l.Gokit)
}

func newBasicLogger(w io.Writer, format logging.Format) log.Logger {
	var logger log.Logger
	if format.String() == "json" {
		logger = log.NewJSONLogger(log.NewSyncWriter(w))
	} else {
		logger = log.NewLogfmtLogger(log.NewSyncWriter(w))
	}

	return log.With(logger, "ts", log.DefaultTimestamp)
}

func openOutput(path string) (io.Writer, io.Closer, error) {
	if path == "" {
		return os.Stderr, io.NopCloser(nil), nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, errors.Wrap(err, "create log dir")
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, errors.Wrap(err, "open log file")
	}

	return f, f, nil
}

func CheckFatal(location string, err error) {
	if err != nil {
		logger := level.Error(Logger)
		if location != "" {
			logger = log.With(logger, "msg", "error "+location)
		}

		_ = logger.Log("err", fmt.Sprintf("%+v", err))
		os.Exit(1)
	}
}

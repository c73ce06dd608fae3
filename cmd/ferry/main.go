package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ValerySidorin/ferry/pkg/ferry"
	util_log "github.com/ValerySidorin/ferry/pkg/util/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/yaml.v2"
)

const configFileOption = "config.file"

func main() {
	var (
		cfg        ferry.Config
		configFile string
	)

	if err := parseConfig(os.Args[1:], &cfg, &configFile); err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}

	closer, err := util_log.InitLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error initializing logger: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, reg)
	}

	f, err := ferry.New(cfg, reg)
	util_log.CheckFatal("initializing application", err)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	_ = level.Info(util_log.Logger).Log("msg", "starting ferry", "target", cfg.Target, "config", configFile)

	err = f.Run(ctx)
	util_log.CheckFatal("running application", err)

	_ = level.Info(util_log.Logger).Log("msg", "ferry stopped")
}

// parseConfig applies flag defaults, then the YAML file, then the command
// line, so explicit flags always win.
func parseConfig(args []string, cfg *ferry.Config, configFile *string) error {
	fs := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	fs.StringVar(configFile, configFileOption, "", "YAML configuration file.")
	cfg.RegisterFlags(fs)

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *configFile == "" {
		return nil
	}

	buf, err := os.ReadFile(*configFile)
	if err != nil {
		return errors.Wrap(err, "read config file")
	}
	if err := yaml.UnmarshalStrict(buf, cfg); err != nil {
		return errors.Wrap(err, "parse config file")
	}

	return fs.Parse(args)
}

func serveMetrics(addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	if err := http.ListenAndServe(addr, mux); err != nil {
		_ = level.Error(util_log.Logger).Log("msg", "metrics endpoint stopped", "err", err)
	}
}

package ferry

import (
	"context"
	"flag"

	"github.com/ValerySidorin/ferry/pkg/ingester"
	util_log "github.com/ValerySidorin/ferry/pkg/util/log"
	"github.com/go-kit/log/level"
	"github.com/grafana/dskit/modules"
	"github.com/grafana/dskit/services"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

type Ferry struct {
	Cfg        Config
	Registerer prometheus.Registerer

	// set during initialization
	ServiceMap    map[string]services.Service
	ModuleManager *modules.Manager

	Ingester *ingester.Ingester
}

type Config struct {
	Target      string          `yaml:"target"`
	MetricsAddr string          `yaml:"metrics_addr"`
	Log         util_log.Config `yaml:",inline"`

	Ingester ingester.Config `yaml:",inline"`
}

func (c *Config) RegisterFlags(f *flag.FlagSet) {
	f.StringVar(&c.Target, "target", All, "Module to run.")
	f.StringVar(&c.MetricsAddr, "metrics.addr", "", "Serve Prometheus metrics on this address, e.g. :9100. Empty disables the endpoint.")
	c.Log.RegisterFlags(f)
	c.Ingester.RegisterFlags(f)
}

func New(cfg Config, reg prometheus.Registerer) (*Ferry, error) {
	f := &Ferry{
		Cfg:        cfg,
		Registerer: reg,
	}

	if err := f.setupModuleManager(); err != nil {
		return nil, err
	}

	return f, nil
}

// Run starts the target module and blocks until every service stopped. It
// fails when any service failed.
func (f *Ferry) Run(ctx context.Context) error {
	var err error
	f.ServiceMap, err = f.ModuleManager.InitModuleServices(f.Cfg.Target)
	if err != nil {
		return errors.Wrap(err, "init module services")
	}

	svcs := make([]services.Service, 0, len(f.ServiceMap))
	for _, s := range f.ServiceMap {
		svcs = append(svcs, s)
	}

	sm, err := services.NewManager(svcs...)
	if err != nil {
		return errors.Wrap(err, "create service manager")
	}

	sm.AddListener(services.NewManagerListener(nil, nil, func(s services.Service) {
		_ = level.Error(util_log.Logger).Log("msg", "service failed", "err", s.FailureCase())
	}))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := sm.StartAsync(ctx); err != nil {
		return errors.Wrap(err, "start services")
	}

	go func() {
		<-ctx.Done()
		sm.StopAsync()
	}()

	if err := sm.AwaitStopped(context.Background()); err != nil {
		return err
	}

	for _, s := range svcs {
		if s.State() == services.Failed {
			return s.FailureCase()
		}
	}

	return nil
}

package ferry

import (
	"context"

	"github.com/ValerySidorin/ferry/pkg/ingester"
	util_log "github.com/ValerySidorin/ferry/pkg/util/log"
	"github.com/grafana/dskit/modules"
	"github.com/grafana/dskit/services"
)

const (
	Ingester = "ingester"
	All      = "all"
)

func (f *Ferry) initIngester() (services.Service, error) {
	var err error
	f.Ingester, err = ingester.New(context.Background(), f.Cfg.Ingester, f.Registerer, util_log.Logger)
	if err != nil {
		return nil, err
	}

	return f.Ingester, nil
}

func (f *Ferry) setupModuleManager() error {
	mm := modules.NewManager(util_log.Logger)

	mm.RegisterModule(Ingester, f.initIngester)
	mm.RegisterModule(All, nil)

	deps := map[string][]string{
		All: {Ingester},
	}
	for mod, targets := range deps {
		if err := mm.AddDependency(mod, targets...); err != nil {
			return err
		}
	}

	f.ModuleManager = mm
	return nil
}

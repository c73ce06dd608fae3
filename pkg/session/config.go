package session

import (
	"flag"

	"github.com/ValerySidorin/ferry/pkg/session/store"
	"github.com/grafana/dskit/flagext"
	"github.com/pkg/errors"
)

const (
	defaultClientID = "docuware.platform.net.client"
	defaultScope    = "docuware.platform"
)

type Config struct {
	TokenEndpoint string         `yaml:"token_endpoint"`
	ClientID      string         `yaml:"client_id"`
	Username      string         `yaml:"username"`
	Password      flagext.Secret `yaml:"password"`
	Scope         string         `yaml:"scope"`
	Store         store.Config   `yaml:"store"`
}

func (c *Config) RegisterFlags(flagPrefix string, f *flag.FlagSet) {
	f.StringVar(&c.TokenEndpoint, flagPrefix+"endpoint", "", "Token endpoint. Defaults to <archive base url>/docuware/platform/Account/Token.")
	f.StringVar(&c.ClientID, flagPrefix+"client-id", defaultClientID, "OAuth client id of the password grant.")
	f.StringVar(&c.Username, flagPrefix+"username", "", "Archive user name.")
	f.Var(&c.Password, flagPrefix+"password", "Archive user password.")
	f.StringVar(&c.Scope, flagPrefix+"scope", defaultScope, "OAuth scope of the password grant.")
	c.Store.RegisterFlags(flagPrefix, f)
}

func (c *Config) Validate() error {
	if c.TokenEndpoint == "" {
		return errors.New("token endpoint is not set")
	}
	if c.Username == "" {
		return errors.New("archive username is not set")
	}
	return nil
}

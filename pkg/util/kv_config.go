package util

import (
	"flag"
	"time"

	dstls "github.com/grafana/dskit/crypto/tls"
	"github.com/grafana/dskit/flagext"
	"github.com/grafana/dskit/kv"
	"github.com/grafana/dskit/kv/consul"
	"github.com/grafana/dskit/kv/etcd"
)

// KVConfig is the yaml-friendly mirror of dskit kv.Config. Only the stores a
// single ingest process can use are exposed: consul, etcd and inmemory.
type KVConfig struct {
	Store  string       `yaml:"store"`
	Prefix string       `yaml:"prefix"`
	Consul ConsulConfig `yaml:"consul"`
	Etcd   EtcdConfig   `yaml:"etcd"`
}

func (cfg *KVConfig) RegisterFlagsWithPrefix(flagsPrefix, defaultPrefix string, f *flag.FlagSet) {
	cfg.Consul.RegisterFlags(f, flagsPrefix)
	cfg.Etcd.RegisterFlagsWithPrefix(f, flagsPrefix)

	f.StringVar(&cfg.Prefix, flagsPrefix+"prefix", defaultPrefix, "The prefix for the keys in the store. Should end with a /.")
	f.StringVar(&cfg.Store, flagsPrefix+"store", "inmemory", "Backend KV store. Supported values are: consul, etcd, inmemory.")
}

type ConsulConfig struct {
	Host              string        `yaml:"host"`
	ACLToken          string        `yaml:"acl_token"`
	HTTPClientTimeout time.Duration `yaml:"http_client_timeout"`
	ConsistentReads   bool          `yaml:"consistent_reads"`
}

func (cfg *ConsulConfig) RegisterFlags(f *flag.FlagSet, prefix string) {
	f.StringVar(&cfg.Host, prefix+"consul.hostname", "localhost:8500", "Hostname and port of Consul.")
	f.StringVar(&cfg.ACLToken, prefix+"consul.acl-token", "", "ACL Token used to interact with Consul.")
	f.DurationVar(&cfg.HTTPClientTimeout, prefix+"consul.client-timeout", 20*time.Second, "HTTP timeout when talking to Consul.")
	f.BoolVar(&cfg.ConsistentReads, prefix+"consul.consistent-reads", true, "Enable consistent reads to Consul.")
}

type EtcdConfig struct {
	Endpoints   []string      `yaml:"endpoints"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
	MaxRetries  int           `yaml:"max_retries"`
	EnableTLS   bool          `yaml:"tls_enabled"`
	CAPath      string        `yaml:"tls_ca_path"`

	UserName string `yaml:"username"`
	Password string `yaml:"password"`
}

func (cfg *EtcdConfig) RegisterFlagsWithPrefix(f *flag.FlagSet, prefix string) {
	cfg.Endpoints = []string{}
	f.Var((*flagext.StringSlice)(&cfg.Endpoints), prefix+"etcd.endpoints", "The etcd endpoints to connect to.")
	f.DurationVar(&cfg.DialTimeout, prefix+"etcd.dial-timeout", 10*time.Second, "The dial timeout for the etcd connection.")
	f.IntVar(&cfg.MaxRetries, prefix+"etcd.max-retries", 10, "The maximum number of retries to do for failed ops.")
	f.BoolVar(&cfg.EnableTLS, prefix+"etcd.tls-enabled", false, "Enable TLS.")
	f.StringVar(&cfg.CAPath, prefix+"etcd.tls-ca-path", "", "Path to the CA certificates file to validate the etcd server against.")
	f.StringVar(&cfg.UserName, prefix+"etcd.username", "", "Etcd username.")
	f.StringVar(&cfg.Password, prefix+"etcd.password", "", "Etcd password.")
}

func (c *KVConfig) ToKVConfig() kv.Config {
	kc := kv.Config{}

	kc.Store = c.Store
	kc.Prefix = c.Prefix

	switch c.Store {
	case "consul":
		kc.Consul = consul.Config{}

		kc.Consul.Host = c.Consul.Host
		kc.Consul.ACLToken = flagext.SecretWithValue(c.Consul.ACLToken)
		kc.Consul.HTTPClientTimeout = c.Consul.HTTPClientTimeout
		kc.Consul.ConsistentReads = c.Consul.ConsistentReads
	case "etcd":
		kc.Etcd = etcd.Config{}
		kc.Etcd.TLS = dstls.ClientConfig{}

		kc.Etcd.Endpoints = c.Etcd.Endpoints
		kc.Etcd.DialTimeout = c.Etcd.DialTimeout
		kc.Etcd.MaxRetries = c.Etcd.MaxRetries
		kc.Etcd.EnableTLS = c.Etcd.EnableTLS
		kc.Etcd.TLS.CAPath = c.Etcd.CAPath
		kc.Etcd.UserName = c.Etcd.UserName
		kc.Etcd.Password = flagext.SecretWithValue(c.Etcd.Password)
	}

	return kc
}

package queue

import (
	"flag"

	"github.com/ValerySidorin/ferry/pkg/queue/message"
	"github.com/ValerySidorin/ferry/pkg/queue/nats"
	"github.com/go-kit/log"
	"github.com/pkg/errors"
)

// Config selects where transfer outcomes are announced. An empty type
// disables notifications.
type Config struct {
	Type    string      `yaml:"type"`
	Channel string      `yaml:"channel"`
	Nats    nats.Config `yaml:"nats"`
}

func (c *Config) RegisterFlags(flagPrefix string, f *flag.FlagSet) {
	f.StringVar(&c.Type, flagPrefix+"type", "", "Queue transfer outcomes are published to. Supported values are: nats. Empty disables notifications.")
	f.StringVar(&c.Channel, flagPrefix+"channel", "ferry.outcomes", "Channel transfer outcomes are published to.")
	c.Nats.RegisterFlags(flagPrefix+"nats.", f)
}

func (c *Config) Enabled() bool {
	return c.Type != ""
}

type Publisher interface {
	Pub(channel string, msg *message.Message) error
	Close() error
}

func NewPublisher(cfg Config, log log.Logger) (Publisher, error) {
	switch cfg.Type {
	case "nats":
		return nats.NewNatsClient(cfg.Nats, log)
	default:
		return nil, errors.New("invalid queue type")
	}
}

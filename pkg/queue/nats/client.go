package nats

import (
	"flag"
	"time"

	"github.com/ValerySidorin/ferry/pkg/queue/message"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
)

type Config struct {
	Url           string        `yaml:"url"`
	Name          string        `yaml:"name"`
	FlushTimeout  time.Duration `yaml:"flush_timeout"`
	ReconnectWait time.Duration `yaml:"reconnect_wait"`
}

func (c *Config) RegisterFlags(flagPrefix string, f *flag.FlagSet) {
	f.StringVar(&c.Url, flagPrefix+"url", nats.DefaultURL, "NATS server url.")
	f.StringVar(&c.Name, flagPrefix+"name", "ferry", "Connection name reported to the NATS server.")
	f.DurationVar(&c.FlushTimeout, flagPrefix+"flush-timeout", 5*time.Second, "How long closing the publisher waits for buffered messages.")
	f.DurationVar(&c.ReconnectWait, flagPrefix+"reconnect-wait", 2*time.Second, "Wait between reconnect attempts.")
}

type NatsClient struct {
	cfg  Config
	conn *nats.Conn
	log  log.Logger
}

func NewNatsClient(cfg Config, logger log.Logger) (*NatsClient, error) {
	logger = log.With(logger, "component", "nats")

	conn, err := nats.Connect(cfg.Url,
		nats.Name(cfg.Name),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				_ = level.Warn(logger).Log("msg", "nats disconnected", "err", err)
			}
		}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "initialize nats connection")
	}

	return &NatsClient{
		cfg:  cfg,
		conn: conn,
		log:  logger,
	}, nil
}

func (n *NatsClient) Pub(channel string, msg *message.Message) error {
	if err := n.conn.Publish(channel, []byte(msg.String())); err != nil {
		return errors.Wrap(err, "nats publish")
	}

	return nil
}

// Close flushes buffered messages before closing the connection.
func (n *NatsClient) Close() error {
	defer n.conn.Close()

	if err := n.conn.FlushTimeout(n.cfg.FlushTimeout); err != nil {
		return errors.Wrap(err, "nats flush")
	}

	return nil
}

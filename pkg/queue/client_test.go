package queue

import (
	"flag"
	"testing"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
)

func TestConfig(t *testing.T) {
	cfg := Config{}
	cfg.RegisterFlags("notify.", flag.NewFlagSet("test", flag.PanicOnError))

	assert.False(t, cfg.Enabled())
	assert.Equal(t, "ferry.outcomes", cfg.Channel)
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.Nats.Url)
}

func TestNewPublisherErrors(t *testing.T) {
	_, err := NewPublisher(Config{Type: "kafka"}, log.NewNopLogger())
	assert.Error(t, err)

	cfg := Config{Type: "nats"}
	cfg.Nats.Url = "nats://127.0.0.1:1"
	_, err = NewPublisher(cfg, log.NewNopLogger())
	assert.Error(t, err)
}

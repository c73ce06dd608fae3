package objstore

import (
	"context"
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfig(t *testing.T) {
	cfg := Config{}
	cfg.RegisterFlags("mirror.", flag.NewFlagSet("test", flag.PanicOnError))

	assert.False(t, cfg.Enabled())
	assert.Equal(t, "ferry-backup", cfg.Bucket)
	assert.Equal(t, "localhost:9000", cfg.Minio.Endpoint)

	cfg.Store = "minio"
	assert.True(t, cfg.Enabled())
}

func TestNewWriterRejectsUnknownStore(t *testing.T) {
	_, err := NewWriter(context.Background(), Config{Store: "gcs"})
	assert.Error(t, err)
}

func TestObjectName(t *testing.T) {
	assert.Equal(t, "20240315101112/doc.pdf", ObjectName("20240315101112", "doc.pdf"))
}

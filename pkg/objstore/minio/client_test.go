package minio

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/pdf", ContentType("20240315101112/doc.pdf"))
	assert.Equal(t, "application/octet-stream", ContentType("20240315101112/doc"))
}

package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPayloadName(t *testing.T) {
	tests := []struct {
		fileName *string
		expected string
	}{
		{nil, ""},
		{Optional("a.pdf"), "a.pdf"},
		{Optional("Rechnung 2024 ü.pdf"), "Rechnung 2024 ü.pdf"},
		{Optional("../a.pdf"), ""},
		{Optional("sub/a.pdf"), ""},
		{Optional("/etc/passwd"), ""},
		{Optional(".."), ""},
		{Optional("."), ""},
	}

	for _, tt := range tests {
		rec := NewRecord("doc.xml")
		rec.FileName = tt.fileName
		assert.Equal(t, tt.expected, rec.PayloadName(), Value(tt.fileName))
	}
}

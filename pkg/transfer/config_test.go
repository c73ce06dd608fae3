package transfer

import (
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigURLs(t *testing.T) {
	tests := []struct {
		base      string
		documents string
		token     string
	}{
		{
			base:      "company.docuware.cloud",
			documents: "https://company.docuware.cloud/docuware/platform/FileCabinets/cab/Documents",
			token:     "https://company.docuware.cloud/docuware/platform/Account/Token",
		},
		{
			base:      "http://localhost:8080/",
			documents: "http://localhost:8080/docuware/platform/FileCabinets/cab/Documents",
			token:     "http://localhost:8080/docuware/platform/Account/Token",
		},
	}

	for _, tt := range tests {
		cfg := Config{BaseURL: tt.base, FileCabinetID: "cab", ChunkSize: 1}
		require.NoError(t, cfg.Validate(), tt.base)

		documents, err := cfg.DocumentsURL()
		require.NoError(t, err)
		assert.Equal(t, tt.documents, documents)

		token, err := cfg.TokenEndpoint()
		require.NoError(t, err)
		assert.Equal(t, tt.token, token)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{}
	cfg.RegisterFlags("archive.", flag.NewFlagSet("test", flag.PanicOnError))
	assert.Equal(t, 1024*1024, cfg.ChunkSize)
	assert.Error(t, cfg.Validate())

	cfg.BaseURL = "company.docuware.cloud"
	cfg.FileCabinetID = "cab"
	assert.NoError(t, cfg.Validate())

	cfg.ChunkSize = 0
	assert.Error(t, cfg.Validate())

	cfg.ChunkSize = 1
	cfg.BaseURL = "https://"
	assert.Error(t, cfg.Validate())
}

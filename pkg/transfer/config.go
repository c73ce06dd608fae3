package transfer

import (
	"flag"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

const (
	defaultChunkSize = 1024 * 1024
	platformPath     = "docuware/platform"
)

type Config struct {
	BaseURL       string `yaml:"base_url"`
	FileCabinetID string `yaml:"file_cabinet_id"`
	ChunkSize     int    `yaml:"chunk_size"`
}

func (c *Config) RegisterFlags(flagPrefix string, f *flag.FlagSet) {
	f.StringVar(&c.BaseURL, flagPrefix+"base-url", "", "Archive base URL, e.g. https://company.docuware.cloud. A bare host name is served over https.")
	f.StringVar(&c.FileCabinetID, flagPrefix+"file-cabinet", "", "GUID of the file cabinet documents are stored in.")
	f.IntVar(&c.ChunkSize, flagPrefix+"chunk-size", defaultChunkSize, "Bytes of payload sent per chunk request.")
}

func (c *Config) Validate() error {
	if c.ChunkSize <= 0 {
		return errors.Errorf("chunk size must be positive, got %d", c.ChunkSize)
	}
	if c.FileCabinetID == "" {
		return errors.New("file cabinet is not set")
	}
	if _, err := c.Base(); err != nil {
		return err
	}
	return nil
}

// Base is the archive root continuation links are resolved against.
func (c *Config) Base() (*url.URL, error) {
	raw := strings.TrimSpace(c.BaseURL)
	if raw == "" {
		return nil, errors.New("archive base url is not set")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, errors.Wrap(err, "parse archive base url")
	}
	if u.Host == "" {
		return nil, errors.Errorf("archive base url %q has no host", c.BaseURL)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u, nil
}

func (c *Config) DocumentsURL() (string, error) {
	return c.platformURL("FileCabinets/" + url.PathEscape(c.FileCabinetID) + "/Documents")
}

func (c *Config) TokenEndpoint() (string, error) {
	return c.platformURL("Account/Token")
}

func (c *Config) platformURL(path string) (string, error) {
	base, err := c.Base()
	if err != nil {
		return "", err
	}
	return base.String() + platformPath + "/" + path, nil
}

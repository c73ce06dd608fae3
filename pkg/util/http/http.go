package http

import (
	"errors"
	"flag"
	"net/http"
	"net/url"
	"time"

	dstls "github.com/grafana/dskit/crypto/tls"
	"github.com/hashicorp/go-retryablehttp"
	pkgerrors "github.com/pkg/errors"
)

func isSuccessStatusCode(resp *http.Response) bool {
	return resp.StatusCode >= 200 && resp.StatusCode <= 299
}

func EnsureSuccessStatusCode(resp *http.Response) error {
	if !isSuccessStatusCode(resp) {
		return errors.New("http response did not indicate success status code: " + resp.Status)
	}
	return nil
}

// ClientConfig describes the outbound HTTP client shared by the token and
// archive calls.
type ClientConfig struct {
	Timeout  time.Duration      `yaml:"timeout"`
	RetryMax int                `yaml:"retry_max"`
	Proxy    string             `yaml:"proxy"`
	TLS      dstls.ClientConfig `yaml:",inline"`
}

func (c *ClientConfig) RegisterFlags(flagPrefix string, f *flag.FlagSet) {
	f.DurationVar(&c.Timeout, flagPrefix+"timeout", 30*time.Second, "Timeout of a single HTTP request.")
	f.IntVar(&c.RetryMax, flagPrefix+"retry-max", 0, "Transport-level retries of a single HTTP request. 0 means a failed request is terminal.")
	f.StringVar(&c.Proxy, flagPrefix+"proxy", "", "HTTP proxy URL, e.g. http://localhost:8888 for a debugging proxy.")
	c.TLS.RegisterFlagsWithPrefix(flagPrefix+"http", f)
}

// NewClient builds a retryablehttp client that hands the final response back
// to the caller instead of swallowing it once retries are exhausted.
func NewClient(cfg ClientConfig) (*retryablehttp.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	tlsCfg, err := cfg.TLS.GetTLSConfig()
	if err != nil {
		return nil, pkgerrors.Wrap(err, "http client tls config")
	}
	transport.TLSClientConfig = tlsCfg

	if cfg.Proxy != "" {
		proxyURL, err := url.Parse(cfg.Proxy)
		if err != nil {
			return nil, pkgerrors.Wrap(err, "http client parse proxy")
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	c := retryablehttp.NewClient()
	c.Logger = nil
	c.RetryMax = cfg.RetryMax
	c.ErrorHandler = retryablehttp.PassthroughErrorHandler
	c.HTTPClient = &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
	}

	return c, nil
}

package http

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type addTest struct {
	resp   http.Response
	output bool
}

var tests = []addTest{
	{http.Response{StatusCode: 200}, true},
	{http.Response{StatusCode: 102}, false},
	{http.Response{StatusCode: 301}, false},
	{http.Response{StatusCode: 404}, false},
	{http.Response{StatusCode: 500}, false},
}

func TestIsSuccessStatusCode(t *testing.T) {
	for _, v := range tests {
		res := isSuccessStatusCode(&v.resp)
		assert.Equal(t, res, v.output, fmt.Sprintf("output %t not equal to expected %t", res, v.output))
	}
}

func TestEnsureSuccessStatusCode(t *testing.T) {
	for _, v := range tests {
		err := EnsureSuccessStatusCode(&v.resp)
		assert.Equal(t, v.output, err == nil, fmt.Sprintf("output %t not equal to expected %t", err == nil, v.output))
	}
}

func TestNewClientPassesThroughServerErrors(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, err := NewClient(ClientConfig{Timeout: time.Second})
	require.NoError(t, err)

	req, err := retryablehttp.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, 1, calls)
}

func TestNewClientRejectsBadProxy(t *testing.T) {
	_, err := NewClient(ClientConfig{Proxy: "://bad"})
	assert.Error(t, err)
}

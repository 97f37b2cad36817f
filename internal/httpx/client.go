// Package httpx builds the outbound HTTP clients used by the quote providers.
package httpx

import (
	"net"
	"net/http"
	"time"
)

// NewHTTPClient returns a client for calls to external market-data APIs.
//
// The transport honours HTTP_PROXY and friends, dials with a short connect
// timeout and keeps idle connections for reuse. timeout bounds the whole
// request; zero leaves it to the request context.
func NewHTTPClient(timeout time.Duration) *http.Client {
	t := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &http.Client{Timeout: timeout, Transport: t}
}

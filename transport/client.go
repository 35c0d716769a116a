package transport

import (
	"net"
	"net/http"
	"time"
)

// NewTransport returns the pooled transport shared by the page and batch clients.
func NewTransport(dialTimeout time.Duration) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   dialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
}

// NewClient returns an HTTP client whose requests give up after timeout.
func NewClient(timeout time.Duration, rt http.RoundTripper) *http.Client {
	if rt == nil {
		rt = NewTransport(timeout)
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: rt,
	}
}

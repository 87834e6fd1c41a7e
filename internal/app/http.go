package app

import (
	"net"
	"net/http"
	"time"
)

// newHTTPClient returns a client with its own transport. The overall timeout
// is a backstop; callers bound each request with a context as well.
func newHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          64,
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	if timeout <= 0 {
		timeout = DefaultLLMTimeout
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

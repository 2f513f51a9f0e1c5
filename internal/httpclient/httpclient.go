package httpclient

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/net/proxy"
)

const (
	DefaultTimeout         = 30 * time.Second
	DefaultIdleConnTimeout = 90 * time.Second
	MaxIdleConnsPerHost    = 16

	// UserAgent is sent on every outbound request unless the caller set one.
	UserAgent = "AnimeCourier/1.0"
)

var (
	mu            sync.Mutex
	defaultClient = newClient(nil)
)

// Default returns the shared tuned HTTP client used by the catalogue client,
// subtitle fetcher and delivery adapters.
func Default() *http.Client {
	mu.Lock()
	defer mu.Unlock()
	return defaultClient
}

// SetSOCKSProxy rebuilds the shared client to dial through a SOCKS5 proxy
// (host:port). An empty addr restores direct dialing. Catalogue upstreams are
// frequently geo-fenced, so the whole process routes through one proxy.
func SetSOCKSProxy(addr string) error {
	if addr == "" {
		mu.Lock()
		defaultClient = newClient(nil)
		mu.Unlock()
		return nil
	}
	d, err := proxy.SOCKS5("tcp", addr, nil, proxy.Direct)
	if err != nil {
		return fmt.Errorf("socks proxy %s: %w", addr, err)
	}
	cd, ok := d.(proxy.ContextDialer)
	if !ok {
		return fmt.Errorf("socks proxy %s: dialer is not context-aware", addr)
	}
	mu.Lock()
	defaultClient = newClient(cd)
	mu.Unlock()
	return nil
}

func newClient(dialer proxy.ContextDialer) *http.Client {
	tr := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: MaxIdleConnsPerHost,
		IdleConnTimeout:     DefaultIdleConnTimeout,
	}
	if dialer != nil {
		tr.DialContext = dialer.DialContext
	}
	return &http.Client{
		Timeout:   DefaultTimeout,
		Transport: &decodingTransport{next: tr},
	}
}

// WithTimeout returns a client with the given timeout sharing the decoding
// transport of Default.
func WithTimeout(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: Default().Transport,
	}
}

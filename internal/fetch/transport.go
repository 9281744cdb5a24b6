package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/net/proxy"
)

// proxyCheckTimeout bounds the SOCKS5 greeting performed by CheckProxy.
const proxyCheckTimeout = 2 * time.Second

// SOCKS5 greeting bytes.
const (
	socks5Version  = 0x05
	socks5AuthNone = 0x00
)

// maxRedirects is the redirect limit of the HTTP client.
const maxRedirects = 10

// newTransport builds the HTTP transport. A non-empty proxyAddress routes
// every connection through that SOCKS5 proxy.
func newTransport(proxyAddress string) (*http.Transport, error) {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        64,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     30 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	if proxyAddress == "" {
		return transport, nil
	}

	if !isValidProxyAddress(proxyAddress) {
		return nil, ErrInvalidProxyAddress
	}
	dialer, err := proxy.SOCKS5("tcp", proxyAddress, nil, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}
	transport.Proxy = nil
	if cd, ok := dialer.(proxy.ContextDialer); ok {
		transport.DialContext = cd.DialContext
	} else {
		transport.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
			return dialer.Dial(network, addr)
		}
	}
	return transport, nil
}

// newHTTPClient wraps transport with the redirect limit and header injection.
func newHTTPClient(transport http.RoundTripper, timeout time.Duration, cookie string, headers map[string]string) *http.Client {
	if cookie != "" || len(headers) > 0 {
		transport = &headerInjectingTransport{base: transport, cookie: cookie, headers: headers}
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
}

// isValidProxyAddress checks that address is host:port with a port in 1..65535.
func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	return err == nil && n >= 1 && n <= 65535
}

// CheckProxy performs a SOCKS5 greeting against address and reports whether
// the proxy accepts unauthenticated connections.
func CheckProxy(ctx context.Context, address string) error {
	if !isValidProxyAddress(address) {
		return ErrInvalidProxyAddress
	}
	ctx, cancel := context.WithTimeout(ctx, proxyCheckTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProxyUnavailable, err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(proxyCheckTimeout)); err != nil {
		return fmt.Errorf("%w: %v", ErrProxyUnavailable, err)
	}
	if _, err := conn.Write([]byte{socks5Version, 0x01, socks5AuthNone}); err != nil {
		return fmt.Errorf("%w: %v", ErrProxyUnavailable, err)
	}

	resp := make([]byte, 2)
	if _, err := io.ReadFull(conn, resp); err != nil {
		return fmt.Errorf("%w: %v", ErrProxyUnavailable, err)
	}
	if resp[0] != socks5Version || resp[1] != socks5AuthNone {
		return fmt.Errorf("%w: unexpected greeting reply %x", ErrProxyUnavailable, resp)
	}
	return nil
}

// headerInjectingTransport adds configured headers and a cookie to every request.
type headerInjectingTransport struct {
	base    http.RoundTripper
	cookie  string
	headers map[string]string
}

// RoundTrip implements http.RoundTripper.
func (t *headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.base == nil {
		return nil, errors.New("no base transport")
	}
	clone := req.Clone(req.Context())
	for k, v := range t.headers {
		clone.Header.Set(k, v)
	}
	if t.cookie != "" {
		clone.Header.Set("Cookie", t.cookie)
	}
	return t.base.RoundTrip(clone)
}

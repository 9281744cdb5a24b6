package fetch

import (
	"errors"
	"fmt"
)

// Fetch errors.
var (
	// ErrPageFetch matches every error returned by Client.Fetch.
	ErrPageFetch = errors.New("page fetch failed")

	// ErrUnexpectedStatus is returned for non-2xx responses.
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")

	// ErrNotHTML is returned when the response is not an HTML document.
	ErrNotHTML = errors.New("response is not HTML")

	// ErrRobotsDisallowed is returned when robots.txt forbids the URL.
	ErrRobotsDisallowed = errors.New("disallowed by robots.txt")

	// ErrUnsupportedScheme is returned for URLs that are not http or https.
	ErrUnsupportedScheme = errors.New("unsupported URL scheme")

	// ErrInvalidProxyAddress is returned when the proxy address is not host:port.
	ErrInvalidProxyAddress = errors.New("invalid proxy address format: expected host:port")

	// ErrProxyUnavailable is returned when the proxy does not complete a SOCKS5 handshake.
	ErrProxyUnavailable = errors.New("SOCKS5 proxy is unavailable")
)

// FetchError describes a failed page fetch.
type FetchError struct {
	// URL is the page that could not be fetched.
	URL string

	// StatusCode is the HTTP status, 0 if no response was received.
	StatusCode int

	// Err is the underlying cause.
	Err error
}

// Error implements error.
func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

// Unwrap returns the underlying cause.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is makes every FetchError match ErrPageFetch.
func (e *FetchError) Is(target error) bool {
	return target == ErrPageFetch
}

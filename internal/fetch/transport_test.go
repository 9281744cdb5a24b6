package fetch

import (
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestIsValidProxyAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		address string
		valid   bool
	}{
		{"127.0.0.1:9050", true},
		{"localhost:1080", true},
		{"[::1]:9050", true},
		{"127.0.0.1", false},
		{":9050", false},
		{"127.0.0.1:0", false},
		{"127.0.0.1:65536", false},
		{"127.0.0.1:port", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			t.Parallel()
			if got := isValidProxyAddress(tt.address); got != tt.valid {
				t.Errorf("isValidProxyAddress(%q) = %v, want %v", tt.address, got, tt.valid)
			}
		})
	}
}

func TestNewClientWithProxy(t *testing.T) {
	t.Parallel()

	if _, err := NewClient(WithProxy("not-an-address")); !errors.Is(err, ErrInvalidProxyAddress) {
		t.Errorf("expected ErrInvalidProxyAddress, got %v", err)
	}

	client, err := NewClient(WithProxy("127.0.0.1:9050"))
	if err != nil {
		t.Fatalf("NewClient() error: %v", err)
	}
	transport, ok := client.HTTPClient().Transport.(*http.Transport)
	if !ok {
		t.Fatalf("transport is %T", client.HTTPClient().Transport)
	}
	if transport.DialContext == nil || transport.Proxy != nil {
		t.Error("proxy transport should dial through SOCKS5 and ignore HTTP proxies")
	}
}

// startFakeSOCKS5 accepts one connection and answers the greeting with reply.
func startFakeSOCKS5(t *testing.T, reply []byte) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		greeting := make([]byte, 3)
		if _, err := io.ReadFull(conn, greeting); err != nil {
			return
		}
		_, _ = conn.Write(reply)
	}()
	return ln.Addr().String()
}

func TestCheckProxy(t *testing.T) {
	t.Parallel()

	t.Run("socks5 proxy", func(t *testing.T) {
		t.Parallel()
		addr := startFakeSOCKS5(t, []byte{socks5Version, socks5AuthNone})
		if err := CheckProxy(t.Context(), addr); err != nil {
			t.Errorf("CheckProxy() error: %v", err)
		}
	})

	t.Run("wrong protocol", func(t *testing.T) {
		t.Parallel()
		addr := startFakeSOCKS5(t, []byte("HTTP/1.1 400"))
		if err := CheckProxy(t.Context(), addr); !errors.Is(err, ErrProxyUnavailable) {
			t.Errorf("expected ErrProxyUnavailable, got %v", err)
		}
	})

	t.Run("nothing listening", func(t *testing.T) {
		t.Parallel()
		server := httptest.NewServer(http.NotFoundHandler())
		addr := server.Listener.Addr().String()
		server.Close()
		if err := CheckProxy(t.Context(), addr); !errors.Is(err, ErrProxyUnavailable) {
			t.Errorf("expected ErrProxyUnavailable, got %v", err)
		}
	})

	t.Run("invalid address", func(t *testing.T) {
		t.Parallel()
		if err := CheckProxy(t.Context(), "nope"); !errors.Is(err, ErrInvalidProxyAddress) {
			t.Errorf("expected ErrInvalidProxyAddress, got %v", err)
		}
	})
}

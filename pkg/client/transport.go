package client

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/http2"

	"github.com/areCodeOI/oiapi/pkg/request"
)

// KeepAlive specifies default interval between keep-alive probes.
const KeepAlive = 10 * time.Second

// TLSHandshakeTimeout specifies default timeout of TLS handshake.
const TLSHandshakeTimeout = 5 * time.Second

// MaxConnectionsPerHost specifies default maximum number of open connections to a host.
const MaxConnectionsPerHost = 32

// DefaultTransport is a shared transport with reasonable limits.
// It can be set by the Client.WithTransport, then the connections are pooled across requests,
// but the connect timeout, TLS and proxy options of the request.Config are not applied.
func DefaultTransport() http.RoundTripper {
	dialer := Dialer(request.ConnectTimeout)
	return &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         dialer.DialContext,
		ForceAttemptHTTP2:   true, // HTTP2 is preferred.
		DisableCompression:  true,
		TLSHandshakeTimeout: TLSHandshakeTimeout,
		MaxConnsPerHost:     MaxConnectionsPerHost,
		MaxIdleConnsPerHost: MaxConnectionsPerHost,
	}
}

// HTTP2Transport forces HTTP2 protocol.
func HTTP2Transport() http.RoundTripper {
	dialer := Dialer(request.ConnectTimeout)
	return &http2.Transport{
		DialTLS: func(network, addr string, cfg *tls.Config) (net.Conn, error) {
			return tls.DialWithDialer(dialer, network, addr, cfg)
		},
		DisableCompression: true,
		ReadIdleTimeout:    3 * time.Second,
		PingTimeout:        3 * time.Second,
		WriteByteTimeout:   3 * time.Second,
	}
}

// Dialer with the connect timeout.
func Dialer(connectTimeout time.Duration) *net.Dialer {
	return &net.Dialer{
		Timeout:   connectTimeout,
		KeepAlive: KeepAlive,
	}
}

// newTransport creates a transport for one exchange, from the request options.
// The transport is not shared, it must be closed by CloseIdleConnections.
func newTransport(opts request.Options) (*http.Transport, error) {
	dialer := Dialer(opts.ConnectTimeout)
	t := &http.Transport{
		DialContext:         dialer.DialContext,
		ForceAttemptHTTP2:   true,
		DisableCompression:  true, // Accept-Encoding is set explicitly by the request options
		TLSHandshakeTimeout: opts.ConnectTimeout,
		TLSClientConfig:     tlsConfig(opts),
	}

	if opts.Proxy != nil {
		proxyURL, err := parseProxy(*opts.Proxy)
		if err != nil {
			return nil, err
		}
		t.Proxy = http.ProxyURL(proxyURL)
	}

	return t, nil
}

// tlsConfig applies peer and host verification toggles.
// The peer verification checks the certificate chain, the host verification checks the certificate matches the host name.
func tlsConfig(opts request.Options) *tls.Config {
	if opts.VerifyPeer && opts.VerifyHost {
		return &tls.Config{MinVersion: tls.VersionTLS12}
	}

	cfg := &tls.Config{MinVersion: tls.VersionTLS12, InsecureSkipVerify: true} //nolint:gosec
	if !opts.VerifyPeer && !opts.VerifyHost {
		return cfg
	}

	cfg.VerifyConnection = func(cs tls.ConnectionState) error {
		if len(cs.PeerCertificates) == 0 {
			return errors.New("no peer certificate")
		}
		leaf := cs.PeerCertificates[0]
		if opts.VerifyHost {
			return leaf.VerifyHostname(cs.ServerName)
		}
		verifyOpts := x509.VerifyOptions{Intermediates: x509.NewCertPool()}
		for _, cert := range cs.PeerCertificates[1:] {
			verifyOpts.Intermediates.AddCert(cert)
		}
		_, err := leaf.Verify(verifyOpts)
		return err
	}
	return cfg
}

func parseProxy(p request.Proxy) (*url.URL, error) {
	address := p.Address
	if !strings.Contains(address, "://") {
		address = "http://" + address
	}
	proxyURL, err := url.Parse(address)
	if err != nil {
		return nil, fmt.Errorf(`proxy "%s" is not valid: %w`, p.Address, err)
	}
	if user, pass, found := strings.Cut(p.Credentials, ":"); found {
		proxyURL.User = url.UserPassword(user, pass)
	}
	return proxyURL, nil
}

func proxyHost(opts request.Options) string {
	if opts.Proxy == nil {
		return ""
	}
	if u, err := parseProxy(*opts.Proxy); err == nil {
		return u.Hostname()
	}
	return ""
}

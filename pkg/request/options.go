package request

import (
	"strings"
	"time"
)

// ConnectTimeout - default maximum connection initialization time.
const ConnectTimeout = 10 * time.Second

// RequestTimeout - default total request timeout.
const RequestTimeout = 30 * time.Second

// EncodingAll is used by SetEncoding(""), all supported encodings are negotiated.
const EncodingAll = "gzip, br"

// DefaultUserAgent identifies the client to the remote peer.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/86.0.4240.198 Safari/537.36"

// Endpoint is the fixed prefix of all request targets.
type Endpoint struct {
	Scheme   string
	Host     string
	BasePath string
}

// DefaultEndpoint returns the oiapi.net endpoint.
func DefaultEndpoint() Endpoint {
	return Endpoint{Scheme: "http", Host: "oiapi.net", BasePath: "api"}
}

// Prefix returns "scheme://host/basePath/", the target is the prefix followed by the relative path.
func (e Endpoint) Prefix() string {
	var b strings.Builder
	b.WriteString(e.Scheme)
	b.WriteString("://")
	b.WriteString(e.Host)
	b.WriteString("/")
	if e.BasePath != "" {
		b.WriteString(e.BasePath)
		b.WriteString("/")
	}
	return b.String()
}

// Proxy is an HTTP proxy definition.
type Proxy struct {
	Address string
	// Credentials in the "user:password" form, optional.
	Credentials string
}

// Options are transport level settings of one request.
type Options struct {
	ConnectTimeout  time.Duration
	Timeout         time.Duration
	VerifyPeer      bool
	VerifyHost      bool
	FollowRedirects bool
	AutoReferer     bool
	Proxy           *Proxy
	// Encoding is sent as the Accept-Encoding header and the response is decoded accordingly.
	// Empty value disables the negotiation.
	Encoding string
	// NoBody suppresses the response body, only headers are captured.
	NoBody bool
}

// DefaultOptions returns options used by a new or cleared Config.
func DefaultOptions() Options {
	return Options{
		ConnectTimeout: ConnectTimeout,
		Timeout:        RequestTimeout,
	}
}

func (o Options) clone() Options {
	if o.Proxy != nil {
		p := *o.Proxy
		o.Proxy = &p
	}
	return o
}

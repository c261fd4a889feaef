package request

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/keboola/go-utils/pkg/orderedmap"
)

const headerUserAgent = "User-Agent"

// Config is the mutable, chainable definition of one pending HTTP request.
//
// The zero value is not usable, use New or Default.
// Setters modify the Config in place and return it, so calls can be chained.
// A Config is not safe for concurrent mutation, use Clone to get an independent snapshot.
type Config struct {
	endpoint Endpoint
	method   Method
	path     string
	route    []string
	// url is the composed target before the URL encoding, including the query string
	url string
	// target is the dispatched target
	target    string
	hasTarget bool
	data      any
	body      string
	// headers are stored in the definition order, the keys are case-sensitive
	headers     *orderedmap.OrderedMap
	headerLines []string
	accept      AcceptFormat
	options     Options
}

// New creates a Config for the endpoint, with default headers and options.
func New(endpoint Endpoint) *Config {
	c := &Config{endpoint: endpoint}
	c.reset()
	return c
}

// Default creates a Config for the DefaultEndpoint.
func Default() *Config {
	return New(DefaultEndpoint())
}

func (c *Config) reset() {
	c.method = MethodGet
	c.path = ""
	c.route = nil
	c.url = ""
	c.target = ""
	c.hasTarget = false
	c.data = nil
	c.body = ""
	c.headers = orderedmap.New()
	c.headers.Set(headerUserAgent, DefaultUserAgent)
	c.accept = AcceptString
	c.options = DefaultOptions()
	c.syncHeaders()
}

// Clear restores the default state, as if the Config was created by New with the same endpoint.
func (c *Config) Clear() *Config {
	c.reset()
	return c
}

// Clone returns an independent deep copy of the Config.
func (c *Config) Clone() *Config {
	clone := *c
	clone.route = append([]string(nil), c.route...)
	clone.headers = cloneHeaders(c.headers)
	clone.headerLines = append([]string(nil), c.headerLines...)
	clone.options = c.options.clone()
	return &clone
}

// Compose sets the method, the relative path and the data, and builds the request target.
//
// The target is the endpoint prefix, followed by the path and the route segments.
//   - POST, PUT, PATCH: the data is sent as the body, structured data is encoded to JSON.
//     If the body is a valid JSON, the "content-type: application/json" header is added.
//   - FILE: sent as POST, a string is sent as is, structured data is sent as multipart/form-data.
//   - HEAD: the response body is not retrieved.
//   - GET, DELETE, OPTIONS: non-empty data is appended as the query string,
//     then the target is encoded by the EncodeURL.
//
// If the data cannot be encoded, the error is returned and the Config is not modified.
func (c *Config) Compose(method Method, path string, data any) (*Config, error) {
	if !method.Valid() {
		return c, &UnsupportedMethodError{Name: method.String()}
	}

	// The Config is modified only if all encoding steps succeed
	url := c.endpoint.Prefix() + path
	if len(c.route) > 0 {
		url += "/" + strings.Join(c.route, "/")
	}
	target := url
	var body, contentType string

	switch method {
	case MethodPost, MethodPut, MethodPatch:
		encoded, err := encodeBody(data)
		if err != nil {
			return c, err
		}
		body = encoded
		if json.Valid([]byte(body)) {
			contentType = "content-type: application/json"
		}
	case MethodFile:
		if isStructured(data) {
			encoded, boundary, err := BuildMultipart(data, "")
			if err != nil {
				return c, err
			}
			body = string(encoded)
			contentType = "Content-Type: " + MultipartContentType(boundary)
		} else {
			encoded, err := encodeBody(data)
			if err != nil {
				return c, err
			}
			body = encoded
		}
	case MethodHead:
	default:
		if !isEmptyData(data) {
			query, err := BuildQuery(data)
			if err != nil {
				return c, err
			}
			url = queryJoin(url, query)
			target = EncodeURL(url)
		}
	}

	c.method = method
	c.path = path
	c.data = data
	c.body = body
	c.url = url
	c.target = target
	c.hasTarget = true
	if contentType != "" {
		c.AddHeader(contentType)
	}
	if method == MethodHead {
		// Kept by later Compose calls, see SetNoBody
		c.options.NoBody = true
	}
	return c, nil
}

// Get is a shortcut for Compose(MethodGet, path, data).
func (c *Config) Get(path string, data any) (*Config, error) {
	return c.Compose(MethodGet, path, data)
}

// Post is a shortcut for Compose(MethodPost, path, data).
func (c *Config) Post(path string, data any) (*Config, error) {
	return c.Compose(MethodPost, path, data)
}

// Head is a shortcut for Compose(MethodHead, path, data).
// It enables the NoBody option, the option stays enabled for later Compose calls and clones,
// use SetNoBody(false) to retrieve the body again.
func (c *Config) Head(path string, data any) (*Config, error) {
	return c.Compose(MethodHead, path, data)
}

// Put is a shortcut for Compose(MethodPut, path, data).
func (c *Config) Put(path string, data any) (*Config, error) {
	return c.Compose(MethodPut, path, data)
}

// Delete is a shortcut for Compose(MethodDelete, path, data).
func (c *Config) Delete(path string, data any) (*Config, error) {
	return c.Compose(MethodDelete, path, data)
}

// Patch is a shortcut for Compose(MethodPatch, path, data).
func (c *Config) Patch(path string, data any) (*Config, error) {
	return c.Compose(MethodPatch, path, data)
}

// Options is a shortcut for Compose(MethodOptions, path, data).
func (c *Config) Options(path string, data any) (*Config, error) {
	return c.Compose(MethodOptions, path, data)
}

// File is a shortcut for Compose(MethodFile, path, data).
func (c *Config) File(path string, data any) (*Config, error) {
	return c.Compose(MethodFile, path, data)
}

// SetRoute sets path segments appended after the relative path by the next Compose call.
func (c *Config) SetRoute(segments ...string) *Config {
	c.route = append([]string(nil), segments...)
	return c
}

// AddHeader sets a header, the last value for the key wins.
// Called without the value, or with one empty value, the key may contain the whole "Key: Value" line.
func (c *Config) AddHeader(key string, value ...string) *Config {
	if len(value) == 0 || (len(value) == 1 && value[0] == "") {
		if k, v, found := strings.Cut(key, ": "); found {
			c.headers.Set(k, v)
		} else {
			c.headers.Set(key, "")
		}
	} else {
		c.headers.Set(key, strings.Join(value, ", "))
	}
	c.syncHeaders()
	return c
}

// SetHeaders adds multiple headers.
// Supported types are map[string]string (added in the keys order), *orderedmap.OrderedMap and []string of "Key: Value" lines.
func (c *Config) SetHeaders(headers any) *Config {
	switch v := headers.(type) {
	case map[string]string:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			c.AddHeader(k, v[k])
		}
	case *orderedmap.OrderedMap:
		for _, k := range v.Keys() {
			value, _ := v.Get(k)
			str, err := castToString(value)
			if err != nil {
				panic(fmt.Errorf(`header "%s": %w`, k, err))
			}
			c.AddHeader(k, str)
		}
	case []string:
		for _, line := range v {
			c.AddHeader(line)
		}
	default:
		panic(fmt.Errorf(`unexpected headers type "%T"`, headers))
	}
	return c
}

// RemoveHeader removes the header, the key is case-sensitive.
func (c *Config) RemoveHeader(key string) *Config {
	c.headers.Delete(key)
	c.syncHeaders()
	return c
}

// SetAcceptFormat sets how the response body is decoded.
func (c *Config) SetAcceptFormat(format AcceptFormat) *Config {
	c.accept = format.Normalize()
	return c
}

// SetTimeout sets the total request timeout.
func (c *Config) SetTimeout(timeout time.Duration) *Config {
	c.options.Timeout = timeout
	return c
}

// SetConnectTimeout sets the maximum connection initialization time.
func (c *Config) SetConnectTimeout(timeout time.Duration) *Config {
	c.options.ConnectTimeout = timeout
	return c
}

// SetProxy sets the HTTP proxy, the credentials are optional and must be in the "user:password" form.
func (c *Config) SetProxy(address, credentials string) *Config {
	p := &Proxy{Address: address}
	if strings.Contains(credentials, ":") {
		p.Credentials = credentials
	}
	c.options.Proxy = p
	return c
}

// DisableProxy removes the proxy settings.
func (c *Config) DisableProxy() *Config {
	c.options.Proxy = nil
	return c
}

// SetFollowRedirects enables following of redirects, the Referer header is set automatically.
func (c *Config) SetFollowRedirects(v bool) *Config {
	c.options.FollowRedirects = v
	c.options.AutoReferer = v
	return c
}

// SetEncoding sets the accepted content encoding, for example "gzip".
// Empty value means all supported encodings, see EncodingAll.
func (c *Config) SetEncoding(encoding string) *Config {
	if encoding == "" {
		encoding = EncodingAll
	}
	c.options.Encoding = encoding
	return c
}

// SetNoBody disables retrieval of the response body, only the head is captured.
func (c *Config) SetNoBody(v bool) *Config {
	c.options.NoBody = v
	return c
}

// SetVerifyTLS enables verification of the peer certificate chain and of the host name.
func (c *Config) SetVerifyTLS(peer, host bool) *Config {
	c.options.VerifyPeer = peer
	c.options.VerifyHost = host
	return c
}

// Validate returns ErrTargetNotSet if the Config has not been composed.
func (c *Config) Validate() error {
	if !c.hasTarget {
		return ErrTargetNotSet
	}
	if !c.method.Valid() {
		return &UnsupportedMethodError{Name: c.method.String()}
	}
	return nil
}

func (c *Config) Endpoint() Endpoint {
	return c.endpoint
}

func (c *Config) Method() Method {
	return c.method
}

func (c *Config) Path() string {
	return c.path
}

func (c *Config) Route() []string {
	return append([]string(nil), c.route...)
}

// URL returns the composed target before the URL encoding.
func (c *Config) URL() string {
	return c.url
}

// Target returns the dispatched target.
func (c *Config) Target() string {
	return c.target
}

// HasTarget returns true if the target has been composed.
func (c *Config) HasTarget() bool {
	return c.hasTarget
}

func (c *Config) Data() any {
	return c.data
}

// Body returns the request body, empty for methods without a body.
func (c *Config) Body() string {
	return c.body
}

// Headers returns a copy of the headers.
func (c *Config) Headers() *orderedmap.OrderedMap {
	return cloneHeaders(c.headers)
}

// HeaderLines returns headers in the "Key: Value" form, in the definition order.
func (c *Config) HeaderLines() []string {
	return append([]string(nil), c.headerLines...)
}

// Header returns the header value, the key is case-sensitive.
func (c *Config) Header(key string) (string, bool) {
	v, found := c.headers.Get(key)
	if !found {
		return "", false
	}
	return v.(string), true
}

func (c *Config) AcceptFormat() AcceptFormat {
	return c.accept
}

// TransportOptions returns a copy of the transport options.
func (c *Config) TransportOptions() Options {
	return c.options.clone()
}

// syncHeaders re-derives the header lines sent to the transport.
func (c *Config) syncHeaders() {
	keys := c.headers.Keys()
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		v, _ := c.headers.Get(k)
		lines = append(lines, k+": "+v.(string))
	}
	c.headerLines = lines
}

func cloneHeaders(in *orderedmap.OrderedMap) *orderedmap.OrderedMap {
	out := orderedmap.New()
	for _, k := range in.Keys() {
		v, _ := in.Get(k)
		out.Set(k, v)
	}
	return out
}

// encodeBody converts the data to the request body, structured data is encoded to JSON.
func encodeBody(data any) (string, error) {
	switch v := data.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	}
	if isStructured(data) {
		return marshalJSON(data)
	}
	return castToString(data)
}

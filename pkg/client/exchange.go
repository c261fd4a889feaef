package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptrace"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/areCodeOI/oiapi/pkg/client/counter"
	"github.com/areCodeOI/oiapi/pkg/client/decode"
	"github.com/areCodeOI/oiapi/pkg/client/trace"
	"github.com/areCodeOI/oiapi/pkg/request"
)

// MaxRedirects is the maximum number of followed redirects.
const MaxRedirects = 10

// exchange sends the request and converts the result to the Response.
// The raw payload is composed from heads of all received responses followed by the final body.
func (c Client) exchange(ctx context.Context, cfg *request.Config, tc *trace.ClientTrace) *Response {
	opts := cfg.TransportOptions()
	method := cfg.Method().Wire()
	target := cfg.Target()
	startedAt := time.Now()

	// Measure timings
	timings := &timingTrace{start: startedAt}
	ctx = httptrace.WithClientTrace(ctx, timings.clientTrace())

	info := Info{Method: method, URL: target}
	if cfg.Method().HasBody() {
		info.SizeUpload = int64(len(cfg.Body()))
	}

	rt := &roundTripper{trace: tc}
	result := func(body []byte, err *TransportError) *Response {
		head := bytes.Join(rt.heads, nil)
		info.HeaderSize = len(head)
		if len(rt.heads) > 1 {
			info.RedirectCount = len(rt.heads) - 1
		}
		info.Timings = timings.result(time.Now())
		return newResponse(append(head, body...), info, cfg.AcceptFormat(), err)
	}

	// Create request
	req, err := newHTTPRequest(ctx, cfg, opts)
	if err != nil {
		return result(nil, newTransportError(CodeMalformedURL, method, target, err, err))
	}

	// Context is done, the request is not sent
	if err := ctx.Err(); err != nil {
		return result(nil, transportErrorFrom(err, method, target, startedAt, opts.Timeout, proxyHost(opts)))
	}

	// Create transport, if it is not shared
	rt.wrapped = c.transport
	if rt.wrapped == nil {
		transport, err := newTransport(opts)
		if err != nil {
			return result(nil, newTransportError(CodeProxyResolve, method, target, err, err))
		}
		defer transport.CloseIdleConnections()
		rt.wrapped = transport
	}

	// Setup native client
	nativeClient := http.Client{
		Timeout:       opts.Timeout,
		Transport:     rt,
		CheckRedirect: checkRedirect(opts),
	}

	// Send request
	res, err := nativeClient.Do(req)
	if err != nil {
		if res != nil {
			_ = res.Body.Close()
		}
		return result(nil, transportErrorFrom(err, method, target, startedAt, opts.Timeout, proxyHost(opts)))
	}
	defer res.Body.Close()

	if rt.last != nil {
		info.URL = rt.last.URL.String()
	}
	info.StatusCode = res.StatusCode
	info.ContentType = res.Header.Get("Content-Type")

	// The body is discarded for HEAD requests
	if cfg.Method() == request.MethodHead || opts.NoBody {
		return result(nil, nil)
	}

	body, size, terr := readBody(res, opts, method, target, startedAt)
	info.SizeDownload = size
	return result(body, terr)
}

func newHTTPRequest(ctx context.Context, cfg *request.Config, opts request.Options) (*http.Request, error) {
	var body io.Reader
	if cfg.Method().HasBody() {
		body = strings.NewReader(cfg.Body())
	}

	req, err := http.NewRequestWithContext(ctx, cfg.Method().Wire(), cfg.Target(), body)
	if err != nil {
		return nil, err
	}
	keepComposedPath(req, cfg.Target())

	// Headers are sent with the defined case
	headers := cfg.Headers()
	for _, key := range headers.Keys() {
		v, _ := headers.Get(key)
		value, _ := v.(string)
		if strings.EqualFold(key, "Host") {
			req.Host = value
			continue
		}
		req.Header[key] = []string{value}
	}

	// Content encoding negotiation
	if opts.Encoding != "" {
		req.Header.Set("Accept-Encoding", opts.Encoding)
	}

	return req, nil
}

// keepComposedPath sends the path exactly as composed.
// The url package percent-encodes all extended bytes of the path,
// but short runs of extended bytes are kept literal by the request.EncodeURL.
// The "//host/path" opaque form is sent in the absolute form, which is also valid for proxies.
func keepComposedPath(req *http.Request, target string) {
	_, rest, found := strings.Cut(target, "://")
	if !found {
		return
	}
	slash := strings.IndexByte(rest, '/')
	if slash < 0 {
		return
	}
	path := rest[slash:]
	if end := strings.IndexAny(path, "?#"); end >= 0 {
		path = path[:end]
	}

	hasExtended := false
	for i := 0; i < len(path); i++ {
		switch c := path[i]; {
		case c <= ' ' || c == 0x7f:
			// Not allowed in the request line, the url package escapes it
			return
		case c >= 0x80:
			hasExtended = true
		}
	}
	if hasExtended {
		req.URL.Opaque = "//" + req.URL.Host + path
	}
}

func checkRedirect(opts request.Options) func(req *http.Request, via []*http.Request) error {
	return func(req *http.Request, via []*http.Request) error {
		if !opts.FollowRedirects {
			return http.ErrUseLastResponse
		}
		if len(via) > MaxRedirects {
			return fmt.Errorf("stopped after %d redirects: %w", MaxRedirects, errTooManyRedirects)
		}
		if opts.AutoReferer {
			req.Header.Set("Referer", via[len(via)-1].URL.String())
		} else {
			req.Header.Del("Referer")
		}
		return nil
	}
}

// readBody reads the whole body and decodes it, if the content encoding has been negotiated.
// The returned size is the size of the body before decoding.
func readBody(res *http.Response, opts request.Options, method, target string, startedAt time.Time) ([]byte, int64, *TransportError) {
	reader := counter.NewReadCloser(res.Body, nil)
	raw, err := io.ReadAll(reader)
	if err != nil {
		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return raw, reader.Bytes(), newTransportError(CodeTimeout, method, target, fmt.Errorf("timeout after %s", time.Since(startedAt)), err)
		}
		if errors.Is(err, context.Canceled) {
			return raw, reader.Bytes(), newTransportError(CodeAborted, method, target, err, err)
		}
		return raw, reader.Bytes(), newTransportError(CodeReceive, method, target, err, err)
	}

	contentEncoding := res.Header.Get("Content-Encoding")
	if opts.Encoding == "" || contentEncoding == "" {
		return raw, reader.Bytes(), nil
	}

	decoded, err := decodeBody(raw, contentEncoding)
	if err != nil {
		return nil, reader.Bytes(), newTransportError(CodeBadContentEncoding, method, target, err, err)
	}
	return decoded, reader.Bytes(), nil
}

func decodeBody(raw []byte, contentEncoding string) ([]byte, error) {
	bodyReader, err := decode.Decode(io.NopCloser(bytes.NewReader(raw)), contentEncoding)
	if err != nil {
		return nil, err
	}
	defer bodyReader.Close()
	out, err := io.ReadAll(bodyReader)
	if err != nil {
		return nil, fmt.Errorf("cannot decode %s: %w", contentEncoding, err)
	}
	return out, nil
}

// rawHead converts the response status line and headers back to the wire form.
func rawHead(res *http.Response) []byte {
	major, minor := res.ProtoMajor, res.ProtoMinor
	if major == 0 {
		// Mocked responses
		major, minor = 1, 1
	}
	code := strconv.Itoa(res.StatusCode)
	text := strings.TrimPrefix(strings.TrimPrefix(res.Status, code), " ")
	if text == "" {
		text = http.StatusText(res.StatusCode)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "HTTP/%d.%d %03d %s\r\n", major, minor, res.StatusCode, text)
	_ = res.Header.Write(&buf)
	buf.WriteString("\r\n")
	return buf.Bytes()
}

// roundTripper wraps a http.RoundTripper, it calls trace hooks and collects heads of all responses.
type roundTripper struct {
	trace   *trace.ClientTrace
	wrapped http.RoundTripper
	heads   [][]byte
	last    *http.Request
}

func (rt *roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	// Trace request start
	if rt.trace != nil && rt.trace.HTTPRequestStart != nil {
		rt.trace.HTTPRequestStart(req)
	}

	// Send
	rt.last = req
	res, err := rt.wrapped.RoundTrip(req)
	if err == nil && res != nil {
		rt.heads = append(rt.heads, rawHead(res))
	}

	// Trace request done
	if rt.trace != nil && rt.trace.HTTPRequestDone != nil {
		rt.trace.HTTPRequestDone(res, err)
	}

	return res, err
}

// timingTrace records when stages of the exchange are done, hooks may be called from other goroutines.
type timingTrace struct {
	lock          sync.Mutex
	start         time.Time
	dnsDone       time.Time
	connectDone   time.Time
	tlsDone       time.Time
	firstByteDone time.Time
}

func (t *timingTrace) clientTrace() *httptrace.ClientTrace {
	return &httptrace.ClientTrace{
		DNSDone: func(httptrace.DNSDoneInfo) {
			t.mark(&t.dnsDone)
		},
		ConnectDone: func(string, string, error) {
			t.mark(&t.connectDone)
		},
		TLSHandshakeDone: func(tls.ConnectionState, error) {
			t.mark(&t.tlsDone)
		},
		GotFirstResponseByte: func() {
			t.mark(&t.firstByteDone)
		},
	}
}

func (t *timingTrace) mark(v *time.Time) {
	t.lock.Lock()
	defer t.lock.Unlock()
	*v = time.Now()
}

func (t *timingTrace) result(end time.Time) Timings {
	t.lock.Lock()
	defer t.lock.Unlock()
	since := func(v time.Time) time.Duration {
		if v.IsZero() {
			return 0
		}
		return v.Sub(t.start)
	}
	return Timings{
		NameLookup:    since(t.dnsDone),
		Connect:       since(t.connectDone),
		TLSHandshake:  since(t.tlsDone),
		StartTransfer: since(t.firstByteDone),
		Total:         end.Sub(t.start),
	}
}

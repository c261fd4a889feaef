package client

import (
	"net/http"
	"time"

	"github.com/areCodeOI/oiapi/pkg/request"
)

// Info contains transport diagnostics of one exchange.
type Info struct {
	Method      string
	URL         string
	StatusCode  int
	ContentType string
	// HeaderSize is the length of the raw head, including heads of followed redirects.
	HeaderSize    int
	SizeDownload  int64
	SizeUpload    int64
	RedirectCount int
	Timings       Timings
}

// Timings are measured from the start of the exchange.
type Timings struct {
	NameLookup    time.Duration
	Connect       time.Duration
	TLSHandshake  time.Duration
	StartTransfer time.Duration
	Total         time.Duration
}

// Response is the result of one exchange.
// A transport failure is recorded in the Error, the Body is then empty.
type Response struct {
	body      Body
	info      Info
	rawHeader string
	hasHeader bool
	header    http.Header
	cookies   map[string]string
	err       *TransportError
}

// newResponse splits the raw payload to the head and the body, using the head size.
// Zero head size means the whole payload is the body.
func newResponse(raw []byte, info Info, format request.AcceptFormat, err *TransportError) *Response {
	var head, body string
	if info.HeaderSize > 0 && info.HeaderSize <= len(raw) {
		head = string(raw[:info.HeaderSize])
		body = string(raw[info.HeaderSize:])
	} else {
		body = string(raw)
	}

	r := &Response{info: info, err: err, header: make(http.Header), cookies: make(map[string]string)}
	if head != "" {
		parsed := ParseHead(head)
		r.rawHeader = parsed.Raw
		r.hasHeader = true
		r.header = parsed.Header
		r.cookies = parsed.Cookies
	}
	r.body = DecodeBody(body, format)
	return r
}

func (r *Response) Body() Body {
	return r.body
}

func (r *Response) Info() Info {
	return r.info
}

// StatusCode returns the status code of the final response, zero if no response has been received.
func (r *Response) StatusCode() int {
	return r.info.StatusCode
}

// RawHeader returns the unparsed response head, the second value is false if no head has been received.
func (r *Response) RawHeader() (string, bool) {
	return r.rawHeader, r.hasHeader
}

// Header returns headers of the final response.
func (r *Response) Header() http.Header {
	return r.header.Clone()
}

// Cookies returns cookies set by the Set-Cookie headers.
func (r *Response) Cookies() map[string]string {
	out := make(map[string]string, len(r.cookies))
	for k, v := range r.cookies {
		out[k] = v
	}
	return out
}

// Error returns the transport error or nil.
func (r *Response) Error() *TransportError {
	return r.err
}

package otel

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"slices"
	"sort"
	"strings"

	"github.com/spf13/cast"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/semconv/v1.18.0/httpconv"

	"github.com/areCodeOI/oiapi/pkg/request"
)

type attributes struct {
	config config
	// definitionURL is the parsed target of the request config
	definitionURL *url.URL
	// definition attributes for span and metrics
	definition []attribute.KeyValue
	// definitionExtra attributes for span only
	definitionExtra []attribute.KeyValue
	// httpRequest attributes for span and metrics
	httpRequest []attribute.KeyValue
	// httpRequestExtra attributes for span only
	httpRequestExtra []attribute.KeyValue
	// httpResponse attributes for span and metrics
	httpResponse []attribute.KeyValue
	// httpResponseExtra attributes for span only
	httpResponseExtra []attribute.KeyValue
	// httpResponseError attributes for metrics
	httpResponseError []attribute.KeyValue
}

func newAttributes(cfg config, def *request.Config) *attributes {
	out := &attributes{config: cfg}

	reqURL, err := url.Parse(def.Target())
	if err != nil {
		reqURL = &url.URL{Path: def.Target()}
	}
	out.definitionURL = reqURL

	// Definition base
	out.definition = []attribute.KeyValue{
		attribute.String("definition.method", def.Method().String()),
		attribute.String("definition.accept", string(def.AcceptFormat())),
		attribute.String("definition.url.full", mustURLPathUnescape(out.redactURL(reqURL))),
		attribute.String("definition.url.path", mustURLPathUnescape(reqURL.Path)),
		attribute.String("definition.url.host.full", reqURL.Host),
	}
	if dotPos := strings.IndexByte(reqURL.Host, '.'); dotPos > 0 {
		// Host parts: to trace service name (host prefix) and domain (host suffix).
		out.definition = append(out.definition,
			attribute.String("definition.url.host.prefix", reqURL.Host[:dotPos]),
			attribute.String("definition.url.host.suffix", strings.TrimLeft(reqURL.Host[dotPos:], ".")),
		)
	}

	// Definition params
	if cfg.headers {
		headers := def.Headers()
		for _, k := range headers.Keys() {
			v, _ := headers.Get(k)
			out.definitionExtra = append(out.definitionExtra, attribute.String("definition.header."+k, cfg.redact.header(k, cast.ToString(v))))
		}
	}
	if route := def.Route(); len(route) > 0 {
		out.definitionExtra = append(out.definitionExtra, attribute.String("definition.route", strings.Join(route, "/")))
	}
	for k, v := range reqURL.Query() {
		out.definitionExtra = append(out.definitionExtra, attribute.String("definition.params.query."+k, cfg.redact.queryParam(k, strings.Join(v, ";"))))
	}
	sort.SliceStable(out.definitionExtra, func(i, j int) bool {
		return out.definitionExtra[i].Key < out.definitionExtra[j].Key
	})

	return out
}

func (v *attributes) SetFromRequest(req *http.Request) {
	if req == nil {
		v.httpRequest = nil
		v.httpRequestExtra = nil
		return
	}

	// Base, the URL may contain secrets
	redactedURL := v.redactURL(req.URL)
	base := httpconv.ClientRequest(req)
	v.httpRequest = make([]attribute.KeyValue, 0, len(base))
	for _, attr := range base {
		if attr.Key == "http.url" {
			attr = attribute.String("http.url", redactedURL)
		}
		v.httpRequest = append(v.httpRequest, attr)
	}

	// Extra
	attrs := []attribute.KeyValue{
		attribute.String("http.url_details.scheme", req.URL.Scheme),
		attribute.String("http.url_details.path", req.URL.Path),
		attribute.String("http.url_details.host", req.URL.Host),
	}
	// User-Agent is already present from httpconv
	v.httpRequestExtra = append(attrs, v.headerAttrs("http.header.", req.Header, "user-agent")...)
}

func (v *attributes) SetFromResponse(res *http.Response, err error) {
	if res == nil {
		v.httpResponse = nil
		v.httpResponseExtra = nil
	} else {
		// Base
		v.httpResponse = httpconv.ClientResponse(res)

		// Extra
		attrs := []attribute.KeyValue{attribute.Bool("http.is_redirection", isRedirection(res))}
		v.httpResponseExtra = append(attrs, v.headerAttrs("http.response.header.", res.Header)...)
	}

	// Error
	var netErr net.Error
	errors.As(err, &netErr)
	v.httpResponseError = []attribute.KeyValue{
		attribute.Bool("http.response.isSuccess", isSuccess(res, err)),
		attribute.Bool("http.response.error.has", err != nil),
		attribute.Bool("http.response.error.net", netErr != nil),
		attribute.Bool("http.response.error.timeout", netErr != nil && netErr.Timeout()),
		attribute.Bool("http.response.error.cancelled", errors.Is(err, context.Canceled)),
		attribute.Bool("http.response.error.deadline_exceeded", errors.Is(err, context.DeadlineExceeded)),
	}
}

// redactURL masks values of the redacted query params, the order of params is kept.
func (v *attributes) redactURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	if u.RawQuery == "" || len(v.config.redact.queryParams) == 0 {
		return u.String()
	}

	parts := strings.Split(u.RawQuery, "&")
	for i, part := range parts {
		key, _, _ := strings.Cut(part, "=")
		name, err := url.QueryUnescape(key)
		if err != nil {
			name = key
		}
		if v.config.redact.queryParams[strings.ToLower(name)] {
			parts[i] = key + "=" + maskedAttrValue
		}
	}

	clone := *u
	clone.RawQuery = strings.Join(parts, "&")
	return clone.String()
}

// headerAttrs converts headers to sorted attributes with lower-cased keys.
func (v *attributes) headerAttrs(prefix string, header http.Header, skip ...string) []attribute.KeyValue {
	if !v.config.headers {
		return nil
	}
	out := make([]attribute.KeyValue, 0, len(header))
	for key, values := range header {
		key = strings.ToLower(key)
		if slices.Contains(skip, key) {
			continue
		}
		out = append(out, attribute.String(prefix+key, v.config.redact.header(key, strings.Join(values, ";"))))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Key < out[j].Key
	})
	return out
}

func mustURLPathUnescape(in string) string {
	out, err := url.PathUnescape(in)
	if err != nil {
		return in
	}
	return out
}

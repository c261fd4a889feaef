package otel

import (
	"strings"

	"go.opentelemetry.io/otel/propagation"
)

const maskedAttrValue = "****"

// Option modifies telemetry of the client, see NewTrace.
type Option func(*config)

type config struct {
	propagators propagation.TextMapPropagator
	redact      redaction
	// headers enables header attributes of the definition, requests and responses
	headers bool
}

// redaction contains lower-cased names of values masked in attributes.
type redaction struct {
	queryParams map[string]bool
	headers     map[string]bool
}

// WithPropagators injects the trace context to headers of each sent request, including redirects.
func WithPropagators(v propagation.TextMapPropagator) Option {
	return func(c *config) {
		c.propagators = v
	}
}

// WithRedactedQueryParam masks values of the query params in URL and params attributes, names are case-insensitive.
func WithRedactedQueryParam(params ...string) Option {
	return func(c *config) {
		for _, p := range params {
			c.redact.queryParams[strings.ToLower(p)] = true
		}
	}
}

// WithRedactedHeaders masks values of the headers, names are case-insensitive.
// Credentials and cookies headers are always masked.
func WithRedactedHeaders(headers ...string) Option {
	return func(c *config) {
		for _, h := range headers {
			c.redact.headers[strings.ToLower(h)] = true
		}
	}
}

// WithoutHeaders disables header attributes, for example if headers of a config are large.
func WithoutHeaders() Option {
	return func(c *config) {
		c.headers = false
	}
}

func newConfig(opts []Option) config {
	cfg := config{
		headers: true,
		redact: redaction{
			queryParams: map[string]bool{},
			headers: map[string]bool{
				"authorization":       true,
				"www-authenticate":    true,
				"proxy-authenticate":  true,
				"proxy-authorization": true,
				"cookie":              true,
				"set-cookie":          true,
			},
		},
	}
	for _, o := range opts {
		o(&cfg)
	}
	return cfg
}

func (r redaction) header(name, value string) string {
	if r.headers[strings.ToLower(name)] {
		return maskedAttrValue
	}
	return value
}

func (r redaction) queryParam(name, value string) string {
	if r.queryParams[strings.ToLower(name)] {
		return maskedAttrValue
	}
	return value
}

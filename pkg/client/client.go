// Package client executes request.Config definitions and normalizes responses.
//
// Client.Execute performs one synchronous exchange.
// Client.ExecuteBatch performs independent exchanges concurrently, results are aligned to the submission order.
//
// A transport failure never aborts the call, it is recorded in the Response, see Response.Error.
// Only structural misuse, for example a missing target or an unsupported method, is returned as an error.
//
// The raw response is split to the head and the body, see ParseHead and DecodeBody.
// Tracing and telemetry hooks can be registered by Client.AndTrace and Client.WithTelemetry.
package client

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptrace"
	"sync"

	otelMetric "go.opentelemetry.io/otel/metric"
	otelTrace "go.opentelemetry.io/otel/trace"

	"github.com/areCodeOI/oiapi/pkg/client/trace"
	"github.com/areCodeOI/oiapi/pkg/client/trace/otel"
	"github.com/areCodeOI/oiapi/pkg/request"
)

// Client is a configurable executor of request.Config definitions, it is based on the Go native http.Client.
// Builder methods return a modified clone, the Client value is safe for concurrent use.
type Client struct {
	endpoint     request.Endpoint
	transport    http.RoundTripper
	traceFactory trace.Factory
	echo         *echoHeader
	batchLimit   int64
}

type echoHeader struct {
	lock   *sync.Mutex
	header http.Header
}

// New creates new Client for the request.DefaultEndpoint.
// By default, a new transport is created for each exchange, according to the request.Options.
func New() Client {
	return Client{endpoint: request.DefaultEndpoint(), batchLimit: BatchConcurrencyLimit}
}

// WithEndpoint returns a clone of the Client with the endpoint set, it is used by the NewConfig method.
func (c Client) WithEndpoint(endpoint request.Endpoint) Client {
	c.endpoint = endpoint
	return c
}

// WithTransport returns a clone of the Client with a HTTP transport set.
// The transport is shared by all exchanges, the connect timeout, TLS and proxy options are then not applied.
func (c Client) WithTransport(transport http.RoundTripper) Client {
	if transport == nil || transport == http.RoundTripper(nil) {
		panic(fmt.Errorf("transport cannot be nil"))
	}
	c.transport = transport
	return c
}

// AndTrace returns a clone of the Client with the trace hooks added.
// Hooks registered earlier are called first.
func (c Client) AndTrace(fn trace.Factory) Client {
	if fn == nil {
		panic(fmt.Errorf("trace factory cannot be nil"))
	}
	oldFactory := c.traceFactory
	if oldFactory == nil {
		c.traceFactory = fn
		return c
	}
	c.traceFactory = func(ctx context.Context, cfg *request.Config) (context.Context, *trace.ClientTrace) {
		ctx, oldTrace := oldFactory(ctx, cfg)
		ctx, newTrace := fn(ctx, cfg)
		if newTrace == nil {
			return ctx, oldTrace
		}
		newTrace.Compose(oldTrace)
		return ctx, newTrace
	}
	return c
}

// WithTelemetry returns a clone of the Client with OpenTelemetry tracing and metrics added.
func (c Client) WithTelemetry(tracerProvider otelTrace.TracerProvider, meterProvider otelMetric.MeterProvider, opts ...otel.Option) Client {
	return c.AndTrace(otel.NewTrace(tracerProvider, meterProvider, opts...))
}

// WithBatchLimit returns a clone of the Client with the maximum number of concurrent batch exchanges set.
func (c Client) WithBatchLimit(limit int) Client {
	if limit < 1 {
		panic(fmt.Errorf("batch limit must be positive, given %d", limit))
	}
	c.batchLimit = int64(limit)
	return c
}

// WithEchoHeader returns a clone of the Client which sets the upstream Content-Type to the header after each Execute call.
// It is used to propagate the content type to the caller-facing boundary, for example to http.ResponseWriter.Header().
func (c Client) WithEchoHeader(header http.Header) Client {
	if header == nil {
		c.echo = nil
		return c
	}
	c.echo = &echoHeader{lock: &sync.Mutex{}, header: header}
	return c
}

// NewConfig creates a request.Config for the Client endpoint.
func (c Client) NewConfig() *request.Config {
	return request.New(c.endpoint)
}

// Execute performs one exchange, it blocks until the exchange is completed or the timeout elapses.
//
// A transport failure is recorded in the Response.Error.
// The request.ErrTargetNotSet or *request.UnsupportedMethodError is returned for an invalid config.
func (c Client) Execute(ctx context.Context, cfg *request.Config) (*Response, error) {
	if cfg == nil {
		panic(fmt.Errorf("request config cannot be nil"))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	res := c.execute(ctx, cfg)

	// Surface the upstream content type
	if c.echo != nil && res.info.ContentType != "" {
		c.echo.lock.Lock()
		c.echo.header.Set("Content-Type", res.info.ContentType)
		c.echo.lock.Unlock()
	}

	return res, nil
}

func (c Client) execute(ctx context.Context, cfg *request.Config) *Response {
	// Init trace
	var tc *trace.ClientTrace
	if c.traceFactory != nil {
		ctx, tc = c.traceFactory(ctx, cfg)
		if tc != nil {
			ctx = httptrace.WithClientTrace(ctx, &tc.ClientTrace)
		}
	}

	res := c.exchange(ctx, cfg, tc)

	// Trace request processed
	if tc != nil && tc.RequestProcessed != nil {
		var err error
		if res.err != nil {
			err = res.err
		}
		tc.RequestProcessed(res, err)
	}

	return res
}

// Package otel provides OpenTelemetry tracing and metrics for exchanges of the client.
//
// Telemetry is collected on three levels:
//
// 1. Exchange, one call of client.Execute or one item of client.ExecuteBatch:
//   - Span "oiapi.client.request" wraps all redirects and the body receiving.
//   - Metrics "oiapi.client.request.in_flight" and "oiapi.client.request.duration", see clientMeters.
//
// 2. Hop, each sent HTTP request, including redirects:
//   - Span "http.request", child of the exchange span.
//   - Metrics "oiapi.http.request.in_flight" and "oiapi.http.request.duration", see httpMeters.
//
// 3. Connection stages reported by the httptrace package:
//   - Spans "http.dns", "http.getconn", "http.connect", "http.tls", "http.headers", "http.send", "http.receive".
//   - Metrics are not provided.
//
// The [otelhttptrace] package is not used, it does not end all spans.
//
// [otelhttptrace]: https://pkg.go.dev/go.opentelemetry.io/contrib/instrumentation/net/http/httptrace/otelhttptrace
package otel

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"net/http/httptrace"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otelMetric "go.opentelemetry.io/otel/metric"
	metricNoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	otelTrace "go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/areCodeOI/oiapi/pkg/client/trace"
	"github.com/areCodeOI/oiapi/pkg/request"
)

const (
	traceAppName = "github.com/areCodeOI/oiapi"
	// Exchange span.
	clientRequestSpanName = "oiapi.client.request"
	attrStatusCode        = attribute.Key("oiapi.status_code")
	// Hop spans.
	httpRequestSpanName = "http.request"
	attrResourceName    = attribute.Key("resource.name")
	// Connection stage spans.
	httpDNSSpanName      = "http.dns"
	httpGetConnSpanName  = "http.getconn"
	httpConnectSpanName  = "http.connect"
	httpTLSSpanName      = "http.tls"
	httpHeadersSpanName  = "http.headers"
	httpSendSpanName     = "http.send"
	httpReceiveSpanName  = "http.receive"
	attrDNSAddresses     = attribute.Key("http.dns.addrs")
	attrRemoteAddr       = attribute.Key("http.remote")
	attrLocalAddr        = attribute.Key("http.local")
	attrConnReused       = attribute.Key("http.conn.reused")
	attrConnWasIdle      = attribute.Key("http.conn.wasidle")
	attrConnIdleTime     = attribute.Key("http.conn.idletime")
	attrConnStartNetwork = attribute.Key("http.conn.start.network")
	attrConnDoneNetwork  = attribute.Key("http.conn.done.network")
	attrConnDoneAddr     = attribute.Key("http.conn.done.addr")
	// Extra attributes for DataDog.
	attrSpanKind = attribute.Key("span.kind")
	attrSpanType = attribute.Key("span.type")
)

// NewTrace creates the trace factory, nil providers are replaced by no-op implementations.
func NewTrace(tracerProvider otelTrace.TracerProvider, meterProvider otelMetric.MeterProvider, opts ...Option) trace.Factory {
	cfg := newConfig(opts)
	if tracerProvider == nil {
		tracerProvider = noop.NewTracerProvider()
	}
	if meterProvider == nil {
		meterProvider = metricNoop.NewMeterProvider()
	}
	tracer := tracerProvider.Tracer(traceAppName)
	meters := newMeters(meterProvider.Meter(traceAppName))

	return func(ctx context.Context, def *request.Config) (context.Context, *trace.ClientTrace) {
		t := &exchangeTrace{config: cfg, tracer: tracer, meters: meters, attrs: newAttributes(cfg, def)}
		ctx = t.start(ctx)
		return ctx, t.clientTrace()
	}
}

// exchangeTrace holds spans of one exchange, hooks of one exchange are not called concurrently.
type exchangeTrace struct {
	config config
	tracer otelTrace.Tracer
	meters *allMeters
	attrs  *attributes

	rootCtx   context.Context
	rootSpan  otelTrace.Span
	startTime time.Time

	hopCtx   context.Context
	hopSpan  otelTrace.Span
	hopStart time.Time

	dnsSpan     otelTrace.Span
	getConnSpan otelTrace.Span
	connectSpan otelTrace.Span
	tlsSpan     otelTrace.Span
	headersSpan otelTrace.Span
	sendSpan    otelTrace.Span
	receiveSpan otelTrace.Span
}

func (t *exchangeTrace) clientTrace() *trace.ClientTrace {
	tc := &trace.ClientTrace{
		HTTPRequestStart: t.hopStarted,
		HTTPRequestDone:  t.hopDone,
		RequestProcessed: t.processed,
	}
	tc.GotFirstResponseByte = func() {
		t.receiveSpan = t.stageSpan(httpReceiveSpanName)
	}
	tc.DNSStart = func(info httptrace.DNSStartInfo) {
		t.dnsSpan = t.stageSpan(httpDNSSpanName, semconv.NetHostName(info.Host))
	}
	tc.DNSDone = func(info httptrace.DNSDoneInfo) {
		if t.dnsSpan != nil {
			addrs := make([]string, 0, len(info.Addrs))
			for _, addr := range info.Addrs {
				addrs = append(addrs, addr.String())
			}
			t.dnsSpan.SetAttributes(attrDNSAddresses.String(strings.Join(addrs, ";")))
		}
		endSpan(&t.dnsSpan, info.Err)
	}
	tc.GetConn = func(host string) {
		t.getConnSpan = t.stageSpan(httpGetConnSpanName, semconv.NetHostName(host))
	}
	tc.GotConn = func(info httptrace.GotConnInfo) {
		if t.getConnSpan != nil {
			t.getConnSpan.SetAttributes(
				attrRemoteAddr.String(info.Conn.RemoteAddr().String()),
				attrLocalAddr.String(info.Conn.LocalAddr().String()),
				attrConnReused.Bool(info.Reused),
				attrConnWasIdle.Bool(info.WasIdle),
			)
			if info.WasIdle {
				t.getConnSpan.SetAttributes(attrConnIdleTime.String(info.IdleTime.String()))
			}
		}
		endSpan(&t.getConnSpan, nil)
	}
	tc.ConnectStart = func(network, addr string) {
		t.connectSpan = t.stageSpan(httpConnectSpanName, attrRemoteAddr.String(addr), attrConnStartNetwork.String(network))
	}
	tc.ConnectDone = func(network, addr string, err error) {
		if t.connectSpan != nil {
			t.connectSpan.SetAttributes(attrConnDoneAddr.String(addr), attrConnDoneNetwork.String(network))
		}
		endSpan(&t.connectSpan, err)
	}
	// Not reported if the http2.Transport is used directly.
	tc.TLSHandshakeStart = func() {
		t.tlsSpan = t.stageSpan(httpTLSSpanName)
	}
	tc.TLSHandshakeDone = func(_ tls.ConnectionState, err error) {
		endSpan(&t.tlsSpan, err)
	}
	tc.WroteHeaderField = func(_ string, _ []string) {
		if t.headersSpan == nil {
			t.headersSpan = t.stageSpan(httpHeadersSpanName)
		}
	}
	tc.WroteHeaders = func() {
		endSpan(&t.headersSpan, nil)
		t.sendSpan = t.stageSpan(httpSendSpanName)
	}
	tc.WroteRequest = func(info httptrace.WroteRequestInfo) {
		endSpan(&t.sendSpan, info.Err)
	}
	return tc
}

// start opens the exchange span, it may contain multiple hops.
func (t *exchangeTrace) start(ctx context.Context) context.Context {
	t.startTime = time.Now()
	t.meters.client.inFlight.Add(ctx, 1, otelMetric.WithAttributes(t.attrs.definition...))

	t.rootCtx, t.rootSpan = t.tracer.Start(
		ctx,
		clientRequestSpanName,
		otelTrace.WithSpanKind(otelTrace.SpanKindClient),
		otelTrace.WithAttributes(
			attrResourceName.String(t.attrs.definitionURL.Path),
			attrSpanKind.String("client"),
			attrSpanType.String("http"),
		),
		otelTrace.WithAttributes(t.attrs.definition...),
		otelTrace.WithAttributes(t.attrs.definitionExtra...),
	)
	t.hopCtx = t.rootCtx
	return t.rootCtx
}

// processed closes the exchange span, the result is the *client.Response.
func (t *exchangeTrace) processed(result any, err error) {
	elapsed := float64(time.Since(t.startTime)) / float64(time.Millisecond)

	// The in-flight dimensions must match the start
	t.meters.client.inFlight.Add(t.rootCtx, -1, otelMetric.WithAttributes(t.attrs.definition...))
	meterAttrs := append(append([]attribute.KeyValue(nil), t.attrs.definition...), t.attrs.httpResponse...)
	t.meters.client.duration.Record(t.rootCtx, elapsed, otelMetric.WithAttributes(meterAttrs...))

	if t.rootSpan == nil {
		return
	}
	t.rootSpan.SetAttributes(t.attrs.httpResponse...)
	t.rootSpan.SetAttributes(t.attrs.httpResponseExtra...)
	if code, ok := statusCode(result); ok {
		t.rootSpan.SetAttributes(attrStatusCode.Int(code))
	}
	if err != nil {
		t.rootSpan.RecordError(err)
		t.rootSpan.SetStatus(codes.Error, err.Error())
		t.rootSpan.End(otelTrace.WithStackTrace(true))
	} else {
		t.rootSpan.End()
	}
	t.rootSpan = nil
}

func (t *exchangeTrace) hopStarted(req *http.Request) {
	t.hopStart = time.Now()
	t.hopCtx, t.hopSpan = t.tracer.Start(
		t.rootCtx,
		httpRequestSpanName,
		otelTrace.WithSpanKind(otelTrace.SpanKindClient),
		otelTrace.WithAttributes(
			attrSpanKind.String("client"),
			attrSpanType.String("http"),
			attrResourceName.String(req.URL.Path),
		),
	)

	if t.config.propagators != nil {
		t.config.propagators.Inject(t.hopCtx, propagation.HeaderCarrier(req.Header))
	}

	t.attrs.SetFromRequest(req)
	t.meters.http.inFlight.Add(t.rootCtx, 1, otelMetric.WithAttributes(t.attrs.httpRequest...))
	t.hopSpan.SetAttributes(t.attrs.httpRequest...)
	t.hopSpan.SetAttributes(t.attrs.httpRequestExtra...)
}

func (t *exchangeTrace) hopDone(res *http.Response, err error) {
	elapsed := float64(time.Since(t.hopStart)) / float64(time.Millisecond)
	requestAttrs := t.attrs.httpRequest
	t.attrs.SetFromResponse(res, err)

	// The in-flight dimensions must match the hop start
	t.meters.http.inFlight.Add(t.rootCtx, -1, otelMetric.WithAttributes(requestAttrs...))
	t.meters.http.duration.Record(
		t.rootCtx,
		elapsed,
		otelMetric.WithAttributes(requestAttrs...),
		otelMetric.WithAttributes(t.attrs.httpResponse...),
		otelMetric.WithAttributes(t.attrs.httpResponseError...),
	)

	endSpan(&t.receiveSpan, err)

	if t.hopSpan == nil {
		return
	}
	t.hopSpan.SetAttributes(t.attrs.httpResponse...)
	t.hopSpan.SetAttributes(t.attrs.httpResponseExtra...)
	if err == nil && res != nil && res.StatusCode >= http.StatusBadRequest {
		err = fmt.Errorf(`HTTP status code: %d %s`, res.StatusCode, http.StatusText(res.StatusCode))
	}
	endSpan(&t.hopSpan, err)
}

// stageSpan starts a connection stage span under the current hop.
func (t *exchangeTrace) stageSpan(name string, attrs ...attribute.KeyValue) otelTrace.Span {
	_, span := t.tracer.Start(t.hopCtx, name, otelTrace.WithSpanKind(otelTrace.SpanKindClient), otelTrace.WithAttributes(attrs...))
	return span
}

// endSpan records the error, if any, ends the span and clears the reference.
func endSpan(span *otelTrace.Span, err error) {
	if *span == nil {
		return
	}
	if err != nil {
		(*span).RecordError(err)
		(*span).SetStatus(codes.Error, err.Error())
	}
	(*span).End()
	*span = nil
}

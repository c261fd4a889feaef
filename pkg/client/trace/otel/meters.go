package otel

import otelMetric "go.opentelemetry.io/otel/metric"

const (
	clientPrefix = "oiapi.client."
	httpPrefix   = "oiapi.http."
)

type allMeters struct {
	client clientMeters
	http   httpMeters
}

// clientMeters track whole exchanges, including redirects.
type clientMeters struct {
	inFlight otelMetric.Int64UpDownCounter
	duration otelMetric.Float64Histogram
}

// httpMeters track each sent HTTP request.
type httpMeters struct {
	inFlight otelMetric.Int64UpDownCounter
	duration otelMetric.Float64Histogram
}

func newMeters(meter otelMetric.Meter) *allMeters {
	return &allMeters{
		client: clientMeters{
			inFlight: upDownCounter(meter, clientPrefix+"request.in_flight", "HTTP client: in flight requests."),
			duration: histogram(meter, clientPrefix+"request.duration", "HTTP client: requests duration, including the body.", "ms"),
		},
		http: httpMeters{
			inFlight: upDownCounter(meter, httpPrefix+"request.in_flight", "HTTP request: in flight requests."),
			duration: histogram(meter, httpPrefix+"request.duration", "HTTP request: response headers received duration.", "ms"),
		},
	}
}

func upDownCounter(meter otelMetric.Meter, name, desc string) otelMetric.Int64UpDownCounter {
	return mustInstrument(meter.Int64UpDownCounter(name, otelMetric.WithDescription(desc)))
}

func histogram(meter otelMetric.Meter, name, desc string, unit string) otelMetric.Float64Histogram {
	return mustInstrument(meter.Float64Histogram(name, otelMetric.WithDescription(desc), otelMetric.WithUnit(unit)))
}

func mustInstrument[T any](instrument T, err error) T {
	if err != nil {
		panic(err)
	}
	return instrument
}

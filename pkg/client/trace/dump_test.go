package trace_test

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/keboola/go-utils/pkg/wildcards"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/areCodeOI/oiapi/pkg/client"
	"github.com/areCodeOI/oiapi/pkg/client/trace"
	"github.com/areCodeOI/oiapi/pkg/request"
)

func TestDumpTracer(t *testing.T) {
	t.Parallel()

	// Mocked response
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", `https://example.com/index`, func(*http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader(`{"foo":"bar"}`))}, nil
	})

	// Logs for trace testing
	var logs strings.Builder

	// Create client
	ctx := context.Background()
	c := client.New().
		WithTransport(transport).
		WithEndpoint(request.Endpoint{Scheme: "https", Host: "example.com"}).
		AndTrace(trace.DumpTracer(&logs))

	// Expected trace
	expected := `
>>>>>> HTTP DUMP
GET /index HTTP/1.1
Host: example.com%A
------
HTTP/0.0 200 OK%A
------
{"foo":"bar"}
<<<<<< HTTP DUMP END

>>>>>> HTTP REQUEST PROCESSED |  GET /index 200 | ERROR: <nil> | HEADERS AT: %s | DONE AT: %s
`

	// Test
	cfg, err := c.NewConfig().SetAcceptFormat(request.AcceptJSON).Get("index", nil)
	require.NoError(t, err)
	res, err := c.Execute(ctx, cfg)
	require.NoError(t, err)

	// The body is still available after the dump
	value, ok := res.Body().JSON()
	assert.True(t, ok)
	assert.Equal(t, map[string]any{"foo": "bar"}, value)
	wildcards.Assert(t, strings.TrimSpace(expected), strings.TrimSpace(logs.String()))
}

func TestDumpTracer_Truncated(t *testing.T) {
	t.Parallel()

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", `https://example.com/index`, func(*http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader(strings.Repeat("x", trace.DumpMaxLength+10)))}, nil
	})

	var logs strings.Builder
	c := client.New().
		WithTransport(transport).
		WithEndpoint(request.Endpoint{Scheme: "https", Host: "example.com"}).
		AndTrace(trace.DumpTracer(&logs))

	cfg, err := c.NewConfig().Get("index", nil)
	require.NoError(t, err)
	res, err := c.Execute(ctx(), cfg)
	require.NoError(t, err)
	assert.Len(t, res.Body().String(), trace.DumpMaxLength+10)
	assert.Contains(t, logs.String(), "... (10 bytes truncated)")
}

func ctx() context.Context {
	return context.Background()
}

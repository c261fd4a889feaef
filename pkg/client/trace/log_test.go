package trace_test

import (
	"context"
	"errors"
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

func TestLogTracer(t *testing.T) {
	t.Parallel()

	// Mocked response
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", `https://example.com/index`, httpmock.NewStringResponder(http.StatusOK, "OK"))
	transport.RegisterResponder("GET", `https://example.com/missing`, httpmock.NewErrorResponder(errors.New("connection refused")))

	// Logs for trace testing
	var logs strings.Builder

	// Create client
	ctx := context.Background()
	c := client.New().
		WithTransport(transport).
		WithEndpoint(request.Endpoint{Scheme: "https", Host: "example.com"}).
		AndTrace(trace.LogTracer(&logs))

	// Expected trace
	expected := `
HTTP_REQUEST[0001] START GET "https://example.com/index"
HTTP_REQUEST[0001] DONE  GET "https://example.com/index" | 200 | %s
HTTP_REQUEST[0001] BODY  GET "https://example.com/index" | %s
HTTP_REQUEST[0002] START GET "https://example.com/missing"
HTTP_REQUEST[0002] DONE  GET "https://example.com/missing" | 0 | %s
HTTP_REQUEST[0002] BODY  GET "https://example.com/missing" | %s | error=request GET "https://example.com/missing" failed: %s
`

	// Test
	cfg, err := c.NewConfig().Get("index", nil)
	require.NoError(t, err)
	res, err := c.Execute(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, "OK", res.Body().String())

	cfg, err = c.NewConfig().Get("missing", nil)
	require.NoError(t, err)
	res, err = c.Execute(ctx, cfg)
	require.NoError(t, err)
	require.NotNil(t, res.Error())

	wildcards.Assert(t, strings.TrimLeft(expected, "\n"), logs.String())
}

func TestLogTracer_NotSent(t *testing.T) {
	t.Parallel()

	var logs strings.Builder
	c := client.New().
		WithTransport(httpmock.NewMockTransport()).
		WithEndpoint(request.Endpoint{Scheme: "https", Host: "example.com"}).
		AndTrace(trace.LogTracer(&logs))

	// Context is canceled, the request is not sent
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg, err := c.NewConfig().Get("index", nil)
	require.NoError(t, err)
	res, err := c.Execute(ctx, cfg)
	require.NoError(t, err)
	require.NotNil(t, res.Error())
	assert.Equal(t, client.CodeAborted, res.Error().Code)
	wildcards.Assert(t, `%ABODY  GET "https://example.com/index" | %s | error=request GET "https://example.com/index" failed: canceled after %s`, logs.String())
}

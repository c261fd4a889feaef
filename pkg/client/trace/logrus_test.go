package trace_test

import (
	"context"
	"net"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/areCodeOI/oiapi/pkg/client"
	"github.com/areCodeOI/oiapi/pkg/client/trace"
	"github.com/areCodeOI/oiapi/pkg/request"
)

func TestLogrusTracer(t *testing.T) {
	t.Parallel()

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", `https://example.com/redirect`, redirectResponder("https://example.com/index"))
	transport.RegisterResponder("GET", `https://example.com/index`, httpmock.NewStringResponder(http.StatusOK, "OK"))

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	c := client.New().
		WithTransport(transport).
		WithEndpoint(request.Endpoint{Scheme: "https", Host: "example.com"}).
		AndTrace(trace.LogrusTracer(logger))

	cfg, err := c.NewConfig().SetFollowRedirects(true).Get("redirect", nil)
	require.NoError(t, err)
	_, err = c.Execute(context.Background(), cfg)
	require.NoError(t, err)

	var messages []string
	for _, entry := range hook.AllEntries() {
		messages = append(messages, entry.Level.String()+": "+entry.Message)
		assert.Equal(t, uint64(1), entry.Data["requestID"])
		assert.Equal(t, "GET", entry.Data["method"])
		assert.Equal(t, "https://example.com/redirect", entry.Data["target"])
	}
	assert.Equal(t, []string{
		"debug: http request started",
		"debug: http request done",
		"debug: http request started",
		"debug: http request done",
		"info: request processed",
	}, messages)

	last := hook.LastEntry()
	assert.Equal(t, http.StatusOK, last.Data["status"])
	assert.Equal(t, 1, last.Data["redirects"])
}

func TestLogrusTracer_Error(t *testing.T) {
	t.Parallel()

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", `https://example.com/index`, httpmock.NewErrorResponder(&net.DNSError{Err: "no such host", Name: "example.com", IsNotFound: true}))

	logger, hook := test.NewNullLogger()
	c := client.New().
		WithTransport(transport).
		WithEndpoint(request.Endpoint{Scheme: "https", Host: "example.com"}).
		AndTrace(trace.LogrusTracer(logger))

	cfg, err := c.NewConfig().Get("index", nil)
	require.NoError(t, err)
	res, err := c.Execute(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, res.Error())

	// Debug entries are not logged at the default level
	require.Len(t, hook.AllEntries(), 1)
	last := hook.LastEntry()
	assert.Equal(t, logrus.ErrorLevel, last.Level)
	assert.Equal(t, "request failed", last.Message)
	assert.Equal(t, res.Error(), last.Data[logrus.ErrorKey])
}

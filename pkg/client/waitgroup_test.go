package client_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/areCodeOI/oiapi/pkg/client"
)

func TestWaitGroup(t *testing.T) {
	t.Parallel()
	c, transport := newMockedClient()
	transport.RegisterResponder("GET", `=~^https://example.com/`, func(req *http.Request) (*http.Response, error) {
		return httpmock.NewStringResponse(http.StatusOK, req.URL.Path), nil
	})

	g := client.NewWaitGroup(context.Background(), c)
	for i, path := range []string{"foo1", "foo2", "foo3"} {
		cfg, err := c.NewConfig().Get(path, nil)
		require.NoError(t, err)
		assert.Equal(t, i, g.Go(cfg))
	}

	responses := g.Wait()
	require.Len(t, responses, 3)
	assert.Equal(t, "/api/foo1", responses[0].Body().String())
	assert.Equal(t, "/api/foo2", responses[1].Body().String())
	assert.Equal(t, "/api/foo3", responses[2].Body().String())
	assert.Equal(t, map[string]int{
		"GET =~^https://example.com/":     3,
		"GET https://example.com/api/foo1": 1,
		"GET https://example.com/api/foo2": 1,
		"GET https://example.com/api/foo3": 1,
	}, transport.GetCallCountInfo())

	// Wait without requests
	assert.Empty(t, client.NewWaitGroup(context.Background(), c).Wait())
}

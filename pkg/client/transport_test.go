package client_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/http2"

	"github.com/areCodeOI/oiapi/pkg/client"
)

func TestDefaultTransport(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("OK " + r.URL.Path))
	}))
	defer srv.Close()

	// The transport is shared by all requests
	c := client.New().WithTransport(client.DefaultTransport()).WithEndpoint(serverEndpoint(t, srv))
	for _, path := range []string{"a", "b"} {
		cfg, err := c.NewConfig().Get(path, nil)
		require.NoError(t, err)
		res, err := c.Execute(context.Background(), cfg)
		require.NoError(t, err)
		require.Nil(t, res.Error())
		assert.Equal(t, "OK /"+path, res.Body().String())
	}
}

func TestHTTP2Transport(t *testing.T) {
	t.Parallel()
	assert.IsType(t, &http2.Transport{}, client.HTTP2Transport())
}

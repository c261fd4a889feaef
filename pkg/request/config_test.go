package request_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/keboola/go-utils/pkg/orderedmap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/areCodeOI/oiapi/pkg/request"
)

func TestConfig_Defaults(t *testing.T) {
	t.Parallel()
	c := request.Default()
	assert.Equal(t, request.MethodGet, c.Method())
	assert.False(t, c.HasTarget())
	assert.Empty(t, c.Target())
	assert.Equal(t, request.AcceptString, c.AcceptFormat())
	assert.Equal(t, []string{"User-Agent: " + request.DefaultUserAgent}, c.HeaderLines())
	assert.Equal(t, request.DefaultOptions(), c.TransportOptions())
	assert.Equal(t, 10*time.Second, c.TransportOptions().ConnectTimeout)
	assert.Equal(t, 30*time.Second, c.TransportOptions().Timeout)
	assert.ErrorIs(t, c.Validate(), request.ErrTargetNotSet)
}

func TestConfig_Compose_TargetPrefix(t *testing.T) {
	t.Parallel()
	methods := []request.Method{
		request.MethodGet, request.MethodPost, request.MethodHead, request.MethodPut,
		request.MethodDelete, request.MethodPatch, request.MethodOptions, request.MethodFile,
	}
	for _, m := range methods {
		c, err := request.Default().SetRoute("x", "y").Compose(m, "foo/bar", nil)
		require.NoError(t, err)
		assert.Equal(t, "http://oiapi.net/api/foo/bar/x/y", c.Target(), m.String())
		assert.NoError(t, c.Validate())
	}

	// Custom endpoint
	c, err := request.New(request.Endpoint{Scheme: "https", Host: "example.com", BasePath: "v1"}).Get("items", nil)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/v1/items", c.Target())
}

func TestConfig_Compose_Query(t *testing.T) {
	t.Parallel()

	c, err := request.Default().Get("search", map[string]any{"a": 1, "b": "x y"})
	require.NoError(t, err)
	assert.Equal(t, "http://oiapi.net/api/search?a=1&b=x%20y", c.Target())
	assert.Empty(t, c.Body())

	// Existing query, the target is encoded
	c, err = request.Default().SetRoute("中文").Delete("item?id=1", "name=中")
	require.NoError(t, err)
	assert.Equal(t, "http://oiapi.net/api/item?id=1/中文&name=中", c.URL())
	assert.Equal(t, "http://oiapi.net/api/item?id=1/%E4%B8%AD%E6%96%87&name=%E4%B8%AD", c.Target())

	// Empty data, nothing appended
	c, err = request.Default().Options("opts", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "http://oiapi.net/api/opts", c.Target())
}

func TestConfig_Compose_Body(t *testing.T) {
	t.Parallel()

	// Structured data is encoded to JSON
	data := orderedmap.FromPairs([]orderedmap.Pair{
		{Key: "name", Value: "foo"},
		{Key: "url", Value: "http://x/y"},
	})
	c, err := request.Default().Post("create", data)
	require.NoError(t, err)
	assert.Equal(t, `{"name":"foo","url":"http://x/y"}`, c.Body())
	assert.Equal(t, "http://oiapi.net/api/create", c.Target())
	v, found := c.Header("content-type")
	assert.True(t, found)
	assert.Equal(t, "application/json", v)

	// Unicode is not escaped
	c, err = request.Default().Put("update", map[string]any{"b": "中", "a": []int{1, 2}})
	require.NoError(t, err)
	assert.Equal(t, `{"a":[1,2],"b":"中"}`, c.Body())

	// Raw string which is not a JSON
	c, err = request.Default().Patch("patch", "foo=bar")
	require.NoError(t, err)
	assert.Equal(t, "foo=bar", c.Body())
	_, found = c.Header("content-type")
	assert.False(t, found)

	// Raw JSON string
	c, err = request.Default().Post("raw", `{"a":1}`)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, c.Body())
	_, found = c.Header("content-type")
	assert.True(t, found)
}

func TestConfig_Compose_File(t *testing.T) {
	t.Parallel()

	c, err := request.Default().File("upload", orderedmap.FromPairs([]orderedmap.Pair{
		{Key: "title", Value: "foo"},
	}))
	require.NoError(t, err)
	contentType, found := c.Header("Content-Type")
	require.True(t, found)
	require.True(t, strings.HasPrefix(contentType, "multipart/form-data; boundary=----"))
	boundary := strings.TrimPrefix(contentType, "multipart/form-data; boundary=")
	assert.Equal(t, "--"+boundary+"\r\nContent-Disposition: form-data; name=\"title\"\r\n\r\nfoo\r\n--"+boundary+"--\r\n", c.Body())
	_, found = c.Header("content-type")
	assert.False(t, found)

	// Raw string is sent as is
	c, err = request.Default().File("upload", "raw body")
	require.NoError(t, err)
	assert.Equal(t, "raw body", c.Body())
	_, found = c.Header("Content-Type")
	assert.False(t, found)
}

func TestConfig_Compose_Head(t *testing.T) {
	t.Parallel()
	c, err := request.Default().Head("ping", map[string]any{"a": 1})
	require.NoError(t, err)
	assert.True(t, c.TransportOptions().NoBody)
	assert.Equal(t, "http://oiapi.net/api/ping", c.Target())
}

func TestConfig_Compose_UnsupportedMethod(t *testing.T) {
	t.Parallel()
	c, err := request.Default().Compose(request.Method(42), "foo", nil)
	var methodErr *request.UnsupportedMethodError
	require.True(t, errors.As(err, &methodErr))
	assert.False(t, c.HasTarget())
}

func TestConfig_Compose_InvalidDataKeepsState(t *testing.T) {
	t.Parallel()

	c, err := request.Default().Get("a", map[string]any{"x": 1})
	require.NoError(t, err)
	lines := c.HeaderLines()

	cases := []struct {
		name   string
		method request.Method
		data   any
	}{
		{name: "query", method: request.MethodGet, data: 42},
		{name: "body", method: request.MethodPost, data: make(chan int)},
		{name: "multipart", method: request.MethodFile, data: map[string]any{"f": make(chan int)}},
	}
	for _, tc := range cases {
		_, err := c.Compose(tc.method, "b", tc.data)
		require.Error(t, err, tc.name)

		assert.NoError(t, c.Validate(), tc.name)
		assert.Equal(t, request.MethodGet, c.Method(), tc.name)
		assert.Equal(t, "a", c.Path(), tc.name)
		assert.Equal(t, map[string]any{"x": 1}, c.Data(), tc.name)
		assert.Equal(t, "http://oiapi.net/api/a?x=1", c.URL(), tc.name)
		assert.Equal(t, "http://oiapi.net/api/a?x=1", c.Target(), tc.name)
		assert.Empty(t, c.Body(), tc.name)
		assert.Equal(t, lines, c.HeaderLines(), tc.name)
	}

	// Not composed yet
	fresh := request.Default()
	_, err = fresh.Post("c", make(chan int))
	require.Error(t, err)
	assert.False(t, fresh.HasTarget())
	assert.ErrorIs(t, fresh.Validate(), request.ErrTargetNotSet)
}

func TestConfig_Compose_HeadKeepsNoBody(t *testing.T) {
	t.Parallel()

	c, err := request.Default().Head("ping", nil)
	require.NoError(t, err)
	assert.True(t, c.TransportOptions().NoBody)

	// The option stays enabled, also in clones
	_, err = c.Get("users", nil)
	require.NoError(t, err)
	assert.True(t, c.TransportOptions().NoBody)
	assert.True(t, c.Clone().TransportOptions().NoBody)

	c.SetNoBody(false)
	assert.False(t, c.TransportOptions().NoBody)
}

func TestConfig_AddHeader_EmptyValue(t *testing.T) {
	t.Parallel()

	c := request.Default().
		AddHeader("X-Line: foo", "").
		AddHeader("X-Empty", "")
	v, found := c.Header("X-Line")
	assert.True(t, found)
	assert.Equal(t, "foo", v)
	v, found = c.Header("X-Empty")
	assert.True(t, found)
	assert.Empty(t, v)
	_, found = c.Header("X-Line: foo")
	assert.False(t, found)
}

func TestConfig_Headers(t *testing.T) {
	t.Parallel()

	a := request.Default().AddHeader("Host: example.com")
	b := request.Default().AddHeader("Host", "example.com")
	assert.Equal(t, a.HeaderLines(), b.HeaderLines())
	v, found := a.Header("Host")
	assert.True(t, found)
	assert.Equal(t, "example.com", v)

	// Last write wins, keys are case-sensitive
	a.AddHeader("Host", "foo.com").AddHeader("host", "bar.com")
	assert.Equal(t, []string{
		"User-Agent: " + request.DefaultUserAgent,
		"Host: foo.com",
		"host: bar.com",
	}, a.HeaderLines())

	// Bulk
	c := request.Default().
		SetHeaders(map[string]string{"X-B": "2", "X-A": "1"}).
		SetHeaders([]string{"X-C: 3", "User-Agent: test"}).
		SetHeaders(orderedmap.FromPairs([]orderedmap.Pair{{Key: "X-D", Value: 4}}))
	assert.Equal(t, []string{
		"User-Agent: test",
		"X-A: 1",
		"X-B: 2",
		"X-C: 3",
		"X-D: 4",
	}, c.HeaderLines())
	assert.Equal(t, []string{"User-Agent", "X-A", "X-B", "X-C", "X-D"}, c.Headers().Keys())

	c.RemoveHeader("X-C")
	_, found = c.Header("X-C")
	assert.False(t, found)
	assert.Len(t, c.HeaderLines(), 4)

	assert.Panics(t, func() {
		request.Default().SetHeaders(123)
	})
}

func TestConfig_Options(t *testing.T) {
	t.Parallel()

	c := request.Default().
		SetTimeout(5 * time.Second).
		SetConnectTimeout(time.Second).
		SetProxy("127.0.0.1:8888", "user:pass").
		SetFollowRedirects(true).
		SetEncoding("").
		SetNoBody(true).
		SetVerifyTLS(true, false)

	opts := c.TransportOptions()
	assert.Equal(t, 5*time.Second, opts.Timeout)
	assert.Equal(t, time.Second, opts.ConnectTimeout)
	assert.Equal(t, &request.Proxy{Address: "127.0.0.1:8888", Credentials: "user:pass"}, opts.Proxy)
	assert.True(t, opts.FollowRedirects)
	assert.True(t, opts.AutoReferer)
	assert.Equal(t, request.EncodingAll, opts.Encoding)
	assert.True(t, opts.NoBody)
	assert.True(t, opts.VerifyPeer)
	assert.False(t, opts.VerifyHost)

	// Invalid credentials are ignored
	c.SetProxy("proxy:3128", "invalid")
	assert.Empty(t, c.TransportOptions().Proxy.Credentials)

	c.DisableProxy().SetEncoding("gzip")
	assert.Nil(t, c.TransportOptions().Proxy)
	assert.Equal(t, "gzip", c.TransportOptions().Encoding)
}

func TestConfig_Clear(t *testing.T) {
	t.Parallel()

	c := request.Default().
		AddHeader("X-Foo", "bar").
		SetRoute("a", "b").
		SetAcceptFormat(request.AcceptJSON).
		SetProxy("127.0.0.1:8888", "").
		SetTimeout(time.Second)
	_, err := c.Post("foo", map[string]any{"a": 1})
	require.NoError(t, err)

	assert.Equal(t, request.Default(), c.Clear())
	assert.ErrorIs(t, c.Validate(), request.ErrTargetNotSet)
}

func TestConfig_Clone(t *testing.T) {
	t.Parallel()

	base := request.Default().AddHeader("X-Foo", "bar").SetRoute("r").SetProxy("proxy:1", "u:p")
	clone := base.Clone()
	assert.Equal(t, base, clone)

	// Modifications of the clone are not visible in the base
	clone.AddHeader("X-Foo", "baz").SetRoute("other").SetProxy("proxy:2", "")
	_, err := clone.Get("x", nil)
	require.NoError(t, err)

	v, _ := base.Header("X-Foo")
	assert.Equal(t, "bar", v)
	assert.Equal(t, []string{"r"}, base.Route())
	assert.Equal(t, "proxy:1", base.TransportOptions().Proxy.Address)
	assert.False(t, base.HasTarget())
}

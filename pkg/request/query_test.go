package request_test

import (
	"testing"

	"github.com/keboola/go-utils/pkg/orderedmap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/areCodeOI/oiapi/pkg/request"
)

func TestBuildQuery(t *testing.T) {
	t.Parallel()

	// Map keys are sorted
	query, err := request.BuildQuery(map[string]any{"b": "x y", "a": 1})
	require.NoError(t, err)
	assert.Equal(t, "a=1&b=x%20y", query)

	// Raw string is passed through
	query, err = request.BuildQuery("foo=bar baz")
	require.NoError(t, err)
	assert.Equal(t, "foo=bar baz", query)

	// Ordered map keeps the order, nested values use brackets
	query, err = request.BuildQuery(orderedmap.FromPairs([]orderedmap.Pair{
		{Key: "z", Value: true},
		{Key: "a", Value: orderedmap.FromPairs([]orderedmap.Pair{
			{Key: "b", Value: "c&d"},
			{Key: "n", Value: nil},
		})},
		{Key: "list", Value: []any{"x", 2.5}},
		{Key: "off", Value: false},
	}))
	require.NoError(t, err)
	assert.Equal(t, "z=1&a%5Bb%5D=c%26d&list%5B0%5D=x&list%5B1%5D=2.5&off=0", query)

	// Struct fields
	type params struct {
		Name  string `json:"name"`
		Empty string `json:"empty,omitempty"`
		Skip  string `json:"-"`
	}
	query, err = request.BuildQuery(params{Name: "a+b", Skip: "x"})
	require.NoError(t, err)
	assert.Equal(t, "name=a%2Bb", query)

	// Not structured
	_, err = request.BuildQuery(123)
	assert.EqualError(t, err, "cannot build query from int")
}

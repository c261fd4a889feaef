package client

import (
	"bytes"
	jsonlib "encoding/json"

	"github.com/keboola/go-utils/pkg/orderedmap"

	"github.com/areCodeOI/oiapi/pkg/request"
)

// Body is the response body decoded according to the accept format.
//
// If the body should be decoded but it is not a valid JSON, or it is the JSON null,
// the body holds the "no value" marker, see IsNoValue.
type Body struct {
	raw     string
	format  request.AcceptFormat
	value   any
	noValue bool
}

// DecodeBody decodes the response body.
//   - request.AcceptString: the raw string.
//   - request.AcceptJSON: map[string]any, []any or a scalar value.
//   - request.AcceptObject: *orderedmap.OrderedMap for a JSON object, the keys order is kept, other values as AcceptJSON.
//
// Unknown formats are decoded as the request.AcceptString.
func DecodeBody(body string, format request.AcceptFormat) Body {
	format = format.Normalize()
	out := Body{raw: body, format: format}
	switch format {
	case request.AcceptJSON:
		out.value, out.noValue = decodeJSON(body)
	case request.AcceptObject:
		out.value, out.noValue = decodeObject(body)
	default:
		out.value = body
	}
	return out
}

// String returns the raw body.
func (b Body) String() string {
	return b.raw
}

func (b Body) Format() request.AcceptFormat {
	return b.format
}

// Value returns the decoded value, the second value is false for the "no value" marker.
func (b Body) Value() (any, bool) {
	return b.value, !b.noValue
}

// IsNoValue returns true if the body could not be decoded.
func (b Body) IsNoValue() bool {
	return b.noValue
}

// JSON decodes the raw body as the request.AcceptJSON, regardless of the format of the Body.
func (b Body) JSON() (any, bool) {
	v, noValue := decodeJSON(b.raw)
	return v, !noValue
}

// Map decodes the raw body as a JSON object.
func (b Body) Map() (map[string]any, bool) {
	v, ok := b.JSON()
	if !ok {
		return nil, false
	}
	m, ok := v.(map[string]any)
	return m, ok
}

// Slice decodes the raw body as a JSON array.
func (b Body) Slice() ([]any, bool) {
	v, ok := b.JSON()
	if !ok {
		return nil, false
	}
	s, ok := v.([]any)
	return s, ok
}

// Object decodes the raw body as the request.AcceptObject, regardless of the format of the Body.
func (b Body) Object() (any, bool) {
	v, noValue := decodeObject(b.raw)
	return v, !noValue
}

func decodeJSON(body string) (value any, noValue bool) {
	if err := json.UnmarshalFromString(body, &value); err != nil || value == nil {
		return nil, true
	}
	return value, false
}

func decodeObject(body string) (value any, noValue bool) {
	trimmed := bytes.TrimSpace([]byte(body))
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return decodeJSON(body)
	}

	// Standard json encoding library is used for the OrderedMap, as for the request body.
	m := orderedmap.New()
	if err := jsonlib.Unmarshal(trimmed, m); err != nil {
		return nil, true
	}
	return m, false
}

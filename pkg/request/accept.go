package request

import "strings"

// AcceptFormat defines how the response body is decoded.
// It governs result decoding only, not the request itself.
type AcceptFormat string

const (
	// AcceptString keeps the raw response body.
	AcceptString = AcceptFormat("string")
	// AcceptJSON decodes the JSON body to map[string]any, []any or a scalar.
	AcceptJSON = AcceptFormat("json")
	// AcceptObject decodes the JSON object body to *orderedmap.OrderedMap, the keys order is kept.
	AcceptObject = AcceptFormat("object")
)

// Normalize returns lower-cased format, unknown formats are mapped to the AcceptString.
func (f AcceptFormat) Normalize() AcceptFormat {
	switch v := AcceptFormat(strings.ToLower(string(f))); v {
	case AcceptJSON, AcceptObject:
		return v
	default:
		return AcceptString
	}
}

package request

import (
	jsoniter "github.com/json-iterator/go"
)

// json - replacement of the standard encoding/json library, it is faster for larger payloads.
// HTML characters are not escaped, the body is sent as it was defined.
var json = jsoniter.Config{EscapeHTML: false, SortMapKeys: true, ValidateJsonRawMessage: true}.Froze() //nolint:gochecknoglobals

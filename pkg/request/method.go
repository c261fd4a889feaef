package request

import (
	"net/http"
	"strings"
)

// Method is one of the supported HTTP methods.
// The zero value means "not set".
type Method uint8

const (
	MethodGet Method = iota + 1
	MethodPost
	MethodHead
	MethodPut
	MethodDelete
	MethodPatch
	MethodOptions
	// MethodFile is an alias of POST, the body is sent as is or as multipart/form-data.
	MethodFile
)

var methodNames = map[Method]string{ //nolint:gochecknoglobals
	MethodGet:     "GET",
	MethodPost:    "POST",
	MethodHead:    "HEAD",
	MethodPut:     "PUT",
	MethodDelete:  "DELETE",
	MethodPatch:   "PATCH",
	MethodOptions: "OPTIONS",
	MethodFile:    "FILE",
}

// ParseMethod converts a case-insensitive method name to the Method.
func ParseMethod(name string) (Method, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for m, n := range methodNames {
		if n == upper {
			return m, nil
		}
	}
	return 0, &UnsupportedMethodError{Name: name}
}

// String returns the method name, FILE for the MethodFile.
func (m Method) String() string {
	if n, ok := methodNames[m]; ok {
		return n
	}
	return "UNKNOWN"
}

// Valid returns true if the method is one of the supported methods.
func (m Method) Valid() bool {
	_, ok := methodNames[m]
	return ok
}

// Wire returns the method sent to the remote peer, MethodFile is sent as POST.
func (m Method) Wire() string {
	switch m {
	case MethodGet:
		return http.MethodGet
	case MethodPost, MethodFile:
		return http.MethodPost
	case MethodHead:
		return http.MethodHead
	case MethodPut:
		return http.MethodPut
	case MethodDelete:
		return http.MethodDelete
	case MethodPatch:
		return http.MethodPatch
	case MethodOptions:
		return http.MethodOptions
	default:
		return ""
	}
}

// HasBody returns true for methods whose data is sent in the request body.
func (m Method) HasBody() bool {
	switch m {
	case MethodPost, MethodPut, MethodPatch, MethodFile:
		return true
	default:
		return false
	}
}

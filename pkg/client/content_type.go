package client

import (
	"strings"

	"github.com/umisama/go-regexpcache"
)

const (
	ContentTypeApplicationJSON       = "application/json"
	ContentTypeApplicationJSONRegexp = `^application/([a-zA-Z0-9\.\-]+\+)?json$`
)

// IsJSONContentType returns true for "application/json" and "application/*+json" media types, parameters are ignored.
func IsJSONContentType(contentType string) bool {
	mediaType, _, _ := strings.Cut(contentType, ";")
	return regexpcache.MustCompile(ContentTypeApplicationJSONRegexp).MatchString(strings.ToLower(strings.TrimSpace(mediaType)))
}

// IsJSON returns true if the final response declares a JSON content type.
func (r *Response) IsJSON() bool {
	return IsJSONContentType(r.info.ContentType)
}

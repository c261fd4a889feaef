package request

import (
	"fmt"
	"net/url"
	"strings"
)

// BuildQuery renders the data as a query string.
//
// A string is returned as it is.
// Structured data is rendered as "key=value" pairs joined by "&",
// nested values use the "key[sub]" notation and nil values are skipped.
// Keys and values are encoded according to RFC 3986, so the space is encoded as "%20", not "+".
func BuildQuery(data any) (string, error) {
	if v, ok := data.(string); ok {
		return v, nil
	}

	pairs, ok := toPairs(data)
	if !ok {
		return "", fmt.Errorf(`cannot build query from %T`, data)
	}

	var parts []string
	for _, pair := range pairs {
		if err := appendQuery(&parts, rawURLEncode(pair.Key), pair.Value); err != nil {
			return "", err
		}
	}
	return strings.Join(parts, "&"), nil
}

func appendQuery(parts *[]string, key string, value any) error {
	if value == nil {
		return nil
	}

	// Nested structure
	if nested, ok := toPairs(value); ok {
		for _, pair := range nested {
			if err := appendQuery(parts, key+rawURLEncode("["+pair.Key+"]"), pair.Value); err != nil {
				return err
			}
		}
		return nil
	}

	// Scalar
	var str string
	switch v := value.(type) {
	case bool:
		if v {
			str = "1"
		} else {
			str = "0"
		}
	default:
		s, err := castToString(v)
		if err != nil {
			return err
		}
		str = s
	}
	*parts = append(*parts, key+"="+rawURLEncode(str))
	return nil
}

// rawURLEncode encodes all bytes except unreserved characters "A-Z a-z 0-9 - _ . ~".
func rawURLEncode(s string) string {
	// QueryEscape keeps exactly the unreserved characters, only the space is encoded as "+".
	// The literal "+" is already escaped to "%2B", so the replacement is safe.
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// queryJoin appends the query to the target using "?" or "&".
func queryJoin(target, query string) string {
	if strings.Contains(target, "?") {
		return target + "&" + query
	}
	return target + "?" + query
}

// Package decode decompresses response bodies according to the Content-Encoding header.
package decode

import (
	"compress/gzip"
	"compress/zlib"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
)

const (
	Gzip    = "gzip"
	Brotli  = "br"
	Deflate = "deflate"
)

// Decode wraps the body by decoders, the contentEncoding may contain a list of encodings, for example "gzip, br".
// The encodings are applied in the listed order, so decoders are applied in the reverse order.
// Unknown encodings, for example "identity", are ignored.
func Decode(body io.ReadCloser, contentEncoding string) (io.ReadCloser, error) {
	encodings := strings.Split(strings.ToLower(contentEncoding), ",")
	for i := len(encodings) - 1; i >= 0; i-- {
		var err error
		body, err = decodeOne(body, strings.TrimSpace(encodings[i]))
		if err != nil {
			return nil, err
		}
	}
	return body, nil
}

func decodeOne(body io.ReadCloser, encoding string) (io.ReadCloser, error) {
	switch encoding {
	case Gzip:
		if v, err := gzip.NewReader(body); err == nil {
			return v, nil
		} else {
			return nil, fmt.Errorf("cannot decode gzip: %w", err)
		}
	case Brotli:
		return io.NopCloser(brotli.NewReader(body)), nil
	case Deflate:
		if v, err := zlib.NewReader(body); err == nil {
			return v, nil
		} else {
			return nil, fmt.Errorf("cannot decode deflate: %w", err)
		}
	default:
		return body, nil
	}
}

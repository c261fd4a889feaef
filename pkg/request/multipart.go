package request

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const multipartEOL = "\r\n"

// Image is an in-memory image attached to a multipart body.
//
// The section of an image contains only the Content-Disposition and Content-Type headers,
// the encoded image bytes are not written to the body.
type Image interface {
	// ImageFormat returns the encoded format of the image, for example "PNG" or "jpeg".
	ImageFormat() string
}

var mimeTypes = map[string]string{ //nolint:gochecknoglobals
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"bmp":  "image/bmp",
	"pdf":  "application/pdf",
	"txt":  "text/plain",
}

// MimeType returns the MIME type by the file extension, "application/octet-stream" for unknown extensions.
func MimeType(filename string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if v, ok := mimeTypes[ext]; ok {
		return v
	}
	return "application/octet-stream"
}

// NewBoundary generates a random multipart boundary.
func NewBoundary() string {
	return "----" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// MultipartContentType returns the Content-Type header value for the boundary.
func MultipartContentType(boundary string) string {
	return "multipart/form-data; boundary=" + boundary
}

// BuildMultipart builds a multipart/form-data body from the fields.
//
// The fields must be structured data, see BuildQuery, the order of the fields is kept.
// If the boundary is empty, a random one is generated. The used boundary is returned.
//
// Each field is converted to a section:
//   - A string which is a path to an existing file is uploaded as a file,
//     the Content-Type is set according to the file extension.
//   - An Image is written as an image attachment with a random file name.
//   - Any other value is written as a plain form field.
func BuildMultipart(fields any, boundary string) ([]byte, string, error) {
	pairs, ok := toPairs(fields)
	if !ok {
		return nil, "", fmt.Errorf(`cannot build multipart body from %T`, fields)
	}

	if boundary == "" {
		boundary = NewBoundary()
	}

	var out bytes.Buffer
	for _, pair := range pairs {
		out.WriteString("--" + boundary + multipartEOL)

		if path, ok := pair.Value.(string); ok && isFile(path) {
			// File upload
			content, err := os.ReadFile(path)
			if err != nil {
				return nil, "", fmt.Errorf(`cannot read multipart file "%s": %w`, path, err)
			}
			fmt.Fprintf(&out, `Content-Disposition: form-data; name="%s"; filename="%s"%s`, pair.Key, filepath.Base(path), multipartEOL)
			out.WriteString("Content-Type: " + MimeType(path) + multipartEOL + multipartEOL)
			out.Write(content)
			out.WriteString(multipartEOL)
		} else if img, ok := pair.Value.(Image); ok {
			// Image attachment, the section body stays empty
			format := strings.ToLower(img.ImageFormat())
			filename := strings.ReplaceAll(uuid.NewString(), "-", "") + "." + format
			fmt.Fprintf(&out, `Content-Disposition: form-data; name="%s"; filename="%s"%s`, pair.Key, filename, multipartEOL)
			out.WriteString("Content-Type: image/" + format + multipartEOL + multipartEOL)
		} else {
			// Plain field
			value, err := fieldValue(pair.Value)
			if err != nil {
				return nil, "", fmt.Errorf(`multipart field "%s": %w`, pair.Key, err)
			}
			fmt.Fprintf(&out, `Content-Disposition: form-data; name="%s"%s%s`, pair.Key, multipartEOL, multipartEOL)
			out.WriteString(value + multipartEOL)
		}
	}
	out.WriteString("--" + boundary + "--" + multipartEOL)

	return out.Bytes(), boundary, nil
}

func fieldValue(v any) (string, error) {
	if v == nil {
		return "", nil
	}
	if isStructured(v) {
		return marshalJSON(v)
	}
	return castToString(v)
}

func isFile(path string) bool {
	if path == "" {
		return false
	}
	stat, err := os.Stat(path)
	return err == nil && !stat.IsDir()
}

package request

import "strings"

// minEncodedRun is the minimal length of an extended bytes run that is percent-encoded.
// Shorter runs are kept literal.
const minEncodedRun = 3

const upperHex = "0123456789ABCDEF"

// EncodeURL percent-encodes runs of extended bytes (0x7F-0xFF) in the URL.
// A run is encoded only if it is at least 3 bytes long, shorter runs are left untouched.
// All other bytes are kept as they are.
func EncodeURL(in string) string {
	if strings.IndexFunc(in, func(r rune) bool { return r >= 0x7f }) == -1 {
		return in
	}

	var out strings.Builder
	out.Grow(len(in) * 2)
	for i := 0; i < len(in); {
		// Find the end of the run
		j := i
		for j < len(in) && isExtendedByte(in[j]) {
			j++
		}

		// Plain byte
		if j == i {
			out.WriteByte(in[i])
			i++
			continue
		}

		// Extended run
		if j-i >= minEncodedRun {
			for _, c := range []byte(in[i:j]) {
				out.WriteByte('%')
				out.WriteByte(upperHex[c>>4])
				out.WriteByte(upperHex[c&0x0f])
			}
		} else {
			out.WriteString(in[i:j])
		}
		i = j
	}
	return out.String()
}

func isExtendedByte(c byte) bool {
	return c >= 0x7f
}

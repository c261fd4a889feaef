package client

import (
	"net/http"
	"strings"

	"github.com/umisama/go-regexpcache"
)

// Head is the parsed response head.
type Head struct {
	// Raw head, it contains heads of all followed redirects.
	Raw string
	// Header of the last head block.
	Header http.Header
	// Cookies from all Set-Cookie lines, the last value for a name wins.
	Cookies map[string]string
}

// ParseHead parses the raw response head.
//
// The Header is parsed from the last head block, so the final response of a redirect chain is used.
// Cookies are extracted from all "Set-Cookie: name=value;" lines, a cookie without any attribute (missing ";") is skipped.
func ParseHead(raw string) Head {
	return Head{Raw: raw, Header: parseHeader(raw), Cookies: parseCookies(raw)}
}

func parseHeader(raw string) http.Header {
	header := make(http.Header)

	// Find the last non-empty block
	blocks := regexpcache.MustCompile(`\r?\n\r?\n`).Split(raw, -1)
	var last string
	for i := len(blocks) - 1; i >= 0; i-- {
		if strings.TrimSpace(blocks[i]) != "" {
			last = blocks[i]
			break
		}
	}

	// The first line is the status line
	_, fields, _ := strings.Cut(last, "\n")
	for _, m := range regexpcache.MustCompile(`(?m)^([^:\r\n]+):[ \t]*(.*?)\r?$`).FindAllStringSubmatch(fields, -1) {
		header.Add(strings.TrimSpace(m[1]), m[2])
	}
	return header
}

func parseCookies(raw string) map[string]string {
	cookies := make(map[string]string)
	matches := regexpcache.MustCompile(`(?im)Set-Cookie: (.+?);`).FindAllStringSubmatch(raw, -1)
	if len(matches) == 0 {
		return cookies
	}

	values := make([]string, 0, len(matches))
	for _, m := range matches {
		values = append(values, m[1])
	}

	pairRegexp := regexpcache.MustCompile(`(.+?)=(.+)`)
	for _, item := range strings.Split(strings.Join(values, ";"), ";") {
		if m := pairRegexp.FindStringSubmatch(item); m != nil {
			cookies[strings.TrimSpace(m[1])] = m[2]
		}
	}
	return cookies
}

package otel

import "net/http"

func isSuccess(r *http.Response, err error) bool {
	if err != nil {
		return false
	}
	return r != nil && r.StatusCode < http.StatusBadRequest
}

func isRedirection(r *http.Response) bool {
	return r != nil && r.StatusCode >= http.StatusMultipleChoices && r.StatusCode < http.StatusBadRequest
}

// statusCode of the processed result, if any.
func statusCode(result any) (int, bool) {
	if v, ok := result.(interface{ StatusCode() int }); ok && v != nil {
		if code := v.StatusCode(); code > 0 {
			return code, true
		}
	}
	return 0, false
}

package client

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
	"time"
)

// Transport error codes, they follow the numeric codes of the classic transfer libraries.
const (
	CodeUnsupportedProtocol = 1
	CodeMalformedURL        = 3
	CodeProxyResolve        = 5
	CodeHostResolve         = 6
	CodeConnect             = 7
	CodeTimeout             = 28
	CodeTLSConnect          = 35
	CodeAborted             = 42
	CodeTooManyRedirects    = 47
	CodeEmptyReply          = 52
	CodeReceive             = 56
	CodePeerVerification    = 60
	CodeBadContentEncoding  = 61
)

var errTooManyRedirects = errors.New("too many redirects")

// TransportError is an in-band failure of one exchange, it is recorded in the Response, it is never returned.
type TransportError struct {
	Code    int
	Message string
	err     error
}

func (e *TransportError) Error() string {
	return e.Message
}

func (e *TransportError) Unwrap() error {
	return e.err
}

func newTransportError(code int, method, target string, cause, err error) *TransportError {
	// Unwrap url error, the method and URL are already part of the message
	var urlErr *url.Error
	if errors.As(cause, &urlErr) {
		cause = urlErr.Err
	}
	return &TransportError{
		Code:    code,
		Message: fmt.Sprintf(`request %s "%s" failed: %s`, method, target, cause),
		err:     err,
	}
}

// transportErrorFrom classifies an error returned by the http.Client.
func transportErrorFrom(err error, method, target string, startedAt time.Time, timeout time.Duration, proxyHost string) *TransportError {
	var netErr net.Error
	var dnsErr *net.DNSError
	var opErr *net.OpError
	var urlErr *url.Error
	var certErr *tls.CertificateVerificationError
	var unknownAuthErr x509.UnknownAuthorityError
	var hostnameErr x509.HostnameError
	var certInvalidErr x509.CertificateInvalidError
	var recordErr tls.RecordHeaderError
	var alertErr tls.AlertError

	te := func(code int) *TransportError {
		return newTransportError(code, method, target, err, err)
	}

	switch {
	case errors.Is(err, errTooManyRedirects):
		return te(CodeTooManyRedirects)
	case errors.Is(err, context.Canceled):
		return newTransportError(CodeAborted, method, target, fmt.Errorf("canceled after %s", time.Since(startedAt)), err)
	case errors.As(err, &netErr) && netErr.Timeout():
		if strings.Contains(err.Error(), "Client.Timeout exceeded") {
			return newTransportError(CodeTimeout, method, target, fmt.Errorf("timeout after %s", timeout), err)
		}
		return newTransportError(CodeTimeout, method, target, fmt.Errorf("timeout after %s", time.Since(startedAt)), err)
	case errors.Is(err, context.DeadlineExceeded):
		return newTransportError(CodeTimeout, method, target, fmt.Errorf("timeout after %s", time.Since(startedAt)), err)
	case errors.As(err, &dnsErr):
		if proxyHost != "" && dnsErr.Name == proxyHost {
			return te(CodeProxyResolve)
		}
		return te(CodeHostResolve)
	case errors.As(err, &certErr), errors.As(err, &unknownAuthErr), errors.As(err, &hostnameErr), errors.As(err, &certInvalidErr):
		return te(CodePeerVerification)
	case errors.As(err, &recordErr), errors.As(err, &alertErr):
		return te(CodeTLSConnect)
	case errors.As(err, &opErr) && (opErr.Op == "dial" || opErr.Op == "proxyconnect"):
		return te(CodeConnect)
	case strings.Contains(err.Error(), "unsupported protocol scheme"):
		return te(CodeUnsupportedProtocol)
	case errors.As(err, &urlErr) && urlErr.Op == "parse":
		return te(CodeMalformedURL)
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return te(CodeEmptyReply)
	default:
		return te(CodeReceive)
	}
}

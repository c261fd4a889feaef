// Package counter measures response bodies read by the client, the result is reported as the download size.
package counter

import (
	"errors"
	"io"
)

// Stats of a body read by the ReadCloser.
type Stats struct {
	// Bytes read from the wrapped body, before any decoding.
	Bytes int64
	// Err is the read error, or the close error if there was no read error. The io.EOF is not reported.
	Err error
}

type OnClose func(stats Stats)

// ReadCloser wraps a response body to count bytes read.
// Optionally, an OnClose callback can be registered.
type ReadCloser struct {
	wrapped io.ReadCloser
	onClose OnClose
	bytes   int64
	readErr error
}

func NewReadCloser(wrapped io.ReadCloser, onClose OnClose) *ReadCloser {
	return &ReadCloser{wrapped: wrapped, onClose: onClose}
}

func (w *ReadCloser) Bytes() int64 {
	return w.bytes
}

// ReadErr returns the last read error, the io.EOF is ignored.
func (w *ReadCloser) ReadErr() error {
	if errors.Is(w.readErr, io.EOF) {
		return nil
	}
	return w.readErr
}

func (w *ReadCloser) Read(b []byte) (int, error) {
	n, err := w.wrapped.Read(b)
	w.bytes += int64(n)
	if err != nil {
		w.readErr = err
	}
	return n, err
}

func (w *ReadCloser) Close() error {
	closeErr := w.wrapped.Close()
	if w.onClose != nil {
		// Read error has priority, it is usually more useful
		stats := Stats{Bytes: w.bytes, Err: w.ReadErr()}
		if stats.Err == nil {
			stats.Err = closeErr
		}
		w.onClose(stats)
	}
	return closeErr
}

package trace

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	"sync"
	"sync/atomic"
	"time"

	"github.com/areCodeOI/oiapi/pkg/request"
)

// LogTracer writes one line per exchange stage to the writer:
//   - START and DONE for each sent request, including redirects,
//   - CONN when a connection is obtained,
//   - BODY when the exchange is processed, also if nothing has been sent.
//
// Lines are prefixed by HTTP_REQUEST[<id>], the id is unique per exchange.
func LogTracer(wr io.Writer) Factory {
	out := &lineWriter{wr: wr}
	var lastID uint64
	return func(ctx context.Context, cfg *request.Config) (context.Context, *ClientTrace) {
		r := &logRequest{out: out, id: atomic.AddUint64(&lastID, 1), method: cfg.Method().Wire(), url: cfg.Target()}
		t := &ClientTrace{
			HTTPRequestStart: r.start,
			HTTPRequestDone:  r.done,
			RequestProcessed: r.processed,
		}
		t.ConnectStart = func(string, string) {
			r.connStart = time.Now()
		}
		t.GotConn = r.gotConn
		return ctx, t
	}
}

// lineWriter serializes lines of concurrent exchanges.
type lineWriter struct {
	lock sync.Mutex
	wr   io.Writer
}

func (w *lineWriter) printf(id uint64, format string, a ...any) {
	w.lock.Lock()
	defer w.lock.Unlock()
	_, _ = fmt.Fprintf(w.wr, "HTTP_REQUEST[%04d] "+format+"\n", append([]any{id}, a...)...)
}

// logRequest is the state of one exchange, method and url are updated by each sent request.
type logRequest struct {
	out       *lineWriter
	id        uint64
	method    string
	url       string
	connStart time.Time
	startTime time.Time
	doneTime  time.Time
	status    int
}

func (r *logRequest) start(req *http.Request) {
	r.method, r.url = req.Method, req.URL.String()
	r.startTime = time.Now()
	r.out.printf(r.id, `START %s "%s"`, r.method, r.url)
}

func (r *logRequest) gotConn(info httptrace.GotConnInfo) {
	if r.startTime.IsZero() {
		return
	}
	if info.Reused {
		r.out.printf(r.id, `CONN  %s "%s" | reused conn (was idle=%t)`, r.method, r.url, info.WasIdle)
	} else {
		r.out.printf(r.id, `CONN  %s "%s" | new conn | %s`, r.method, r.url, time.Since(r.connStart))
	}
}

func (r *logRequest) done(res *http.Response, err error) {
	r.doneTime = time.Now()
	suffix := ""
	if err == nil {
		r.status = res.StatusCode
	} else {
		suffix = fmt.Sprintf(" | error=%s", err)
	}
	r.out.printf(r.id, `DONE  %s "%s" | %d | %s%s`, r.method, r.url, r.status, r.doneTime.Sub(r.startTime), suffix)
}

func (r *logRequest) processed(_ any, err error) {
	// Body reading time, zero if nothing has been sent
	var elapsed time.Duration
	if !r.doneTime.IsZero() {
		elapsed = time.Since(r.doneTime)
	}
	suffix := ""
	if err != nil {
		suffix = fmt.Sprintf(" | error=%s", err)
	}
	r.out.printf(r.id, `BODY  %s "%s" | %s%s`, r.method, r.url, elapsed, suffix)
}

package trace

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/areCodeOI/oiapi/pkg/request"
)

// LogrusTracer logs request stages as structured entries.
// Each hop (including redirects) is logged at the debug level, the processed request at the info level,
// a transport error at the error level.
func LogrusTracer(logger logrus.FieldLogger) Factory {
	var idGenerator uint64
	return func(ctx context.Context, cfg *request.Config) (context.Context, *ClientTrace) {
		entry := logger.WithFields(logrus.Fields{
			"requestID": atomic.AddUint64(&idGenerator, 1),
			"method":    cfg.Method().String(),
			"target":    cfg.Target(),
		})

		var startTime, hopStartTime time.Time
		var statusCode int
		var redirects int

		t := &ClientTrace{}
		t.HTTPRequestStart = func(r *http.Request) {
			hopStartTime = time.Now()
			if startTime.IsZero() {
				startTime = hopStartTime
			} else {
				redirects++
			}
			entry.WithField("url", r.URL.String()).Debug("http request started")
		}
		t.HTTPRequestDone = func(r *http.Response, err error) {
			hopEntry := entry.WithField("duration", time.Since(hopStartTime))
			if err != nil {
				hopEntry.WithError(err).Debug("http request failed")
				return
			}
			statusCode = r.StatusCode
			hopEntry.WithField("status", statusCode).Debug("http request done")
		}
		t.RequestProcessed = func(result any, err error) {
			var duration time.Duration
			if !startTime.IsZero() {
				duration = time.Since(startTime)
			}
			doneEntry := entry.WithFields(logrus.Fields{
				"status":    statusCode,
				"redirects": redirects,
				"duration":  duration,
			})
			if err != nil {
				doneEntry.WithError(err).Error("request failed")
			} else {
				doneEntry.Info("request processed")
			}
		}
		return ctx, t
	}
}

package metrics

import (
	"net/http"
	"strconv"
	"time"
)

// statusCapturingWriter records the status code written by the wrapped
// handler so Middleware can label the request counter with it.
type statusCapturingWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusCapturingWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// Middleware records request count and latency for every request. The
// route label is req.URL.Path as received, so a route with a path
// parameter (such as /api/v1/status/{job_id}) yields one series per
// distinct path.
func (r *Registry) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		sw := &statusCapturingWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(sw, req)

		r.HTTPRequestsTotal.WithLabelValues(req.URL.Path, req.Method, strconv.Itoa(sw.statusCode)).Inc()
		r.HTTPRequestDuration.WithLabelValues(req.URL.Path, req.Method).Observe(time.Since(start).Seconds())
	})
}

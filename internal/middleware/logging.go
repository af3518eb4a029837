package middleware

import (
	"net/http"
	"time"

	"github.com/confabhq/confab/internal/logging"
)

// RequestLogger writes one structured access-log line per request.
type RequestLogger struct {
	logger *logging.Logger
}

func NewRequestLogger(logger *logging.Logger) *RequestLogger {
	return &RequestLogger{logger: logger}
}

// statusRecorder captures the status code written by the handler. A handler
// that never calls WriteHeader implicitly writes 200.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (rl *RequestLogger) Apply(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		fields := map[string]interface{}{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      rec.status,
			"duration_ms": time.Since(start).Milliseconds(),
			"ip":          GetClientIP(r),
		}
		if query := r.URL.RawQuery; query != "" {
			fields["query"] = query
		}

		switch {
		case rec.status >= http.StatusInternalServerError:
			rl.logger.Error("HTTP request", fields)
		case rec.status >= http.StatusBadRequest:
			rl.logger.Warn("HTTP request", fields)
		default:
			rl.logger.Info("HTTP request", fields)
		}
	})
}

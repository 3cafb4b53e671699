package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/kozi00/wildfire-detect/internal/logger"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// RequestID returns the ID assigned to the request by LoggingMiddleware.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// LoggingMiddleware assigns every request an ID (reusing a valid incoming
// X-Request-ID) and logs method, path, status, size and latency.
func LoggingMiddleware(next http.Handler, logger *logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))

		elapsed := time.Since(start)
		switch {
		case rec.status >= 500:
			logger.Error("[%s] %s %s -> %d (%d bytes, %v)", id, r.Method, r.URL.Path, rec.status, rec.bytes, elapsed)
		case rec.status >= 400:
			logger.Warning("[%s] %s %s -> %d (%d bytes, %v)", id, r.Method, r.URL.Path, rec.status, rec.bytes, elapsed)
		default:
			logger.Info("[%s] %s %s -> %d (%d bytes, %v)", id, r.Method, r.URL.Path, rec.status, rec.bytes, elapsed)
		}
	})
}

// statusRecorder remembers the status code and body size written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(status int) {
	if !r.wroteHeader {
		r.status = status
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(p []byte) (int, error) {
	r.wroteHeader = true
	n, err := r.ResponseWriter.Write(p)
	r.bytes += n
	return n, err
}

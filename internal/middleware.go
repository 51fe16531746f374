package internal

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pmo-dashboard/internal/apiclient"
)

// RequestIDHeader carries the request ID in and out
const RequestIDHeader = "X-Request-ID"

// RequestLogger tags every request with an ID, taken from X-Request-ID when the
// caller sent one, echoes it back and writes one access log line per request.
// Backend calls made while serving the request reuse the same ID.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			id := r.Header.Get(RequestIDHeader)
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, id)

			rw := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
			next.ServeHTTP(rw, r.WithContext(apiclient.ContextWithRequestID(r.Context(), id)))

			fields := []zap.Field{
				zap.String("request_id", id),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rw.code),
				zap.Duration("duration", time.Since(start)),
			}
			if rw.code >= http.StatusInternalServerError {
				logger.Error("request served", fields...)
				return
			}
			logger.Debug("request served", fields...)
		})
	}
}

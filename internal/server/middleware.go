package server

import (
	"log/slog"
	"net/http"
	"time"

	"donation-service/internal/logcontext"
	"github.com/google/uuid"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// RequestLogging tags every request with a correlation id and logs its
// outcome. The id rides the context so provider-client logs carry it too.
func RequestLogging(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logcontext.AppendCtx(r.Context(), slog.String("requestId", uuid.New().String()))

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		startTime := time.Now()

		next.ServeHTTP(recorder, r.WithContext(ctx))

		logger.InfoContext(ctx, "Request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"status", recorder.status,
			"durationMs", time.Since(startTime).Milliseconds(),
		)
	})
}

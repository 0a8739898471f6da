package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/dmitrijs2005/timevault/internal/common"
	"github.com/dmitrijs2005/timevault/internal/logging"
)

type ctxKey string

const correlationIDKey ctxKey = "correlation_id"

// CorrelationID returns the id assigned to the request carried by ctx.
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationIDKey).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// withRequestLogging assigns a correlation id, echoes it in a response
// header and logs start and completion. Only method and path are logged:
// no query string, no headers, no client address.
func withRequestLogging(log logging.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := common.MakeRandHexString(4)
		if err != nil {
			id = "00000000"
		}
		ctx := context.WithValue(r.Context(), correlationIDKey, id)
		l := log.With("correlation_id", id)

		w.Header().Set(common.CorrelationIDHeaderName, id)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		l.Info(ctx, "request_started", "method", r.Method, "path", r.URL.Path)

		defer func() {
			if p := recover(); p != nil {
				l.Error(ctx, "request_failed", "method", r.Method, "path", r.URL.Path, "panic", p)
				writeJSON(log, rec, http.StatusInternalServerError, errorResponse{Error: CodeInternal, Message: "internal error"})
			}
			l.Info(ctx, "request_completed",
				"method", r.Method,
				"path", r.URL.Path,
				"status_code", rec.status,
				"duration_ms", float64(time.Since(start).Microseconds())/1000)
		}()

		next.ServeHTTP(rec, r.WithContext(ctx))
	})
}

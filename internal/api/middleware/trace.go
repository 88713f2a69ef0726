package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// traceHeader carries the trace id between services; inbound values are
// honored so a caller's id survives the hop.
const traceHeader = "X-Trace-ID"

// TraceMiddleware ensures each request has a trace identifier propagated via
// context and the response header.
func TraceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get(traceHeader)
		if traceID == "" {
			traceID = uuid.NewString()
		}
		ctx := contextWithTraceID(r.Context(), traceID)
		w.Header().Set(traceHeader, traceID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func contextWithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceContextKey, traceID)
}

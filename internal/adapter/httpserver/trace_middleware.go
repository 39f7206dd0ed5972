package httpserver

import (
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	obsctx "github.com/fairyhunter13/intake-qa-agent/internal/observability"
)

// TraceMiddleware opens a server span per request and tags it with the
// request id so traces line up with access log entries.
func TraceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := otel.Tracer("intake-qa-agent/http").Start(r.Context(), r.Method+" "+r.URL.Path)
		defer span.End()
		attrs := []attribute.KeyValue{
			attribute.String("http.method", r.Method),
			attribute.String("http.target", r.URL.Path),
		}
		if reqID := obsctx.RequestIDFromContext(ctx); reqID != "" {
			attrs = append(attrs, attribute.String("request.id", reqID))
		}
		span.SetAttributes(attrs...)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

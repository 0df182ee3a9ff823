package httppresentation

import (
	"context"
	"net/http"

	"github.com/Zhima-Mochi/paywall/internal/observability"
	"github.com/Zhima-Mochi/paywall/internal/observability/logctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

const visitorCookie = "visitor_id"

// ObservabilityMiddleware combines:
// - X-Request-ID generation + echo
// - request-scoped logger injection (dynamic fields only)
// - trace identifiers of the server span, when one is recording
func ObservabilityMiddleware(
	base observability.Logger,
	requestID func(*http.Request) string,
	newID func() string,
) func(http.Handler) http.Handler {
	if base == nil {
		base = observability.NopLogger()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			sc := trace.SpanContextFromContext(ctx)

			rid := ""
			if requestID != nil {
				rid = requestID(r)
			}
			if rid == "" {
				rid = newID()
			}
			w.Header().Set(headerRequestID, rid)

			fields := []observability.Field{observability.F("request_id", rid)}
			if sc.IsValid() {
				fields = append(fields,
					observability.F("trace_id", sc.TraceID().String()),
					observability.F("span_id", sc.SpanID().String()),
				)
			}
			ctx = logctx.With(ctx, base.With(fields...))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type visitorKey struct{}

// withVisitor makes sure every browser carries a visitor id cookie. The id only scopes
// the in-memory gate session; it is not an identity.
func (h *Handler) withVisitor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		visitor := ""
		if c, err := r.Cookie(visitorCookie); err == nil && validVisitorID(c.Value) {
			visitor = c.Value
		} else {
			visitor = h.newVisitor()
			http.SetCookie(w, &http.Cookie{
				Name:     visitorCookie,
				Value:    visitor,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
				Secure:   h.opts.SecureCookies,
			})
		}
		ctx := context.WithValue(r.Context(), visitorKey{}, visitor)
		ctx = logctx.Enrich(ctx, h.log, observability.F("visitor_id", visitor))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func validVisitorID(v string) bool {
	_, err := uuid.Parse(v)
	return err == nil
}

func visitorFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(visitorKey{}).(string); ok {
		return v
	}
	return ""
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

package httppresentation

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	apppay "github.com/Zhima-Mochi/paywall/internal/application/payment"
	domentitlement "github.com/Zhima-Mochi/paywall/internal/domain/entitlement"
	domfeedback "github.com/Zhima-Mochi/paywall/internal/domain/feedback"
	dompay "github.com/Zhima-Mochi/paywall/internal/domain/payment"
	"github.com/Zhima-Mochi/paywall/internal/infrastructure/entitlement"
	"github.com/Zhima-Mochi/paywall/internal/infrastructure/feedback"
	"github.com/Zhima-Mochi/paywall/internal/infrastructure/memory"
	"github.com/Zhima-Mochi/paywall/internal/observability"
	"github.com/Zhima-Mochi/paywall/internal/observability/logctx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const (
	componentHTTPHandler = "http_server"
	headerRequestID      = "X-Request-ID"
	maxBodyBytes         = 4 << 10
)

var ErrRateLimited = errors.New("too many payment attempts, slow down")

// Session is the per-visitor gate together with its feedback sinks.
type Session struct {
	Gate     *apppay.Gate
	Toasts   *feedback.Toaster
	Confetti *feedback.ConfettiRecorder
}

// SessionFactory builds a fresh session for a visitor. The gate it returns must notify
// through toasts and celebrate through confetti.
type SessionFactory func(toasts *feedback.Toaster, confetti *feedback.ConfettiRecorder) *apppay.Gate

type PageConfig struct {
	Title    string
	VideoURL string
	Currency string
	Tiers    dompay.Tiers
}

type Options struct {
	Page          PageConfig
	ResetEnabled  bool
	SecureCookies bool
	// PayRPS and PayBurst throttle /api/pay across all visitors. Zero disables it.
	PayRPS   float64
	PayBurst int
}

type Handler struct {
	sessions   *memory.VisitorRegistry[*Session]
	newGate    SessionFactory
	store      domentitlement.Store
	opts       Options
	limiter    *rate.Limiter
	page       *template.Template
	now        func() time.Time
	log        observability.Logger
	tel        observability.Observability
	newVisitor func() string
}

func NewHandler(
	sessions *memory.VisitorRegistry[*Session],
	newGate SessionFactory,
	store domentitlement.Store,
	opts Options,
	ids apppay.IDGenerator,
	tel observability.Observability,
) *Handler {
	if tel == nil {
		tel = observability.Nop()
	}
	if opts.Page.Tiers == nil {
		opts.Page.Tiers = dompay.DefaultTiers
	}
	var limiter *rate.Limiter
	if opts.PayRPS > 0 {
		burst := opts.PayBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.PayRPS), burst)
	}
	return &Handler{
		sessions:   sessions,
		newGate:    newGate,
		store:      store,
		opts:       opts,
		limiter:    limiter,
		page:       pageTemplate,
		now:        time.Now,
		log:        tel.Logger().With(observability.F("component", componentHTTPHandler)),
		tel:        tel,
		newVisitor: ids.NewID,
	}
}

func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()

	// Wire each route with middlewares:
	// Trace → ObservabilityMiddleware (request logger) → HTTP metrics → Access log → Visitor → Handler
	h.muxHandle(mux, http.MethodGet, "/", h.handlePage)
	h.muxHandle(mux, http.MethodPost, "/api/pay", h.handlePay)
	h.muxHandle(mux, http.MethodGet, "/api/entitlement", h.handleEntitlement)
	h.muxHandle(mux, http.MethodGet, "/api/toasts", h.handleToasts)
	h.muxHandle(mux, http.MethodPost, "/api/reset", h.handleReset)
	h.muxHandle(mux, http.MethodGet, "/health", h.handleHealth)

	return mux
}

func (h *Handler) muxHandle(mux *http.ServeMux, method, route string, handler http.HandlerFunc) {
	mux.HandleFunc(route, func(w http.ResponseWriter, r *http.Request) {
		if route == "/" && r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		if r.Method != method {
			writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
			return
		}

		// Store stable route template for low-cardinality labels
		ctx := contextWithRoute(r.Context(), method+" "+route)
		r = r.WithContext(ctx)

		wrapped := h.withTrace(
			ObservabilityMiddleware(
				logctx.FromOr(ctx, h.log),
				func(r *http.Request) string {
					return r.Header.Get(headerRequestID)
				},
				h.newVisitor,
			)(
				h.withHTTPMetrics(
					h.withAccessLog(
						h.withVisitor(handler),
					),
				),
			),
		)
		wrapped.ServeHTTP(w, r)
	})
}

type pageData struct {
	Title    string
	VideoURL string
	Currency string
	Tiers    []int64
	Entitled bool
	Reset    bool
	Digits   int
}

func (h *Handler) handlePage(w http.ResponseWriter, r *http.Request) {
	ctx := entitlement.WithExchange(r.Context(), w, r, h.opts.SecureCookies)
	entitled, err := h.store.Read(ctx)
	if err != nil {
		logctx.FromOr(ctx, h.log).Warn("entitlement_read_failed", observability.E(err))
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.page.Execute(w, pageData{
		Title:    h.opts.Page.Title,
		VideoURL: h.opts.Page.VideoURL,
		Currency: h.opts.Page.Currency,
		Tiers:    h.opts.Page.Tiers,
		Entitled: entitled,
		Reset:    h.opts.ResetEnabled,
		Digits:   dompay.PhoneDigits,
	}); err != nil {
		logctx.FromOr(ctx, h.log).Error("page_render_failed", observability.E(err))
	}
}

type payRequest struct {
	Phone  string `json:"phone"`
	Amount int64  `json:"amount"`
}

type payResponse struct {
	Outcome      dompay.Outcome           `json:"outcome"`
	Kind         dompay.Kind              `json:"kind,omitempty"`
	Message      string                   `json:"message"`
	Notification domfeedback.Notification `json:"notification"`
	Celebration  *domfeedback.Celebration `json:"celebration,omitempty"`
	Entitled     bool                     `json:"entitled"`
	Dismissed    bool                     `json:"dismissed"`
}

func (h *Handler) handlePay(w http.ResponseWriter, r *http.Request) {
	if h.limiter != nil && !h.limiter.Allow() {
		writeError(w, http.StatusTooManyRequests, ErrRateLimited)
		return
	}

	var req payRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if !h.opts.Page.Tiers.Contains(req.Amount) {
		writeError(w, http.StatusBadRequest, dompay.ErrInvalidAmount)
		return
	}

	ctx := entitlement.WithExchange(r.Context(), w, r, h.opts.SecureCookies)
	entitled, err := h.store.Read(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if entitled {
		writeError(w, http.StatusConflict, dompay.ErrGateClosed)
		return
	}

	sess := h.session(ctx)
	dismissed := false
	res, err := sess.Gate.Execute(ctx, apppay.SubmitPaymentInput{
		RawPhone: req.Phone,
		Amount:   req.Amount,
		OnSuccess: func(context.Context) {
			dismissed = true
		},
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, payResponse{
		Outcome:      res.Result.Outcome,
		Kind:         res.Result.Kind,
		Message:      res.Result.Message,
		Notification: res.Notification,
		Celebration:  res.Celebration,
		Entitled:     res.Entitled,
		Dismissed:    dismissed,
	})
}

type entitlementResponse struct {
	Entitled bool   `json:"entitled"`
	Gate     string `json:"gate"`
}

func (h *Handler) handleEntitlement(w http.ResponseWriter, r *http.Request) {
	ctx := entitlement.WithExchange(r.Context(), w, r, h.opts.SecureCookies)
	entitled, err := h.store.Read(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	gate := string(dompay.GateIdle)
	if sess, ok := h.sessions.Get(visitorFromContext(ctx)); ok {
		gate = string(sess.Gate.State())
	}
	writeJSON(w, http.StatusOK, entitlementResponse{Entitled: entitled, Gate: gate})
}

type toastsResponse struct {
	Toasts      []domfeedback.Notification `json:"toasts"`
	Celebration []domfeedback.Celebration  `json:"celebrations"`
}

func (h *Handler) handleToasts(w http.ResponseWriter, r *http.Request) {
	resp := toastsResponse{Toasts: []domfeedback.Notification{}, Celebration: []domfeedback.Celebration{}}
	if sess, ok := h.sessions.Get(visitorFromContext(r.Context())); ok {
		resp.Toasts = sess.Toasts.Active(h.now())
		if c := sess.Confetti.Drain(); c != nil {
			resp.Celebration = c
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleReset clears the visitor's unlock flag. It only exists when dev.reset_enabled is set.
func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	if !h.opts.ResetEnabled {
		http.NotFound(w, r)
		return
	}
	ctx := entitlement.WithExchange(r.Context(), w, r, h.opts.SecureCookies)
	clearer, ok := h.store.(domentitlement.Clearer)
	if !ok {
		writeError(w, http.StatusNotImplemented, errors.New("entitlement store cannot be cleared"))
		return
	}
	if err := clearer.Clear(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.sessions.Forget(visitorFromContext(ctx))
	logctx.FromOr(ctx, h.log).Info("entitlement_reset")
	writeJSON(w, http.StatusOK, entitlementResponse{Entitled: false, Gate: string(dompay.GateIdle)})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// session returns the visitor's gate session. Callers have already checked the visitor
// holds no flag, so a closed gate is replaced the way the page mounts a fresh modal.
func (h *Handler) session(ctx context.Context) *Session {
	visitor := visitorFromContext(ctx)
	create := func() *Session {
		toasts := feedback.NewToaster(h.now)
		confetti := feedback.NewConfettiRecorder()
		return &Session{Gate: h.newGate(toasts, confetti), Toasts: toasts, Confetti: confetti}
	}
	sess := h.sessions.GetOrCreate(visitor, create)
	if sess.Gate.State() == dompay.GateClosed {
		h.sessions.Forget(visitor)
		sess = h.sessions.GetOrCreate(visitor, create)
	}
	return sess
}

// withAccessLog writes a single access log after the handler completes.
// It relies on the request-scoped logger already injected by ObservabilityMiddleware.
func (h *Handler) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(lrw, r)

		logctx.FromOr(r.Context(), h.log).Info("http_access",
			observability.F("method", r.Method),
			observability.F("route", routeFromContext(r.Context())),
			observability.F("path", r.URL.Path),
			observability.F("status", lrw.status),
			observability.F("latency_ms", time.Since(start).Milliseconds()),
		)
	})
}

// withTrace creates a server span for the request using OTel and W3C propagation.
func (h *Handler) withTrace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tracer := otel.Tracer("paywall.http")
		parentCtx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

		route := routeFromContext(parentCtx)
		spanName := route
		if spanName == "unknown" {
			spanName = r.Method + " " + r.URL.Path
		}
		routeTemplate := route
		if idx := strings.Index(routeTemplate, " "); idx >= 0 {
			routeTemplate = routeTemplate[idx+1:]
		}
		if routeTemplate == "unknown" || routeTemplate == "" {
			routeTemplate = r.URL.Path
		}

		ctxWithSpan, span := tracer.Start(parentCtx,
			spanName,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.route", routeTemplate),
				attribute.String("http.target", r.URL.Path),
				attribute.String("http.user_agent", r.UserAgent()),
			),
		)
		defer span.End()

		next.ServeHTTP(w, r.WithContext(ctxWithSpan))
	})
}

// withHTTPMetrics records RED-ish HTTP metrics using injected vectors.
// DO NOT new metrics inside the middleware.
func (h *Handler) withHTTPMetrics(next http.Handler) http.Handler {
	requests := h.tel.Metrics().Counter(observability.MHTTPRequests)
	durations := h.tel.Metrics().Histogram(observability.MHTTPRequestDuration)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(lrw, r)

		labels := []observability.Label{
			observability.L("method", r.Method),
			observability.L("route", routeFromContext(r.Context())),
			observability.L("status", strconv.Itoa(lrw.status)),
		}
		requests.Add(1, labels...)
		durations.Observe(time.Since(start).Seconds(), labels...)
	})
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, dompay.ErrGateBusy),
		errors.Is(err, dompay.ErrGateClosed):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, dompay.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

type routeKey struct{}

// contextWithRoute stores the stable route template in the context so downstream
// metrics/logging can rely on low-cardinality values.
func contextWithRoute(ctx context.Context, route string) context.Context {
	if route == "" {
		return ctx
	}
	return context.WithValue(ctx, routeKey{}, route)
}

func routeFromContext(ctx context.Context) string {
	if ctx == nil {
		return "unknown"
	}
	if route, ok := ctx.Value(routeKey{}).(string); ok && route != "" {
		return route
	}
	return "unknown"
}

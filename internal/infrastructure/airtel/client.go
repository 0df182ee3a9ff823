package airtel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	dompay "github.com/Zhima-Mochi/paywall/internal/domain/payment"
	"github.com/Zhima-Mochi/paywall/internal/observability"
	"github.com/Zhima-Mochi/paywall/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
)

const (
	// DefaultEndpoint is the provider's web payment initiation URL.
	DefaultEndpoint = "https://gytx.dev/api/airtelmoney-web.php"

	componentClient = "airtel_client"
	peerName        = "airtel"
	endpointName    = "airtelmoney-web"
	maxBodyBytes    = 1 << 20
	defaultTimeout  = 20 * time.Second
)

type Config struct {
	Endpoint string
	Timeout  time.Duration
	// RequestsPerSecond caps outbound calls from this process. Zero disables the limit.
	RequestsPerSecond float64
	Burst             int
}

// Client initiates mobile-money payments over the provider's unauthenticated form API.
type Client struct {
	endpoint string
	http     *http.Client
	limiter  *rate.Limiter

	tel          observability.Observability
	log          observability.Logger
	extCounter   observability.Counter   // external_requests_total{peer,endpoint,outcome}
	extHistogram observability.Histogram // external_request_duration_seconds{peer,endpoint}
}

type statusReply struct {
	StatusMessage *string `json:"status_message"`
}

func NewClient(cfg Config, httpClient *http.Client, tel observability.Observability) *Client {
	if tel == nil {
		tel = observability.Nop()
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return &Client{
		endpoint:     cfg.Endpoint,
		http:         httpClient,
		limiter:      limiter,
		tel:          tel,
		log:          tel.Logger().With(observability.F("component", componentClient)),
		extCounter:   tel.Metrics().Counter(observability.MExternalRequests),
		extHistogram: tel.Metrics().Histogram(observability.MExternalRequestDuration),
	}
}

// Initiate posts numero/amount and reads status_message from the JSON body.
// The HTTP status code is not consulted; the body is the provider's verdict.
func (c *Client) Initiate(ctx context.Context, req dompay.Request) (_ dompay.Reply, err error) {
	logger := logctx.FromOr(ctx, c.log)
	ctx, span := c.tel.Tracer().Start(ctx, "airtel.initiate",
		attribute.String("peer.service", peerName),
		attribute.Int64("payment.amount", req.Amount),
	)
	start := time.Now()
	outcome := "success"
	defer func() {
		if err != nil {
			outcome = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, "INITIATE_FAILED")
		} else {
			span.SetStatus(codes.Ok, "OK")
		}
		span.End()
		c.extCounter.Add(1,
			observability.L("peer", peerName),
			observability.L("endpoint", endpointName),
			observability.L("outcome", outcome),
		)
		c.extHistogram.Observe(time.Since(start).Seconds(),
			observability.L("peer", peerName),
			observability.L("endpoint", endpointName),
		)
	}()

	if c.limiter != nil {
		if waitErr := c.limiter.Wait(ctx); waitErr != nil {
			return dompay.Reply{}, fmt.Errorf("%w: rate limit wait: %w", dompay.ErrNetworkFailure, waitErr)
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(req.Form().Encode()))
	if err != nil {
		return dompay.Reply{}, fmt.Errorf("%w: build request: %w", dompay.ErrNetworkFailure, err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		logger.Warn("airtel_request_failed",
			observability.F("timeout", IsTimeout(err)),
			observability.E(err),
		)
		return dompay.Reply{}, fmt.Errorf("%w: %w", dompay.ErrNetworkFailure, err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return dompay.Reply{}, fmt.Errorf("%w: read body: %w", dompay.ErrNetworkFailure, err)
	}

	var decoded statusReply
	if err := json.Unmarshal(body, &decoded); err != nil {
		return dompay.Reply{}, fmt.Errorf("%w: decode body: %w", dompay.ErrNetworkFailure, err)
	}

	reply := dompay.Reply{}
	if decoded.StatusMessage != nil {
		reply.StatusMessage = *decoded.StatusMessage
		reply.HasStatusMessage = true
	}
	logger.Debug("airtel_reply",
		observability.F("http_status", resp.StatusCode),
		observability.F("status_message", reply.StatusMessage),
	)
	span.SetAttributes(attribute.Bool("payment.status_message_present", reply.HasStatusMessage))
	return reply, nil
}

// IsTimeout reports whether err came from an expired deadline.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}

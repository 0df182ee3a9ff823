package payment

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/Zhima-Mochi/paywall/internal/application"
	domentitlement "github.com/Zhima-Mochi/paywall/internal/domain/entitlement"
	domfeedback "github.com/Zhima-Mochi/paywall/internal/domain/feedback"
	dompay "github.com/Zhima-Mochi/paywall/internal/domain/payment"
	"github.com/Zhima-Mochi/paywall/internal/observability"
	"github.com/Zhima-Mochi/paywall/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	gateService           = "payment-gate"
	useCaseSubmitPayment  = "payment.submit"
	submitPaymentSpanName = "SubmitPayment"
	spanPrefix            = "UC."
	defaultTimeout        = 20 * time.Second
	defaultCurrency       = "CFA"
)

var _ application.UseCase[SubmitPaymentInput, *SubmitPaymentResult] = (*Gate)(nil)

type SubmitPaymentInput struct {
	RawPhone string
	Amount   int64
	// OnSuccess is invoked once the entitlement is persisted and the gate is Closed. The
	// caller uses it to dismiss its own UI.
	OnSuccess func(ctx context.Context)
}

type SubmitPaymentResult struct {
	Result       dompay.Result
	Notification domfeedback.Notification
	Celebration  *domfeedback.Celebration
	Entitled     bool
}

type GateConfig struct {
	Currency string
	// Timeout bounds the provider call. Expiry is reported as a network failure.
	Timeout time.Duration
}

// Gate is the payment-confirmation gate. One gate serves one visitor and allows at most
// one attempt in flight.
type Gate struct {
	mu    sync.Mutex
	state dompay.GateState

	processor  Processor
	store      domentitlement.Store
	notifier   domfeedback.Notifier
	celebrator domfeedback.Celebrator
	ids        IDGenerator
	now        func() time.Time

	currency string
	timeout  time.Duration

	tel          observability.Observability
	log          observability.Logger
	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}
	grants       observability.Counter   // entitlement_grants_total{amount}
}

func NewGate(
	processor Processor,
	store domentitlement.Store,
	notifier domfeedback.Notifier,
	celebrator domfeedback.Celebrator,
	ids IDGenerator,
	cfg GateConfig,
	tel observability.Observability,
) *Gate {
	if tel == nil {
		tel = observability.Nop()
	}
	if cfg.Currency == "" {
		cfg.Currency = defaultCurrency
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	metricsProvider := tel.Metrics()

	return &Gate{
		state:        dompay.InitialState(),
		processor:    processor,
		store:        store,
		notifier:     notifier,
		celebrator:   celebrator,
		ids:          ids,
		now:          time.Now,
		currency:     cfg.Currency,
		timeout:      cfg.Timeout,
		tel:          tel,
		log:          tel.Logger().With(observability.F("service", gateService)),
		reqCounter:   metricsProvider.Counter(observability.MUsecaseRequests),
		durHistogram: metricsProvider.Histogram(observability.MUsecaseDuration),
		grants:       metricsProvider.Counter(observability.MEntitlementGrants),
	}
}

// State reports the current gate status.
func (g *Gate) State() dompay.GateStatus {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state.Status()
}

// Execute runs one payment attempt. Gate outcomes, including validation and provider
// failures, are reported in the result; the error is non-nil only when the gate refused
// the submission (ErrGateBusy, ErrGateClosed).
func (g *Gate) Execute(ctx context.Context, cmd SubmitPaymentInput) (_ *SubmitPaymentResult, err error) {
	logger := logctx.FromOr(ctx, g.log).With(
		observability.F("use_case", useCaseSubmitPayment),
		observability.F("amount", cmd.Amount),
	)

	ctx, span := g.tel.Tracer().Start(ctx, spanPrefix+submitPaymentSpanName,
		attribute.String("use_case", useCaseSubmitPayment),
		attribute.Int64("payment.amount", cmd.Amount),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"
	result := &SubmitPaymentResult{}
	var cause error

	defer func() {
		lat := time.Since(start).Seconds()

		if span != nil {
			span.SetAttributes(
				attribute.String("payment.outcome", string(result.Result.Outcome)),
				attribute.String("payment.kind", string(result.Result.Kind)),
			)
			if cause != nil {
				span.RecordError(cause)
			}
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, statusText)
			} else {
				span.SetStatus(codes.Ok, statusText)
			}
			span.End()
		}

		g.reqCounter.Add(1,
			observability.L("use_case", useCaseSubmitPayment),
			observability.L("outcome", outcome),
		)
		g.durHistogram.Observe(lat,
			observability.L("use_case", useCaseSubmitPayment),
		)

		fields := []observability.Field{
			observability.F("outcome", outcome),
			observability.F("status", statusText),
			observability.F("latency_seconds", lat),
		}
		if result.Result.Kind != dompay.KindNone {
			fields = append(fields, observability.F("failure_kind", string(result.Result.Kind)))
		}
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			fields = append(fields,
				observability.F("trace_id", sc.TraceID().String()),
				observability.F("span_id", sc.SpanID().String()),
			)
		}
		if err != nil {
			fields = append(fields, observability.E(err))
		}
		logger.Info("use_case_done", fields...)
	}()

	phone, beginErr := g.begin(cmd.RawPhone)
	switch {
	case errors.Is(beginErr, dompay.ErrGateBusy):
		outcome, statusText = "rejected", "GATE_BUSY"
		return nil, beginErr
	case errors.Is(beginErr, dompay.ErrGateClosed):
		outcome, statusText = "rejected", "GATE_CLOSED"
		return nil, beginErr
	case beginErr != nil:
		cause = beginErr
		outcome, statusText = "failure", "VALIDATION_FAILED"
		result.Result = dompay.Failure(dompay.KindOf(beginErr), "")
		result.Notification = g.notify(ctx, domfeedback.SeverityError, result.Result.Message)
		return result, nil
	}

	// Every path that does not reach the success settle returns the gate to Idle.
	settled := false
	defer func() {
		if !settled {
			g.settle(false, logger)
		}
	}()

	req := dompay.Request{Phone: phone, Amount: cmd.Amount}
	reply, callErr := g.initiate(ctx, req)
	if callErr != nil {
		cause = callErr
		outcome, statusText = "failure", "NETWORK_FAILURE"
		result.Result = dompay.Failure(dompay.KindNetworkFailure, "")
		result.Notification = g.notify(ctx, domfeedback.SeverityError, result.Result.Message)
		logger.Warn("payment_initiation_failed", observability.E(callErr))
		return result, nil
	}

	ok, message := dompay.Classify(reply)
	if !ok {
		cause = fmt.Errorf("%w: %s", dompay.ErrRemoteRejection, message)
		outcome, statusText = "failure", "REMOTE_REJECTION"
		result.Result = dompay.Failure(dompay.KindOf(cause), message)
		result.Notification = g.notify(ctx, domfeedback.SeverityError, result.Result.Message)
		logger.Info("payment_rejected", observability.E(cause))
		return result, nil
	}

	if writeErr := g.store.Write(ctx, true); writeErr != nil {
		// The provider confirmed the payment; keep the unlock for this session.
		logger.Error("entitlement_write_failed", observability.E(writeErr))
		statusText = "ENTITLEMENT_NOT_PERSISTED"
	}
	// Closed before any feedback runs, so callbacks observe the unlocked gate.
	g.settle(true, logger)
	settled = true
	g.grants.Add(1, observability.L("amount", strconv.FormatInt(cmd.Amount, 10)))

	result.Result = dompay.Success(cmd.Amount, g.currency)
	result.Entitled = true
	result.Notification = g.notify(ctx, domfeedback.SeveritySuccess, result.Result.Message)
	celebration := domfeedback.DefaultCelebration()
	if g.celebrator != nil {
		g.celebrator.Celebrate(ctx, celebration)
	}
	result.Celebration = &celebration
	if cmd.OnSuccess != nil {
		cmd.OnSuccess(ctx)
	}
	return result, nil
}

// SubmitPayment is the positional form of Execute.
func (g *Gate) SubmitPayment(ctx context.Context, rawPhone string, amount int64, onSuccess func(context.Context)) (dompay.Result, error) {
	res, err := g.Execute(ctx, SubmitPaymentInput{RawPhone: rawPhone, Amount: amount, OnSuccess: onSuccess})
	if res == nil {
		return dompay.Result{}, err
	}
	return res.Result, err
}

// begin validates the input and moves the gate to Busy in one critical section.
// Validation failures leave the gate Idle.
func (g *Gate) begin(raw string) (dompay.PhoneNumber, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	next, err := g.state.OnSubmit()
	if err != nil {
		return "", err
	}
	phone, err := dompay.ParsePhone(raw)
	if err != nil {
		return "", err
	}
	g.state = next
	return phone, nil
}

func (g *Gate) settle(succeeded bool, logger observability.Logger) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var (
		next dompay.GateState
		err  error
	)
	if succeeded {
		next, err = g.state.OnSuccess()
	} else {
		next, err = g.state.OnFailure()
	}
	if err != nil {
		logger.Error("gate_state_transition_failed",
			observability.F("from", string(g.state.Status())),
			observability.E(err),
		)
		next = dompay.InitialState()
	}
	g.state = next
}

// initiate calls the provider under the attempt timeout. A panicking processor is
// reported as a network failure so the gate always settles.
func (g *Gate) initiate(ctx context.Context, req dompay.Request) (reply dompay.Reply, err error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: processor panic: %v", dompay.ErrNetworkFailure, r)
		}
	}()

	reply, err = g.processor.Initiate(ctx, req)
	if err != nil {
		return dompay.Reply{}, err
	}
	return reply, nil
}

func (g *Gate) notify(ctx context.Context, severity domfeedback.Severity, message string) domfeedback.Notification {
	now := g.now()
	n := domfeedback.Notification{
		Message:   message,
		Severity:  severity,
		CreatedAt: now,
		ExpiresAt: now.Add(domfeedback.DisplayFor + domfeedback.Transition),
	}
	if g.ids != nil {
		n.ID = g.ids.NewID()
	}
	if g.notifier != nil {
		g.notifier.Notify(ctx, n)
	}
	return n
}

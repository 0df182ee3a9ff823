package httppresentation

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	apppay "github.com/Zhima-Mochi/paywall/internal/application/payment"
	domentitlement "github.com/Zhima-Mochi/paywall/internal/domain/entitlement"
	dompay "github.com/Zhima-Mochi/paywall/internal/domain/payment"
	"github.com/Zhima-Mochi/paywall/internal/infrastructure/entitlement"
	"github.com/Zhima-Mochi/paywall/internal/infrastructure/feedback"
	"github.com/Zhima-Mochi/paywall/internal/infrastructure/id"
	"github.com/Zhima-Mochi/paywall/internal/infrastructure/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProcessor struct {
	mu     sync.Mutex
	calls  []dompay.Request
	status string
}

func (p *stubProcessor) Initiate(_ context.Context, req dompay.Request) (dompay.Reply, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, req)
	return dompay.Reply{StatusMessage: p.status, HasStatusMessage: true}, nil
}

func (p *stubProcessor) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

type testServer struct {
	*httptest.Server
	client    *http.Client
	processor *stubProcessor
}

func newTestServer(t *testing.T, status string, opts Options) *testServer {
	t.Helper()
	proc := &stubProcessor{status: status}
	ids := id.NewUUIDGenerator()
	store := entitlement.NewCookieStore()
	factory := func(toasts *feedback.Toaster, confetti *feedback.ConfettiRecorder) *apppay.Gate {
		return apppay.NewGate(proc, store, toasts, confetti, ids, apppay.GateConfig{Timeout: time.Second}, nil)
	}
	if opts.Page.Currency == "" {
		opts.Page = PageConfig{Title: "Just me", VideoURL: "/static/video.mp4", Currency: "CFA", Tiers: dompay.DefaultTiers}
	}
	h := NewHandler(memory.NewVisitorRegistry[*Session](time.Minute), factory, store, opts, ids, nil)
	srv := httptest.NewServer(h.Router())
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := srv.Client()
	client.Jar = jar
	return &testServer{Server: srv, client: client, processor: proc}
}

func (s *testServer) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, s.URL+path, reader)
	require.NoError(t, err)
	resp, err := s.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

func (s *testServer) pay(t *testing.T, phone string, amount int64) (*http.Response, payResponse) {
	t.Helper()
	resp, raw := s.do(t, http.MethodPost, "/api/pay", payRequest{Phone: phone, Amount: amount})
	var out payResponse
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp, out
}

func (s *testServer) entitled(t *testing.T) entitlementResponse {
	t.Helper()
	resp, raw := s.do(t, http.MethodGet, "/api/entitlement", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out entitlementResponse
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestPage_LockedThenUnlocked(t *testing.T) {
	s := newTestServer(t, "Payment successfully processed", Options{})

	resp, raw := s.do(t, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	html := string(raw)
	assert.Contains(t, html, `data-amount="2000"`)
	assert.Contains(t, html, `data-amount="5000"`)
	assert.Contains(t, html, "video-wrap locked")
	assert.NotContains(t, html, "Reset (dev)")
	assert.NotEmpty(t, resp.Header.Get(headerRequestID))

	payResp, _ := s.pay(t, "077123456", 2000)
	require.Equal(t, http.StatusOK, payResp.StatusCode)

	_, raw = s.do(t, http.MethodGet, "/", nil)
	assert.NotContains(t, string(raw), "video-wrap locked")
	assert.NotContains(t, string(raw), `id="phone"`)
}

func TestPay_Success(t *testing.T) {
	s := newTestServer(t, "Payment successfully processed", Options{})

	resp, out := s.pay(t, "077 12 34 56", 3000)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, dompay.OutcomeSuccess, out.Outcome)
	assert.Equal(t, "Thanks for the 3000 CFA!", out.Message)
	assert.True(t, out.Entitled)
	assert.True(t, out.Dismissed)
	require.NotNil(t, out.Celebration)
	assert.Equal(t, 100, out.Celebration.Particles)
	assert.NotEmpty(t, out.Notification.ID)

	var flag *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == domentitlement.Key {
			flag = c
		}
	}
	require.NotNil(t, flag)
	assert.Equal(t, "true", flag.Value)

	assert.True(t, s.entitled(t).Entitled)

	again, _ := s.pay(t, "077123456", 3000)
	assert.Equal(t, http.StatusConflict, again.StatusCode)
	assert.Equal(t, 1, s.processor.count())
}

func TestPay_InvalidPhoneSkipsProvider(t *testing.T) {
	s := newTestServer(t, "success", Options{})

	resp, out := s.pay(t, "0771234566", 2000)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, dompay.OutcomeFailure, out.Outcome)
	assert.Equal(t, dompay.KindInvalidFormat, out.Kind)
	assert.Equal(t, dompay.MessageInvalidFormat, out.Message)
	assert.False(t, out.Entitled)
	assert.False(t, out.Dismissed)
	assert.Nil(t, out.Celebration)
	assert.Zero(t, s.processor.count())

	_, raw := s.do(t, http.MethodGet, "/api/toasts", nil)
	var toasts toastsResponse
	require.NoError(t, json.Unmarshal(raw, &toasts))
	require.Len(t, toasts.Toasts, 1)
	assert.Equal(t, dompay.MessageInvalidFormat, toasts.Toasts[0].Message)
	assert.Empty(t, toasts.Celebration)
}

func TestPay_RemoteRejectionAllowsRetry(t *testing.T) {
	s := newTestServer(t, "insufficient funds", Options{})

	_, out := s.pay(t, "074123456", 5000)
	assert.Equal(t, dompay.KindRemoteRejection, out.Kind)
	assert.Equal(t, "insufficient funds", out.Message)

	state := s.entitled(t)
	assert.False(t, state.Entitled)
	assert.Equal(t, string(dompay.GateIdle), state.Gate)

	_, out = s.pay(t, "074123456", 5000)
	assert.Equal(t, dompay.KindRemoteRejection, out.Kind)
	assert.Equal(t, 2, s.processor.count())
}

func TestPay_BadRequests(t *testing.T) {
	s := newTestServer(t, "success", Options{})

	resp, _ := s.pay(t, "077123456", 2500)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	req, err := http.NewRequest(http.MethodPost, s.URL+"/api/pay", strings.NewReader(`{"phone":"077123456","amount":2000,"extra":true}`))
	require.NoError(t, err)
	extra, err := s.client.Do(req)
	require.NoError(t, err)
	extra.Body.Close()
	assert.Equal(t, http.StatusBadRequest, extra.StatusCode)

	resp, _ = s.do(t, http.MethodGet, "/api/pay", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Zero(t, s.processor.count())
}

func TestPay_RateLimited(t *testing.T) {
	s := newTestServer(t, "declined", Options{PayRPS: 0.001, PayBurst: 1})

	first, _ := s.pay(t, "077123456", 2000)
	assert.Equal(t, http.StatusOK, first.StatusCode)
	second, _ := s.pay(t, "077123456", 2000)
	assert.Equal(t, http.StatusTooManyRequests, second.StatusCode)
}

func TestReset(t *testing.T) {
	disabled := newTestServer(t, "success", Options{})
	resp, _ := disabled.do(t, http.MethodPost, "/api/reset", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	s := newTestServer(t, "success", Options{ResetEnabled: true})
	_, out := s.pay(t, "077123456", 2000)
	require.True(t, out.Entitled)
	require.True(t, s.entitled(t).Entitled)

	resp, _ = s.do(t, http.MethodPost, "/api/reset", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, s.entitled(t).Entitled)

	_, out = s.pay(t, "077123456", 2000)
	assert.True(t, out.Entitled)
	assert.Equal(t, 2, s.processor.count())
}

func TestHealthAndUnknownPath(t *testing.T) {
	s := newTestServer(t, "success", Options{})

	resp, raw := s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(raw))

	resp, _ = s.do(t, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestVisitorCookieIsReused(t *testing.T) {
	s := newTestServer(t, "success", Options{})

	first, _ := s.do(t, http.MethodGet, "/health", nil)
	var visitor string
	for _, c := range first.Cookies() {
		if c.Name == visitorCookie {
			visitor = c.Value
		}
	}
	require.NotEmpty(t, visitor)

	second, _ := s.do(t, http.MethodGet, "/health", nil)
	for _, c := range second.Cookies() {
		assert.NotEqual(t, visitorCookie, c.Name)
	}
}

package clipresentation

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	dompay "github.com/Zhima-Mochi/paywall/internal/domain/payment"
	"github.com/Zhima-Mochi/paywall/internal/config"
	"github.com/Zhima-Mochi/paywall/internal/infrastructure/entitlement"
	"github.com/Zhima-Mochi/paywall/internal/infrastructure/memory"
	"github.com/Zhima-Mochi/paywall/internal/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

type scriptedProcessor struct {
	status string
	calls  []dompay.Request
}

func (p *scriptedProcessor) Initiate(_ context.Context, req dompay.Request) (dompay.Reply, error) {
	p.calls = append(p.calls, req)
	return dompay.Reply{StatusMessage: p.status, HasStatusMessage: true}, nil
}

func testRuntime() *runtime {
	cfg := &config.Config{}
	cfg.Service.Name = "paywall"
	cfg.Payment.Currency = "CFA"
	cfg.Payment.Timeout = time.Second
	cfg.Payment.Tiers = []int64(dompay.DefaultTiers)
	return &runtime{cfg: cfg, log: observability.NopLogger(), tel: observability.Nop()}
}

func TestRunPay_Success(t *testing.T) {
	proc := &scriptedProcessor{status: "Payment successfully processed"}
	store := entitlement.NewFileStore(filepath.Join(t.TempDir(), "state.json"))
	var out bytes.Buffer

	err := runPay(context.Background(), testRuntime(), proc, store, payArgs{phone: "077123456", amount: 2000, out: &out})
	require.NoError(t, err)

	require.Len(t, proc.calls, 1)
	assert.Equal(t, "amount=2000&numero=077123456", proc.calls[0].Form().Encode())
	assert.Contains(t, out.String(), "Thanks for the 2000 CFA!")
	assert.Contains(t, out.String(), "Video unlocked.")

	granted, err := store.Read(context.Background())
	require.NoError(t, err)
	assert.True(t, granted)

	out.Reset()
	require.NoError(t, runPay(context.Background(), testRuntime(), proc, store, payArgs{phone: "077123456", amount: 2000, out: &out}))
	assert.Equal(t, "Already unlocked.\n", out.String())
	assert.Len(t, proc.calls, 1)
}

func TestRunPay_PromptsForPhone(t *testing.T) {
	proc := &scriptedProcessor{status: "success"}
	var out bytes.Buffer

	err := runPay(context.Background(), testRuntime(), proc, memory.NewEntitlementStore(), payArgs{
		amount: 5000,
		in:     strings.NewReader("074 12-34-56\n"),
		out:    &out,
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Phone (Ex: 077123456): ")
	require.Len(t, proc.calls, 1)
	assert.Equal(t, dompay.PhoneNumber("074123456"), proc.calls[0].Phone)
}

func TestRunPay_Failures(t *testing.T) {
	tests := []struct {
		name      string
		phone     string
		input     string
		amount    int64
		status    string
		wantCode  int
		wantCalls int
		wantOut   string
	}{
		{name: "invalid phone", phone: "0771234566", amount: 2000, status: "success", wantCode: 1, wantOut: dompay.MessageInvalidFormat},
		{name: "prompted ten digits", input: "0771234566\n", amount: 2000, status: "success", wantCode: 1, wantOut: dompay.MessageInvalidFormat},
		{name: "rejected", phone: "077123456", amount: 3000, status: "insufficient funds", wantCode: 1, wantCalls: 1, wantOut: "insufficient funds"},
		{name: "amount not offered", phone: "077123456", amount: 100, status: "success", wantCode: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proc := &scriptedProcessor{status: tt.status}
			store := memory.NewEntitlementStore()
			var out bytes.Buffer

			err := runPay(context.Background(), testRuntime(), proc, store, payArgs{
				phone:  tt.phone,
				amount: tt.amount,
				in:     strings.NewReader(tt.input),
				out:    &out,
			})
			require.Error(t, err)
			var exit cli.ExitCoder
			require.ErrorAs(t, err, &exit)
			assert.Equal(t, tt.wantCode, exit.ExitCode())
			assert.Len(t, proc.calls, tt.wantCalls)
			assert.Contains(t, out.String(), tt.wantOut)
			assert.Zero(t, store.Writes())
		})
	}
}

func TestResolveStore(t *testing.T) {
	rt := testRuntime()
	rt.cfg.Entitlement.File = filepath.Join(t.TempDir(), "configured.json")

	s, err := resolveStore(rt, "", true)
	require.NoError(t, err)
	assert.IsType(t, &memory.EntitlementStore{}, s)
	assert.Equal(t, "memory", storeLocation(s))

	s, err = resolveStore(rt, "", false)
	require.NoError(t, err)
	require.IsType(t, &entitlement.FileStore{}, s)
	assert.Equal(t, rt.cfg.Entitlement.File, storeLocation(s))

	s, err = resolveStore(rt, "/tmp/override.json", false)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/override.json", storeLocation(s))
}

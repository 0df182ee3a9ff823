package observability

import (
	"testing"

	"github.com/Zhima-Mochi/paywall/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/paywall/internal/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

func TestNew_UnknownKeysAreNop(t *testing.T) {
	tel := New(nil, nil, nil, nil)

	assert.NotNil(t, tel.Tracer())
	assert.NotNil(t, tel.Logger())
	assert.NotPanics(t, func() {
		tel.Metrics().Counter(observability.MHTTPRequests).Add(1)
		tel.Metrics().Histogram(observability.MHTTPRequestDuration).Bind().Observe(1)
	})
}

func TestNewStandard(t *testing.T) {
	reg := prometheus.NewRegistry()
	tel := NewStandard("paywall", observability.NopLogger(), prometrics.New(reg, "", ""))

	tel.Metrics().Counter(observability.MEntitlementGrants).Add(1, observability.L("amount", "2000"))

	families, err := reg.Gather()
	assert.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, mf := range families {
		names = append(names, mf.GetName())
	}
	assert.Contains(t, names, "entitlement_grants_total")
}

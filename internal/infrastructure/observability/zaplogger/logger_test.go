package zaplogger

import (
	"errors"
	"testing"

	"github.com/Zhima-Mochi/paywall/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogger_FieldsAndErrors(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := Wrap(zap.New(core)).With(observability.F("visitor_id", "v-1"))

	l.Warn("payment_initiation_failed",
		observability.F("amount", int64(2000)),
		observability.F("cause", errors.New("connection refused")),
	)

	entries := logs.All()
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, "payment_initiation_failed", e.Message)
	assert.Equal(t, zapcore.WarnLevel, e.Level)

	fields := e.ContextMap()
	assert.Equal(t, "v-1", fields["visitor_id"])
	assert.Equal(t, int64(2000), fields["amount"])
	assert.Equal(t, "connection refused", fields["cause"])
}

func TestSync_NonZapLogger(t *testing.T) {
	assert.NoError(t, Sync(observability.NopLogger()))
}

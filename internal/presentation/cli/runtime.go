package clipresentation

import (
	"context"
	"fmt"

	"github.com/Zhima-Mochi/paywall/internal/config"
	infraobs "github.com/Zhima-Mochi/paywall/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/paywall/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/paywall/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/paywall/internal/observability"
	"github.com/Zhima-Mochi/paywall/internal/observability/logctx"
	"github.com/Zhima-Mochi/paywall/internal/pkg/logging"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

// runtime is the process-wide setup shared by every command. It is built once at start.
type runtime struct {
	cfg      *config.Config
	log      observability.Logger
	tel      observability.Observability
	registry *prometheus.Registry
}

func bootstrap(c *cli.Context) (*runtime, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}

	base, err := logging.NewLogger(cfg.Service.Name, cfg.Service.Env)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	zap.ReplaceGlobals(base)
	logger := zaplogger.Wrap(logging.WithTrace(base, logging.SystemTraceID, logging.SystemSpanID))

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	tel := infraobs.NewStandard(cfg.Service.Name, logger, prometrics.New(registry, "", ""))

	return &runtime{cfg: cfg, log: logger, tel: tel, registry: registry}, nil
}

func (rt *runtime) close() {
	_ = zaplogger.Sync(rt.log)
}

// WithCommandContext injects a command-scoped logger. Dynamic fields only: run_id
// (generated if empty) plus the command name.
func WithCommandContext(ctx context.Context, base observability.Logger, command, runID string) context.Context {
	if base == nil {
		base = observability.NopLogger()
	}
	if runID == "" {
		runID = uuid.NewString()
	}
	fields := []observability.Field{
		observability.F("run_id", runID),
	}
	if command != "" {
		fields = append(fields, observability.F("command", command))
	}
	return logctx.With(ctx, base.With(fields...))
}

package clipresentation

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	apppay "github.com/Zhima-Mochi/paywall/internal/application/payment"
	"github.com/Zhima-Mochi/paywall/internal/config"
	dompay "github.com/Zhima-Mochi/paywall/internal/domain/payment"
	"github.com/Zhima-Mochi/paywall/internal/infrastructure/airtel"
	"github.com/Zhima-Mochi/paywall/internal/infrastructure/entitlement"
	"github.com/Zhima-Mochi/paywall/internal/infrastructure/feedback"
	"github.com/Zhima-Mochi/paywall/internal/infrastructure/id"
	"github.com/Zhima-Mochi/paywall/internal/infrastructure/memory"
	"github.com/Zhima-Mochi/paywall/internal/observability"
	"github.com/Zhima-Mochi/paywall/internal/observability/logctx"
	httppresentation "github.com/Zhima-Mochi/paywall/internal/presentation/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
)

func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the landing page and the payment gate",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen on `ADDR`, overriding http.addr",
			},
		},
		Action: func(c *cli.Context) error {
			rt, err := bootstrap(c)
			if err != nil {
				return err
			}
			defer rt.close()
			if addr := c.String("addr"); addr != "" {
				rt.cfg.HTTP.Addr = addr
			}
			return serve(c.Context, rt)
		},
	}
}

// newServer wires the HTTP stack: one gate per visitor over the provider client, with
// the flag kept in the visitor's cookie.
func newServer(rt *runtime, processor apppay.Processor) (*http.Server, *memory.VisitorRegistry[*httppresentation.Session]) {
	cfg := rt.cfg
	ids := id.NewUUIDGenerator()
	store := entitlement.NewCookieStore()
	gateCfg := apppay.GateConfig{Currency: cfg.Payment.Currency, Timeout: cfg.Payment.Timeout}

	sessions := memory.NewVisitorRegistry[*httppresentation.Session](cfg.Session.IdleTTL)
	newGate := func(toasts *feedback.Toaster, confetti *feedback.ConfettiRecorder) *apppay.Gate {
		return apppay.NewGate(processor, store, toasts, confetti, ids, gateCfg, rt.tel)
	}

	handler := httppresentation.NewHandler(sessions, newGate, store, httppresentation.Options{
		Page: httppresentation.PageConfig{
			Title:    cfg.Media.Title,
			VideoURL: cfg.Media.VideoURL,
			Currency: cfg.Payment.Currency,
			Tiers:    dompay.Tiers(cfg.Payment.Tiers),
		},
		ResetEnabled:  cfg.Dev.ResetEnabled,
		SecureCookies: cfg.HTTP.SecureCookies,
		PayRPS:        cfg.HTTP.PayRPS,
		PayBurst:      cfg.HTTP.PayBurst,
	}, ids, rt.tel)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(rt.registry, promhttp.HandlerOpts{}))
	if cfg.Media.Dir != "" {
		mux.Handle(config.MediaPrefix, http.StripPrefix(config.MediaPrefix, http.FileServer(http.Dir(cfg.Media.Dir))))
	}
	mux.Handle("/", handler.Router())

	return &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: mux,
	}, sessions
}

func serve(parent context.Context, rt *runtime) error {
	processor := airtel.NewClient(airtel.Config{
		Endpoint:          rt.cfg.Payment.Endpoint,
		Timeout:           rt.cfg.Payment.Timeout,
		RequestsPerSecond: rt.cfg.Payment.OutboundRPS,
	}, nil, rt.tel)
	server, sessions := newServer(rt, processor)

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = WithCommandContext(ctx, rt.log, "serve", "")
	logger := logctx.FromOr(ctx, rt.log)

	if dir := rt.cfg.Media.Dir; dir != "" {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			logger.Warn("media_dir_missing",
				observability.F("dir", dir),
				observability.F("video_url", rt.cfg.Media.VideoURL),
			)
		}
	}

	// Sessions with an attempt in flight survive the sweep.
	sessions.StartSweeper(ctx, rt.cfg.Session.SweepInterval, func(s *httppresentation.Session) bool {
		return s.Gate.State() == dompay.GateBusy
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http_server_start",
			observability.F("addr", server.Addr),
		)
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http_server_error",
				observability.E(err),
			)
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rt.cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http_server_shutdown_error",
			observability.E(err),
		)
		return err
	}
	logger.Info("http_server_stopped")
	return nil
}

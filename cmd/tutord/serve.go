package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"tutord/internal/httpapi"
	"tutord/internal/llm"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var initOnStart bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Example: "  tutord serve --addr :8080 --models-dir ~/models\n" +
			"  tutord serve --config tutord.yaml --init",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context(), initOnStart)
		},
	}
	f := cmd.Flags()
	f.StringVar(&a.flags.Addr, "addr", "", "HTTP listen address (defaults TUTORD_ADDR or :8080)")
	f.IntVar(&a.flags.MaxQueueDepth, "max-queue-depth", 0, "Requests allowed to wait for the engine (default 32)")
	f.IntVar(&a.flags.MaxWaitSeconds, "max-wait", 0, "Seconds a request may wait for the engine before 429 (default 30)")
	f.Int64Var(&a.flags.GenerateTimeoutSeconds, "generate-timeout", 0, "Per-request generation timeout in seconds (0 disables)")
	f.Int64Var(&a.flags.MaxBodyBytes, "max-body-bytes", 0, "Maximum JSON request body size (default 1 MiB)")
	f.BoolVar(&a.flags.CORSEnabled, "cors", false, "Enable CORS")
	f.StringVar(&a.corsOrigins, "cors-origins", "", "Comma-separated allowed origins")
	f.StringVar(&a.corsMethods, "cors-methods", "GET,POST,OPTIONS", "Comma-separated allowed methods")
	f.StringVar(&a.corsHeaders, "cors-headers", "Content-Type,X-Log-Level", "Comma-separated allowed headers")
	f.BoolVar(&initOnStart, "init", false, "Initialize the default model at startup")
	return cmd
}

func (a *app) serve(parent context.Context, initOnStart bool) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := a.services()
	if err != nil {
		return err
	}
	mgr, err := a.manager(s, a.eventLogger())
	if err != nil {
		return err
	}

	httpapi.SetLogger(a.log.With().Str("component", "http").Logger())
	httpapi.Configure(httpapi.Options{
		MaxBodyBytes:    a.cfg.MaxBodyBytes,
		GenerateTimeout: time.Duration(a.cfg.GenerateTimeoutSeconds) * time.Second,
		CORS: httpapi.CORSOptions{
			Enabled: a.cfg.CORSEnabled,
			Origins: a.cfg.CORSOrigins,
			Methods: a.cfg.CORSMethods,
			Headers: a.cfg.CORSHeaders,
		},
	})
	// SSE streams end with the process context.
	httpapi.SetBaseContext(ctx)

	srv := &http.Server{
		Addr:              a.cfg.Addr,
		Handler:           httpapi.NewMux(mgr),
		ReadHeaderTimeout: 10 * time.Second,
	}

	rt := a.log.Info()
	for name, built := range llm.BuiltRuntimes() {
		rt = rt.Bool(name, built)
	}
	rt.Msg("runtimes")

	if initOnStart {
		if op, err := mgr.StartInitialize(ctx); err != nil {
			a.log.Warn().Err(err).Msg("initialize at startup")
		} else {
			a.log.Info().Str("op_id", op).Str("model", mgr.DefaultModel()).Msg("initializing")
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.log.Info().Str("addr", a.cfg.Addr).Str("models_dir", s.store.Dir()).Msg("tutord listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			a.log.Warn().Err(err).Msg("graceful shutdown")
		}
		if err := mgr.Shutdown(sctx); err != nil {
			a.log.Warn().Err(err).Msg("manager shutdown")
		}
		a.log.Info().Msg("stopped")
		return nil
	})
	return g.Wait()
}

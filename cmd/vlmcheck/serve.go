package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"vlmcheck/internal/httpapi"
	"vlmcheck/internal/logging"
	"vlmcheck/internal/natsapi"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (and the NATS responder when NATS_URL is set)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				a.settings.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address (defaults HTTP_ADDR or :8000)")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	s := a.settings
	client := a.newClient()
	defer client.Close()
	v := a.newVerifier(client)

	// Work in flight is canceled once shutdown begins.
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()

	httpapi.SetLogger(a.log)
	httpapi.SetRequestLogLevel(s.LogLevel)
	httpapi.SetBaseContext(baseCtx)
	httpapi.SetMaxBodyBytes(s.MaxUploadBytes)
	httpapi.SetVerifyTimeout(s.RequestTimeout)
	httpapi.SetCORSOptions(len(s.CORSAllowedOrigins) > 0, s.CORSAllowedOrigins, nil, nil)

	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           httpapi.NewMux(v),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var ns *natsapi.Server
	if s.NATSURL != "" {
		var err error
		ns, err = natsapi.Connect(natsapi.Config{
			URL:            s.NATSURL,
			Subject:        s.NATSSubject,
			Queue:          s.NATSQueue,
			RequestTimeout: s.RequestTimeout,
		}, v, a.log)
		if err != nil {
			return err
		}
		if err := ns.Start(baseCtx); err != nil {
			_ = ns.Close()
			return err
		}
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info().
			Str("addr", s.Addr).
			Str("vlm_base_url", s.VLMBaseURL).
			Str("model", s.VLMModelName).
			Int("max_concurrent", s.MaxConcurrentRequests).
			Msg("vlmcheck listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		a.log.Info().Msg("shutting down")
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// HTTP and NATS finish in-flight work side by side; only then is the
	// rest canceled.
	var drained sync.WaitGroup
	if ns != nil {
		drained.Add(1)
		go func() {
			defer drained.Done()
			if err := ns.Shutdown(shutdownCtx); err != nil {
				nl := logging.Component(a.log, "nats")
				nl.Warn().Err(err).Msg("drain incomplete")
			}
		}()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Warn().Err(err).Msg("graceful shutdown incomplete")
	}
	drained.Wait()
	cancelBase()
	return serveErr
}

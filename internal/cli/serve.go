package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/saleswire/server/internal/transport/botframework"
	logx "github.com/saleswire/server/pkg/logger"
)

var serveCmd = &cobra.Command{
	Use:          "serve",
	Short:        "Run the Bot Framework webhook server",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := buildApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		tokens := botframework.NewTokenProvider(cfg.Serve.AppID, cfg.Serve.AppPassword, cfg.Serve.TenantID)
		srv, err := botframework.NewServer(botframework.ServerConfig{
			Engine:      a.engine,
			States:      a.states,
			Deduper:     a.deduper,
			Connector:   botframework.NewConnector(tokens),
			CatalogSize: a.registry.Len(),
			TurnTimeout: cfg.Serve.TurnTimeout,
		})
		if err != nil {
			return err
		}

		httpSrv := &http.Server{Addr: cfg.Serve.Addr, Handler: srv.Router()}
		errCh := make(chan error, 1)
		go func() {
			logx.Info().Str("addr", cfg.Serve.Addr).Msg("Webhook server listening")
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		logx.Info().Msg("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logx.Warn().Err(err).Msg("Server shutdown interrupted")
		}
		srv.Drain()
		return nil
	},
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/beekhof/crm-records/internal/api"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the record services as a JSON HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if listen == "" {
				listen = a.cfg.ListenAddr
			}

			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			if !a.verbose {
				gin.SetMode(gin.ReleaseMode)
			}
			router := api.NewRouter(&api.Handler{
				Clients: a.clients(s),
				Events:  a.events(s),
				Cleaner: a.cleaner(s),
				Logger:  a.logger,
			})
			server := &http.Server{
				Addr:              listen,
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errc := make(chan error, 1)
			go func() {
				fmt.Fprintf(cmd.OutOrStdout(), "HTTP API listening on %s\n", listen)
				errc <- server.ListenAndServe()
			}()

			select {
			case err := <-errc:
				return fmt.Errorf("HTTP server failed: %w", err)
			case <-ctx.Done():
			}

			a.logger.Info("shutdown signal received, draining connections")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("HTTP server shutdown: %w", err)
			}
			if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "Address to listen on (default: listen_addr, 127.0.0.1:8090)")
	return cmd
}

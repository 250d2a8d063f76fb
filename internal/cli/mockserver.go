package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/researchwiseai/pulse-go/internal/fakeapi"
)

func newMockServerCmd() *cobra.Command {
	var addr string
	var maxItems, pendingPolls int
	var failJobs string

	cmd := &cobra.Command{
		Use:   "mock-server",
		Short: "Serve a local stand-in for the Pulse API",
		Long: `mock-server answers every Pulse API route with deterministic scores so that
workflows can be developed offline. Point the other commands at it with
--base-url http://<addr>.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			srv := fakeapi.New(logger,
				fakeapi.WithMaxItems(maxItems),
				fakeapi.WithPendingPolls(pendingPolls),
				fakeapi.WithFailingJobs(failJobs),
			)
			httpServer := &http.Server{
				Addr:              addr,
				Handler:           srv,
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				logger.Info("mock server starting", "addr", addr)
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("serve: %w", err)
				}
			case <-ctx.Done():
			}
			logger.Info("shutting down")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			logger.Info("mock server stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "Listen address")
	cmd.Flags().IntVar(&maxItems, "max-items", 0, "Reject similarity requests above this many items (0: no limit)")
	cmd.Flags().IntVar(&pendingPolls, "pending-polls", 1, "Status polls each job stays pending for")
	cmd.Flags().StringVar(&failJobs, "fail-jobs", "", "Fail every job with this message")
	return cmd
}

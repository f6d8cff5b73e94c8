package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/helmcode/errfriendly/pkg/metrics"
	"github.com/helmcode/errfriendly/pkg/pipeline"
	"github.com/helmcode/errfriendly/pkg/server"
)

const shutdownTimeout = 10 * time.Second

var listenAddr string

func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run an HTTP collector that explains posted exception reports",
		Long: `Serve POST /v1/explain, GET /healthz and GET /metrics.

Examples:
  # Listen on the default address
  errfriendly serve

  # Explain with Ollama running next to the collector
  errfriendly serve --addr :9090 --backend ollama`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	cmd.Flags().StringVar(&listenAddr, "addr", ":8080", "Address to listen on")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	store, err := loadStore(cmd)
	if err != nil {
		return err
	}
	if !verbose {
		gin.SetMode(gin.ReleaseMode)
	}

	m := metrics.New()
	// Posted paths belong to the client's machine, not ours.
	p := newPipeline(store, m, pipeline.WithoutFilesystem())
	router := server.NewRouter(server.NewHandlers(p, logger), m)

	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("collector listening", zap.String("addr", listenAddr))
		errCh <- srv.ListenAndServe()
	}()
	printSuccess(fmt.Sprintf("Listening on %s", listenAddr))

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}

package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/subraAntoine/apilexia/internal/api"
	"github.com/subraAntoine/apilexia/internal/database"
	"github.com/subraAntoine/apilexia/internal/dropzone"
	"github.com/subraAntoine/apilexia/pkg/logger"

	"github.com/spf13/cobra"
)

var dropzoneDir string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and its in-process worker pool",
	Run:   runServe,
}

func init() {
	serveCmd.Flags().StringVar(&dropzoneDir, "dropzone-dir", "", "optional directory to watch for dropped audio files")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) {
	cfg, services := bootstrap()
	defer database.Close()

	stop := make(chan struct{})
	services.Start(stop)
	defer services.Stop()

	var dz *dropzone.Service
	if dropzoneDir != "" {
		dz = dropzone.NewService(dropzoneDir, "dropzone", services.Dispatcher)
		if err := dz.Start(); err != nil {
			logger.Error("failed to start dropzone watcher", "error", err)
		}
	}

	router := api.SetupRoutes(api.NewHandler(services))
	srv := &http.Server{
		Addr:    cfg.Host + ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("starting HTTP server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	close(stop)
	if dz != nil {
		_ = dz.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	logger.Info("server exited")
}

package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/subraAntoine/apilexia/internal/database"
	"github.com/subraAntoine/apilexia/pkg/logger"

	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run only the background worker pool, without the HTTP API",
	Run:   runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) {
	_, services := bootstrap()
	defer database.Close()

	stop := make(chan struct{})
	services.Start(stop)
	defer services.Stop()

	logger.Info("worker pool running")
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	close(stop)
	logger.Info("worker pool shut down")
}

// Package cli implements apilexia's command-line entry points: the
// HTTP server, a standalone worker process, API key management, and
// batch/dropzone ingestion tooling, all sharing the same composition
// root as the server.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "apilexia",
	Short: "Async media-processing API: transcription and diarization job orchestration",
}

// Execute runs the root command, exiting non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

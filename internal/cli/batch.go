package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/subraAntoine/apilexia/internal/csvbatch"
	"github.com/subraAntoine/apilexia/internal/database"

	"github.com/spf13/cobra"
)

var (
	batchManifest  string
	batchPrincipal string
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Submit transcription jobs from a CSV manifest",
	Run:   runBatch,
}

func init() {
	batchCmd.Flags().StringVar(&batchManifest, "manifest", "", "path to the CSV manifest (required)")
	batchCmd.Flags().StringVar(&batchPrincipal, "principal", "", "principal to own the submitted jobs (required)")
	_ = batchCmd.MarkFlagRequired("manifest")
	_ = batchCmd.MarkFlagRequired("principal")
	rootCmd.AddCommand(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) {
	_, services := bootstrap()
	defer database.Close()

	processor := csvbatch.New(services.Dispatcher, batchPrincipal)
	results, err := processor.Run(context.Background(), batchManifest)
	if err != nil {
		fmt.Fprintf(os.Stderr, "batch failed: %v\n", err)
		os.Exit(1)
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Printf("line %d: FAILED: %v\n", r.Row.LineNum, r.Err)
		} else {
			fmt.Printf("line %d: submitted job %s\n", r.Row.LineNum, r.JobID)
		}
	}
	fmt.Printf("\n%d submitted, %d failed\n", len(results)-failed, failed)
}

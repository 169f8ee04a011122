package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/piyachat/chainflow/pipeline"
)

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Run one deal-prioritization pass",
	Long:  "Runs the deal-prioritization workflow against a running API server and prints the result as JSON.",
	Run: func(cmd *cobra.Command, args []string) {
		_ = args

		orchestrator, err := buildOrchestrator()
		if err != nil {
			fmt.Printf("failed to initialize pipeline: %v\n", err)
			return
		}

		runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		result := orchestrator.Run(runCtx)

		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			fmt.Printf("failed to render result: %v\n", err)
			return
		}
		fmt.Println(string(out))

		if result.Status != pipeline.StatusSuccess {
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(pipelineCmd)
}

package cmd

import (
	"os"

	"github.com/spf13/cobra"

	_ "github.com/piyachat/chainflow/pkg/logger/autoload"
)

// appConfig collects the process-level knobs shared by the commands,
// loaded with the CHAINFLOW env prefix.
type appConfig struct {
	DataDir      string `envconfig:"DATA_DIR" split_words:"true" default:"data"`
	WarehouseDB  string `envconfig:"WAREHOUSE_DB" split_words:"true" default:"data/warehouse.db"`
	ScoringSeed  int64  `envconfig:"SCORING_SEED" split_words:"true" default:"0"`
	SessionStore string `envconfig:"SESSION_STORE" split_words:"true" default:"memory"`
}

var rootCmd = &cobra.Command{
	Use:   "chainflow",
	Short: "Supply chain multi-agent service",
	Long:  "Runs the supply-chain assistant API and the deal-prioritization workflow.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

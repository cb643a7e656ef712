// Command rapidresponse serves the disaster response orchestrator and offers
// one-shot runs from the command line.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rapidresponse",
		Short: "Disaster response plan orchestrator",
		Long: `rapidresponse collects live data about a disaster, runs the analysis
stages, and asks an LLM for a response plan. When synthesis fails for a
known historical scenario it answers from the cached backtest plan.

Configuration is read from the environment (and a .env file if present).`,
		SilenceUsage: true,
	}

	cmd.AddCommand(serveCmd(), runCmd(), scenariosCmd())
	return cmd
}

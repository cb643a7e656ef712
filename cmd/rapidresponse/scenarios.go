package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Raafay-Qureshi/RapidResponseAI-sub000/internal/config"
)

func scenariosCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scenarios",
		Short: "List historical scenarios and whether their cached plans are present",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			policy := newFallbackPolicy(cfg)

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tKIND\tARTIFACT\tCACHED\tDESCRIPTION")
			for _, s := range policy.Scenarios() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n", s.ID, s.Kind, s.Artifact, policy.Cached(s), s.Description)
			}
			fmt.Fprintf(w, "\ncache dir: %s\n", cfg.Fallback.CacheDir)
			return w.Flush()
		},
	}
}

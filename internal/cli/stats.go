package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show database statistics",
		Run:   runStats,
	}
	RootCmd.AddCommand(stats)

	health := &cobra.Command{
		Use:   "health",
		Short: "Check store/index consistency and persistence state",
		Run:   runHealth,
	}
	health.Flags().Bool("repair", false, "Re-add index entries missing for stored vectors")
	RootCmd.AddCommand(health)
}

func runStats(cmd *cobra.Command, _ []string) {
	e, cfg, err := openEngine()
	if err != nil {
		exitErr("open engine", err)
	}
	s := e.Store()
	defer s.Close()

	st, err := s.Stats(cmd.Context(), getDBPath(cfg))
	if err != nil {
		exitErr("stats", err)
	}
	out, _ := json.MarshalIndent(st, "", "  ")
	fmt.Println(string(out))
}

func runHealth(cmd *cobra.Command, _ []string) {
	repair, _ := cmd.Flags().GetBool("repair")

	e, _, err := openEngine()
	if err != nil {
		exitErr("open engine", err)
	}
	s := e.Store()
	defer s.Close()

	report, err := s.ConsistencySweep(cmd.Context(), repair)
	if err != nil {
		exitErr("health", err)
	}
	out, _ := json.MarshalIndent(report, "", "  ")
	fmt.Println(string(out))

	if err := s.Healthy(); err != nil {
		fmt.Fprintf(os.Stderr, "unhealthy: %v\n", err)
		os.Exit(1)
	}
}

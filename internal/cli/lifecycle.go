package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/engramdev/engram/internal/lifecycle"
)

func init() {
	archive := &cobra.Command{
		Use:   "archive",
		Short: "Archive old low-weight records",
		Run:   runArchive,
	}
	archive.Flags().Int("days", 0, "Age threshold in days (default from config)")
	archive.Flags().Float64("penalty", 0, "Weight penalty multiplier (default from config)")
	RootCmd.AddCommand(archive)

	restore := &cobra.Command{
		Use:   "restore [id...]",
		Short: "Restore archived records (all when no ids given)",
		Run:   runRestore,
	}
	restore.Flags().Float64("bonus", 0, "Weight bonus multiplier (default from config)")
	RootCmd.AddCommand(restore)

	decay := &cobra.Command{
		Use:   "decay",
		Short: "Apply tiered weight decay to active records",
		Run:   runDecay,
	}
	RootCmd.AddCommand(decay)

	cleanup := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove stale archived records",
		Run:   runCleanup,
	}
	cleanup.Flags().Int("days", 0, "Age threshold in days (default from config)")
	cleanup.Flags().Bool("permanent", false, "Hard-purge instead of soft-delete")
	RootCmd.AddCommand(cleanup)
}

func openLifecycle() (*lifecycle.Engine, func(), int, int, float64, float64) {
	e, cfg, err := openEngine()
	if err != nil {
		exitErr("open engine", err)
	}
	lc := lifecycle.New(e.Store(), newLogger())
	closeFn := func() { e.Store().Close() }
	return lc, closeFn,
		cfg.Lifecycle.ArchiveThresholdDays, cfg.Lifecycle.CleanupThresholdDays,
		cfg.Lifecycle.ArchiveWeightPenalty, cfg.Lifecycle.RestoreWeightBonus
}

func runArchive(cmd *cobra.Command, _ []string) {
	days, _ := cmd.Flags().GetInt("days")
	penalty, _ := cmd.Flags().GetFloat64("penalty")

	lc, closeFn, defDays, _, defPenalty, _ := openLifecycle()
	defer closeFn()

	if days <= 0 {
		days = defDays
	}
	if penalty <= 0 {
		penalty = defPenalty
	}

	n, err := lc.ArchiveOld(cmd.Context(), days, penalty)
	if err != nil {
		exitErr("archive", err)
	}
	fmt.Printf("archived %d records\n", n)
}

func runRestore(cmd *cobra.Command, args []string) {
	bonus, _ := cmd.Flags().GetFloat64("bonus")

	lc, closeFn, _, _, _, defBonus := openLifecycle()
	defer closeFn()

	if bonus <= 0 {
		bonus = defBonus
	}

	n, err := lc.Restore(cmd.Context(), args, bonus)
	if err != nil {
		exitErr("restore", err)
	}
	fmt.Printf("restored %d records\n", n)
}

func runDecay(cmd *cobra.Command, _ []string) {
	lc, closeFn, _, _, _, _ := openLifecycle()
	defer closeFn()

	n, err := lc.ApplyDecay(cmd.Context())
	if err != nil {
		exitErr("decay", err)
	}
	fmt.Printf("decayed %d records\n", n)
}

func runCleanup(cmd *cobra.Command, _ []string) {
	days, _ := cmd.Flags().GetInt("days")
	permanent, _ := cmd.Flags().GetBool("permanent")

	lc, closeFn, _, defDays, _, _ := openLifecycle()
	defer closeFn()

	if days <= 0 {
		days = defDays
	}

	n, err := lc.Cleanup(cmd.Context(), days, permanent)
	if err != nil {
		exitErr("cleanup", err)
	}
	fmt.Printf("cleaned up %d records\n", n)
}

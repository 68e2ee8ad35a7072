package cli

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/engramdev/engram/internal/lifecycle"
)

func init() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the lifecycle scheduler until interrupted",
		Long: "Runs cleanup, archive, decay, index maintenance and backup on their\n" +
			"configured intervals against a 60s tick.",
		Run: runServe,
	}
	RootCmd.AddCommand(cmd)
}

func runServe(cmd *cobra.Command, _ []string) {
	e, cfg, err := openEngine()
	if err != nil {
		exitErr("open engine", err)
	}
	s := e.Store()
	defer s.Close()

	log := newLogger()
	lc := lifecycle.New(s, log)

	backupDir := cfg.BackupDir
	if backupDir == "" {
		backupDir = dataDir() + "/backups"
	}

	sched := lifecycle.NewScheduler(0, log)
	sched.Register(lifecycle.Task{
		Name:     "cleanup",
		Interval: time.Duration(cfg.Lifecycle.CleanupInterval),
		Run: func(ctx context.Context) error {
			_, err := lc.Cleanup(ctx, cfg.Lifecycle.CleanupThresholdDays, false)
			return err
		},
	})
	sched.Register(lifecycle.Task{
		Name:     "archive",
		Interval: time.Duration(cfg.Lifecycle.ArchiveInterval),
		Run: func(ctx context.Context) error {
			_, err := lc.ArchiveOld(ctx, cfg.Lifecycle.ArchiveThresholdDays, cfg.Lifecycle.ArchiveWeightPenalty)
			return err
		},
	})
	sched.Register(lifecycle.Task{
		Name:     "decay",
		Interval: time.Duration(cfg.Lifecycle.DecayInterval),
		Run: func(ctx context.Context) error {
			_, err := lc.ApplyDecay(ctx)
			return err
		},
	})
	sched.Register(lifecycle.Task{
		Name:     "index-maintenance",
		Interval: time.Duration(cfg.Lifecycle.MaintenanceInterval),
		Run: func(ctx context.Context) error {
			// Retry any pending snapshot, then verify agreement.
			if err := s.SaveIndex(); err != nil {
				return err
			}
			_, err := s.ConsistencySweep(ctx, true)
			return err
		},
	})
	sched.Register(lifecycle.Task{
		Name:     "backup",
		Interval: time.Duration(cfg.Lifecycle.BackupInterval),
		Run: func(ctx context.Context) error {
			_, err := s.WriteBackup(ctx, backupDir)
			return err
		},
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched.Run(ctx)
}

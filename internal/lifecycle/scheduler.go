package lifecycle

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// defaultTick is how often the scheduler polls task intervals.
const defaultTick = 60 * time.Second

// Task is one scheduled maintenance job.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler polls registered tasks on a fixed tick and runs each once
// its own interval has elapsed. A failing task is logged and neither
// blocks the other tasks nor the next cycle.
type Scheduler struct {
	tasks   []Task
	tick    time.Duration
	lastRun map[string]time.Time
	log     *zap.Logger
}

// NewScheduler creates a scheduler polling at tick (zero means the
// 60s default).
func NewScheduler(tick time.Duration, log *zap.Logger) *Scheduler {
	if tick <= 0 {
		tick = defaultTick
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		tick:    tick,
		lastRun: make(map[string]time.Time),
		log:     log,
	}
}

// Register adds a task. Tasks with a non-positive interval are
// ignored.
func (s *Scheduler) Register(t Task) {
	if t.Interval <= 0 || t.Run == nil {
		return
	}
	s.tasks = append(s.tasks, t)
}

// Run blocks, polling tasks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	s.log.Info("scheduler started",
		zap.Duration("tick", s.tick), zap.Int("tasks", len(s.tasks)))

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return
		case now := <-ticker.C:
			s.runDue(ctx, now)
		}
	}
}

// runDue executes every task whose interval has elapsed since its
// last run.
func (s *Scheduler) runDue(ctx context.Context, now time.Time) {
	for _, t := range s.tasks {
		last, ran := s.lastRun[t.Name]
		if ran && now.Sub(last) < t.Interval {
			continue
		}
		s.lastRun[t.Name] = now

		start := time.Now()
		if err := t.Run(ctx); err != nil {
			s.log.Warn("scheduled task failed",
				zap.String("task", t.Name), zap.Error(err))
			continue
		}
		s.log.Debug("scheduled task done",
			zap.String("task", t.Name), zap.Duration("took", time.Since(start)))
	}
}

// Package lifecycle re-weights, archives, restores and purges records
// over time. All mutation goes through the record store; the engine
// itself holds no record state.
package lifecycle

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/engramdev/engram/internal/model"
	"github.com/engramdev/engram/internal/store"
)

// Weight bounds for lifecycle transitions.
const (
	// archiveWeightCeiling: only records below this weight are
	// eligible for archiving.
	archiveWeightCeiling = 4.0
	// cleanupWeightCeiling: only archived records below this weight
	// are eligible for cleanup.
	cleanupWeightCeiling = 2.0
)

// Default transition parameters.
const (
	DefaultArchivePenalty = 0.5
	DefaultRestoreBonus   = 1.3
)

// Engine runs lifecycle transitions against the record store. Each
// task is idempotent: a crash mid-run is safe to re-run.
type Engine struct {
	store *store.SQLiteStore
	log   *zap.Logger
}

// New creates a lifecycle engine.
func New(s *store.SQLiteStore, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{store: s, log: log}
}

// ArchiveOld archives active low-weight records older than
// daysThreshold, multiplying their weight by penalty. System and
// summary records are never archived. Returns how many were archived.
func (e *Engine) ArchiveOld(ctx context.Context, daysThreshold int, penalty float64) (int, error) {
	if penalty <= 0 || penalty > 1 {
		penalty = DefaultArchivePenalty
	}
	active := false
	candidates, err := e.store.ListCandidates(ctx, store.CandidateFilter{
		Archived:     &active,
		MaxWeight:    archiveWeightCeiling,
		OlderThan:    time.Now().AddDate(0, 0, -daysThreshold),
		ExcludeRoles: []model.Role{model.RoleSystem},
		ExcludeTypes: []string{model.TypeSummary},
	})
	if err != nil {
		return 0, err
	}

	archived := 0
	for _, rec := range candidates {
		if err := e.store.SetArchived(ctx, rec.ID, true, rec.Weight*penalty); err != nil {
			e.log.Warn("archive failed", zap.String("id", rec.ID), zap.Error(err))
			continue
		}
		archived++
	}
	if archived > 0 {
		e.log.Info("archived old records", zap.Int("count", archived))
	}
	return archived, nil
}

// Restore unarchives the given records (or all archived records when
// ids is empty), boosting their weight by bonus, capped at the
// maximum. Restored records count as freshly accessed.
func (e *Engine) Restore(ctx context.Context, ids []string, bonus float64) (int, error) {
	if bonus < 1 {
		bonus = DefaultRestoreBonus
	}

	var candidates []model.MemoryRecord
	var err error
	if len(ids) == 0 {
		archived := true
		candidates, err = e.store.ListCandidates(ctx, store.CandidateFilter{Archived: &archived})
		if err != nil {
			return 0, err
		}
	} else {
		candidates, err = e.store.GetMany(ctx, ids)
		if err != nil {
			return 0, err
		}
	}

	restored := 0
	for _, rec := range candidates {
		if !rec.Archived {
			continue
		}
		if err := e.store.SetArchived(ctx, rec.ID, false, rec.Weight*bonus); err != nil {
			e.log.Warn("restore failed", zap.String("id", rec.ID), zap.Error(err))
			continue
		}
		restored++
	}
	return restored, nil
}

// Cleanup removes archived, near-weightless records older than
// daysThreshold: hard purge when permanent, soft delete otherwise.
func (e *Engine) Cleanup(ctx context.Context, daysThreshold int, permanent bool) (int, error) {
	archived := true
	candidates, err := e.store.ListCandidates(ctx, store.CandidateFilter{
		Archived:  &archived,
		MaxWeight: cleanupWeightCeiling,
		OlderThan: time.Now().AddDate(0, 0, -daysThreshold),
	})
	if err != nil {
		return 0, err
	}

	cleaned := 0
	for _, rec := range candidates {
		var err error
		if permanent {
			err = e.store.Purge(ctx, rec.ID)
		} else {
			err = e.store.Delete(ctx, rec.ID)
		}
		if err != nil {
			e.log.Warn("cleanup failed", zap.String("id", rec.ID), zap.Error(err))
			continue
		}
		cleaned++
	}
	if cleaned > 0 {
		e.log.Info("cleaned up archived records",
			zap.Int("count", cleaned), zap.Bool("permanent", permanent))
	}
	return cleaned, nil
}

// ApplyDecay multiplies every active record's weight by its tier's
// per-day decay rate for each full day since decay last ran on it.
// Archived and deleted records never decay. Weight only ever shrinks.
func (e *Engine) ApplyDecay(ctx context.Context) (int, error) {
	active := false
	candidates, err := e.store.ListCandidates(ctx, store.CandidateFilter{Archived: &active})
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	decayed := 0
	for _, rec := range candidates {
		since := rec.CreatedAt
		if rec.LastDecayed != nil {
			since = *rec.LastDecayed
		}
		days := int(now.Sub(since).Hours() / 24)
		if days < 1 {
			continue
		}

		rate := rec.Tier().DecayRate()
		weight := rec.Weight * math.Pow(rate, float64(days))
		if err := e.store.SetDecayed(ctx, rec.ID, weight, now); err != nil {
			e.log.Warn("decay failed", zap.String("id", rec.ID), zap.Error(err))
			continue
		}
		decayed++
	}
	if decayed > 0 {
		e.log.Info("applied weight decay", zap.Int("count", decayed))
	}
	return decayed, nil
}

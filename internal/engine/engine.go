// Package engine wires the retrieval pipeline end to end: similarity
// search, association expansion, session aggregation, ranking and
// context assembly, plus the write path for dialogue turns.
package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/engramdev/engram/internal/assemble"
	"github.com/engramdev/engram/internal/config"
	"github.com/engramdev/engram/internal/evaluate"
	"github.com/engramdev/engram/internal/model"
	"github.com/engramdev/engram/internal/rank"
	"github.com/engramdev/engram/internal/store"
)

// Expansion bounds for the association walk.
const (
	expandDepth       = 2
	expandMinStrength = 0.3
)

// Engine is the conversational memory facade.
type Engine struct {
	store     *store.SQLiteStore
	ranker    *rank.Ranker
	assembler *assemble.Assembler
	evaluator evaluate.Evaluator
	cfg       *config.Config
	log       *zap.Logger
}

// New assembles an engine from explicitly constructed parts.
func New(s *store.SQLiteStore, ev evaluate.Evaluator, cfg *config.Config, log *zap.Logger) *Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	if ev == nil {
		ev = evaluate.Noop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		store:     s,
		ranker:    &rank.Ranker{MaxResults: cfg.MaxMemories()},
		assembler: assemble.New(log),
		evaluator: ev,
		cfg:       cfg,
		log:       log,
	}
}

// Store exposes the underlying record store.
func (e *Engine) Store() *store.SQLiteStore { return e.store }

// RetrieveContext runs the full retrieval pipeline for a user turn
// and returns the assembled prompt context together with the ids of
// the records that fed it. Every stage degrades rather than fails: the
// caller always gets a usable string ending in the user input, worst
// case the user input alone.
func (e *Engine) RetrieveContext(ctx context.Context, userInput string, personality string) (string, []string) {
	opts := assemble.Options{
		MaxLength:   e.cfg.MaxContextLength(),
		Personality: personality,
	}

	hits, err := e.store.SearchSimilar(ctx, userInput, e.cfg.ANN.K,
		e.cfg.ANN.Threshold, e.cfg.ANN.ThresholdFallback)
	if err != nil || len(hits) == 0 {
		if err != nil {
			e.log.Warn("similarity search failed", zap.Error(err))
		}
		return e.assembler.Build(userInput, nil, opts), nil
	}

	seeds := make([]string, len(hits))
	for i, h := range hits {
		seeds[i] = h.ID
	}
	expanded := e.store.Expand(ctx, seeds, expandDepth, expandMinStrength)

	agg, err := e.store.Aggregate(ctx, expanded, store.AggregateOptions{
		IncludeSummaries:   true,
		IncludeSessions:    true,
		MaxRecentDialogues: 3,
	})
	if err != nil {
		e.log.Warn("history aggregation failed", zap.Error(err))
		return e.assembler.Build(userInput, nil, opts), nil
	}

	candidates := append([]model.MemoryRecord{}, agg.Primary...)
	candidates = append(candidates, agg.Summaries...)
	// Recent dialogue from the hit sessions competes for context space
	// too; ranking dedups any overlap with the primary records.
	for _, pairs := range agg.Sessions {
		for _, p := range pairs {
			candidates = append(candidates, p.User, p.Assistant)
		}
	}

	ranked := e.ranker.Rank(candidates, userInput)
	ids := make([]string, len(ranked))
	for i, r := range ranked {
		ids[i] = r.ID
	}
	return e.assembler.Build(userInput, ranked, opts), ids
}

// RecordTurn stores one user/assistant exchange in the current
// session and queues it for background evaluation, tagged with the ids
// of the memories that shaped the response (as returned by
// RetrieveContext). It returns the two record ids, or a typed error
// when either write failed.
func (e *Engine) RecordTurn(ctx context.Context, userInput, aiResponse string, contextMemories []string) (string, string, error) {
	sessionID, err := e.store.EnsureSession(ctx, time.Duration(e.cfg.SessionTimeout))
	if err != nil {
		return "", "", err
	}

	userID, err := e.store.Add(ctx, store.AddParams{
		Content:   userInput,
		Role:      model.RoleUser,
		Type:      model.TypeUserInput,
		SessionID: sessionID,
	})
	if err != nil {
		return "", "", err
	}

	aiID, err := e.store.Add(ctx, store.AddParams{
		Content:   aiResponse,
		Role:      model.RoleAssistant,
		Type:      model.TypeAssistant,
		SessionID: sessionID,
	})
	if err != nil {
		return userID, "", err
	}

	// Fire-and-forget; evaluator problems never fail the turn.
	e.evaluator.QueueDialogue(evaluate.Dialogue{
		UserInput:       userInput,
		AIResponse:      aiResponse,
		SessionID:       sessionID,
		ContextMemories: contextMemories,
	})

	return userID, aiID, nil
}

// Healthy surfaces unresolved consistency or index persistence
// failures.
func (e *Engine) Healthy() error { return e.store.Healthy() }

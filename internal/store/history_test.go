package store

import (
	"context"
	"testing"
	"time"

	"github.com/engramdev/engram/internal/model"
)

func addTurn(t *testing.T, s *SQLiteStore, session, content string, role model.Role, at time.Time) string {
	t.Helper()
	return mustAdd(t, s, AddParams{
		Content:   content,
		Role:      role,
		SessionID: session,
		Timestamp: at,
	})
}

func TestAggregatePairsDialogues(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	sid := "sess-1"
	hit := addTurn(t, s, sid, "what is my dog's name?", model.RoleUser, base)
	addTurn(t, s, sid, "your dog is called Rex", model.RoleAssistant, base.Add(time.Minute))
	addTurn(t, s, sid, "where did we adopt him?", model.RoleUser, base.Add(2*time.Minute))
	addTurn(t, s, sid, "from the shelter on 5th street", model.RoleAssistant, base.Add(3*time.Minute))
	// An unpaired trailing user turn must not form a pair.
	addTurn(t, s, sid, "thanks", model.RoleUser, base.Add(4*time.Minute))

	res, err := s.Aggregate(ctx, []string{hit}, AggregateOptions{
		IncludeSessions:    true,
		MaxRecentDialogues: 3,
	})
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if len(res.Primary) != 1 || res.Primary[0].ID != hit {
		t.Fatalf("primary = %v, want the requested record", res.Primary)
	}
	pairs := res.Sessions[sid]
	if len(pairs) != 2 {
		t.Fatalf("pairs = %d, want 2", len(pairs))
	}
	if pairs[0].User.Content != "what is my dog's name?" || pairs[0].Assistant.Content != "your dog is called Rex" {
		t.Errorf("first pair mismatched: %+v", pairs[0])
	}
	if pairs[1].Assistant.Content != "from the shelter on 5th street" {
		t.Errorf("second pair mismatched: %+v", pairs[1])
	}
}

func TestAggregateKeepsMostRecentPairs(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	sid := "sess-2"
	var first string
	for i := 0; i < 5; i++ {
		at := base.Add(time.Duration(i*2) * time.Minute)
		id := addTurn(t, s, sid, "question", model.RoleUser, at)
		if i == 0 {
			first = id
		}
		addTurn(t, s, sid, "answer", model.RoleAssistant, at.Add(time.Minute))
	}

	res, err := s.Aggregate(ctx, []string{first}, AggregateOptions{
		IncludeSessions:    true,
		MaxRecentDialogues: 2,
	})
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if got := len(res.Sessions[sid]); got != 2 {
		t.Errorf("pairs = %d, want the 2 most recent", got)
	}
}

func TestAggregateIncludesSummaries(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	sid := "sess-3"
	hit := addTurn(t, s, sid, "back to our project", model.RoleUser, time.Now().UTC())
	mustAdd(t, s, AddParams{
		Content:   "discussed migrating the billing service to the new queue",
		Role:      model.RoleSystem,
		Type:      model.TypeSummary,
		SessionID: sid,
		Weight:    8.0,
	})

	res, err := s.Aggregate(ctx, []string{hit}, AggregateOptions{IncludeSummaries: true})
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if len(res.Summaries) != 1 {
		t.Fatalf("summaries = %d, want 1", len(res.Summaries))
	}
	if res.Summaries[0].Type != model.TypeSummary {
		t.Errorf("summary type = %q", res.Summaries[0].Type)
	}
}

func TestAggregateEmptyIDs(t *testing.T) {
	s, _ := newTestStore(t)
	res, err := s.Aggregate(context.Background(), nil, AggregateOptions{IncludeSessions: true})
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if len(res.Primary) != 0 || len(res.Sessions) != 0 {
		t.Errorf("expected empty result, got %+v", res)
	}
}

func TestEnsureSessionReusesWithinTimeout(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	first, err := s.EnsureSession(ctx, time.Hour)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	second, err := s.EnsureSession(ctx, time.Hour)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if first != second {
		t.Errorf("got new session %s within timeout, want %s reused", second, first)
	}
}

func TestEnsureSessionRollsOverAfterTimeout(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	first, err := s.EnsureSession(ctx, time.Hour)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	second, err := s.EnsureSession(ctx, time.Nanosecond)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if first == second {
		t.Fatal("expected a fresh session after timeout")
	}

	old, err := s.GetSession(ctx, first)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if old.EndedAt == nil {
		t.Error("superseded session should be ended")
	}
}

func TestEndSession(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	id, _ := s.EnsureSession(ctx, time.Hour)
	if err := s.EndSession(ctx, id); err != nil {
		t.Fatalf("end: %v", err)
	}
	if err := s.EndSession(ctx, id); err == nil {
		t.Error("ending an ended session should fail")
	}

	next, _ := s.EnsureSession(ctx, time.Hour)
	if next == id {
		t.Error("ended session should not be reused")
	}
}

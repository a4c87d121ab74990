package store

import (
	"context"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestInsertAndFetchUser(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	if err := st.InsertUser(ctx, "u1", "alice", "hash"); err != nil {
		t.Fatalf("InsertUser: %v", err)
	}

	u, err := st.FetchUser(ctx, "u1")
	if err != nil {
		t.Fatalf("FetchUser: %v", err)
	}
	if u == nil {
		t.Fatal("expected user, got nil")
	}
	if u.Name != "alice" || u.Rate != 1500 || len(u.MatchHistory) != 0 {
		t.Fatalf("unexpected defaults: %+v", u)
	}

	byName, err := st.FetchUserByName(ctx, "alice")
	if err != nil {
		t.Fatalf("FetchUserByName: %v", err)
	}
	if byName == nil || byName.ID != "u1" {
		t.Fatalf("expected to find u1 by name, got %+v", byName)
	}
}

func TestFetchUserMissing(t *testing.T) {
	st := newTestStore(t)
	u, err := st.FetchUser(context.Background(), "nope")
	if err != nil {
		t.Fatalf("FetchUser: %v", err)
	}
	if u != nil {
		t.Fatalf("expected nil for missing user, got %+v", u)
	}
}

func TestInsertUserDuplicateName(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	if err := st.InsertUser(ctx, "u1", "alice", "hash"); err != nil {
		t.Fatalf("InsertUser: %v", err)
	}
	err := st.InsertUser(ctx, "u2", "alice", "hash2")
	if err == nil {
		t.Fatal("expected unique violation error")
	}
}

func TestPatchUserNoOp(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	st.InsertUser(ctx, "u1", "alice", "hash")

	if err := st.PatchUser(ctx, "u1", UserPatch{}); err != nil {
		t.Fatalf("PatchUser no-op: %v", err)
	}

	u, _ := st.FetchUser(ctx, "u1")
	if u.Rate != 1500 {
		t.Fatalf("no-op patch should not change rate, got %d", u.Rate)
	}
}

func TestPatchUserCurrentMatchIDSentinel(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	st.InsertUser(ctx, "u1", "alice", "hash")

	matchID := "m1"
	if err := st.PatchUser(ctx, "u1", UserPatch{CurrentMatchID: &matchID}); err != nil {
		t.Fatalf("PatchUser set: %v", err)
	}
	u, _ := st.FetchUser(ctx, "u1")
	if u.CurrentMatchID == nil || *u.CurrentMatchID != "m1" {
		t.Fatalf("expected currentMatchId m1, got %v", u.CurrentMatchID)
	}

	cleared := ""
	if err := st.PatchUser(ctx, "u1", UserPatch{CurrentMatchID: &cleared}); err != nil {
		t.Fatalf("PatchUser clear: %v", err)
	}
	u, _ = st.FetchUser(ctx, "u1")
	if u.CurrentMatchID != nil {
		t.Fatalf("expected currentMatchId cleared to null, got %v", u.CurrentMatchID)
	}
}

func TestMatchReportDuplicateRejected(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	st.InsertUser(ctx, "u1", "alice", "hash")
	st.InsertUser(ctx, "u2", "bob", "hash")
	st.InsertMatch(ctx, "m1", "u1", "u2")

	ok, err := st.PatchMatchReport(ctx, "m1", 1, "win")
	if err != nil || !ok {
		t.Fatalf("expected first report accepted, got ok=%v err=%v", ok, err)
	}

	ok, err = st.PatchMatchReport(ctx, "m1", 1, "lose")
	if err != nil {
		t.Fatalf("PatchMatchReport: %v", err)
	}
	if ok {
		t.Fatal("expected duplicate report rejected")
	}

	m, _ := st.FetchMatch(ctx, "m1")
	if m.P1Report == nil || *m.P1Report != "win" {
		t.Fatalf("expected first report to stick, got %v", m.P1Report)
	}
}

func TestMarkResolvedOnlyOnce(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	st.InsertUser(ctx, "u1", "alice", "hash")
	st.InsertUser(ctx, "u2", "bob", "hash")
	st.InsertMatch(ctx, "m1", "u1", "u2")

	ok, err := st.MarkResolved(ctx, "m1", time.Now())
	if err != nil || !ok {
		t.Fatalf("expected first resolve to succeed, got ok=%v err=%v", ok, err)
	}

	ok, err = st.MarkResolved(ctx, "m1", time.Now())
	if err != nil {
		t.Fatalf("MarkResolved: %v", err)
	}
	if ok {
		t.Fatal("expected second resolve to be a no-op")
	}
}

func TestTopByRating(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	st.InsertUser(ctx, "u1", "alice", "hash")
	st.InsertUser(ctx, "u2", "bob", "hash")
	rate := 1800
	st.PatchUser(ctx, "u2", UserPatch{Rate: &rate})

	top, err := st.TopByRating(ctx, 10)
	if err != nil {
		t.Fatalf("TopByRating: %v", err)
	}
	if len(top) != 2 || top[0].Name != "bob" {
		t.Fatalf("expected bob ranked first, got %+v", top)
	}
}

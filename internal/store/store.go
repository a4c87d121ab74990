// Package store is the hub's Store Gateway: typed operations on users
// and matches, with idempotent schema bootstrap. The hub treats it as
// a passive key/value and relational sink — no game logic lives here.
package store

import (
	"context"
	"time"
)

// User is a registered player.
type User struct {
	ID              string
	Name            string
	Verifier        string // opaque password verifier (bcrypt hash)
	Rate            int
	MatchHistory    []string // newest first, capped at HistoryCap entries
	Memos           string   // opaque JSON blob, never inspected
	BattleRecords   string   // opaque JSON blob, never inspected
	RegisteredDecks string   // opaque JSON blob, never inspected
	CurrentMatchID  *string
	CreatedAt       time.Time
	LastLoginAt     *time.Time
}

// Match is a single 1v1 match record.
type Match struct {
	ID         string
	P1         string
	P2         string
	P1Report   *string
	P2Report   *string
	ResolvedAt *time.Time
	CreatedAt  time.Time
}

// HistoryCap bounds User.MatchHistory length; the oldest entry falls
// off when a new one is prepended.
const HistoryCap = 10

// UserPatch describes a partial update to a user row. A nil field
// means "leave unchanged". CurrentMatchID uses "" (a UUID is never
// empty) as the sentinel for "clear to null" so a single pointer can
// represent the three states {untouched, set, cleared}.
type UserPatch struct {
	Rate            *int
	MatchHistory    *[]string
	Memos           *string
	BattleRecords   *string
	RegisteredDecks *string
	CurrentMatchID  *string
	Username        *string
}

// Store defines the interface for the durable backing sink.
type Store interface {
	FetchUser(ctx context.Context, id string) (*User, error)
	FetchUserByName(ctx context.Context, name string) (*User, error)
	InsertUser(ctx context.Context, id, name, verifier string) error
	PatchUser(ctx context.Context, id string, patch UserPatch) error
	TouchLogin(ctx context.Context, id string, at time.Time) error

	InsertMatch(ctx context.Context, id, p1, p2 string) error
	FetchMatch(ctx context.Context, id string) (*Match, error)
	// PatchMatchReport writes the report for slot (1 or 2) only if that
	// slot is currently null; it reports whether the write happened so
	// callers can distinguish "accepted" from "duplicate".
	PatchMatchReport(ctx context.Context, id string, slot int, value string) (bool, error)
	// MarkResolved transitions resolved_at from null to at, guarding
	// against double-resolution; it reports whether this call performed
	// the transition.
	MarkResolved(ctx context.Context, id string, at time.Time) (bool, error)

	TopByRating(ctx context.Context, limit int) ([]User, error)

	Close() error
}

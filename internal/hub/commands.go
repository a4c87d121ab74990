package hub

import (
	"encoding/json"

	"github.com/edvart/cardhub/internal/store"
)

// Command is the interface for all commands sent to the hub.
type Command interface {
	command() // marker method
}

// Reply is the generic response shape every request-style command
// hands back on its Response channel. Data is populated by the
// specific handler and type-asserted by the router that issued the
// command; Err is nil on success.
type Reply struct {
	Err  error
	Data any
}

// Connect registers a newly accepted connection. Fire-and-forget: the
// transport doesn't need to wait for it before reading frames, since
// commands reach the hub in send order, and a login on an unregistered
// connId creates the session record itself.
type Connect struct {
	ConnID string
}

func (Connect) command() {}

// Disconnect tears down a closed connection's session, queue entry,
// and any room it owned or spectated.
type Disconnect struct {
	ConnID string
}

func (Disconnect) command() {}

// Register creates a new user.
type Register struct {
	Username string
	Password string
	Response chan Reply
}

func (Register) command() {}

// Login authenticates and binds a connection, evicting any existing
// live connection for the same user (single-session takeover).
type Login struct {
	ConnID   string
	Username string
	Password string
	Response chan Reply
}

func (Login) command() {}

// AutoLogin re-binds a connection given a client-persisted (userId,
// username) tuple, no password required.
type AutoLogin struct {
	ConnID   string
	UserID   string
	Username string
	Response chan Reply
}

func (AutoLogin) command() {}

// Logout unbinds a connection's session.
type Logout struct {
	ConnID   string
	Response chan Reply
}

func (Logout) command() {}

// ChangeUsername validates and applies a username change.
type ChangeUsername struct {
	ConnID      string
	NewUsername string
	Response    chan Reply
}

func (ChangeUsername) command() {}

// UpdateUserData applies a partial patch to the caller's own user row.
type UpdateUserData struct {
	ConnID   string
	Patch    store.UserPatch
	Response chan Reply
}

func (UpdateUserData) command() {}

// JoinQueue enqueues the caller.
type JoinQueue struct {
	ConnID   string
	Response chan Reply
}

func (JoinQueue) command() {}

// LeaveQueue dequeues the caller.
type LeaveQueue struct {
	ConnID   string
	Response chan Reply
}

func (LeaveQueue) command() {}

// WebrtcSignal relays an opaque 1v1 signaling payload to the caller's
// current opponent.
type WebrtcSignal struct {
	ConnID   string
	Signal   json.RawMessage
	Response chan Reply
}

func (WebrtcSignal) command() {}

// ReportResult records the caller's self-declared outcome for a match.
type ReportResult struct {
	ConnID   string
	MatchID  string
	Result   string // "win", "lose", "cancel"
	Response chan Reply
}

func (ReportResult) command() {}

// ClearMatchInfo drops the caller's opponent pointer and currentMatchId.
type ClearMatchInfo struct {
	ConnID   string
	Response chan Reply
}

func (ClearMatchInfo) command() {}

// GetRanking returns the top-rated users.
type GetRanking struct {
	Limit    int
	Response chan Reply
}

func (GetRanking) command() {}

// StartBroadcast mints a new spectate room owned by the caller.
type StartBroadcast struct {
	ConnID   string
	Response chan Reply
}

func (StartBroadcast) command() {}

// StopBroadcast destroys a room the caller owns.
type StopBroadcast struct {
	ConnID   string
	RoomID   string
	Response chan Reply
}

func (StopBroadcast) command() {}

// JoinSpectateRoom adds the caller as a spectator of a room.
type JoinSpectateRoom struct {
	ConnID   string
	RoomID   string
	Response chan Reply
}

func (JoinSpectateRoom) command() {}

// LeaveSpectateRoom removes the caller from a room's spectator set.
type LeaveSpectateRoom struct {
	ConnID   string
	RoomID   string
	Response chan Reply
}

func (LeaveSpectateRoom) command() {}

// SpectateSignal is sent by a room's broadcaster; it is cached as the
// room's offer and fanned out to every current spectator.
type SpectateSignal struct {
	ConnID   string
	RoomID   string
	Signal   json.RawMessage
	Response chan Reply
}

func (SpectateSignal) command() {}

// SignalToSpectator is sent by a room's broadcaster to one spectator.
type SignalToSpectator struct {
	ConnID      string
	RoomID      string
	SpectatorID string
	Signal      json.RawMessage
	Response    chan Reply
}

func (SignalToSpectator) command() {}

// SignalToBroadcaster is sent by a spectator to the room's broadcaster.
type SignalToBroadcaster struct {
	ConnID   string
	RoomID   string
	Signal   json.RawMessage
	Response chan Reply
}

func (SignalToBroadcaster) command() {}

// GetBroadcastList pushes the current room list to the caller (and,
// per spec, the notifier pushes it to everyone on room churn anyway).
type GetBroadcastList struct {
	ConnID   string
	Response chan Reply
}

func (GetBroadcastList) command() {}

package hub

import "encoding/json"

// The types below are the unsolicited frames the hub pushes through a
// Pusher (see pusher.go) outside of any request/response cycle — §6's
// "Emitted event types". Each carries its own "type" field so the
// transport can marshal it directly onto the wire.

// MatchFoundEvent is pushed to both players when the queue pairs them.
type MatchFoundEvent struct {
	Type        string `json:"type"`
	MatchID     string `json:"matchId"`
	Opponent    Player `json:"opponent"`
	IsInitiator bool   `json:"isInitiator"`
}

// RoomListing is one entry of a broadcast_list_update.
type RoomListing struct {
	RoomID               string `json:"roomId"`
	BroadcasterUsername string `json:"broadcasterUsername"`
}

// BroadcastListUpdateEvent is pushed to every open connection whenever
// a room is created or destroyed, and to the requester of
// get_broadcast_list.
type BroadcastListUpdateEvent struct {
	Type  string        `json:"type"`
	Rooms []RoomListing `json:"rooms"`
}

// QueueCountUpdateEvent is pushed to every open connection on any
// enqueue, dequeue, or pairing.
type QueueCountUpdateEvent struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// NewSpectatorEvent notifies a broadcaster that a spectator joined.
type NewSpectatorEvent struct {
	Type        string `json:"type"`
	RoomID      string `json:"roomId"`
	SpectatorID string `json:"spectatorId"`
}

// SpectatorLeftEvent notifies a broadcaster that a spectator left.
type SpectatorLeftEvent struct {
	Type        string `json:"type"`
	RoomID      string `json:"roomId"`
	SpectatorID string `json:"spectatorId"`
}

// BroadcastStoppedEvent notifies spectators their room was torn down.
type BroadcastStoppedEvent struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
}

// LogoutForcedEvent notifies a connection it lost session ownership to
// a newer login on the same account.
type LogoutForcedEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ErrorEvent is the wire shape of the unsolicited "error" event. No
// handler pushes it; a panic recovered in handleCommand is answered
// through the command's Reply instead.
type ErrorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// MatchResolvedEvent is pushed to both players once a match resolves,
// each receiving their own rate/history. Not explicitly named in §6's
// event list but required by §4.D's "notify both connections" —
// documented as an added wire detail in DESIGN.md.
type MatchResolvedEvent struct {
	Type         string   `json:"type"`
	MatchID      string   `json:"matchId"`
	Outcome      string   `json:"outcome"` // "consistent" | "disputed" | "cancel"
	Rate         int      `json:"rate"`
	RateChange   int      `json:"rateChange"`
	MatchHistory []string `json:"matchHistory"`
}

// WebrtcSignalEvent carries an opaque 1v1 signaling payload forwarded
// between matched peers (4.E).
type WebrtcSignalEvent struct {
	Type   string          `json:"type"`
	From   string          `json:"from"`
	Signal json.RawMessage `json:"signal"`
}

// SpectateSignalEvent carries an opaque signaling payload fanned out
// through the spectate relay (4.E) — used for spectate_signal,
// webrtc_signal_to_spectator, and webrtc_signal_to_broadcaster alike.
type SpectateSignalEvent struct {
	Type   string          `json:"type"`
	RoomID string          `json:"roomId"`
	From   string          `json:"from"`
	Signal json.RawMessage `json:"signal"`
}

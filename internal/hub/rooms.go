package hub

import (
	"fmt"

	"github.com/edvart/cardhub/internal/auth"
	"github.com/edvart/cardhub/internal/herr"
)

// roomTokenBytes sets the token to 8 hex characters — "sufficient
// given low concurrency" per §4.F.
const roomTokenBytes = 4

// handleStartBroadcast mints a room owned by the caller (§4.F).
func (h *Hub) handleStartBroadcast(c StartBroadcast) (any, error) {
	sess := h.state.session(c.ConnID)
	if sess == nil || sess.UserID == "" {
		return nil, fmt.Errorf("%w: not logged in", herr.Auth)
	}

	user, err := h.store.FetchUser(h.ctx, sess.UserID)
	if err != nil || user == nil {
		return nil, fmt.Errorf("%w: %v", herr.Internal, err)
	}

	var token string
	for {
		token, err = auth.NewToken(roomTokenBytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", herr.Internal, err)
		}
		if _, taken := h.state.rooms[token]; !taken {
			break
		}
	}

	h.state.rooms[token] = &Room{
		Token:           token,
		BroadcasterConn: c.ConnID,
		BroadcasterName: user.Name,
		Spectators:      make(map[string]bool),
	}
	sess.Room = token

	h.log.WithField("roomId", token).WithField("userId", sess.UserID).Info("broadcast started")
	h.pushBroadcastList()
	return map[string]string{"roomId": token}, nil
}

// handleStopBroadcast tears down a room the caller owns.
func (h *Hub) handleStopBroadcast(c StopBroadcast) error {
	room, ok := h.state.rooms[c.RoomID]
	if !ok {
		return fmt.Errorf("%w: unknown room", herr.NotFound)
	}
	if room.BroadcasterConn != c.ConnID {
		return fmt.Errorf("%w: not the broadcaster", herr.Auth)
	}
	h.destroyRoom(c.RoomID)
	return nil
}

// destroyRoom notifies every spectator and removes the room. Used on
// explicit stop_broadcast and on broadcaster disconnect.
func (h *Hub) destroyRoom(token string) {
	room, ok := h.state.rooms[token]
	if !ok {
		return
	}
	for spectator := range room.Spectators {
		h.pusher.Send(spectator, BroadcastStoppedEvent{Type: "broadcast_stopped", RoomID: token})
	}
	delete(h.state.rooms, token)
	if sess := h.state.session(room.BroadcasterConn); sess != nil {
		sess.Room = ""
	}
	h.pushBroadcastList()
}

// handleJoinSpectateRoom adds the caller to a room's spectator set.
// Unauthenticated per §6 — spectating needs only a live connection.
func (h *Hub) handleJoinSpectateRoom(c JoinSpectateRoom) error {
	room, ok := h.state.rooms[c.RoomID]
	if !ok {
		return fmt.Errorf("%w: unknown room", herr.NotFound)
	}

	room.Spectators[c.ConnID] = true
	h.pusher.Send(room.BroadcasterConn, NewSpectatorEvent{
		Type: "new_spectator", RoomID: c.RoomID, SpectatorID: c.ConnID,
	})

	if room.HasCachedOffer {
		h.pusher.Send(c.ConnID, SpectateSignalEvent{
			Type: "spectate_signal", RoomID: c.RoomID,
			From: room.BroadcasterConn, Signal: room.CachedOffer,
		})
	}
	return nil
}

// handleLeaveSpectateRoom removes the caller from a room's spectator set.
func (h *Hub) handleLeaveSpectateRoom(c LeaveSpectateRoom) error {
	room, ok := h.state.rooms[c.RoomID]
	if !ok {
		return fmt.Errorf("%w: unknown room", herr.NotFound)
	}
	delete(room.Spectators, c.ConnID)
	h.pusher.Send(room.BroadcasterConn, SpectatorLeftEvent{
		Type: "spectator_left", RoomID: c.RoomID, SpectatorID: c.ConnID,
	})
	return nil
}

// handleSpectateSignal relays a broadcaster's payload to every current
// spectator and caches it as the room's offer for latecomers.
func (h *Hub) handleSpectateSignal(c SpectateSignal) error {
	room, ok := h.state.rooms[c.RoomID]
	if !ok {
		return fmt.Errorf("%w: unknown room", herr.NotFound)
	}
	if room.BroadcasterConn != c.ConnID {
		return fmt.Errorf("%w: not the broadcaster", herr.Auth)
	}

	room.CachedOffer = c.Signal
	room.HasCachedOffer = true

	for spectator := range room.Spectators {
		h.pusher.Send(spectator, SpectateSignalEvent{
			Type: "spectate_signal", RoomID: c.RoomID, From: c.ConnID, Signal: c.Signal,
		})
	}
	return nil
}

// handleSignalToSpectator delivers a broadcaster's directed payload to
// one named spectator.
func (h *Hub) handleSignalToSpectator(c SignalToSpectator) error {
	room, ok := h.state.rooms[c.RoomID]
	if !ok {
		return fmt.Errorf("%w: unknown room", herr.NotFound)
	}
	if room.BroadcasterConn != c.ConnID {
		return fmt.Errorf("%w: not the broadcaster", herr.Auth)
	}
	if !room.Spectators[c.SpectatorID] {
		return fmt.Errorf("%w: not a current spectator", herr.NotFound)
	}

	h.pusher.Send(c.SpectatorID, SpectateSignalEvent{
		Type: "spectate_signal", RoomID: c.RoomID, From: c.ConnID, Signal: c.Signal,
	})
	return nil
}

// handleSignalToBroadcaster delivers a spectator's payload to the
// room's broadcaster; only current members of the room may send.
func (h *Hub) handleSignalToBroadcaster(c SignalToBroadcaster) error {
	room, ok := h.state.rooms[c.RoomID]
	if !ok {
		return fmt.Errorf("%w: unknown room", herr.NotFound)
	}
	if !room.Spectators[c.ConnID] {
		return fmt.Errorf("%w: not a current spectator", herr.Auth)
	}

	h.pusher.Send(room.BroadcasterConn, SpectateSignalEvent{
		Type: "spectate_signal", RoomID: c.RoomID, From: c.ConnID, Signal: c.Signal,
	})
	return nil
}

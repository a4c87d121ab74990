package hub

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/edvart/cardhub/internal/auth"
	"github.com/edvart/cardhub/internal/herr"
	"github.com/edvart/cardhub/internal/store"
)

// Profile is the client-facing view of a User row — everything except
// the password verifier and the created/last-login timestamps.
type Profile struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Rate            int      `json:"rate"`
	MatchHistory    []string `json:"matchHistory"`
	Memos           string   `json:"memos"`
	BattleRecords   string   `json:"battleRecords"`
	RegisteredDecks string   `json:"registeredDecks"`
	CurrentMatchID  *string  `json:"currentMatchId"`
}

func toProfile(u *store.User) Profile {
	return Profile{
		ID:              u.ID,
		Name:            u.Name,
		Rate:            u.Rate,
		MatchHistory:    u.MatchHistory,
		Memos:           u.Memos,
		BattleRecords:   u.BattleRecords,
		RegisteredDecks: u.RegisteredDecks,
		CurrentMatchID:  u.CurrentMatchID,
	}
}

func validUsername(name string) bool {
	n := utf8.RuneCountInString(name)
	return n >= 3 && n <= 15
}

// handleConnect registers the unbound session record for a newly
// accepted connection.
func (h *Hub) handleConnect(c Connect) {
	h.state.sessions[c.ConnID] = &Session{ConnID: c.ConnID}
}

// handleDisconnect tears down everything a closed connection owned:
// its session entry, its queue slot, any room it broadcasts, and its
// membership in any room it spectates. Per §3, spectator back-
// references are found by scan rather than carried on the session,
// since room counts are small.
func (h *Hub) handleDisconnect(c Disconnect) {
	sess := h.state.session(c.ConnID)
	if sess == nil {
		return
	}

	if sess.UserID != "" {
		h.state.removeFromQueue(sess.UserID)
		if h.state.byUser[sess.UserID] == c.ConnID {
			delete(h.state.byUser, sess.UserID)
		}
	}

	if sess.Room != "" {
		h.destroyRoom(sess.Room)
	}

	for token, room := range h.state.rooms {
		if room.Spectators[c.ConnID] {
			delete(room.Spectators, c.ConnID)
			h.pusher.Send(room.BroadcasterConn, SpectatorLeftEvent{
				Type: "spectator_left", RoomID: token, SpectatorID: c.ConnID,
			})
		}
	}

	delete(h.state.sessions, c.ConnID)
	h.pushQueueCount()
}

func (h *Hub) handleRegister(c Register) (any, error) {
	if !validUsername(c.Username) {
		return nil, fmt.Errorf("%w: username must be 3-15 characters", herr.Validation)
	}
	if c.Password == "" {
		return nil, fmt.Errorf("%w: password is required", herr.Validation)
	}

	existing, err := store.Retry(func() (*store.User, error) { return h.store.FetchUserByName(h.ctx, c.Username) })
	if err != nil {
		return nil, fmt.Errorf("%w: %v", herr.Transient, err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: username already taken", herr.Conflict)
	}

	verifier, err := auth.HashPassword(c.Password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", herr.Internal, err)
	}

	id := uuid.New().String()
	if err := h.store.InsertUser(h.ctx, id, c.Username, verifier); err != nil {
		return nil, fmt.Errorf("%w: %v", herr.Conflict, err)
	}

	h.log.WithField("userId", id).Info("user registered")
	return nil, nil
}

func (h *Hub) handleLogin(c Login) (any, error) {
	user, err := store.Retry(func() (*store.User, error) { return h.store.FetchUserByName(h.ctx, c.Username) })
	if err != nil {
		return nil, fmt.Errorf("%w: %v", herr.Transient, err)
	}
	if user == nil || !auth.VerifyPassword(user.Verifier, c.Password) {
		return nil, fmt.Errorf("%w: invalid credentials", herr.Auth)
	}
	return h.bindSession(c.ConnID, user)
}

func (h *Hub) handleAutoLogin(c AutoLogin) (any, error) {
	user, err := store.Retry(func() (*store.User, error) { return h.store.FetchUser(h.ctx, c.UserID) })
	if err != nil {
		return nil, fmt.Errorf("%w: %v", herr.Transient, err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: unknown user", herr.NotFound)
	}
	if user.Name != c.Username {
		return nil, fmt.Errorf("%w: tuple mismatch", herr.Auth)
	}
	return h.bindSession(c.ConnID, user)
}

// bindSession implements §4.B's one-live-session-per-user contract:
// if the user already owns a different live connection, that
// connection is notified and closed before the new one takes over.
func (h *Hub) bindSession(connID string, user *store.User) (any, error) {
	if prevConn, ok := h.state.byUser[user.ID]; ok && prevConn != connID {
		h.pusher.Send(prevConn, LogoutForcedEvent{
			Type: "logout_forced", Message: "logged in from another connection",
		})
		h.pusher.Close(prevConn, "session takeover")
		if prevSess := h.state.session(prevConn); prevSess != nil {
			prevSess.UserID = ""
			prevSess.OppConn = ""
			prevSess.MatchID = ""
			h.state.removeFromQueue(user.ID)
		}
	}

	sess := h.state.session(connID)
	if sess == nil {
		sess = &Session{ConnID: connID}
		h.state.sessions[connID] = sess
	}
	sess.UserID = user.ID
	h.state.byUser[user.ID] = connID

	if err := h.store.TouchLogin(h.ctx, user.ID, time.Now()); err != nil {
		h.log.WithError(err).Warn("touch login failed")
	}

	h.log.WithField("userId", user.ID).Info("session bound")
	return toProfile(user), nil
}

func (h *Hub) handleLogout(c Logout) error {
	sess := h.state.session(c.ConnID)
	if sess == nil || sess.UserID == "" {
		return fmt.Errorf("%w: not logged in", herr.Auth)
	}

	h.state.removeFromQueue(sess.UserID)
	if h.state.byUser[sess.UserID] == c.ConnID {
		delete(h.state.byUser, sess.UserID)
	}
	sess.UserID = ""
	sess.OppConn = ""
	sess.MatchID = ""
	h.pushQueueCount()
	return nil
}

func (h *Hub) handleChangeUsername(c ChangeUsername) (any, error) {
	sess := h.state.session(c.ConnID)
	if sess == nil || sess.UserID == "" {
		return nil, fmt.Errorf("%w: not logged in", herr.Auth)
	}
	if !validUsername(c.NewUsername) {
		return nil, fmt.Errorf("%w: username must be 3-15 characters", herr.Validation)
	}

	existing, err := store.Retry(func() (*store.User, error) { return h.store.FetchUserByName(h.ctx, c.NewUsername) })
	if err != nil {
		return nil, fmt.Errorf("%w: %v", herr.Transient, err)
	}
	if existing != nil && existing.ID != sess.UserID {
		return nil, fmt.Errorf("%w: username already taken", herr.Conflict)
	}

	if err := h.store.PatchUser(h.ctx, sess.UserID, store.UserPatch{Username: &c.NewUsername}); err != nil {
		return nil, fmt.Errorf("%w: %v", herr.Internal, err)
	}

	user, err := h.store.FetchUser(h.ctx, sess.UserID)
	if err != nil || user == nil {
		return nil, fmt.Errorf("%w: %v", herr.Internal, err)
	}
	return toProfile(user), nil
}

func (h *Hub) handleUpdateUserData(c UpdateUserData) (any, error) {
	sess := h.state.session(c.ConnID)
	if sess == nil || sess.UserID == "" {
		return nil, fmt.Errorf("%w: not logged in", herr.Auth)
	}

	if err := h.store.PatchUser(h.ctx, sess.UserID, c.Patch); err != nil {
		return nil, fmt.Errorf("%w: %v", herr.Internal, err)
	}

	user, err := h.store.FetchUser(h.ctx, sess.UserID)
	if err != nil || user == nil {
		return nil, fmt.Errorf("%w: %v", herr.Internal, err)
	}
	return toProfile(user), nil
}

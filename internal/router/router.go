// Package router is the Message Router (§4.H): the single entry point
// for every inbound frame. It parses the frame, builds the matching
// hub.Command, waits for the hub's reply, and formats the outbound
// response — the sole place an error is turned into a client-facing
// message, mirroring the teacher's single waitForResponse + http.Error
// chokepoint generalized from one HTTP response to one frame reply.
package router

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/edvart/cardhub/internal/herr"
	"github.com/edvart/cardhub/internal/hub"
	"github.com/edvart/cardhub/internal/store"
)

// errUnknownFrameType marks an unrecognized frame type. Per §4.H and
// §6 ("unknown types are logged and dropped"), this is handled like a
// malformed frame — logged, no reply written — not encoded into a
// response.
var errUnknownFrameType = errors.New("unknown frame type")

// Router dispatches raw frame bytes to a Hub and formats replies.
// Session-state requirements (§6's "needs auth?" column) are enforced
// by the hub's own command handlers, since the hub's actor goroutine
// is the only thing that can safely read the session table — the
// router's job is parsing, dispatch, and reply shaping only.
type Router struct {
	hub *hub.Hub
	log *logrus.Entry
}

func New(h *hub.Hub, log *logrus.Entry) *Router {
	return &Router{hub: h, log: log.WithField("component", "router")}
}

// HandleConnect registers a newly accepted connection.
func (r *Router) HandleConnect(connID string) {
	r.hub.Send(hub.Connect{ConnID: connID})
}

// HandleDisconnect tears down a closed connection's state.
func (r *Router) HandleDisconnect(connID string) {
	r.hub.Send(hub.Disconnect{ConnID: connID})
}

type envelope struct {
	Type string `json:"type"`
}

// response is the wire shape for every reply to a request-shaped
// frame: Type echoes back the originating type with a "_response"
// suffix; Success/Message follow §6 ("replies ... include a boolean
// success and, on failure, a message string"); Data carries the
// handler's payload, omitted on failure.
type response struct {
	Type    string `json:"type"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// HandleFrame parses one inbound frame and returns the reply bytes to
// write back, or nil if the frame should produce no reply at all
// (malformed frames are dropped silently, per §4.H and §7).
func (r *Router) HandleFrame(connID string, raw []byte) []byte {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Type == "" {
		r.log.WithField("connId", connID).Warn("dropping malformed frame")
		return nil
	}

	data, err := r.dispatch(connID, env.Type, raw)
	if errors.Is(err, errUnknownFrameType) {
		return nil
	}
	return r.encode(env.Type, data, err)
}

func (r *Router) encode(reqType string, data any, err error) []byte {
	resp := response{Type: reqType + "_response"}
	if err != nil {
		resp.Success = false
		resp.Message = errorMessage(err)
	} else {
		resp.Success = true
		resp.Data = data
	}
	out, marshalErr := json.Marshal(resp)
	if marshalErr != nil {
		r.log.WithError(marshalErr).Error("failed to marshal response")
		return nil
	}
	return out
}

// errorMessage turns a herr-tagged error into a stable client message.
// Internal failures never leak their underlying detail.
func errorMessage(err error) string {
	if herr.Tag(err) == "internal" {
		return "internal error"
	}
	return err.Error()
}

func (r *Router) dispatch(connID, frameType string, raw []byte) (any, error) {
	switch frameType {
	case "register":
		var p struct {
			Username, Password string
		}
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("%w: malformed frame", herr.Validation)
		}
		return r.ask(hub.Register{Username: p.Username, Password: p.Password, Response: make(chan hub.Reply, 1)})

	case "login":
		var p struct {
			Username, Password string
		}
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("%w: malformed frame", herr.Validation)
		}
		return r.ask(hub.Login{ConnID: connID, Username: p.Username, Password: p.Password, Response: make(chan hub.Reply, 1)})

	case "auto_login":
		var p struct {
			UserID   string `json:"userId"`
			Username string `json:"username"`
		}
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("%w: malformed frame", herr.Validation)
		}
		return r.ask(hub.AutoLogin{ConnID: connID, UserID: p.UserID, Username: p.Username, Response: make(chan hub.Reply, 1)})

	case "logout":
		return r.ask(hub.Logout{ConnID: connID, Response: make(chan hub.Reply, 1)})

	case "change_username":
		var p struct {
			NewUsername string `json:"newUsername"`
		}
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("%w: malformed frame", herr.Validation)
		}
		return r.ask(hub.ChangeUsername{ConnID: connID, NewUsername: p.NewUsername, Response: make(chan hub.Reply, 1)})

	case "update_user_data":
		var p struct {
			Rate            *int      `json:"rate"`
			MatchHistory    *[]string `json:"matchHistory"`
			Memos           *string   `json:"memos"`
			BattleRecords   *string   `json:"battleRecords"`
			RegisteredDecks *string   `json:"registeredDecks"`
			CurrentMatchID  *string   `json:"currentMatchId"`
		}
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("%w: malformed frame", herr.Validation)
		}
		patch := store.UserPatch{
			Rate: p.Rate, MatchHistory: p.MatchHistory, Memos: p.Memos,
			BattleRecords: p.BattleRecords, RegisteredDecks: p.RegisteredDecks,
			CurrentMatchID: p.CurrentMatchID,
		}
		return r.ask(hub.UpdateUserData{ConnID: connID, Patch: patch, Response: make(chan hub.Reply, 1)})

	case "join_queue":
		return r.ask(hub.JoinQueue{ConnID: connID, Response: make(chan hub.Reply, 1)})

	case "leave_queue":
		return r.ask(hub.LeaveQueue{ConnID: connID, Response: make(chan hub.Reply, 1)})

	case "webrtc_signal":
		var p struct {
			Signal json.RawMessage `json:"signal"`
		}
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("%w: malformed frame", herr.Validation)
		}
		return r.ask(hub.WebrtcSignal{ConnID: connID, Signal: p.Signal, Response: make(chan hub.Reply, 1)})

	case "report_result":
		var p struct {
			MatchID string `json:"matchId"`
			Result  string `json:"result"`
		}
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("%w: malformed frame", herr.Validation)
		}
		return r.ask(hub.ReportResult{ConnID: connID, MatchID: p.MatchID, Result: p.Result, Response: make(chan hub.Reply, 1)})

	case "clear_match_info":
		return r.ask(hub.ClearMatchInfo{ConnID: connID, Response: make(chan hub.Reply, 1)})

	case "get_ranking":
		var p struct {
			Limit int `json:"limit"`
		}
		_ = json.Unmarshal(raw, &p)
		return r.ask(hub.GetRanking{Limit: p.Limit, Response: make(chan hub.Reply, 1)})

	case "start_broadcast":
		return r.ask(hub.StartBroadcast{ConnID: connID, Response: make(chan hub.Reply, 1)})

	case "stop_broadcast":
		var p struct {
			RoomID string `json:"roomId"`
		}
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("%w: malformed frame", herr.Validation)
		}
		return r.ask(hub.StopBroadcast{ConnID: connID, RoomID: p.RoomID, Response: make(chan hub.Reply, 1)})

	case "join_spectate_room":
		var p struct {
			RoomID string `json:"roomId"`
		}
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("%w: malformed frame", herr.Validation)
		}
		return r.ask(hub.JoinSpectateRoom{ConnID: connID, RoomID: p.RoomID, Response: make(chan hub.Reply, 1)})

	case "leave_spectate_room":
		var p struct {
			RoomID string `json:"roomId"`
		}
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("%w: malformed frame", herr.Validation)
		}
		return r.ask(hub.LeaveSpectateRoom{ConnID: connID, RoomID: p.RoomID, Response: make(chan hub.Reply, 1)})

	case "spectate_signal":
		var p struct {
			RoomID string          `json:"roomId"`
			Signal json.RawMessage `json:"signal"`
		}
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("%w: malformed frame", herr.Validation)
		}
		return r.ask(hub.SpectateSignal{ConnID: connID, RoomID: p.RoomID, Signal: p.Signal, Response: make(chan hub.Reply, 1)})

	case "webrtc_signal_to_spectator":
		var p struct {
			RoomID      string          `json:"roomId"`
			SpectatorID string          `json:"spectatorId"`
			Signal      json.RawMessage `json:"signal"`
		}
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("%w: malformed frame", herr.Validation)
		}
		return r.ask(hub.SignalToSpectator{ConnID: connID, RoomID: p.RoomID, SpectatorID: p.SpectatorID, Signal: p.Signal, Response: make(chan hub.Reply, 1)})

	case "webrtc_signal_to_broadcaster":
		var p struct {
			RoomID string          `json:"roomId"`
			Signal json.RawMessage `json:"signal"`
		}
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("%w: malformed frame", herr.Validation)
		}
		return r.ask(hub.SignalToBroadcaster{ConnID: connID, RoomID: p.RoomID, Signal: p.Signal, Response: make(chan hub.Reply, 1)})

	case "get_broadcast_list":
		return r.ask(hub.GetBroadcastList{ConnID: connID, Response: make(chan hub.Reply, 1)})

	default:
		r.log.WithField("type", frameType).Warn("dropping unknown frame type")
		return nil, errUnknownFrameType
	}
}

// ask is a small helper shared by every branch: send the command, wait
// for the actor's single reply, return it. A panic inside a handler is
// never possible to recover here (the actor goroutine owns the
// recover boundary — see Hub.handleCommand); ask only waits.
func (r *Router) ask(cmd hub.Command) (any, error) {
	var respCh chan hub.Reply
	switch c := cmd.(type) {
	case hub.Register:
		respCh = c.Response
	case hub.Login:
		respCh = c.Response
	case hub.AutoLogin:
		respCh = c.Response
	case hub.Logout:
		respCh = c.Response
	case hub.ChangeUsername:
		respCh = c.Response
	case hub.UpdateUserData:
		respCh = c.Response
	case hub.JoinQueue:
		respCh = c.Response
	case hub.LeaveQueue:
		respCh = c.Response
	case hub.WebrtcSignal:
		respCh = c.Response
	case hub.ReportResult:
		respCh = c.Response
	case hub.ClearMatchInfo:
		respCh = c.Response
	case hub.GetRanking:
		respCh = c.Response
	case hub.StartBroadcast:
		respCh = c.Response
	case hub.StopBroadcast:
		respCh = c.Response
	case hub.JoinSpectateRoom:
		respCh = c.Response
	case hub.LeaveSpectateRoom:
		respCh = c.Response
	case hub.SpectateSignal:
		respCh = c.Response
	case hub.SignalToSpectator:
		respCh = c.Response
	case hub.SignalToBroadcaster:
		respCh = c.Response
	case hub.GetBroadcastList:
		respCh = c.Response
	}

	r.hub.Send(cmd)
	rep := <-respCh
	return rep.Data, rep.Err
}

package hub

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/edvart/cardhub/internal/herr"
	"github.com/edvart/cardhub/internal/store"
)

// Hub is the single actor goroutine that owns every piece of mutable
// state named in the data model: the session table, the matchmaking
// queue, and the spectate room registry. It processes commands off a
// buffered channel sequentially, so none of State's fields ever need a
// mutex — the actor's exclusive read of the command channel is the
// only synchronization primitive in play (§5's "single-threaded
// cooperative event loop" option).
type Hub struct {
	commands chan Command
	state    *State
	store    store.Store
	pusher   Pusher
	log      *logrus.Entry
	ctx      context.Context
}

// New builds a Hub. pusher may be nil, in which case pushed frames are
// silently discarded (useful in tests that only care about replies).
func New(st store.Store, pusher Pusher, log *logrus.Entry) *Hub {
	if pusher == nil {
		pusher = noopPusher{}
	}
	return &Hub{
		commands: make(chan Command, 256),
		state:    NewState(),
		store:    st,
		pusher:   pusher,
		log:      log.WithField("component", "hub"),
		ctx:      context.Background(),
	}
}

// Send enqueues a command for processing. Safe to call from any
// goroutine; never blocks on anything but channel capacity.
func (h *Hub) Send(cmd Command) {
	h.commands <- cmd
}

// Run drains the command channel until ctx is cancelled. Store calls
// made while handling a command run on this goroutine — a suspension
// point, per §5, but not a lock: the actor holds no lock to release.
func (h *Hub) Run(ctx context.Context) {
	h.ctx = ctx
	h.log.Info("hub started")
	for {
		select {
		case <-ctx.Done():
			h.log.Info("hub shutting down")
			return
		case cmd := <-h.commands:
			h.handleCommand(cmd)
		}
	}
}

// reply delivers a Reply on ch if the caller asked for one. Fire-and-
// forget commands (Connect, Disconnect) pass a nil channel.
func reply(ch chan Reply, data any, err error) {
	if ch == nil {
		return
	}
	ch <- Reply{Err: err, Data: data}
}

// handleCommand recovers from a panicking handler so one bad frame
// never takes down the actor goroutine — equivalent in spirit to the
// teacher's http.Error boundary, generalized to "the process keeps
// running and the caller gets a generic internal error" (§7).
func (h *Hub) handleCommand(cmd Command) {
	defer func() {
		if r := recover(); r != nil {
			h.log.WithField("panic", r).Error("recovered from panicking handler")
			if respCh := responseChannel(cmd); respCh != nil {
				reply(respCh, nil, fmt.Errorf("%w: internal error", herr.Internal))
			}
		}
	}()

	switch c := cmd.(type) {
	case Connect:
		h.handleConnect(c)
	case Disconnect:
		h.handleDisconnect(c)
	case Register:
		data, err := h.handleRegister(c)
		reply(c.Response, data, err)
	case Login:
		data, err := h.handleLogin(c)
		reply(c.Response, data, err)
	case AutoLogin:
		data, err := h.handleAutoLogin(c)
		reply(c.Response, data, err)
	case Logout:
		err := h.handleLogout(c)
		reply(c.Response, nil, err)
	case ChangeUsername:
		data, err := h.handleChangeUsername(c)
		reply(c.Response, data, err)
	case UpdateUserData:
		data, err := h.handleUpdateUserData(c)
		reply(c.Response, data, err)
	case JoinQueue:
		err := h.handleJoinQueue(c)
		reply(c.Response, nil, err)
	case LeaveQueue:
		err := h.handleLeaveQueue(c)
		reply(c.Response, nil, err)
	case WebrtcSignal:
		err := h.handleWebrtcSignal(c)
		reply(c.Response, nil, err)
	case ReportResult:
		data, err := h.handleReportResult(c)
		reply(c.Response, data, err)
	case ClearMatchInfo:
		err := h.handleClearMatchInfo(c)
		reply(c.Response, nil, err)
	case GetRanking:
		data, err := h.handleGetRanking(c)
		reply(c.Response, data, err)
	case StartBroadcast:
		data, err := h.handleStartBroadcast(c)
		reply(c.Response, data, err)
	case StopBroadcast:
		err := h.handleStopBroadcast(c)
		reply(c.Response, nil, err)
	case JoinSpectateRoom:
		err := h.handleJoinSpectateRoom(c)
		reply(c.Response, nil, err)
	case LeaveSpectateRoom:
		err := h.handleLeaveSpectateRoom(c)
		reply(c.Response, nil, err)
	case SpectateSignal:
		err := h.handleSpectateSignal(c)
		reply(c.Response, nil, err)
	case SignalToSpectator:
		err := h.handleSignalToSpectator(c)
		reply(c.Response, nil, err)
	case SignalToBroadcaster:
		err := h.handleSignalToBroadcaster(c)
		reply(c.Response, nil, err)
	case GetBroadcastList:
		data, err := h.handleGetBroadcastList(c)
		reply(c.Response, data, err)
	default:
		h.log.WithField("cmd", cmd).Warn("unhandled command type")
	}
}

// responseChannel extracts a command's Response channel, if any, so
// the panic recovery above can still answer the caller.
func responseChannel(cmd Command) chan Reply {
	switch c := cmd.(type) {
	case Register:
		return c.Response
	case Login:
		return c.Response
	case AutoLogin:
		return c.Response
	case Logout:
		return c.Response
	case ChangeUsername:
		return c.Response
	case UpdateUserData:
		return c.Response
	case JoinQueue:
		return c.Response
	case LeaveQueue:
		return c.Response
	case WebrtcSignal:
		return c.Response
	case ReportResult:
		return c.Response
	case ClearMatchInfo:
		return c.Response
	case GetRanking:
		return c.Response
	case StartBroadcast:
		return c.Response
	case StopBroadcast:
		return c.Response
	case JoinSpectateRoom:
		return c.Response
	case LeaveSpectateRoom:
		return c.Response
	case SpectateSignal:
		return c.Response
	case SignalToSpectator:
		return c.Response
	case SignalToBroadcaster:
		return c.Response
	case GetBroadcastList:
		return c.Response
	default:
		return nil
	}
}

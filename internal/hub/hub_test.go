package hub_test

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/edvart/cardhub/internal/herr"
	"github.com/edvart/cardhub/internal/hub"
	"github.com/edvart/cardhub/internal/store"
)

// fakePusher records pushed frames per connection instead of writing
// to a socket, so scenario tests can assert on what the hub decided to
// send without a real transport.
type fakePusher struct {
	mu     sync.Mutex
	sent   map[string][]any
	closed map[string]string
}

func newFakePusher() *fakePusher {
	return &fakePusher{sent: make(map[string][]any), closed: make(map[string]string)}
}

func (p *fakePusher) Send(connID string, frame any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent[connID] = append(p.sent[connID], frame)
}

func (p *fakePusher) Broadcast(frame any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for conn := range p.sent {
		p.sent[conn] = append(p.sent[conn], frame)
	}
}

func (p *fakePusher) Close(connID, reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed[connID] = reason
}

func (p *fakePusher) framesFor(connID string) []any {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]any, len(p.sent[connID]))
	copy(out, p.sent[connID])
	return out
}

func (p *fakePusher) isClosed(connID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.closed[connID]
	return ok
}

func matchFound(t *testing.T, frames []any) hub.MatchFoundEvent {
	t.Helper()
	for _, f := range frames {
		if ev, ok := f.(hub.MatchFoundEvent); ok {
			return ev
		}
	}
	t.Fatal("expected a MatchFoundEvent")
	return hub.MatchFoundEvent{}
}

func spectateSignal(t *testing.T, frames []any) hub.SpectateSignalEvent {
	t.Helper()
	for _, f := range frames {
		if ev, ok := f.(hub.SpectateSignalEvent); ok {
			return ev
		}
	}
	t.Fatal("expected a SpectateSignalEvent")
	return hub.SpectateSignalEvent{}
}

func hasLogoutForced(frames []any) bool {
	for _, f := range frames {
		if _, ok := f.(hub.LogoutForcedEvent); ok {
			return true
		}
	}
	return false
}

func newTestHub(t *testing.T) (*hub.Hub, *store.SQLiteStore, *fakePusher) {
	t.Helper()
	st, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	log := logrus.New()
	log.SetOutput(io.Discard)

	pusher := newFakePusher()
	h := hub.New(st, pusher, log.WithField("test", true))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go h.Run(ctx)

	return h, st, pusher
}

func register(t *testing.T, h *hub.Hub, username, password string) hub.Reply {
	t.Helper()
	ch := make(chan hub.Reply, 1)
	h.Send(hub.Register{Username: username, Password: password, Response: ch})
	return <-ch
}

func connect(h *hub.Hub, connID string) {
	h.Send(hub.Connect{ConnID: connID})
}

func login(t *testing.T, h *hub.Hub, connID, username, password string) hub.Reply {
	t.Helper()
	ch := make(chan hub.Reply, 1)
	h.Send(hub.Login{ConnID: connID, Username: username, Password: password, Response: ch})
	return <-ch
}

func joinQueue(t *testing.T, h *hub.Hub, connID string) hub.Reply {
	t.Helper()
	ch := make(chan hub.Reply, 1)
	h.Send(hub.JoinQueue{ConnID: connID, Response: ch})
	return <-ch
}

func reportResult(t *testing.T, h *hub.Hub, connID, matchID, result string) hub.Reply {
	t.Helper()
	ch := make(chan hub.Reply, 1)
	h.Send(hub.ReportResult{ConnID: connID, MatchID: matchID, Result: result, Response: ch})
	return <-ch
}

func startBroadcast(t *testing.T, h *hub.Hub, connID string) hub.Reply {
	t.Helper()
	ch := make(chan hub.Reply, 1)
	h.Send(hub.StartBroadcast{ConnID: connID, Response: ch})
	return <-ch
}

func spectateSignalCmd(t *testing.T, h *hub.Hub, connID, roomID string, signal json.RawMessage) hub.Reply {
	t.Helper()
	ch := make(chan hub.Reply, 1)
	h.Send(hub.SpectateSignal{ConnID: connID, RoomID: roomID, Signal: signal, Response: ch})
	return <-ch
}

func joinSpectateRoom(t *testing.T, h *hub.Hub, connID, roomID string) hub.Reply {
	t.Helper()
	ch := make(chan hub.Reply, 1)
	h.Send(hub.JoinSpectateRoom{ConnID: connID, RoomID: roomID, Response: ch})
	return <-ch
}

// pairAliceAndBob registers, connects, logs in, and queues alice then
// bob, returning the live connection ids. The matchID result is left
// empty; callers read the matchId from the pushed match_found frame.
func pairAliceAndBob(t *testing.T, h *hub.Hub) (aliceConn, bobConn, matchID string) {
	t.Helper()
	if r := register(t, h, "alice", "hunter2"); r.Err != nil {
		t.Fatalf("register alice: %v", r.Err)
	}
	if r := register(t, h, "bob", "hunter2"); r.Err != nil {
		t.Fatalf("register bob: %v", r.Err)
	}

	aliceConn, bobConn = "c1", "c2"
	connect(h, aliceConn)
	connect(h, bobConn)

	if r := login(t, h, aliceConn, "alice", "hunter2"); r.Err != nil {
		t.Fatalf("login alice: %v", r.Err)
	}
	if r := login(t, h, bobConn, "bob", "hunter2"); r.Err != nil {
		t.Fatalf("login bob: %v", r.Err)
	}

	if r := joinQueue(t, h, aliceConn); r.Err != nil {
		t.Fatalf("alice join queue: %v", r.Err)
	}
	if r := joinQueue(t, h, bobConn); r.Err != nil {
		t.Fatalf("bob join queue: %v", r.Err)
	}

	return aliceConn, bobConn, matchID
}

func TestHappyPathRatedMatch(t *testing.T) {
	h, st, pusher := newTestHub(t)
	aliceConn, bobConn, _ := pairAliceAndBob(t, h)

	found := matchFound(t, pusher.framesFor(aliceConn))
	if !found.IsInitiator {
		t.Fatal("expected alice (first in queue) to be the initiator")
	}
	matchID := found.MatchID

	bobFound := matchFound(t, pusher.framesFor(bobConn))
	if bobFound.IsInitiator {
		t.Fatal("expected bob not to be the initiator")
	}

	if r := reportResult(t, h, aliceConn, matchID, "win"); r.Err != nil {
		t.Fatalf("alice report: %v", r.Err)
	}
	if r := reportResult(t, h, bobConn, matchID, "lose"); r.Err != nil {
		t.Fatalf("bob report: %v", r.Err)
	}

	alice, _ := st.FetchUser(context.Background(), findUserID(t, st, "alice"))
	bob, _ := st.FetchUser(context.Background(), findUserID(t, st, "bob"))

	if alice.Rate != 1516 {
		t.Fatalf("expected alice.rate = 1516, got %d", alice.Rate)
	}
	if bob.Rate != 1484 {
		t.Fatalf("expected bob.rate = 1484, got %d", bob.Rate)
	}
	if alice.CurrentMatchID != nil || bob.CurrentMatchID != nil {
		t.Fatal("expected both currentMatchId cleared")
	}
	if len(alice.MatchHistory) == 0 || alice.MatchHistory[0] != "勝利 1500→1516" {
		t.Fatalf("unexpected alice history: %v", alice.MatchHistory)
	}
	if len(bob.MatchHistory) == 0 || bob.MatchHistory[0] != "敗北 1500→1484" {
		t.Fatalf("unexpected bob history: %v", bob.MatchHistory)
	}

	match, _ := st.FetchMatch(context.Background(), matchID)
	if match.ResolvedAt == nil {
		t.Fatal("expected match resolved")
	}
	if *match.P1Report != "win" || *match.P2Report != "lose" {
		t.Fatalf("unexpected reports: %v %v", *match.P1Report, *match.P2Report)
	}
}

func TestMutualCancel(t *testing.T) {
	h, st, pusher := newTestHub(t)
	aliceConn, bobConn, _ := pairAliceAndBob(t, h)
	matchID := matchFound(t, pusher.framesFor(aliceConn)).MatchID

	reportResult(t, h, aliceConn, matchID, "cancel")
	reportResult(t, h, bobConn, matchID, "cancel")

	alice, _ := st.FetchUser(context.Background(), findUserID(t, st, "alice"))
	bob, _ := st.FetchUser(context.Background(), findUserID(t, st, "bob"))

	if alice.Rate != 1500 || bob.Rate != 1500 {
		t.Fatalf("expected rates unchanged, got alice=%d bob=%d", alice.Rate, bob.Rate)
	}
	if alice.MatchHistory[0] != "対戦中止" || bob.MatchHistory[0] != "対戦中止" {
		t.Fatalf("expected cancel history entries, got %v %v", alice.MatchHistory, bob.MatchHistory)
	}

	match, _ := st.FetchMatch(context.Background(), matchID)
	if match.ResolvedAt == nil || *match.P1Report != "cancel" || *match.P2Report != "cancel" {
		t.Fatalf("unexpected match state: %+v", match)
	}
}

func TestDisputed(t *testing.T) {
	h, st, pusher := newTestHub(t)
	aliceConn, bobConn, _ := pairAliceAndBob(t, h)
	matchID := matchFound(t, pusher.framesFor(aliceConn)).MatchID

	reportResult(t, h, aliceConn, matchID, "win")
	reportResult(t, h, bobConn, matchID, "win")

	alice, _ := st.FetchUser(context.Background(), findUserID(t, st, "alice"))
	bob, _ := st.FetchUser(context.Background(), findUserID(t, st, "bob"))

	if alice.Rate != 1500 || bob.Rate != 1500 {
		t.Fatalf("expected rates unchanged on dispute, got alice=%d bob=%d", alice.Rate, bob.Rate)
	}
	if alice.MatchHistory[0] != "結果不一致" || bob.MatchHistory[0] != "結果不一致" {
		t.Fatalf("expected disputed history entries, got %v %v", alice.MatchHistory, bob.MatchHistory)
	}
}

func TestDuplicateReportRejected(t *testing.T) {
	h, st, pusher := newTestHub(t)
	aliceConn, bobConn, _ := pairAliceAndBob(t, h)
	matchID := matchFound(t, pusher.framesFor(aliceConn)).MatchID

	if r := reportResult(t, h, aliceConn, matchID, "win"); r.Err != nil {
		t.Fatalf("first alice report: %v", r.Err)
	}

	r := reportResult(t, h, aliceConn, matchID, "lose")
	if r.Err == nil {
		t.Fatal("expected second report from the same reporter to be rejected")
	}
	if herr.Tag(r.Err) != "conflict" {
		t.Fatalf("expected conflict error, got %v", r.Err)
	}

	if r := reportResult(t, h, bobConn, matchID, "lose"); r.Err != nil {
		t.Fatalf("bob report: %v", r.Err)
	}

	alice, _ := st.FetchUser(context.Background(), findUserID(t, st, "alice"))
	bob, _ := st.FetchUser(context.Background(), findUserID(t, st, "bob"))
	if alice.Rate != 1516 || bob.Rate != 1484 {
		t.Fatalf("expected outcome to use alice's first report (win), got alice=%d bob=%d", alice.Rate, bob.Rate)
	}
}

func TestSessionTakeover(t *testing.T) {
	h, _, pusher := newTestHub(t)

	register(t, h, "alice", "hunter2")
	connect(h, "c1")
	if r := login(t, h, "c1", "alice", "hunter2"); r.Err != nil {
		t.Fatalf("login c1: %v", r.Err)
	}

	connect(h, "c2")
	r := login(t, h, "c2", "alice", "hunter2")
	if r.Err != nil {
		t.Fatalf("login c2: %v", r.Err)
	}
	if _, ok := r.Data.(hub.Profile); !ok {
		t.Fatalf("expected profile on takeover login, got %T", r.Data)
	}

	if !hasLogoutForced(pusher.framesFor("c1")) {
		t.Fatal("expected c1 to receive logout_forced")
	}
	if !pusher.isClosed("c1") {
		t.Fatal("expected c1 to be closed on takeover")
	}

	if r := joinQueue(t, h, "c1"); r.Err == nil || herr.Tag(r.Err) != "auth" {
		t.Fatalf("expected auth error for evicted connection, got %v", r.Err)
	}
}

func TestSpectatorBootstrap(t *testing.T) {
	h, _, pusher := newTestHub(t)

	register(t, h, "cara", "hunter2")
	connect(h, "cara-conn")
	login(t, h, "cara-conn", "cara", "hunter2")

	r := startBroadcast(t, h, "cara-conn")
	if r.Err != nil {
		t.Fatalf("start broadcast: %v", r.Err)
	}
	roomID := r.Data.(map[string]string)["roomId"]

	offer := json.RawMessage(`{"offer":"sdp-data"}`)
	if r := spectateSignalCmd(t, h, "cara-conn", roomID, offer); r.Err != nil {
		t.Fatalf("spectate signal: %v", r.Err)
	}

	connect(h, "dave-conn")
	if r := joinSpectateRoom(t, h, "dave-conn", roomID); r.Err != nil {
		t.Fatalf("join spectate room: %v", r.Err)
	}

	signal := spectateSignal(t, pusher.framesFor("dave-conn"))
	if string(signal.Signal) != string(offer) {
		t.Fatalf("expected dave to receive cara's cached offer, got %s", signal.Signal)
	}
}

func findUserID(t *testing.T, st *store.SQLiteStore, name string) string {
	t.Helper()
	u, err := st.FetchUserByName(context.Background(), name)
	if err != nil || u == nil {
		t.Fatalf("FetchUserByName(%q): %v", name, err)
	}
	return u.ID
}

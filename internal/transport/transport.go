// Package transport is the hub's WebSocket edge: the one named
// external collaborator (§1) carrying JSON frames over a persistent
// bidirectional connection. It never interprets a frame's "type" field
// itself — that's the Message Router's job — it only moves bytes and
// tracks which connection-id maps to which live socket.
package transport

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBufferSize = 32
)

// FrameRouter is transport's one-way view of the Message Router: hand
// it a connection-id and raw bytes, get back the reply bytes to write
// (nil for "no reply", per §4.H's drop-malformed-frame rule).
type FrameRouter interface {
	HandleConnect(connID string)
	HandleDisconnect(connID string)
	HandleFrame(connID string, raw []byte) []byte
}

type conn struct {
	id   string
	ws   *websocket.Conn
	send chan []byte
}

// Transport owns the chi router, the WebSocket upgrader, and the set
// of live connections. It implements hub.Pusher so the hub's actor can
// push unsolicited frames without importing this package.
type Transport struct {
	router   *chi.Mux
	upgrader websocket.Upgrader
	frames   FrameRouter
	log      *logrus.Entry

	mu    sync.RWMutex
	conns map[string]*conn
}

func New(frames FrameRouter, log *logrus.Entry) *Transport {
	t := &Transport{
		router: chi.NewRouter(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		frames: frames,
		log:    log.WithField("component", "transport"),
		conns:  make(map[string]*conn),
	}
	t.setupRoutes()
	return t
}

func (t *Transport) setupRoutes() {
	r := t.router
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("cardhub ok"))
	})
	r.Get("/ws", t.handleUpgrade)
}

// SetRouter wires the frame router after construction, breaking the
// Hub/Router/Transport construction cycle (the hub needs a Pusher —
// this Transport — before the router exists, and the router needs the
// hub). Must be called before the HTTP server starts accepting.
func (t *Transport) SetRouter(r FrameRouter) {
	t.frames = r
}

func (t *Transport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	t.router.ServeHTTP(w, r)
}

func (t *Transport) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	ws, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		t.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	c := &conn{id: uuid.New().String(), ws: ws, send: make(chan []byte, sendBufferSize)}

	t.mu.Lock()
	t.conns[c.id] = c
	t.mu.Unlock()

	t.frames.HandleConnect(c.id)
	t.log.WithField("connId", c.id).Info("connection accepted")

	go t.writePump(c)
	t.readPump(c)
}

func (t *Transport) readPump(c *conn) {
	defer t.closeConn(c)

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			return
		}

		if reply := t.frames.HandleFrame(c.id, raw); reply != nil {
			t.Send(c.id, reply)
		}
	}
}

func (t *Transport) writePump(c *conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (t *Transport) closeConn(c *conn) {
	c.ws.Close()
	t.mu.Lock()
	delete(t.conns, c.id)
	t.mu.Unlock()
	t.frames.HandleDisconnect(c.id)
	t.log.WithField("connId", c.id).Info("connection closed")
}

// Send implements hub.Pusher: a non-blocking handoff to the
// connection's writePump. A full buffer means a slow client — the
// frame is dropped rather than stalling the caller (mirrors the
// teacher's SSE hub: "client too slow, skip").
func (t *Transport) Send(connID string, frame any) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	c, ok := t.conns[connID]
	if !ok {
		return
	}

	raw := t.marshalOr(connID, frame)
	if raw == nil {
		return
	}

	select {
	case c.send <- raw:
	default:
		t.log.WithField("connId", connID).Warn("dropping frame, slow client")
	}
}

// Broadcast pushes frame to every currently connected client.
func (t *Transport) Broadcast(frame any) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	// Marshal once; every connection gets the same bytes.
	var raw []byte
	for _, c := range t.conns {
		if raw == nil {
			raw = t.marshalOr("", frame)
			if raw == nil {
				return
			}
		}
		select {
		case c.send <- raw:
		default:
			t.log.WithField("connId", c.id).Warn("dropping broadcast frame, slow client")
		}
	}
}

func (t *Transport) marshalOr(connID string, frame any) []byte {
	raw, err := json.Marshal(frame)
	if err != nil {
		t.log.WithError(err).WithField("connId", connID).Error("failed to marshal pushed frame")
		return nil
	}
	return raw
}

// Close force-closes a connection, e.g. on session takeover. The
// conns-map entry is removed under the write lock before the channel
// is closed, and Send/Broadcast hold the read lock while they hand a
// frame to the channel, so a Send/Broadcast racing this call can never
// observe the entry and then send on the now-closed channel.
func (t *Transport) Close(connID string, reason string) {
	t.mu.Lock()
	c, ok := t.conns[connID]
	if ok {
		delete(t.conns, connID)
	}
	t.mu.Unlock()
	if !ok {
		return
	}
	t.log.WithField("connId", connID).WithField("reason", reason).Info("forcing connection closed")
	close(c.send)
}

package hub

import (
	"fmt"

	"github.com/edvart/cardhub/internal/herr"
)

// handleJoinQueue enqueues the caller. Per §4.C, joining while already
// queued is a no-op rather than an error.
func (h *Hub) handleJoinQueue(c JoinQueue) error {
	sess := h.state.session(c.ConnID)
	if sess == nil || sess.UserID == "" {
		return fmt.Errorf("%w: not logged in", herr.Auth)
	}

	if h.state.isQueued(sess.UserID) {
		return nil
	}

	h.state.queue = append(h.state.queue, sess.UserID)
	h.log.WithField("userId", sess.UserID).Info("joined queue")
	h.pushQueueCount()
	h.tryPair()
	return nil
}

// handleLeaveQueue dequeues the caller; leaving while absent is a
// no-op, symmetric with join.
func (h *Hub) handleLeaveQueue(c LeaveQueue) error {
	sess := h.state.session(c.ConnID)
	if sess == nil || sess.UserID == "" {
		return fmt.Errorf("%w: not logged in", herr.Auth)
	}

	if h.state.removeFromQueue(sess.UserID) {
		h.log.WithField("userId", sess.UserID).Info("left queue")
		h.pushQueueCount()
	}
	return nil
}

// tryPair implements §4.C's pairing algorithm: pop the head pair, and
// if both resolve to live bound connections, hand them to the match
// coordinator and stop. If either is stale, the still-live one is
// re-enqueued at the head (preserving its position) and the other is
// discarded; either way, at most one match is created per call.
func (h *Hub) tryPair() {
	for len(h.state.queue) >= 2 {
		p1, p2 := h.state.queue[0], h.state.queue[1]
		h.state.queue = h.state.queue[2:]

		conn1, live1 := h.state.byUser[p1]
		conn2, live2 := h.state.byUser[p2]

		switch {
		case !live1 && !live2:
			continue
		case !live1:
			h.state.pushFront(p2)
			return
		case !live2:
			h.state.pushFront(p1)
			return
		default:
			h.createMatch(p1, conn1, p2, conn2)
			h.pushQueueCount()
			return
		}
	}
}

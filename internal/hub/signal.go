package hub

import (
	"fmt"

	"github.com/edvart/cardhub/internal/herr"
)

// handleWebrtcSignal implements §4.E's 1v1 relay: opaque, forwarded
// verbatim to whichever connection the sender's session currently
// points at as its opponent.
func (h *Hub) handleWebrtcSignal(c WebrtcSignal) error {
	sess := h.state.session(c.ConnID)
	if sess == nil || sess.UserID == "" {
		return fmt.Errorf("%w: not logged in", herr.Auth)
	}
	if sess.OppConn == "" {
		return fmt.Errorf("%w: no opponent", herr.State)
	}

	h.pusher.Send(sess.OppConn, WebrtcSignalEvent{
		Type: "webrtc_signal", From: sess.UserID, Signal: c.Signal,
	})
	return nil
}

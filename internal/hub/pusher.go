package hub

// Pusher is the hub's one-way view of the transport layer: a place to
// hand unsolicited frames to a connection (or all of them) and to force
// a connection closed. Implementations must never block the caller —
// a slow client drops frames rather than stalling the hub's single
// actor goroutine (mirrors the teacher's SSE hub: "client too slow,
// skip").
type Pusher interface {
	Send(connID string, frame any)
	Broadcast(frame any)
	Close(connID string, reason string)
}

// noopPusher discards everything; used where a test only cares about
// command replies, not side-channel pushes.
type noopPusher struct{}

func (noopPusher) Send(string, any)   {}
func (noopPusher) Broadcast(any)      {}
func (noopPusher) Close(string, string) {}

package hub

// pushQueueCount implements §4.G's queue-count side of the notifier:
// pushed to every open connection on any enqueue, dequeue, or pairing.
func (h *Hub) pushQueueCount() {
	h.pusher.Broadcast(QueueCountUpdateEvent{
		Type: "queue_count_update", Count: len(h.state.queue),
	})
}

// roomListings derives the current broadcast list from the room
// registry — the notifier holds no state of its own.
func (h *Hub) roomListings() []RoomListing {
	listings := make([]RoomListing, 0, len(h.state.rooms))
	for token, room := range h.state.rooms {
		listings = append(listings, RoomListing{RoomID: token, BroadcasterUsername: room.BroadcasterName})
	}
	return listings
}

// pushBroadcastList implements §4.G's room-list side: pushed to every
// open connection whenever a room is created or destroyed.
func (h *Hub) pushBroadcastList() {
	h.pusher.Broadcast(BroadcastListUpdateEvent{
		Type: "broadcast_list_update", Rooms: h.roomListings(),
	})
}

// handleGetBroadcastList answers an explicit get_broadcast_list.
func (h *Hub) handleGetBroadcastList(c GetBroadcastList) (any, error) {
	list := BroadcastListUpdateEvent{Type: "broadcast_list_update", Rooms: h.roomListings()}
	h.pusher.Send(c.ConnID, list)
	return list, nil
}

// Package server fans messages out to a room's live members. Delivery is
// fire-and-forget: a member whose outbound queue is over the pending-byte
// threshold is skipped and counted rather than allowed to stall the rest.
package server

// broadcastLocked delivers payload to every member except exclude. The
// caller must hold the room lock. A member that cannot accept the payload is
// skipped for this message, never retried.
func (r *Room) broadcastLocked(payload []byte, exclude *Client) {
	if payload == nil {
		return
	}

	for member := range r.members {
		if member == exclude {
			continue
		}
		if !member.enqueue(payload) {
			r.metrics.broadcastsSkipped.Add(1)
		}
	}
}

func (r *Room) broadcastUserCountLocked() {
	r.broadcastLocked(encodePayload(userCountMessage{Type: "userCount", Count: len(r.members)}), nil)
}

func (r *Room) broadcastRosterLocked() {
	list := make([]rosterEntry, 0, len(r.members))
	for member := range r.members {
		list = append(list, rosterEntry{
			ID:    member.id,
			Name:  member.displayName(),
			Color: ColorFor(member.id),
		})
	}

	r.broadcastLocked(encodePayload(rosterMessage{
		Type:  "roster",
		List:  list,
		Count: len(list),
		At:    nowMillis(),
	}), nil)
}

package hub

import "fmt"

// Subscribe joins a connection to a room after running the ordered admission
// checks; the first failing check wins. The outcome — SUBSCRIBED on success,
// ERROR with the failure code otherwise — is always pushed down the
// connection itself, because the remote peer has no other way to learn of
// misuse. The returned code ("" on success) is for the local caller's and the
// tests' benefit only.
func (h *Hub) Subscribe(connID, room string) ErrorCode {
	h.mu.Lock()
	c, ok := h.conns[connID]
	if !ok {
		h.mu.Unlock()
		return CodeNotConnected
	}

	code := h.subscribeLocked(c, room)
	transport := c.transport
	h.mu.Unlock()

	if code == "" {
		transport.Send(newSubscribedMessage(room, true).encode())
	} else {
		transport.Send(NewErrorMessage(code, subscribeErrorText(code, room)).encode())
	}
	return code
}

// subscribeLocked applies the admission checks and, when they all pass,
// mutates both sides of the room index together so no observer ever sees
// one without the other.
func (h *Hub) subscribeLocked(c *Conn, room string) ErrorCode {
	if _, already := c.rooms[room]; already {
		// Re-subscribing is harmless; ack it without touching the indexes.
		return ""
	}
	if len(c.rooms) >= h.maxRoomsPerConn {
		return CodeRoomLimit
	}

	policy := h.policies[room]
	if policy.MinRole != 0 {
		if c.Identity == nil {
			return CodeAuthRequired
		}
		if !c.Identity.Role.AtLeast(policy.MinRole) {
			return CodeForbidden
		}
	}
	if policy.MaxConnections > 0 && len(h.connsByRoom[room]) >= policy.MaxConnections {
		return CodeRoomFull
	}

	c.rooms[room] = struct{}{}
	set, ok := h.connsByRoom[room]
	if !ok {
		set = make(map[string]struct{})
		h.connsByRoom[room] = set
	}
	set[c.ID] = struct{}{}
	return ""
}

// Unsubscribe removes the connection from the room. It is idempotent and
// always acks, even when the connection was never subscribed, so client-side
// state machines stay simple.
func (h *Hub) Unsubscribe(connID, room string) {
	h.mu.Lock()
	c, ok := h.conns[connID]
	if !ok {
		h.mu.Unlock()
		return
	}
	h.leaveRoomLocked(c, room)
	transport := c.transport
	h.mu.Unlock()

	transport.Send(newUnsubscribedMessage(room, true).encode())
}

// leaveRoomLocked drops the connection from both sides of the room index,
// clearing the room entry entirely once its last subscriber is gone.
func (h *Hub) leaveRoomLocked(c *Conn, room string) {
	delete(c.rooms, room)
	if set, ok := h.connsByRoom[room]; ok {
		delete(set, c.ID)
		if len(set) == 0 {
			delete(h.connsByRoom, room)
		}
	}
}

// InRoom reports whether the connection is currently subscribed to room.
func (h *Hub) InRoom(connID, room string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.conns[connID]
	if !ok {
		return false
	}
	_, in := c.rooms[room]
	return in
}

func subscribeErrorText(code ErrorCode, room string) string {
	switch code {
	case CodeRoomLimit:
		return "room limit per connection reached"
	case CodeAuthRequired:
		return fmt.Sprintf("room %q requires authentication", room)
	case CodeForbidden:
		return fmt.Sprintf("insufficient role for room %q", room)
	case CodeRoomFull:
		return fmt.Sprintf("room %q is full", room)
	default:
		return "subscription rejected"
	}
}

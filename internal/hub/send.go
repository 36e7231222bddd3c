package hub

import (
	"log"

	"github.com/ldco/PuppetMaster2-sub001/internal/models"
)

// The delivery engine. All four entry points are side-effect-only: they
// snapshot recipients under the hub lock, then write outside it so one slow
// or dead peer never stalls the registry or the rest of a batch. A failed
// write is logged and counted as undelivered; cleanup stays with the
// transport's own disconnect callback.

// SendTo delivers one envelope to one connection. Returns false when the
// connection is unknown or the transport write fails.
func (h *Hub) SendTo(connID string, msg Message) bool {
	h.mu.Lock()
	c, ok := h.conns[connID]
	h.mu.Unlock()
	if !ok {
		return false
	}

	if !c.transport.Send(msg.encode()) {
		log.Printf("hub: write to connection %s failed", connID)
		return false
	}
	return true
}

// BroadcastToRoom delivers to every subscriber of the room except
// excludeConnID (pass "" to exclude nobody; used to avoid echoing a sender's
// own message back). Returns the number of successful deliveries.
func (h *Hub) BroadcastToRoom(room string, msg Message, excludeConnID string) int {
	h.mu.Lock()
	targets := make([]*Conn, 0, len(h.connsByRoom[room]))
	for id := range h.connsByRoom[room] {
		if id == excludeConnID {
			continue
		}
		if c, ok := h.conns[id]; ok {
			targets = append(targets, c)
		}
	}
	h.mu.Unlock()

	return h.deliver(targets, msg)
}

// SendToUser unicasts to every live connection of one user, so a user with
// several open tabs or devices sees the notification on all of them.
func (h *Hub) SendToUser(userID string, msg Message) int {
	return h.deliver(h.LookupByUser(userID), msg)
}

// BroadcastToAuthenticated delivers to every identified connection ranking
// at or above minRole (models.RoleNone means any identified connection).
// Anonymous connections are always skipped.
func (h *Hub) BroadcastToAuthenticated(msg Message, minRole models.Role) int {
	h.mu.Lock()
	targets := make([]*Conn, 0, len(h.conns))
	for _, c := range h.conns {
		if c.Identity == nil || !c.Identity.Role.AtLeast(minRole) {
			continue
		}
		targets = append(targets, c)
	}
	h.mu.Unlock()

	return h.deliver(targets, msg)
}

func (h *Hub) deliver(targets []*Conn, msg Message) int {
	raw := msg.encode()
	delivered := 0
	for _, c := range targets {
		if c.transport.Send(raw) {
			delivered++
		} else {
			log.Printf("hub: write to connection %s failed", c.ID)
		}
	}
	return delivered
}

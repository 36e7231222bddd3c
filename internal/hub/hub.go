package hub

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/ldco/PuppetMaster2-sub001/internal/models"
)

// Default resource caps, overridable through Options.
const (
	DefaultMaxConnectionsPerUser = 4
	DefaultMaxRoomsPerConnection = 16
)

// RoomPolicy is the runtime access policy for one room. The zero value means
// fully open: no role requirement and no subscriber ceiling.
type RoomPolicy struct {
	// MinRole, when set (non-RoleNone), restricts subscription to identified
	// connections ranking at or above it.
	MinRole models.Role
	// MaxConnections, when positive, caps simultaneous subscribers.
	MaxConnections int
}

// Options configures a Hub instance.
type Options struct {
	MaxConnectionsPerUser int
	MaxRoomsPerConnection int
	// Policies is the static room table, loaded once at startup.
	// Rooms absent from it are open.
	Policies map[string]RoomPolicy
}

// Hub is the process-wide registry of live connections. All shared state is
// private and guarded by one coarse mutex; the invariants below span several
// maps, so every compound mutation runs in a single critical section.
//
// Invariants:
//   - connsByUser holds an id iff the connection is live and identified.
//   - id ∈ connsByRoom[room] iff room ∈ that connection's room set.
//   - empty per-user and per-room sets are dropped, never left behind.
type Hub struct {
	mu sync.Mutex

	// conns is the source of truth; everything else is a derived index.
	conns       map[string]*Conn
	connsByUser map[string]map[string]struct{}
	connsByRoom map[string]map[string]struct{}

	policies map[string]RoomPolicy
	limiter  *Limiter

	maxConnsPerUser int
	maxRoomsPerConn int

	seq atomic.Uint64
}

// New constructs an isolated Hub. Zero limits fall back to defaults so tests
// and callers only override what they care about.
func New(opts Options) *Hub {
	if opts.MaxConnectionsPerUser <= 0 {
		opts.MaxConnectionsPerUser = DefaultMaxConnectionsPerUser
	}
	if opts.MaxRoomsPerConnection <= 0 {
		opts.MaxRoomsPerConnection = DefaultMaxRoomsPerConnection
	}
	policies := opts.Policies
	if policies == nil {
		policies = make(map[string]RoomPolicy)
	}
	return &Hub{
		conns:           make(map[string]*Conn),
		connsByUser:     make(map[string]map[string]struct{}),
		connsByRoom:     make(map[string]map[string]struct{}),
		policies:        policies,
		limiter:         NewLimiter(),
		maxConnsPerUser: opts.MaxConnectionsPerUser,
		maxRoomsPerConn: opts.MaxRoomsPerConnection,
	}
}

// RateLimiter exposes the hub-owned limiter so the network layer can apply
// per-message-class budgets keyed by connection id.
func (h *Hub) RateLimiter() *Limiter {
	return h.limiter
}

// nextID generates a process-unique connection id: a monotonic counter plus
// a short random suffix. Uniqueness matters here, unguessability does not.
func (h *Hub) nextID() string {
	var suffix [4]byte
	rand.Read(suffix[:])
	return fmt.Sprintf("c%d-%s", h.seq.Add(1), hex.EncodeToString(suffix[:]))
}

// Admit registers a new session and returns its Conn. If the identity is
// already at its connection cap, the oldest of its connections is evicted
// first (transport closed, full teardown) so new sessions are never refused.
func (h *Hub) Admit(transport Transport, identity *models.Identity) *Conn {
	c := &Conn{
		ID:          h.nextID(),
		Identity:    identity,
		ConnectedAt: now(),
		transport:   transport,
		rooms:       make(map[string]struct{}),
	}

	var evicted Transport

	h.mu.Lock()
	if identity != nil {
		if owned := h.connsByUser[identity.UserID]; len(owned) >= h.maxConnsPerUser {
			victim := h.oldestLocked(owned)
			if victim != nil {
				evicted = victim.transport
				h.removeLocked(victim)
				log.Printf("hub: evicted connection %s (user %s over cap)", victim.ID, identity.UserID)
			}
		}
		set, ok := h.connsByUser[identity.UserID]
		if !ok {
			set = make(map[string]struct{})
			h.connsByUser[identity.UserID] = set
		}
		set[c.ID] = struct{}{}
	}
	h.conns[c.ID] = c
	h.mu.Unlock()

	if evicted != nil {
		evicted.Close()
	}
	return c
}

// oldestLocked picks the eviction victim among a user's connection ids.
func (h *Hub) oldestLocked(ids map[string]struct{}) *Conn {
	var oldest *Conn
	for id := range ids {
		c := h.conns[id]
		if c == nil {
			continue
		}
		if oldest == nil || c.ConnectedAt.Before(oldest.ConnectedAt) {
			oldest = c
		}
	}
	return oldest
}

// Remove tears a connection down and scrubs it from every index. It is
// idempotent: disconnect may fire twice (read error plus explicit close) and
// the second call is a no-op. It does not close the transport; that belongs
// to the caller, except on eviction where Admit closes it.
func (h *Hub) Remove(connID string) {
	h.mu.Lock()
	c, ok := h.conns[connID]
	if ok {
		h.removeLocked(c)
	}
	h.mu.Unlock()
}

// removeLocked performs the teardown ordering: room index first, then the
// user index, then the rate window, and the canonical map last so no index
// ever references a connection that is already gone from it.
func (h *Hub) removeLocked(c *Conn) {
	for room := range c.rooms {
		h.leaveRoomLocked(c, room)
	}
	if c.Identity != nil {
		if set, ok := h.connsByUser[c.Identity.UserID]; ok {
			delete(set, c.ID)
			if len(set) == 0 {
				delete(h.connsByUser, c.Identity.UserID)
			}
		}
	}
	h.limiter.Forget(c.ID)
	delete(h.conns, c.ID)
}

// LookupByUser returns the user's live connections, oldest first not
// guaranteed. The slice is a snapshot; it does not alias hub state.
func (h *Hub) LookupByUser(userID string) []*Conn {
	h.mu.Lock()
	defer h.mu.Unlock()

	ids := h.connsByUser[userID]
	out := make([]*Conn, 0, len(ids))
	for id := range ids {
		if c, ok := h.conns[id]; ok {
			out = append(out, c)
		}
	}
	return out
}

// Stats is a point-in-time snapshot for the monitoring endpoint.
type Stats struct {
	TotalConnections         int            `json:"totalConnections"`
	AuthenticatedConnections int            `json:"authenticatedConnections"`
	TotalRooms               int            `json:"totalRooms"`
	PerRoomCounts            map[string]int `json:"perRoomCounts"`
}

// Stats snapshots the registry. Only rooms with at least one subscriber are
// reported; policy-only rooms with no members are not "live" rooms.
func (h *Hub) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()

	s := Stats{
		TotalConnections: len(h.conns),
		TotalRooms:       len(h.connsByRoom),
		PerRoomCounts:    make(map[string]int, len(h.connsByRoom)),
	}
	for _, c := range h.conns {
		if c.Identity != nil {
			s.AuthenticatedConnections++
		}
	}
	for room, ids := range h.connsByRoom {
		s.PerRoomCounts[room] = len(ids)
	}
	return s
}

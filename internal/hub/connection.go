package hub

import (
	"time"

	"github.com/ldco/PuppetMaster2-sub001/internal/models"
)

// Transport is the write handle the network layer hands to the hub for each
// session. Send reports whether the frame was written; the hub never infers
// disconnection from a failed write — the transport's own read loop is
// responsible for calling Hub.Remove.
type Transport interface {
	Send(message []byte) bool
	Close()
}

// Conn is one live session tracked by the hub. The hub owns it exclusively
// for its lifetime; the network layer only ever sees the ID and the envelope
// frames pushed through its Transport.
type Conn struct {
	ID          string
	Identity    *models.Identity
	ConnectedAt time.Time

	transport Transport
	// rooms this connection currently belongs to; guarded by the hub mutex.
	rooms map[string]struct{}
}

// Authenticated reports whether the connection carries an identity.
func (c *Conn) Authenticated() bool {
	return c.Identity != nil
}

// UserID returns the owning user's id, or "" for anonymous connections.
func (c *Conn) UserID() string {
	if c.Identity == nil {
		return ""
	}
	return c.Identity.UserID
}

// Role returns the connection's role, or models.RoleNone for anonymous ones.
func (c *Conn) Role() models.Role {
	if c.Identity == nil {
		return models.RoleNone
	}
	return c.Identity.Role
}

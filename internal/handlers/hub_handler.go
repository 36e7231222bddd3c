package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ldco/PuppetMaster2-sub001/internal/cache"
	"github.com/ldco/PuppetMaster2-sub001/internal/hub"
	"github.com/ldco/PuppetMaster2-sub001/internal/models"

	"github.com/gin-gonic/gin"
)

// statsCacheTTL absorbs dashboard polling so each poller does not take the
// hub lock on every request.
const statsCacheTTL = 2 * time.Second

// HubStats returns a point-in-time snapshot of the hub's registry.
// GET /api/hub/stats (admin)
func HubStats(h *hub.Hub, snapshots *cache.TTLCache[string, hub.Stats]) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, ok := snapshots.Get("stats")
		if !ok {
			stats = h.Stats()
			snapshots.Set("stats", stats, statsCacheTTL)
		}
		c.JSON(http.StatusOK, stats)
	}
}

// NotifyRequest carries an opaque payload to fan out to one user.
type NotifyRequest struct {
	Type    string          `json:"type" binding:"required"`
	Payload json.RawMessage `json:"payload" binding:"required"`
}

// NotifyUser pushes a message to every live connection of one user.
// POST /api/notify/:userId (moderator+)
func NotifyUser(h *hub.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req NotifyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "type and payload are required"})
			return
		}

		delivered := h.SendToUser(c.Param("userId"), hub.NewMessage(req.Type, req.Payload))
		c.JSON(http.StatusOK, gin.H{"delivered": delivered})
	}
}

// AnnounceRequest carries a system-wide announcement with an optional
// minimum-role filter.
type AnnounceRequest struct {
	Type    string          `json:"type" binding:"required"`
	Payload json.RawMessage `json:"payload" binding:"required"`
	MinRole string          `json:"minRole"`
}

// Announce broadcasts to all authenticated connections.
// POST /api/announce (admin)
func Announce(h *hub.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AnnounceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "type and payload are required"})
			return
		}

		minRole := models.RoleNone
		if req.MinRole != "" {
			role, ok := models.ParseRole(req.MinRole)
			if !ok {
				c.JSON(http.StatusBadRequest, gin.H{"error": "unknown minRole"})
				return
			}
			minRole = role
		}

		delivered := h.BroadcastToAuthenticated(hub.NewMessage(req.Type, req.Payload), minRole)
		c.JSON(http.StatusOK, gin.H{"delivered": delivered})
	}
}

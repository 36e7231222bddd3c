package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/ldco/PuppetMaster2-sub001/internal/hub"
	"github.com/ldco/PuppetMaster2-sub001/internal/models"

	"gorm.io/gorm"
)

// WebSocket connection parameters shared by the transport handler.
const (
	// Time allowed to write a message to a peer before the write is
	// abandoned; a dead peer must never stall a broadcast.
	WriteTimeout = 5 * time.Second
	// Time allowed to read the next pong message from the peer.
	PongWait = 60 * time.Second
	// Send pings with this period; must be less than PongWait.
	PingInterval = 30 * time.Second
	// Maximum inbound frame size in bytes.
	MaxFrameSize = 1024
)

// RateLimit is one (budget, window) pair for a message class.
type RateLimit struct {
	MaxMessages int
	Window      time.Duration
}

// Config carries the hub limits and per-class rate limits for one process.
type Config struct {
	MaxConnectionsPerUser int
	MaxRoomsPerConnection int

	// SubscribeRate bounds SUBSCRIBE/UNSUBSCRIBE frames per connection.
	SubscribeRate RateLimit
	// PublishRate bounds application message frames per connection.
	PublishRate RateLimit

	RoomPolicies map[string]hub.RoomPolicy
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
		log.Printf("config: ignoring invalid %s=%q", key, v)
	}
	return fallback
}

// Load builds the process configuration from environment overrides and the
// room_policies table. Policies are read once; runtime edits made by the
// admin panel take effect on the next restart.
func Load(db *gorm.DB) *Config {
	cfg := &Config{
		MaxConnectionsPerUser: getEnvInt("HUB_MAX_CONNECTIONS_PER_USER", hub.DefaultMaxConnectionsPerUser),
		MaxRoomsPerConnection: getEnvInt("HUB_MAX_ROOMS_PER_CONNECTION", hub.DefaultMaxRoomsPerConnection),
		SubscribeRate: RateLimit{
			MaxMessages: getEnvInt("HUB_SUBSCRIBE_RATE_MAX", 10),
			Window:      time.Duration(getEnvInt("HUB_SUBSCRIBE_RATE_WINDOW_MS", 10_000)) * time.Millisecond,
		},
		PublishRate: RateLimit{
			MaxMessages: getEnvInt("HUB_PUBLISH_RATE_MAX", 20),
			Window:      time.Duration(getEnvInt("HUB_PUBLISH_RATE_WINDOW_MS", 5_000)) * time.Millisecond,
		},
		RoomPolicies: loadRoomPolicies(db),
	}
	return cfg
}

// defaultRoomPolicies seeds a deployment whose admin panel has not written
// any policy rows yet.
func defaultRoomPolicies() map[string]hub.RoomPolicy {
	return map[string]hub.RoomPolicy{
		"announcements": {MinRole: models.RoleViewer},
		"editorial":     {MinRole: models.RoleEditor},
		"admin-ops":     {MinRole: models.RoleAdmin},
		"support":       {MaxConnections: 50},
	}
}

func loadRoomPolicies(db *gorm.DB) map[string]hub.RoomPolicy {
	if db == nil {
		return defaultRoomPolicies()
	}

	var rows []models.RoomPolicy
	if err := db.Find(&rows).Error; err != nil {
		log.Printf("config: cannot load room policies, using defaults: %v", err)
		return defaultRoomPolicies()
	}
	if len(rows) == 0 {
		return defaultRoomPolicies()
	}

	policies := make(map[string]hub.RoomPolicy, len(rows))
	for _, row := range rows {
		p := hub.RoomPolicy{MaxConnections: row.MaxConnections}
		if row.MinRole != "" {
			role, ok := models.ParseRole(row.MinRole)
			if !ok {
				log.Printf("config: room %q has unknown min_role %q, treating as admin-only", row.Room, row.MinRole)
				role = models.RoleAdmin
			}
			p.MinRole = role
		}
		policies[row.Room] = p
	}
	log.Printf("config: loaded %d room policies", len(policies))
	return policies
}

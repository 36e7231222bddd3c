package config

import (
	"testing"

	"github.com/ldco/PuppetMaster2-sub001/internal/models"
	"github.com/ldco/PuppetMaster2-sub001/internal/testutil"

	"github.com/stretchr/testify/require"
)

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("HUB_MAX_CONNECTIONS_PER_USER", "7")
	t.Setenv("HUB_SUBSCRIBE_RATE_MAX", "3")

	cfg := Load(nil)
	require.Equal(t, 7, cfg.MaxConnectionsPerUser)
	require.Equal(t, 3, cfg.SubscribeRate.MaxMessages)
}

func TestLoad_IgnoresInvalidEnv(t *testing.T) {
	t.Setenv("HUB_MAX_ROOMS_PER_CONNECTION", "not-a-number")

	cfg := Load(nil)
	require.Equal(t, 16, cfg.MaxRoomsPerConnection)
}

func TestLoadRoomPolicies_FromDB(t *testing.T) {
	db, err := testutil.NewInMemoryDB()
	require.NoError(t, err)

	require.NoError(t, db.Create(&models.RoomPolicy{
		Room:           "newsroom",
		MinRole:        "editor",
		MaxConnections: 10,
	}).Error)
	require.NoError(t, db.Create(&models.RoomPolicy{
		Room:    "broken",
		MinRole: "overlord",
	}).Error)

	cfg := Load(db)

	require.Len(t, cfg.RoomPolicies, 2)
	require.Equal(t, models.RoleEditor, cfg.RoomPolicies["newsroom"].MinRole)
	require.Equal(t, 10, cfg.RoomPolicies["newsroom"].MaxConnections)
	// Unknown role names fail closed.
	require.Equal(t, models.RoleAdmin, cfg.RoomPolicies["broken"].MinRole)
}

func TestLoadRoomPolicies_EmptyTableFallsBack(t *testing.T) {
	db, err := testutil.NewInMemoryDB()
	require.NoError(t, err)

	cfg := Load(db)
	require.NotEmpty(t, cfg.RoomPolicies)
	require.Equal(t, models.RoleAdmin, cfg.RoomPolicies["admin-ops"].MinRole)
}

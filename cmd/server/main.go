package main

import (
	"log"

	"github.com/ldco/PuppetMaster2-sub001/internal/config"
	"github.com/ldco/PuppetMaster2-sub001/internal/database"
	"github.com/ldco/PuppetMaster2-sub001/internal/hub"
	"github.com/ldco/PuppetMaster2-sub001/internal/routes"
)

func main() {
	// Init database
	database.InitDB()

	// Load limits and the static room-policy table
	cfg := config.Load(database.GetDB())

	// The hub owns all connection state; everything reaches it through
	// the routes wiring
	h := hub.New(hub.Options{
		MaxConnectionsPerUser: cfg.MaxConnectionsPerUser,
		MaxRoomsPerConnection: cfg.MaxRoomsPerConnection,
		Policies:              cfg.RoomPolicies,
	})

	// Setup the routes (public and protected routes)
	ginRoutes := routes.SetupRoutes(h, cfg)

	// Start server
	port := ":8008" // This is customizable based on the environment
	log.Printf("Server starting on port %s", port)
	log.Println("API endpoints:")
	log.Println("  POST   /api/login")
	log.Println("  GET    /api/users")
	log.Println("  GET    /api/hub/stats")
	log.Println("  POST   /api/notify/:userId")
	log.Println("  POST   /api/announce")
	log.Println("  GET    /ws")
	log.Println("  GET    /health")

	if err := ginRoutes.Run(port); err != nil {
		log.Fatal("Failed to start server: ", err)
	}
}

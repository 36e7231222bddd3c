package database

import (
	"log"
	"os"

	"github.com/ldco/PuppetMaster2-sub001/internal/models"

	"github.com/glebarez/sqlite"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// InitDB initializes the database connection and runs migrations
func InitDB() {
	var err error

	// Open SQLite database file (will be created if it doesn't exist initially)
	// Using glebarez/sqlite which is a pure Go implementation (no CGO required)
	DB, err = gorm.Open(sqlite.Open("realtime-hub.db"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Info),
	})

	if err != nil {
		log.Fatal("Failed to connect to database: ", err)
	}

	// Auto-migrate the schema (it will create tables if they don't exist)
	err = DB.AutoMigrate(
		&models.User{},
		&models.RoomPolicy{},
	)

	if err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	seedAdminUser(DB)

	log.Println("Database connected and migrated successfully!!!")
}

// seedAdminUser creates a bootstrap admin account on an empty users table so
// a fresh deployment can log in before the admin panel has created anyone.
func seedAdminUser(db *gorm.DB) {
	var count int64
	if err := db.Model(&models.User{}).Count(&count).Error; err != nil || count > 0 {
		return
	}

	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		password = "admin123"
		log.Println("WARNING: seeding default admin with password 'admin123'; set ADMIN_PASSWORD")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Println("Failed to hash admin password:", err)
		return
	}
	admin := models.User{
		ID:       "user-admin",
		Username: "admin",
		Password: string(hashed),
		Role:     "admin",
	}
	if err := db.Create(&admin).Error; err != nil {
		log.Println("Failed to seed admin user:", err)
	}
}

// GetDB returns the database connection
func GetDB() *gorm.DB {
	return DB
}

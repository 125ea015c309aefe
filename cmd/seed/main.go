package main

import (
	"context"
	"log"
	"os"

	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/database"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/models"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/repository"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/utils"
	"github.com/joho/godotenv"
)

// Seeds the first administrator. Running it again is a no-op.
func main() {
	_ = godotenv.Load()

	databaseURL := os.Getenv("DATABASE_URL")
	adminName := os.Getenv("ADMIN_NAME")
	adminEmail := os.Getenv("ADMIN_EMAIL")
	adminPassword := os.Getenv("ADMIN_PASSWORD")

	if databaseURL == "" || adminName == "" || adminEmail == "" || adminPassword == "" {
		log.Fatal("Missing environment variables: DATABASE_URL, ADMIN_NAME, ADMIN_EMAIL, ADMIN_PASSWORD")
	}

	db, err := database.Connect(databaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database: ", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatal("Failed to migrate database: ", err)
	}

	ctx := context.Background()
	users := repository.NewUserRepository(db)

	existing, err := users.GetUserByEmail(ctx, adminEmail)
	if err != nil {
		log.Fatal("Failed to look up admin: ", err)
	}
	if existing != nil {
		log.Println("Admin user already exists:", existing.Email)
		return
	}

	passwordHash, err := utils.HashPassword(adminPassword)
	if err != nil {
		log.Fatal("Failed to hash password: ", err)
	}

	admin := &models.User{
		Name:         adminName,
		Email:        adminEmail,
		PasswordHash: passwordHash,
		Role:         models.RoleAdmin,
		Permissions:  []models.Permission{},
	}
	if err := users.CreateUser(ctx, admin); err != nil {
		log.Fatal("Failed to create admin: ", err)
	}

	log.Println("Admin user created:", admin.Email)
}

package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"fieldsync/internal/config"
	"fieldsync/internal/database"
	"fieldsync/internal/logger"
	"fieldsync/internal/repositories"
	"fieldsync/internal/services"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run cmd/issue-token/main.go <username>")
		fmt.Println("Example: go run cmd/issue-token/main.go ada")
		os.Exit(1)
	}

	username := os.Args[1]

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.NewConnection(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	userRepo := repositories.NewUserRepository(db)
	authService := services.NewAuthenticationService(cfg, logger.NewLogger(cfg), userRepo)

	ctx := context.Background()

	// Get user by username
	user, err := userRepo.GetByUsername(ctx, username)
	if err != nil {
		log.Fatalf("Failed to find user '%s': %v", username, err)
	}
	if !user.IsActive {
		log.Fatalf("User '%s' is inactive; its tokens would be refused", username)
	}

	// Generate JWT token
	token, err := authService.GenerateJWT(ctx, user)
	if err != nil {
		log.Fatalf("Failed to generate JWT token: %v", err)
	}

	fmt.Printf("JWT Token for user '%s':\n", username)
	fmt.Printf("%s\n", token)
	fmt.Printf("\nUse this token in the Authorization header:\n")
	fmt.Printf("Authorization: Bearer %s\n", token)
	fmt.Printf("\nExample curl command:\n")
	fmt.Printf("curl -H \"Authorization: Bearer %s\" %s/game/Player/1/score\n", token, cfg.API.BaseURL())
}

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"

	"fieldsync/internal/config"
	"fieldsync/internal/database"
	"fieldsync/internal/models"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run cmd/migrate/main.go [up|down|status|seed <fixtures.yaml>]")
		os.Exit(1)
	}

	command := os.Args[1]

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Connect to database
	db, err := database.NewConnection(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	schema := models.DefaultSchema()
	migrator := database.NewMigrator(db, schema)

	switch command {
	case "up":
		fmt.Println("Running migrations...")
		if err := migrator.Up(); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		fmt.Println("Migrations completed successfully")

	case "down":
		fmt.Println("Rolling back migrations...")
		if err := migrator.Down(); err != nil {
			log.Fatalf("Failed to rollback migrations: %v", err)
		}
		fmt.Println("Migrations rolled back successfully")

	case "status":
		fmt.Println("Checking migration status...")
		stats, err := db.GetConnectionStats()
		if err != nil {
			log.Fatalf("Failed to get connection stats: %v", err)
		}

		fmt.Printf("Database connection status:\n")
		fmt.Printf("  Max Open Connections: %d\n", stats.MaxOpenConnections)
		fmt.Printf("  Open Connections: %d\n", stats.OpenConnections)
		fmt.Printf("  In Use: %d\n", stats.InUse)
		fmt.Printf("  Idle: %d\n", stats.Idle)

		status := migrator.Status()
		names := make([]string, 0, len(status))
		for name := range status {
			names = append(names, name)
		}
		sort.Strings(names)

		missing := 0
		fmt.Printf("Tables:\n")
		for _, name := range names {
			state := "present"
			if !status[name] {
				state = "missing"
				missing++
			}
			fmt.Printf("  %-20s %s\n", name, state)
		}

		if missing == 0 {
			fmt.Println("Database appears to be properly migrated")
		} else {
			fmt.Println("Some tables are missing - migrations may need to be run")
		}

	case "seed":
		if len(os.Args) < 3 {
			fmt.Println("Usage: go run cmd/migrate/main.go seed <fixtures.yaml>")
			os.Exit(1)
		}

		f, err := os.Open(os.Args[2])
		if err != nil {
			log.Fatalf("Failed to open fixtures: %v", err)
		}
		defer f.Close()

		if err := migrator.Up(); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}

		result, err := database.NewSeeder(db, schema, models.NewValidationService()).Seed(context.Background(), f)
		if err != nil {
			log.Fatalf("Failed to seed database: %v", err)
		}
		fmt.Printf("Seeded %d users and %d records\n", result.Users, result.Records)

	default:
		fmt.Printf("Unknown command: %s\n", command)
		fmt.Println("Available commands: up, down, status, seed")
		os.Exit(1)
	}
}

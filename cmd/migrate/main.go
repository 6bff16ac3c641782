package main

import (
	"fmt"

	"github.com/joho/godotenv"

	"github.com/reciperag/session-cache/internal/config"
	"github.com/reciperag/session-cache/internal/storage/postgres"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	fmt.Printf("Migrating database at %s:%d...\n", cfg.Database.Host, cfg.Database.Port)

	if err := postgres.RunMigrations(cfg.Database.DSN(), "file://migrations"); err != nil {
		panic(fmt.Sprintf("Migration failed: %v", err))
	}
}

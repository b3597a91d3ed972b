// Command seedadmin bootstraps the first administrator account. It is
// meant to run once against a fresh database; with users already present
// it refuses to do anything so it cannot be used to mint extra admins.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/joho/godotenv"

	"github.com/crmdesk/crmdesk/internal/config"
	"github.com/crmdesk/crmdesk/internal/database"
	"github.com/crmdesk/crmdesk/internal/repository"
)

func main() {
	email := flag.String("email", "", "administrator email (required)")
	password := flag.String("password", "", "administrator password (required)")
	name := flag.String("name", "Administrator", "display name")
	flag.Parse()

	if *email == "" || *password == "" {
		log.Fatal("both -email and -password are required")
	}

	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database connect failed: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	users := repository.NewUserRepo(db)
	n, err := users.Count(ctx)
	if err != nil {
		log.Fatalf("count users failed: %v", err)
	}
	if n > 0 {
		log.Fatalf("users table is not empty (%d rows); create further admins through the API", n)
	}

	id, err := users.Create(ctx, *email, *password, *name, repository.RoleAdmin, cfg.BcryptCost)
	if err != nil {
		log.Fatalf("create admin failed: %v", err)
	}
	log.Printf("created administrator %s (id=%d)", *email, id)
}

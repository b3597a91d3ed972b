package main // CRM API server entry point

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/crmdesk/crmdesk/internal/config"
	"github.com/crmdesk/crmdesk/internal/database"
	"github.com/crmdesk/crmdesk/internal/guard"
	"github.com/crmdesk/crmdesk/internal/handler"
	"github.com/crmdesk/crmdesk/internal/queue"
	"github.com/crmdesk/crmdesk/internal/repository"
	"github.com/crmdesk/crmdesk/internal/router"
	"github.com/crmdesk/crmdesk/internal/session"
)

func main() {
	_ = godotenv.Load() // .env is optional; real deployments set env directly

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database connect failed: %v", err)
	}

	// Redis is optional: with a nil client the session store degrades to
	// database lookups and the login limiter becomes a pass-through.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Print("redis unavailable; session cache and rate limiting disabled")
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	customers := repository.NewCustomerRepo(db)
	sessions := session.NewStore(rdb, time.Duration(cfg.SessionTTLMin)*time.Minute)

	g := guard.New(sessions, users, "/v1/auth/login")

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, tokens, sessions), g, rdb)
	router.RegisterCustomers(e, handler.NewCustomerHandler(customers), g, cfg.JWTSecret)
	router.RegisterUsers(e, handler.NewUserHandler(cfg, users, tokens, sessions), g, cfg.JWTSecret)

	// Audit trail consumer runs for the life of the process and survives
	// broker restarts on its own.
	go queue.StartAuditConsumer()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
